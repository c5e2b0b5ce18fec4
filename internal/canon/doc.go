// Package canon canonicalizes structured deployment content and hashes it.
//
// All other internal packages that need a stable identity for a template,
// a function configuration or a layer import canon; canon imports nothing
// internal. Everything here is pure: the same logical input yields the same
// bytes and the same digest on every run and platform.
//
// Key constraints:
//   - Object keys are ordered by UTF-16 code units (RFC 8785), not UTF-8 bytes
//   - Strings are NFC normalized before serialization
//   - Nondeterministic provider values are replaced by fixed placeholders
//     through caller-supplied Rules before anything is hashed
package canon
