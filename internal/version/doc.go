// Package version computes the content identity of a deployable function.
//
// A function gets a new immutable version only when a version-affecting
// property changes in value. The hash input is an explicit allow-list built
// from FunctionConfig; artifact locations, tags, descriptions and concurrency
// settings never reach it, and local layers contribute their own content
// identity rather than their storage location.
package version
