// Package logsub reconciles CloudWatch Logs subscription filters.
//
// CloudWatch Logs allows at most MaxFiltersPerLogGroup subscription filters
// per log group. When a stack update moves or renames filters the provider
// may try to create the new one before deleting the old one and hit that
// limit, so filters the stack owns but no longer wants are deleted out of
// band. Filters owned by anything else are never touched, and the limit is
// checked across desired and foreign filters before any deletion.
package logsub
