// Package pipeline runs a deploy of a packaged service end to end.
//
// A deploy resolves the deployment bucket, compiles the template with
// hash-named function versions, and evaluates whether anything changed since
// the last deployment folder. When it did, stale log subscription filters
// are removed first so the stack update never exceeds the per log group
// ceiling, then the artifacts are uploaded to a new timestamped folder and
// the stack is applied from the uploaded template.
//
// Every outcome is recorded in an optional advisory ledger. The pipeline
// never reads the ledger to decide whether to deploy; it only sources the
// last deployed version hashes from it.
package pipeline
