// Package cfn models the CloudFormation value shapes that flow through
// hashing and reconciliation decisions: intrinsic references that may stand
// in for a literal string, and ARNs compared across partitions.
package cfn
