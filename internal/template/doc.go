// Package template compiles a service into the CloudFormation resources that
// take part in version hashing and log subscription reconciliation: Lambda
// functions, their hash-named versions, local layers, subscription filters
// and the outputs exporting qualified ARNs.
//
// The result is a plain map so it can be normalized and hashed by
// internal/canon without conversion.
package template
