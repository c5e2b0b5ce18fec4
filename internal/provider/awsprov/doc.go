// Package awsprov adapts the AWS SDK clients the deploy pipeline reads from
// and writes to: Lambda function configuration, CloudWatch Logs subscription
// filters, caller identity and CloudFormation stacks.
//
// Each adapter consumes its client through a narrow interface holding only
// the calls it makes, so tests substitute fakes. Retries are left to the
// SDK's retryer.
package awsprov
