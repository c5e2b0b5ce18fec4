package cfn

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
)

// FunctionARN builds the ARN of a Lambda function.
func FunctionARN(partition, region, accountID, functionName string) string {
	return arn.ARN{
		Partition: partition,
		Service:   "lambda",
		Region:    region,
		AccountID: accountID,
		Resource:  "function:" + functionName,
	}.String()
}

// PartitionForRegion returns the partition a region belongs to.
func PartitionForRegion(region string) string {
	switch {
	case strings.HasPrefix(region, "us-gov-"):
		return "aws-us-gov"
	case strings.HasPrefix(region, "cn-"):
		return "aws-cn"
	case strings.HasPrefix(region, "us-iso-"):
		return "aws-iso"
	case strings.HasPrefix(region, "us-isob-"):
		return "aws-iso-b"
	default:
		return "aws"
	}
}

// SameResource reports whether two ARNs name the same resource, ignoring
// the partition. Government and China partition ARNs returned by the
// provider therefore match ARNs computed with the default partition.
func SameResource(a, b string) bool {
	pa, err := arn.Parse(a)
	if err != nil {
		return false
	}
	pb, err := arn.Parse(b)
	if err != nil {
		return false
	}
	return pa.Service == pb.Service &&
		pa.Region == pb.Region &&
		pa.AccountID == pb.AccountID &&
		pa.Resource == pb.Resource
}

// FunctionNameFromARN extracts the function name from a Lambda function
// ARN, dropping any version or alias qualifier.
func FunctionNameFromARN(s string) (string, error) {
	parsed, err := arn.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse arn %q: %w", s, err)
	}
	if parsed.Service != "lambda" {
		return "", fmt.Errorf("arn %q is not a lambda arn", s)
	}
	rest, ok := strings.CutPrefix(parsed.Resource, "function:")
	if !ok {
		return "", fmt.Errorf("arn %q is not a function arn", s)
	}
	name, _, _ := strings.Cut(rest, ":")
	return name, nil
}
