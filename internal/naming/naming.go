// Package naming holds the deterministic naming rules shared by the template
// compiler, the version hasher and the log subscription reconciler.
//
// Logical IDs are derived from user-level function, layer and event names, so
// every component that needs to recognize a resource as owned by the stack
// goes through these functions rather than formatting names itself.
package naming

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// DeploymentBucketLogicalID is the logical ID of the generated deployment bucket.
const DeploymentBucketLogicalID = "ServerlessDeploymentBucket"

// NormalizeName upper-cases the first letter of name.
func NormalizeName(name string) string {
	if name == "" {
		return ""
	}
	r := []rune(name)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// NormalizeNameToAlphaNumericOnly normalizes name and spells out the
// characters CloudFormation rejects in logical IDs.
func NormalizeNameToAlphaNumericOnly(name string) string {
	replaced := strings.NewReplacer("-", "Dash", "_", "Underscore").Replace(name)
	var b strings.Builder
	for _, r := range NormalizeName(replaced) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizedFunctionName is the function name component of every function
// scoped logical ID.
func NormalizedFunctionName(functionName string) string {
	return NormalizeNameToAlphaNumericOnly(functionName)
}

func FunctionLogicalID(functionName string) string {
	return NormalizedFunctionName(functionName) + "LambdaFunction"
}

// LambdaVersionLogicalIDPrefix precedes the version hash in version logical IDs.
func LambdaVersionLogicalIDPrefix(functionName string) string {
	return NormalizedFunctionName(functionName) + "LambdaVersion"
}

// LambdaVersionOutputLogicalID names the output exporting the qualified ARN.
func LambdaVersionOutputLogicalID(functionName string) string {
	return FunctionLogicalID(functionName) + "QualifiedArn"
}

func LayerLogicalID(layerName string) string {
	return NormalizeNameToAlphaNumericOnly(layerName) + "LambdaLayer"
}

// LayerOutputLogicalID names the output exporting the layer version ARN.
func LayerOutputLogicalID(layerName string) string {
	return LayerLogicalID(layerName) + "QualifiedArn"
}

// CloudWatchLogLogicalID names the n-th (1-based) cloudwatchLog event
// subscription filter of a function.
func CloudWatchLogLogicalID(functionName string, n int) string {
	return fmt.Sprintf("%sLogsSubscriptionFilterCloudWatchLog%d", NormalizedFunctionName(functionName), n)
}

// LambdaLogsSubscriptionPermissionLogicalID names the single permission that
// lets CloudWatch Logs invoke a function.
func LambdaLogsSubscriptionPermissionLogicalID(functionName string) string {
	return NormalizedFunctionName(functionName) + "LambdaPermissionLogsSubscriptionFilterCloudWatchLog"
}

// StackName is "<service>-<stage>".
func StackName(service, stage string) string {
	return service + "-" + stage
}

// FunctionName is the deployed name of a function that has no explicit name.
func FunctionName(service, stage, functionName string) string {
	return StackName(service, stage) + "-" + functionName
}

// LogGroupName is the log group Lambda writes a function's logs to.
func LogGroupName(deployedFunctionName string) string {
	return "/aws/lambda/" + deployedFunctionName
}

// DeploymentPrefix is the object key prefix every deployment folder lives under.
func DeploymentPrefix(service, stage string) string {
	return "serverless/" + service + "/" + stage
}

// DeploymentDirectory formats the per-deploy folder name,
// "<epoch-ms>-<ISO8601 UTC with milliseconds>".
func DeploymentDirectory(now time.Time) string {
	now = now.UTC()
	return fmt.Sprintf("%d-%s", now.UnixMilli(), now.Format("2006-01-02T15:04:05.000Z"))
}

// FilterNamePrefix is how the provider prefixes physical names of subscription
// filters it creates for a stack: "<stack>-<logicalID>-".
func FilterNamePrefix(stackName, logicalID string) string {
	return stackName + "-" + logicalID + "-"
}
