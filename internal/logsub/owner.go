package logsub

import (
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/roach88/driftless/internal/cfn"
	"github.com/roach88/driftless/internal/naming"
	"github.com/roach88/driftless/internal/service"
)

// Owner decides which observed filters belong to the current stack.
//
// A filter is owned when its physical name is "<stack>-<Fn>LogsSubscription
// FilterCloudWatchLog<n>-<suffix>" and its destination is a function of the
// stack: either one of the known function ARNs or, for functions since
// removed from the service, the function in the same account and region
// deployed as "<stack>-<key>" where key normalizes to Fn. ARNs compare
// without their partition.
type Owner struct {
	StackName string
	Region    string
	AccountID string
	Functions mapset.Set[string]
}

// NewOwner builds an Owner from resolved function ARNs.
func NewOwner(stackName, region, accountID string, functionARNs ...string) Owner {
	fns := mapset.NewThreadUnsafeSet[string]()
	for _, a := range functionARNs {
		fns.Add(partitionless(a))
	}
	return Owner{StackName: stackName, Region: region, AccountID: accountID, Functions: fns}
}

// OwnerForService resolves every function of svc through r. Functions r
// cannot resolve are computed from region and account.
func OwnerForService(svc *service.Service, accountID string, r cfn.Resolver) Owner {
	region := svc.Provider.Region
	partition := cfn.PartitionForRegion(region)
	var arns []string
	for _, key := range svc.FunctionNames() {
		if resolved, ok := cfn.Resolve(cfn.GetAtt(naming.FunctionLogicalID(key), "Arn"), r); ok {
			arns = append(arns, resolved)
			continue
		}
		arns = append(arns, cfn.FunctionARN(partition, region, accountID, svc.DeployedFunctionName(key)))
	}
	return NewOwner(svc.StackName(), region, accountID, arns...)
}

// filterRest matches what follows "<stack>-" in the physical name of a
// filter the stack created; the group is the normalized function name.
var filterRest = regexp.MustCompile(`^([A-Z0-9][A-Za-z0-9]*)LogsSubscriptionFilterCloudWatchLog[0-9]+-`)

// filterFunction returns the normalized function name of a filter created
// by the stack. Stacks whose name extends this one, such as orders-dev-eu
// next to orders-dev, do not match.
func (o Owner) filterFunction(filterName string) (string, bool) {
	rest, ok := strings.CutPrefix(filterName, o.StackName+"-")
	if !ok {
		return "", false
	}
	m := filterRest.FindStringSubmatch(rest)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// OwnsName reports whether a physical filter name is one the stack creates.
func (o Owner) OwnsName(filterName string) bool {
	_, ok := o.filterFunction(filterName)
	return ok
}

// OwnsDestination reports whether destination is one of the stack's known
// functions.
func (o Owner) OwnsDestination(destination string) bool {
	return o.Functions != nil && o.Functions.Contains(partitionless(destination))
}

// ownsRemovedFunction reports whether destination is a function the stack
// deployed under its default name and fn is that function's normalized name.
func (o Owner) ownsRemovedFunction(fn, destination string) bool {
	parsed, err := arn.Parse(destination)
	if err != nil || parsed.Service != "lambda" {
		return false
	}
	if o.Region != "" && parsed.Region != o.Region {
		return false
	}
	if o.AccountID != "" && parsed.AccountID != o.AccountID {
		return false
	}
	name, err := cfn.FunctionNameFromARN(destination)
	if err != nil {
		return false
	}
	key, ok := strings.CutPrefix(name, o.StackName+"-")
	return ok && key != "" && naming.NormalizedFunctionName(key) == fn
}

// Owns reports whether the stack owns an observed filter.
func (o Owner) Owns(f ObservedFilter) bool {
	fn, ok := o.filterFunction(f.FilterName)
	if !ok {
		return false
	}
	return o.OwnsDestination(f.DestinationARN) || o.ownsRemovedFunction(fn, f.DestinationARN)
}

// partitionless drops the partition so ARNs from any partition compare equal.
func partitionless(s string) string {
	parsed, err := arn.Parse(s)
	if err != nil {
		return s
	}
	parsed.Partition = ""
	return parsed.String()
}
