package logsub

import (
	"github.com/roach88/driftless/internal/cfn"
	"github.com/roach88/driftless/internal/naming"
	"github.com/roach88/driftless/internal/service"
)

// DesiredFilters derives the filters a service declares, function by function
// in sorted order and events in declaration order. N in the logical ID counts
// the cloudwatchLog events of one function starting at 1.
func DesiredFilters(svc *service.Service) []DesiredFilter {
	stack := svc.StackName()
	var out []DesiredFilter
	for _, key := range svc.FunctionNames() {
		n := 0
		for _, ev := range svc.Functions[key].Events {
			if ev.CloudWatchLog == nil {
				continue
			}
			n++
			logicalID := naming.CloudWatchLogLogicalID(key, n)
			out = append(out, DesiredFilter{
				LogicalID:     logicalID,
				Function:      key,
				LogGroupName:  service.CleanLogValue(ev.CloudWatchLog.LogGroup),
				FilterPattern: service.CleanLogValue(ev.CloudWatchLog.Filter),
				FilterName:    naming.FilterNamePrefix(stack, logicalID),
				Destination:   cfn.GetAtt(naming.FunctionLogicalID(key), "Arn"),
			})
		}
	}
	return out
}

// GroupByLogGroup groups desired filters, keeping their order.
func GroupByLogGroup(desired []DesiredFilter) map[string][]DesiredFilter {
	out := make(map[string][]DesiredFilter)
	for _, d := range desired {
		out[d.LogGroupName] = append(out[d.LogGroupName], d)
	}
	return out
}
