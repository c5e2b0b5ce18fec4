package logsub

import (
	"fmt"
	"strings"

	"github.com/roach88/driftless/internal/naming"
	"github.com/roach88/driftless/internal/service"
)

// CompileFilterResources returns the template resources for every
// cloudwatchLog event of svc: one AWS::Logs::SubscriptionFilter per event
// and one AWS::Lambda::Permission per function, scoped to the longest common
// prefix of the function's log groups. It fails when the stack alone
// declares more filters for one log group than the provider allows.
func CompileFilterResources(svc *service.Service) (map[string]any, error) {
	desired := DesiredFilters(svc)
	grouped := GroupByLogGroup(desired)
	for _, group := range sortedKeys(grouped) {
		if n := len(grouped[group]); n > MaxFiltersPerLogGroup {
			return nil, &Error{
				Code:         CodeFilterLimitExceeded,
				Message:      fmt.Sprintf("%d cloudwatchLog events in one stack exceed the limit of %d", n, MaxFiltersPerLogGroup),
				LogGroupName: group,
			}
		}
	}

	resources := make(map[string]any)
	logGroupsByFunction := make(map[string][]string)
	for _, d := range desired {
		permission := naming.LambdaLogsSubscriptionPermissionLogicalID(d.Function)
		resources[d.LogicalID] = map[string]any{
			"Type":      "AWS::Logs::SubscriptionFilter",
			"DependsOn": []any{permission},
			"Properties": map[string]any{
				"LogGroupName":   d.LogGroupName,
				"FilterPattern":  d.FilterPattern,
				"DestinationArn": d.Destination.Template(),
			},
		}
		logGroupsByFunction[d.Function] = append(logGroupsByFunction[d.Function], d.LogGroupName)
	}

	for _, fn := range sortedKeys(logGroupsByFunction) {
		resources[naming.LambdaLogsSubscriptionPermissionLogicalID(fn)] = map[string]any{
			"Type": "AWS::Lambda::Permission",
			"Properties": map[string]any{
				"FunctionName": map[string]any{"Fn::GetAtt": []any{naming.FunctionLogicalID(fn), "Arn"}},
				"Action":       "lambda:InvokeFunction",
				"Principal": map[string]any{
					"Fn::Join": []any{"", []any{"logs.", map[string]any{"Ref": "AWS::URLSuffix"}}},
				},
				"SourceArn": map[string]any{
					"Fn::Join": []any{"", []any{
						"arn:",
						map[string]any{"Ref": "AWS::Partition"},
						":logs:",
						map[string]any{"Ref": "AWS::Region"},
						":",
						map[string]any{"Ref": "AWS::AccountId"},
						":log-group:",
						LongestCommonSuffix(logGroupsByFunction[fn]),
						":*",
					}},
				},
			},
		}
	}
	return resources, nil
}

// LongestCommonSuffix returns the narrowest log group pattern covering all
// names: the name itself when all are equal, otherwise their common prefix
// followed by "*".
func LongestCommonSuffix(logGroups []string) string {
	if len(logGroups) == 0 {
		return "*"
	}
	prefix := logGroups[0]
	same := true
	for _, g := range logGroups[1:] {
		if g != logGroups[0] {
			same = false
		}
		for !strings.HasPrefix(g, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	if same {
		return prefix
	}
	return strings.TrimSuffix(prefix, "*") + "*"
}
