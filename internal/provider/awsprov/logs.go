package awsprov

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"github.com/roach88/driftless/internal/logsub"
)

// LogsAPI is the part of the CloudWatch Logs client Logs uses.
type LogsAPI interface {
	cloudwatchlogs.DescribeSubscriptionFiltersAPIClient
	DeleteSubscriptionFilter(ctx context.Context, params *cloudwatchlogs.DeleteSubscriptionFilterInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DeleteSubscriptionFilterOutput, error)
}

// Logs implements logsub.FilterSource and logsub.Deleter.
type Logs struct {
	api LogsAPI
}

func NewLogs(api LogsAPI) *Logs {
	return &Logs{api: api}
}

// DescribeSubscriptionFilters lists every filter of a log group across all
// pages. A missing log group yields an error wrapping
// logsub.ErrLogGroupNotFound.
func (l *Logs) DescribeSubscriptionFilters(ctx context.Context, logGroupName string) ([]logsub.ObservedFilter, error) {
	p := cloudwatchlogs.NewDescribeSubscriptionFiltersPaginator(l.api, &cloudwatchlogs.DescribeSubscriptionFiltersInput{
		LogGroupName: aws.String(logGroupName),
	})
	var out []logsub.ObservedFilter
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			var nf *types.ResourceNotFoundException
			if errors.As(err, &nf) {
				return nil, fmt.Errorf("%s: %w", logGroupName, logsub.ErrLogGroupNotFound)
			}
			return nil, err
		}
		for _, f := range page.SubscriptionFilters {
			group := aws.ToString(f.LogGroupName)
			if group == "" {
				group = logGroupName
			}
			out = append(out, logsub.ObservedFilter{
				LogGroupName:   group,
				FilterName:     aws.ToString(f.FilterName),
				FilterPattern:  aws.ToString(f.FilterPattern),
				DestinationARN: aws.ToString(f.DestinationArn),
			})
		}
	}
	return out, nil
}

// DeleteSubscriptionFilter deletes one filter. A filter that is already
// gone counts as deleted.
func (l *Logs) DeleteSubscriptionFilter(ctx context.Context, logGroupName, filterName string) error {
	_, err := l.api.DeleteSubscriptionFilter(ctx, &cloudwatchlogs.DeleteSubscriptionFilterInput{
		LogGroupName: aws.String(logGroupName),
		FilterName:   aws.String(filterName),
	})
	var nf *types.ResourceNotFoundException
	if errors.As(err, &nf) {
		return nil
	}
	return err
}
