package awsprov

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
)

// Provider bundles the adapters for one region.
type Provider struct {
	Region    string
	Functions *Functions
	Logs      *Logs
	Identity  *Identity
	Stacks    *Stacks
}

// Load resolves the default credential chain for region and builds every
// adapter from it.
func Load(ctx context.Context, region string) (*Provider, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return FromConfig(cfg), nil
}

// FromConfig builds every adapter from an SDK config.
func FromConfig(cfg aws.Config) *Provider {
	return &Provider{
		Region:    cfg.Region,
		Functions: NewFunctions(lambda.NewFromConfig(cfg)),
		Logs:      NewLogs(cloudwatchlogs.NewFromConfig(cfg)),
		Identity:  NewIdentity(sts.NewFromConfig(cfg)),
		Stacks:    NewStacks(cloudformation.NewFromConfig(cfg)),
	}
}

// ErrorCode returns the service error code of err, or "" when err did not
// come from a service response.
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
