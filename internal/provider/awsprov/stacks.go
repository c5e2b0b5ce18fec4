package awsprov

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"

	"github.com/roach88/driftless/internal/naming"
)

// DefaultStackWait bounds how long Apply waits for a stack operation.
const DefaultStackWait = 30 * time.Minute

const codeValidationError = "ValidationError"

// ErrStackNotFound is wrapped when a stack does not exist.
var ErrStackNotFound = errors.New("stack not found")

// ErrDeploymentBucketMissing is wrapped when a stack exists but has no
// deployment bucket resource.
var ErrDeploymentBucketMissing = errors.New("deployment bucket resource missing")

// CloudFormationAPI is the part of the CloudFormation client Stacks uses.
type CloudFormationAPI interface {
	cloudformation.DescribeStacksAPIClient
	DescribeStackResource(ctx context.Context, params *cloudformation.DescribeStackResourceInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackResourceOutput, error)
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error)
}

// TemplateSource is where Apply reads the template from. URL wins when
// both are set.
type TemplateSource struct {
	URL  string
	Body string
}

// ApplyResult says what Apply did.
type ApplyResult string

const (
	StackCreated   ApplyResult = "created"
	StackUpdated   ApplyResult = "updated"
	StackUnchanged ApplyResult = "unchanged"
)

// Stacks reads and applies CloudFormation stacks.
type Stacks struct {
	api  CloudFormationAPI
	wait time.Duration
}

func NewStacks(api CloudFormationAPI) *Stacks {
	return &Stacks{api: api, wait: DefaultStackWait}
}

// WithWait returns a copy of s waiting at most d per operation. Zero skips
// waiting.
func (s *Stacks) WithWait(d time.Duration) *Stacks {
	c := *s
	c.wait = d
	return &c
}

// Exists reports whether the stack exists.
func (s *Stacks) Exists(ctx context.Context, stackName string) (bool, error) {
	_, err := s.describe(ctx, stackName)
	if errors.Is(err, ErrStackNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Outputs returns the stack outputs by output key.
func (s *Stacks) Outputs(ctx context.Context, stackName string) (map[string]string, error) {
	stack, err := s.describe(ctx, stackName)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(stack.Outputs))
	for _, o := range stack.Outputs {
		out[aws.ToString(o.OutputKey)] = aws.ToString(o.OutputValue)
	}
	return out, nil
}

// DeploymentBucket returns the physical name of the stack's deployment
// bucket resource.
func (s *Stacks) DeploymentBucket(ctx context.Context, stackName string) (string, error) {
	out, err := s.api.DescribeStackResource(ctx, &cloudformation.DescribeStackResourceInput{
		StackName:         aws.String(stackName),
		LogicalResourceId: aws.String(naming.DeploymentBucketLogicalID),
	})
	if err != nil {
		switch {
		case isValidation(err, "Stack with id"):
			return "", fmt.Errorf("%s: %w", stackName, ErrStackNotFound)
		case isValidation(err, "does not exist"):
			return "", fmt.Errorf("%s: %w", stackName, ErrDeploymentBucketMissing)
		}
		return "", fmt.Errorf("describe deployment bucket of %s: %w", stackName, err)
	}
	if out.StackResourceDetail == nil || out.StackResourceDetail.PhysicalResourceId == nil {
		return "", fmt.Errorf("%s: %w", stackName, ErrDeploymentBucketMissing)
	}
	return *out.StackResourceDetail.PhysicalResourceId, nil
}

// Apply creates or updates the stack from src and waits for the operation
// to finish. An update that changes nothing is not an error.
func (s *Stacks) Apply(ctx context.Context, stackName string, src TemplateSource, tags map[string]string) (ApplyResult, error) {
	exists, err := s.Exists(ctx, stackName)
	if err != nil {
		return "", err
	}
	capabilities := []types.Capability{types.CapabilityCapabilityIam, types.CapabilityCapabilityNamedIam}
	input := &cloudformation.DescribeStacksInput{StackName: aws.String(stackName)}

	if !exists {
		_, err := s.api.CreateStack(ctx, &cloudformation.CreateStackInput{
			StackName:    aws.String(stackName),
			TemplateURL:  src.url(),
			TemplateBody: src.body(),
			Capabilities: capabilities,
			Tags:         stackTags(tags),
		})
		if err != nil {
			return "", fmt.Errorf("create stack %s: %w", stackName, err)
		}
		if s.wait > 0 {
			if err := cloudformation.NewStackCreateCompleteWaiter(s.api).Wait(ctx, input, s.wait); err != nil {
				return "", fmt.Errorf("wait for stack %s: %w", stackName, err)
			}
		}
		return StackCreated, nil
	}

	_, err = s.api.UpdateStack(ctx, &cloudformation.UpdateStackInput{
		StackName:    aws.String(stackName),
		TemplateURL:  src.url(),
		TemplateBody: src.body(),
		Capabilities: capabilities,
		Tags:         stackTags(tags),
	})
	if err != nil {
		if isValidation(err, "No updates are to be performed") {
			return StackUnchanged, nil
		}
		return "", fmt.Errorf("update stack %s: %w", stackName, err)
	}
	if s.wait > 0 {
		if err := cloudformation.NewStackUpdateCompleteWaiter(s.api).Wait(ctx, input, s.wait); err != nil {
			return "", fmt.Errorf("wait for stack %s: %w", stackName, err)
		}
	}
	return StackUpdated, nil
}

func (s *Stacks) describe(ctx context.Context, stackName string) (types.Stack, error) {
	out, err := s.api.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{StackName: aws.String(stackName)})
	if err != nil {
		if isValidation(err, "does not exist") {
			return types.Stack{}, fmt.Errorf("%s: %w", stackName, ErrStackNotFound)
		}
		return types.Stack{}, fmt.Errorf("describe stack %s: %w", stackName, err)
	}
	if len(out.Stacks) == 0 {
		return types.Stack{}, fmt.Errorf("%s: %w", stackName, ErrStackNotFound)
	}
	return out.Stacks[0], nil
}

func (t TemplateSource) url() *string {
	if t.URL == "" {
		return nil
	}
	return aws.String(t.URL)
}

func (t TemplateSource) body() *string {
	if t.URL != "" || t.Body == "" {
		return nil
	}
	return aws.String(t.Body)
}

// isValidation matches CloudFormation's generic ValidationError by message,
// which is the only way it distinguishes missing stacks and empty updates.
func isValidation(err error, contains string) bool {
	if ErrorCode(err) != codeValidationError {
		return false
	}
	return strings.Contains(err.Error(), contains)
}

func stackTags(tags map[string]string) []types.Tag {
	if len(tags) == 0 {
		return nil
	}
	out := make([]types.Tag, 0, len(tags))
	for _, k := range sortedKeys(tags) {
		out = append(out, types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return out
}
