package awsprov

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/roach88/driftless/internal/deploy"
)

// LastModifiedLayout is how Lambda formats configuration timestamps.
const LastModifiedLayout = "2006-01-02T15:04:05.000-0700"

// LambdaAPI is the part of the Lambda client Functions uses.
type LambdaAPI interface {
	GetFunctionConfiguration(ctx context.Context, params *lambda.GetFunctionConfigurationInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionConfigurationOutput, error)
}

// Functions implements deploy.FunctionReader.
type Functions struct {
	api LambdaAPI
}

func NewFunctions(api LambdaAPI) *Functions {
	return &Functions{api: api}
}

// FunctionLastModified returns when the function configuration last
// changed. Unknown functions yield an error wrapping
// deploy.ErrFunctionNotFound.
func (f *Functions) FunctionLastModified(ctx context.Context, name string) (time.Time, error) {
	out, err := f.api.GetFunctionConfiguration(ctx, &lambda.GetFunctionConfigurationInput{
		FunctionName: aws.String(name),
	})
	if err != nil {
		var nf *types.ResourceNotFoundException
		if errors.As(err, &nf) {
			return time.Time{}, fmt.Errorf("function %s: %w", name, deploy.ErrFunctionNotFound)
		}
		return time.Time{}, fmt.Errorf("get function configuration %s: %w", name, err)
	}
	if out.LastModified == nil {
		return time.Time{}, fmt.Errorf("function %s: no last modified time", name)
	}
	t, err := time.Parse(LastModifiedLayout, *out.LastModified)
	if err != nil {
		return time.Time{}, fmt.Errorf("function %s: parse last modified: %w", name, err)
	}
	return t, nil
}
