package awsprov

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/arn"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// STSAPI is the part of the STS client Identity uses.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Account is the caller's account and partition.
type Account struct {
	ID        string
	Partition string
}

// Identity reads the caller identity.
type Identity struct {
	api STSAPI
}

func NewIdentity(api STSAPI) *Identity {
	return &Identity{api: api}
}

// Account returns the account ID and the partition of the caller ARN.
func (i *Identity) Account(ctx context.Context) (Account, error) {
	out, err := i.api.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Account{}, fmt.Errorf("get caller identity: %w", err)
	}
	acct := Account{ID: aws.ToString(out.Account), Partition: "aws"}
	if parsed, err := arn.Parse(aws.ToString(out.Arn)); err == nil {
		acct.Partition = parsed.Partition
	}
	return acct, nil
}
