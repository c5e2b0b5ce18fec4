package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/driftless/internal/canon"
	"github.com/roach88/driftless/internal/deploy"
	"github.com/roach88/driftless/internal/logsub"
	"github.com/roach88/driftless/internal/provider/awsprov"
)

func filterTemplate(groups ...string) map[string]any {
	resources := map[string]any{
		"HelloLambdaFunction": map[string]any{
			"Type":       "AWS::Lambda::Function",
			"Properties": map[string]any{"FunctionName": "orders-dev-hello"},
		},
	}
	for i, g := range groups {
		resources["HelloLogsSubscriptionFilterCloudWatchLog"+string(rune('1'+i))] = map[string]any{
			"Type": "AWS::Logs::SubscriptionFilter",
			"Properties": map[string]any{
				"LogGroupName":   g,
				"FilterPattern":  "",
				"DestinationArn": map[string]any{"Fn::GetAtt": []any{"HelloLambdaFunction", "Arn"}},
			},
		}
	}
	return map[string]any{"Resources": resources}
}

func applyBody(t *testing.T, c *Cloud, tmpl map[string]any) (awsprov.ApplyResult, error) {
	t.Helper()
	body, err := canon.MarshalContent(tmpl)
	require.NoError(t, err)
	return c.Apply(context.Background(), "orders-dev", awsprov.TemplateSource{Body: string(body)}, nil)
}

func TestCloud_ObjectsRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewCloud(NewClock())
	c.AddBucket("b")

	require.NoError(t, c.Put(ctx, "b", "p/dir/a.zip", []byte("abc"), "application/zip", "h1"))

	listed, err := c.ListObjects(ctx, "b", "p/")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Empty(t, listed[0].ContentHash)

	stat, err := c.StatObject(ctx, "b", "p/dir/a.zip")
	require.NoError(t, err)
	assert.Equal(t, "h1", stat.ContentHash)
	assert.True(t, stat.LastModified.Equal(Epoch))
	assert.Equal(t, 1, c.Calls(OpPut))
}

func TestCloud_MissingBucket(t *testing.T) {
	_, err := NewCloud(NewClock()).ListObjects(context.Background(), "nope", "")
	assert.ErrorIs(t, err, deploy.ErrBucketNotFound)
}

func TestCloud_ApplyCreatesFunctionsAndFilters(t *testing.T) {
	c := NewCloud(NewClock())

	result, err := applyBody(t, c, filterTemplate("/g/a"))

	require.NoError(t, err)
	assert.Equal(t, awsprov.StackCreated, result)
	assert.Contains(t, c.Functions, "orders-dev-hello")
	filters := c.Filters("/g/a")
	require.Len(t, filters, 1)
	assert.Equal(t, "orders-dev-HelloLogsSubscriptionFilterCloudWatchLog1-FAKE0001", filters[0].FilterName)
	assert.Equal(t, "arn:aws:lambda:us-east-1:123456789012:function:orders-dev-hello", filters[0].DestinationARN)

	result, err = applyBody(t, c, filterTemplate("/g/a"))
	require.NoError(t, err)
	assert.Equal(t, awsprov.StackUnchanged, result)
}

func TestCloud_ApplyMovesFilterAndKeepsName(t *testing.T) {
	c := NewCloud(NewClock())
	_, err := applyBody(t, c, filterTemplate("/g/a", "/g/b"))
	require.NoError(t, err)
	kept := c.Filters("/g/a")[0].FilterName

	_, err = applyBody(t, c, filterTemplate("/g/a", "/g/c"))

	require.NoError(t, err)
	assert.Equal(t, kept, c.Filters("/g/a")[0].FilterName)
	assert.Empty(t, c.Filters("/g/b"))
	assert.Len(t, c.Filters("/g/c"), 1)
}

func TestCloud_ApplyEnforcesFilterLimit(t *testing.T) {
	c := NewCloud(NewClock())
	_, err := applyBody(t, c, filterTemplate("/g/a", "/g/b"))
	require.NoError(t, err)
	c.AddFilter(logsub.ObservedFilter{LogGroupName: "/g/a", FilterName: "external"})

	// Swapping groups creates both filters before the old ones are removed.
	_, err = applyBody(t, c, filterTemplate("/g/b", "/g/a"))

	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.Len(t, c.Filters("/g/a"), 2)
}

func TestCloud_DeleteFilter(t *testing.T) {
	ctx := context.Background()
	c := NewCloud(NewClock())
	_, err := applyBody(t, c, filterTemplate("/g/a"))
	require.NoError(t, err)
	name := c.Filters("/g/a")[0].FilterName

	require.NoError(t, c.DeleteSubscriptionFilter(ctx, "/g/a", name))
	require.NoError(t, c.DeleteSubscriptionFilter(ctx, "/g/a", name))

	assert.Empty(t, c.Filters("/g/a"))
	assert.Empty(t, c.Stacks["orders-dev"].Filters)
	assert.Equal(t, 2, c.Calls(OpDeleteFilter))

	_, err = c.DescribeSubscriptionFilters(ctx, "/g/missing")
	assert.ErrorIs(t, err, logsub.ErrLogGroupNotFound)
}

func TestCloud_FailOn(t *testing.T) {
	c := NewCloud(NewClock())
	c.FailOn[OpAccount] = assert.AnError

	_, err := c.Account(context.Background())

	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, c.Calls(OpAccount))
}
