package deploy

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	testPrefix = "serverless/orders/dev"
	testDir    = "1700000000000-2023-11-14T22:13:20.000Z"
)

var (
	uploaded = time.Date(2023, 11, 14, 22, 13, 21, 0, time.UTC)
	now      = time.Date(2023, 11, 15, 9, 0, 0, 0, time.UTC)
)

func remoteObject(name, hash string, modified time.Time) ArtifactDescriptor {
	return ArtifactDescriptor{Key: testPrefix + "/" + testDir + "/" + name, ContentHash: hash, LastModified: at(modified)}
}

func source(bucket *fakeBucket, fns *fakeFunctions) RemoteSource {
	return RemoteSource{
		Bucket:    "orders-deployment-bucket",
		Prefix:    testPrefix,
		Stack:     "orders-dev",
		Lister:    bucket,
		Stater:    bucket,
		Functions: fns,
	}
}

// scenarioA: template T1 and one artifact A1 used by one function.
func scenarioA() (LocalSet, *fakeBucket) {
	local := LocalSet{
		Artifacts: []ArtifactDescriptor{
			{Key: "compiled-cloudformation-template.json", ContentHash: "T1"},
			{Key: ".serverless/orders.zip", ContentHash: "A1"},
		},
		Functions: map[string]string{"orders-dev-hello": ".serverless/orders.zip"},
	}
	bucket := newFakeBucket(
		remoteObject("compiled-cloudformation-template.json", "T1", uploaded),
		remoteObject("orders.zip", "A1", uploaded),
	)
	return local, bucket
}

func evaluate(t *testing.T, local LocalSet, remote RemoteSource, opts Options) Decision {
	t.Helper()
	d, err := NewChecker(zaptest.NewLogger(t)).Evaluate(context.Background(), local, remote, opts)
	require.NoError(t, err)
	return d
}

func TestEvaluate_UnchangedSkips(t *testing.T) {
	local, bucket := scenarioA()
	fns := &fakeFunctions{modified: map[string]time.Time{"orders-dev-hello": uploaded.Add(time.Minute)}}

	d := evaluate(t, local, source(bucket, fns), Options{Now: now})
	assert.True(t, d.Skip)
	assert.Equal(t, ReasonUnchanged, d.Reason)
	assert.Equal(t, testDir, d.Directory)
	assert.Equal(t, 1, fns.calls())
}

func TestEvaluate_FunctionOlderThanArtifact(t *testing.T) {
	local, bucket := scenarioA()
	fns := &fakeFunctions{modified: map[string]time.Time{"orders-dev-hello": uploaded.Add(-time.Second)}}

	d := evaluate(t, local, source(bucket, fns), Options{Now: now})
	assert.False(t, d.Skip)
	assert.Equal(t, ReasonFunctionOutdated, d.Reason)
	assert.Equal(t, "orders-dev-hello", d.Detail)
}

func TestEvaluate_CountMismatch(t *testing.T) {
	local := LocalSet{
		Artifacts: []ArtifactDescriptor{
			{Key: "compiled-cloudformation-template.json", ContentHash: "T1"},
			{Key: ".serverless/hello.zip", ContentHash: "A1"},
			{Key: ".serverless/worker.zip", ContentHash: "A1"},
		},
		Functions: map[string]string{
			"orders-dev-hello":  ".serverless/hello.zip",
			"orders-dev-worker": ".serverless/worker.zip",
		},
	}
	_, bucket := scenarioA()
	fns := &fakeFunctions{modified: map[string]time.Time{}}

	d := evaluate(t, local, source(bucket, fns), Options{Now: now})
	assert.False(t, d.Skip)
	assert.Equal(t, ReasonContentChanged, d.Reason)
	assert.Equal(t, "A1", d.Detail)
	assert.Zero(t, fns.calls(), "timestamps are only read after a multiset match")
}

func TestEvaluate_ForceIssuesNoRemoteCalls(t *testing.T) {
	local, bucket := scenarioA()
	fns := &fakeFunctions{}

	d := evaluate(t, local, source(bucket, fns), Options{Force: true})
	assert.False(t, d.Skip)
	assert.Equal(t, ReasonForced, d.Reason)
	assert.Zero(t, bucket.calls())
	assert.Zero(t, fns.calls())
}

func TestEvaluate_FirstDeploy(t *testing.T) {
	local, _ := scenarioA()
	d := evaluate(t, local, source(newFakeBucket(), &fakeFunctions{}), Options{})
	assert.False(t, d.Skip)
	assert.Equal(t, ReasonFirstDeploy, d.Reason)
}

func TestEvaluate_UsesMostRecentFolder(t *testing.T) {
	local, bucket := scenarioA()
	older := "1600000000000-2020-09-13T12:26:40.000Z"
	bucket.objects[testPrefix+"/"+older+"/orders.zip"] = ArtifactDescriptor{
		Key: testPrefix + "/" + older + "/orders.zip", ContentHash: "OLD", LastModified: at(uploaded.Add(-time.Hour)),
	}
	fns := &fakeFunctions{modified: map[string]time.Time{"orders-dev-hello": uploaded.Add(time.Minute)}}

	d := evaluate(t, local, source(bucket, fns), Options{Now: now})
	assert.True(t, d.Skip)
	assert.Equal(t, testDir, d.Directory)
}

func TestEvaluate_ContentHashChanged(t *testing.T) {
	local, bucket := scenarioA()
	local.Artifacts[1].ContentHash = "A2"

	d := evaluate(t, local, source(bucket, &fakeFunctions{}), Options{Now: now})
	assert.False(t, d.Skip)
	assert.Equal(t, ReasonContentChanged, d.Reason)
}

func TestEvaluate_SharedArtifactChecksEveryFunction(t *testing.T) {
	// Two functions intentionally share one artifact listed once.
	local := LocalSet{
		Artifacts: []ArtifactDescriptor{
			{Key: "compiled-cloudformation-template.json", ContentHash: "T1"},
			{Key: ".serverless/orders.zip", ContentHash: "A1"},
		},
		Functions: map[string]string{
			"orders-dev-hello":  ".serverless/orders.zip",
			"orders-dev-worker": ".serverless/orders.zip",
		},
	}
	_, bucket := scenarioA()
	fns := &fakeFunctions{modified: map[string]time.Time{
		"orders-dev-hello":  uploaded.Add(time.Minute),
		"orders-dev-worker": uploaded.Add(-time.Minute),
	}}

	d := evaluate(t, local, source(bucket, fns), Options{Now: now})
	assert.False(t, d.Skip)
	assert.Equal(t, "orders-dev-worker", d.Detail)
	assert.Equal(t, 2, fns.calls())
}

func TestEvaluate_MatchesRenamedArtifactByHash(t *testing.T) {
	local := LocalSet{
		Artifacts: []ArtifactDescriptor{
			{Key: "compiled-cloudformation-template.json", ContentHash: "T1"},
			{Key: "build/hello-package.zip", ContentHash: "A1"},
		},
		Functions: map[string]string{"orders-dev-hello": "build/hello-package.zip"},
	}
	_, bucket := scenarioA()
	fns := &fakeFunctions{modified: map[string]time.Time{"orders-dev-hello": uploaded.Add(-time.Minute)}}

	d := evaluate(t, local, source(bucket, fns), Options{Now: now})
	assert.False(t, d.Skip)
	assert.Equal(t, ReasonFunctionOutdated, d.Reason)
}

func TestEvaluate_ClockSkewTolerance(t *testing.T) {
	local, bucket := scenarioA()
	fns := &fakeFunctions{modified: map[string]time.Time{"orders-dev-hello": uploaded.Add(-500 * time.Millisecond)}}

	assert.False(t, evaluate(t, local, source(bucket, fns), Options{Now: now}).Skip)
	assert.True(t, evaluate(t, local, source(bucket, fns), Options{Now: now, ClockSkew: time.Second}).Skip)
}

func TestEvaluate_UnclearTimestampsProceed(t *testing.T) {
	t.Run("missing object time", func(t *testing.T) {
		local, bucket := scenarioA()
		obj := bucket.objects[testPrefix+"/"+testDir+"/orders.zip"]
		obj.LastModified = nil
		bucket.objects[obj.Key] = obj
		fns := &fakeFunctions{modified: map[string]time.Time{"orders-dev-hello": uploaded}}

		d := evaluate(t, local, source(bucket, fns), Options{Now: now})
		assert.False(t, d.Skip)
		assert.Equal(t, ReasonUnclearTimestamp, d.Reason)
	})

	t.Run("object from the future", func(t *testing.T) {
		local, bucket := scenarioA()
		fns := &fakeFunctions{modified: map[string]time.Time{"orders-dev-hello": uploaded.Add(time.Minute)}}

		d := evaluate(t, local, source(bucket, fns), Options{Now: uploaded.Add(-time.Hour)})
		assert.False(t, d.Skip)
		assert.Equal(t, ReasonUnclearTimestamp, d.Reason)
	})

	t.Run("function not deployed", func(t *testing.T) {
		local, bucket := scenarioA()
		d := evaluate(t, local, source(bucket, &fakeFunctions{modified: map[string]time.Time{}}), Options{Now: now})
		assert.False(t, d.Skip)
		assert.Equal(t, ReasonUnclearTimestamp, d.Reason)
	})
}

func TestEvaluate_BucketNotFoundIsTranslated(t *testing.T) {
	local, bucket := scenarioA()
	bucket.listErr = fmt.Errorf("list: %w", ErrBucketNotFound)

	_, err := EvaluateDeploymentNecessity(context.Background(), local, source(bucket, &fakeFunctions{}), Options{})
	require.Error(t, err)
	assert.True(t, IsBucketNotFound(err))
	assert.ErrorIs(t, err, ErrBucketNotFound)

	var de *Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "orders-deployment-bucket", de.Bucket)
	assert.Equal(t, "orders-dev", de.Stack)
	assert.Contains(t, de.Error(), CodeBucketNotFound)
	assert.Contains(t, de.Message, "orders-deployment-bucket")
}

type codedError struct{ code string }

func (e *codedError) Error() string { return e.code }

func TestEvaluate_ProviderErrorsPassThrough(t *testing.T) {
	forbidden := &codedError{code: "AccessDenied"}

	t.Run("stat", func(t *testing.T) {
		local, bucket := scenarioA()
		bucket.statErr = forbidden
		_, err := EvaluateDeploymentNecessity(context.Background(), local, source(bucket, &fakeFunctions{}), Options{})

		assert.Same(t, forbidden, err)
		assert.False(t, IsBucketNotFound(err))
	})

	t.Run("function read", func(t *testing.T) {
		local, bucket := scenarioA()
		_, err := EvaluateDeploymentNecessity(context.Background(), local, source(bucket, &fakeFunctions{err: forbidden}), Options{Now: now})
		assert.Same(t, forbidden, err)
	})
}
