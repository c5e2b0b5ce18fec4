package deploy

import (
	"context"
	"path"
	"time"
)

// ArtifactDescriptor is one deployable blob, local or remote.
type ArtifactDescriptor struct {
	Key          string
	ContentHash  string
	LastModified *time.Time
	Size         *int64
}

// Name returns the last path element of the key.
func (a ArtifactDescriptor) Name() string {
	return path.Base(a.Key)
}

// LocalSet is what packaging produced for this deploy.
type LocalSet struct {
	// Artifacts holds the template, the state file and every code artifact.
	// A code artifact shared by several functions appears once per function
	// when packaging emitted it per function.
	Artifacts []ArtifactDescriptor

	// Functions maps deployed function names to the key of the artifact they
	// run. Keys are matched to remote objects by file name.
	Functions map[string]string
}

// Hashes returns the content hashes of every local artifact.
func (l LocalSet) Hashes() []string {
	out := make([]string, 0, len(l.Artifacts))
	for _, a := range l.Artifacts {
		out = append(out, a.ContentHash)
	}
	return out
}

// Reason explains a Decision.
type Reason string

const (
	ReasonForced           Reason = "forced"
	ReasonFirstDeploy      Reason = "first-deploy"
	ReasonContentChanged   Reason = "content-changed"
	ReasonFunctionOutdated Reason = "function-outdated"
	ReasonUnclearTimestamp Reason = "unclear-timestamp"
	ReasonUnchanged        Reason = "unchanged"
)

// Decision is the outcome of an evaluation.
type Decision struct {
	Skip   bool
	Reason Reason
	// Detail names the artifact or function behind the reason, when one does.
	Detail string
	// Directory is the deployment folder that was compared, if any.
	Directory string
}

func proceed(reason Reason, detail string) Decision {
	return Decision{Reason: reason, Detail: detail}
}

// Options tune an evaluation.
type Options struct {
	// Force always proceeds without a single remote call.
	Force bool
	// Now is the evaluation time. Remote objects modified after Now plus
	// ClockSkew make the timestamp comparison unreliable and proceed.
	Now time.Time
	// ClockSkew is the tolerated clock difference between the object store
	// and the function service. Zero means none.
	ClockSkew time.Duration
	// Concurrency bounds parallel remote reads. Zero uses DefaultConcurrency.
	Concurrency int
}

// DefaultConcurrency bounds remote reads when Options.Concurrency is zero.
const DefaultConcurrency = 5

// ObjectLister lists objects under a key prefix.
type ObjectLister interface {
	ListObjects(ctx context.Context, bucket, prefix string) ([]ArtifactDescriptor, error)
}

// ObjectStater reads one object's metadata, including its content hash.
type ObjectStater interface {
	StatObject(ctx context.Context, bucket, key string) (ArtifactDescriptor, error)
}

// FunctionReader reads the configuration modification time of a function.
// It returns an error wrapping ErrFunctionNotFound for unknown functions.
type FunctionReader interface {
	FunctionLastModified(ctx context.Context, name string) (time.Time, error)
}

// RemoteSource locates the deployed state and how to read it.
type RemoteSource struct {
	Bucket string
	Prefix string
	Stack  string

	Lister    ObjectLister
	Stater    ObjectStater
	Functions FunctionReader
}
