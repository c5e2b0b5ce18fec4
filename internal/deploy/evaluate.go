package deploy

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Checker evaluates deployment necessity against a remote source.
type Checker struct {
	logger *zap.Logger
}

// NewChecker returns a Checker logging to logger. A nil logger discards.
func NewChecker(logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{logger: logger}
}

// EvaluateDeploymentNecessity decides SKIP or PROCEED without logging.
func EvaluateDeploymentNecessity(ctx context.Context, local LocalSet, remote RemoteSource, opts Options) (Decision, error) {
	return NewChecker(nil).Evaluate(ctx, local, remote, opts)
}

// Evaluate runs the skip check:
//
//  1. Force proceeds with no remote call.
//  2. An empty listing is a first deploy and proceeds.
//  3. The newest deployment folder is selected and each object's content
//     hash read.
//  4. Local and remote hashes must match as multisets.
//  5. Every function whose artifact matched must have been modified no
//     earlier than that artifact.
//  6. Otherwise the deploy is skipped.
func (c *Checker) Evaluate(ctx context.Context, local LocalSet, remote RemoteSource, opts Options) (Decision, error) {
	if opts.Force {
		c.logger.Debug("deploy forced, skipping change detection")
		return proceed(ReasonForced, ""), nil
	}

	listed, err := remote.Lister.ListObjects(ctx, remote.Bucket, remote.Prefix)
	if err != nil {
		return Decision{}, translate(err, remote)
	}
	dir, objects, ok := MostRecentDeployment(listed, remote.Prefix)
	if !ok {
		return proceed(ReasonFirstDeploy, ""), nil
	}

	stated, err := c.statAll(ctx, remote, objects, opts.concurrency())
	if err != nil {
		return Decision{}, translate(err, remote)
	}

	localHashes := NewMultiset(local.Hashes())
	remoteHashes := NewMultiset(hashesOf(stated))
	if !localHashes.Equal(remoteHashes) {
		d := proceed(ReasonContentChanged, strings.Join(localHashes.Diff(remoteHashes), ","))
		d.Directory = dir
		c.logger.Debug("content changed", zap.String("directory", dir), zap.String("differing", d.Detail))
		return d, nil
	}

	d, err := c.checkFunctions(ctx, local, remote, stated, opts)
	if err != nil {
		return Decision{}, err
	}
	d.Directory = dir
	if d.Skip {
		c.logger.Info("service files not changed, skipping deployment",
			zap.String("stack", remote.Stack),
			zap.String("directory", dir))
	}
	return d, nil
}

func (o Options) concurrency() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return DefaultConcurrency
}

// statAll reads every object's metadata with bounded parallelism. Results
// keep the order of objects.
func (c *Checker) statAll(ctx context.Context, remote RemoteSource, objects []ArtifactDescriptor, limit int) ([]ArtifactDescriptor, error) {
	out := make([]ArtifactDescriptor, len(objects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, obj := range objects {
		g.Go(func() error {
			desc, err := remote.Stater.StatObject(gctx, remote.Bucket, obj.Key)
			if err != nil {
				return err
			}
			desc.Key = obj.Key
			if desc.LastModified == nil {
				desc.LastModified = obj.LastModified
			}
			if desc.Size == nil {
				desc.Size = obj.Size
			}
			out[i] = desc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// matchedFunction pairs a function with the remote object its artifact
// matched.
type matchedFunction struct {
	name     string
	modified *time.Time
	object   string
}

func (c *Checker) checkFunctions(ctx context.Context, local LocalSet, remote RemoteSource, stated []ArtifactDescriptor, opts Options) (Decision, error) {
	matched := matchFunctions(local, stated)

	for _, m := range matched {
		if m.modified == nil {
			return proceed(ReasonUnclearTimestamp, m.object), nil
		}
		if !opts.Now.IsZero() && m.modified.After(opts.Now.Add(opts.ClockSkew)) {
			return proceed(ReasonUnclearTimestamp, m.object), nil
		}
	}

	modified := make([]time.Time, len(matched))
	missing := make([]bool, len(matched))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency())
	for i, m := range matched {
		g.Go(func() error {
			ts, err := remote.Functions.FunctionLastModified(gctx, m.name)
			if err != nil {
				if isFunctionNotFound(err) {
					missing[i] = true
					return nil
				}
				return err
			}
			modified[i] = ts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Decision{}, err
	}

	for i, m := range matched {
		if missing[i] || modified[i].IsZero() {
			return proceed(ReasonUnclearTimestamp, m.name), nil
		}
		if modified[i].Add(opts.ClockSkew).Before(*m.modified) {
			c.logger.Debug("function older than its artifact",
				zap.String("function", m.name),
				zap.Time("function_modified", modified[i]),
				zap.Time("artifact_modified", *m.modified))
			return proceed(ReasonFunctionOutdated, m.name), nil
		}
	}
	return Decision{Skip: true, Reason: ReasonUnchanged}, nil
}

// matchFunctions finds the remote object of every function's artifact, by
// file name first and by content hash otherwise. When several objects share
// the hash the latest modification time is used. Output is sorted by name.
func matchFunctions(local LocalSet, stated []ArtifactDescriptor) []matchedFunction {
	byName := make(map[string]ArtifactDescriptor, len(stated))
	for _, obj := range stated {
		byName[obj.Name()] = obj
	}
	localHash := make(map[string]string, len(local.Artifacts))
	for _, a := range local.Artifacts {
		localHash[a.Key] = a.ContentHash
		localHash[a.Name()] = a.ContentHash
	}

	names := make([]string, 0, len(local.Functions))
	for name := range local.Functions {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []matchedFunction
	for _, name := range names {
		key := local.Functions[name]
		if obj, ok := byName[ArtifactDescriptor{Key: key}.Name()]; ok {
			out = append(out, matchedFunction{name: name, modified: obj.LastModified, object: obj.Key})
			continue
		}
		hash, ok := localHash[key]
		if !ok {
			continue
		}
		if obj, ok := latestWithHash(stated, hash); ok {
			out = append(out, matchedFunction{name: name, modified: obj.LastModified, object: obj.Key})
		}
	}
	return out
}

func latestWithHash(stated []ArtifactDescriptor, hash string) (ArtifactDescriptor, bool) {
	var best ArtifactDescriptor
	found := false
	for _, obj := range stated {
		if obj.ContentHash != hash {
			continue
		}
		if !found || (obj.LastModified != nil && (best.LastModified == nil || obj.LastModified.After(*best.LastModified))) {
			best, found = obj, true
		}
	}
	return best, found
}

func hashesOf(objects []ArtifactDescriptor) []string {
	out := make([]string, 0, len(objects))
	for _, o := range objects {
		out = append(out, o.ContentHash)
	}
	return out
}
