package deploy

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

type fakeBucket struct {
	objects map[string]ArtifactDescriptor
	listErr error
	statErr error

	lists atomic.Int32
	stats atomic.Int32
}

func newFakeBucket(objects ...ArtifactDescriptor) *fakeBucket {
	b := &fakeBucket{objects: make(map[string]ArtifactDescriptor)}
	for _, o := range objects {
		b.objects[o.Key] = o
	}
	return b
}

func (b *fakeBucket) ListObjects(_ context.Context, _, prefix string) ([]ArtifactDescriptor, error) {
	b.lists.Add(1)
	if b.listErr != nil {
		return nil, b.listErr
	}
	var out []ArtifactDescriptor
	for _, o := range b.objects {
		if len(o.Key) >= len(prefix) && o.Key[:len(prefix)] == prefix {
			out = append(out, ArtifactDescriptor{Key: o.Key, LastModified: o.LastModified, Size: o.Size})
		}
	}
	return out, nil
}

func (b *fakeBucket) StatObject(_ context.Context, _, key string) (ArtifactDescriptor, error) {
	b.stats.Add(1)
	if b.statErr != nil {
		return ArtifactDescriptor{}, b.statErr
	}
	o, ok := b.objects[key]
	if !ok {
		return ArtifactDescriptor{}, fmt.Errorf("no such key %s", key)
	}
	return o, nil
}

func (b *fakeBucket) calls() int {
	return int(b.lists.Load() + b.stats.Load())
}

type fakeFunctions struct {
	mu       sync.Mutex
	modified map[string]time.Time
	err      error
	reads    int
}

func (f *fakeFunctions) FunctionLastModified(_ context.Context, name string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.err != nil {
		return time.Time{}, f.err
	}
	ts, ok := f.modified[name]
	if !ok {
		return time.Time{}, fmt.Errorf("%s: %w", name, ErrFunctionNotFound)
	}
	return ts, nil
}

func (f *fakeFunctions) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func at(ts time.Time) *time.Time { return &ts }
