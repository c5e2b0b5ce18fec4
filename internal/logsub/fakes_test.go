package logsub

import (
	"context"
	"errors"
	"sync"
)

type fakeLogs struct {
	mu        sync.Mutex
	filters   map[string][]ObservedFilter
	failOn    map[string]error
	describes int
	deletes   []Deletion
}

func newFakeLogs(filters ...ObservedFilter) *fakeLogs {
	f := &fakeLogs{filters: make(map[string][]ObservedFilter), failOn: make(map[string]error)}
	for _, o := range filters {
		f.filters[o.LogGroupName] = append(f.filters[o.LogGroupName], o)
	}
	return f
}

func (f *fakeLogs) DescribeSubscriptionFilters(_ context.Context, logGroupName string) ([]ObservedFilter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.describes++
	filters, ok := f.filters[logGroupName]
	if !ok {
		return nil, ErrLogGroupNotFound
	}
	return append([]ObservedFilter(nil), filters...), nil
}

func (f *fakeLogs) DeleteSubscriptionFilter(_ context.Context, logGroupName, filterName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOn[filterName]; ok {
		return err
	}
	f.deletes = append(f.deletes, Deletion{LogGroupName: logGroupName, FilterName: filterName})
	kept := f.filters[logGroupName][:0]
	for _, o := range f.filters[logGroupName] {
		if o.FilterName != filterName {
			kept = append(kept, o)
		}
	}
	f.filters[logGroupName] = kept
	return nil
}

func (f *fakeLogs) deleteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deletes)
}

var errThrottled = errors.New("ThrottlingException: rate exceeded")
