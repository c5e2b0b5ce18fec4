package logsub

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultWorkers bounds concurrent deletions.
const DefaultWorkers = 5

// Deleter removes one subscription filter from the provider.
type Deleter interface {
	DeleteSubscriptionFilter(ctx context.Context, logGroupName, filterName string) error
}

// FailedDeletion is a deletion the provider rejected.
type FailedDeletion struct {
	Deletion
	Err error `json:"-"`
}

// Result is the aggregate outcome of Apply.
type Result struct {
	Deleted []Deletion
	Failed  []FailedDeletion
}

// Executor issues plan deletions concurrently.
type Executor struct {
	deleter Deleter
	workers int
	logger  *zap.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithWorkers sets the pool size.
func WithWorkers(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExecutor returns an Executor deleting through d.
func NewExecutor(d Deleter, opts ...ExecutorOption) *Executor {
	e := &Executor{deleter: d, workers: DefaultWorkers, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply attempts every deletion of plan. A failed deletion does not stop the
// others; all failures are combined into the returned error.
func (e *Executor) Apply(ctx context.Context, plan Plan) (Result, error) {
	if plan.Empty() {
		return Result{}, nil
	}

	pool, err := ants.NewPool(e.workers, ants.WithPanicHandler(func(v any) {
		e.logger.Error("subscription filter deletion panicked", zap.Any("panic", v))
	}))
	if err != nil {
		return Result{}, fmt.Errorf("create deletion pool: %w", err)
	}
	defer pool.Release()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result Result
		errs   error
	)
	record := func(d Deletion, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			result.Failed = append(result.Failed, FailedDeletion{Deletion: d, Err: err})
			errs = multierr.Append(errs, fmt.Errorf("delete %s in %s: %w", d.FilterName, d.LogGroupName, err))
			return
		}
		result.Deleted = append(result.Deleted, d)
	}

	for _, d := range plan.Deletions {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				record(d, err)
				return
			}
			err := e.deleter.DeleteSubscriptionFilter(ctx, d.LogGroupName, d.FilterName)
			if err == nil {
				e.logger.Info("deleted subscription filter",
					zap.String("log_group", d.LogGroupName),
					zap.String("filter", d.FilterName))
			}
			record(d, err)
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			record(d, err)
		}
	}
	wg.Wait()

	sortDeletions(result.Deleted)
	sort.Slice(result.Failed, func(i, j int) bool {
		return deletionLess(result.Failed[i].Deletion, result.Failed[j].Deletion)
	})
	return result, errs
}

func sortDeletions(ds []Deletion) {
	sort.Slice(ds, func(i, j int) bool { return deletionLess(ds[i], ds[j]) })
}

func deletionLess(a, b Deletion) bool {
	if a.LogGroupName != b.LogGroupName {
		return a.LogGroupName < b.LogGroupName
	}
	return a.FilterName < b.FilterName
}
