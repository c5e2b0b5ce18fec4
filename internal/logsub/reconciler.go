package logsub

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/driftless/internal/service"
)

// ErrLogGroupNotFound is wrapped by FilterSource when a log group does not
// exist yet. Such groups hold no filters.
var ErrLogGroupNotFound = errors.New("log group not found")

// FilterSource lists the subscription filters of one log group.
type FilterSource interface {
	DescribeSubscriptionFilters(ctx context.Context, logGroupName string) ([]ObservedFilter, error)
}

// Reconciler fetches observed filters, plans and applies deletions.
type Reconciler struct {
	source   FilterSource
	executor *Executor
	logger   *zap.Logger
}

// NewReconciler returns a Reconciler reading from source and deleting
// through deleter.
func NewReconciler(source FilterSource, deleter Deleter, opts ...ExecutorOption) *Reconciler {
	exec := NewExecutor(deleter, opts...)
	return &Reconciler{source: source, executor: exec, logger: exec.logger}
}

// Observe fetches the filters of every desired log group.
func (r *Reconciler) Observe(ctx context.Context, desired []DesiredFilter) (map[string][]ObservedFilter, error) {
	observed := make(map[string][]ObservedFilter)
	for _, group := range sortedKeys(GroupByLogGroup(desired)) {
		filters, err := r.source.DescribeSubscriptionFilters(ctx, group)
		if err != nil {
			if errors.Is(err, ErrLogGroupNotFound) {
				observed[group] = nil
				continue
			}
			return nil, fmt.Errorf("describe subscription filters of %s: %w", group, err)
		}
		observed[group] = filters
	}
	return observed, nil
}

// Plan observes and computes deletions without applying them.
func (r *Reconciler) Plan(ctx context.Context, svc *service.Service, owner Owner) (Plan, error) {
	desired := DesiredFilters(svc)
	if len(desired) == 0 {
		return Plan{Deletions: []Deletion{}}, nil
	}
	observed, err := r.Observe(ctx, desired)
	if err != nil {
		return Plan{}, err
	}
	return ReconcileLogSubscriptions(desired, observed, owner)
}

// Run plans and applies. The plan is returned even when deletions fail.
func (r *Reconciler) Run(ctx context.Context, svc *service.Service, owner Owner) (Plan, Result, error) {
	plan, err := r.Plan(ctx, svc, owner)
	if err != nil {
		return Plan{}, Result{}, err
	}
	if plan.Empty() {
		r.logger.Debug("subscription filters already reconciled", zap.String("stack", owner.StackName))
		return plan, Result{}, nil
	}
	result, err := r.executor.Apply(ctx, plan)
	return plan, result, err
}
