package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/roach88/driftless/internal/config"
	"github.com/roach88/driftless/internal/logsub"
	"github.com/roach88/driftless/internal/pipeline"
	"github.com/roach88/driftless/internal/service"
	"github.com/roach88/driftless/internal/store"
	"github.com/roach88/driftless/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenario steps against one cloud, clock and ledger.
type Harness struct {
	cloud    *testutil.Cloud
	clock    *fakeclock.FakeClock
	store    *store.Store
	pipeline *pipeline.Pipeline
	logger   *zap.Logger

	// dir holds the artifacts of the current step.
	dir       string
	service   map[string]any
	artifacts map[string]string
	stack     string
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory ledger and a fresh cloud, with
// the clock starting at testutil.Epoch.
//
// Execution flow:
// 1. Seed the cloud from the setup section
// 2. For each step, advance the clock, apply overrides and run the op
// 3. Compare each outcome to the step's expect clause
// 4. Evaluate the assertions against the final state
//
// An error is returned only when the scenario cannot run; failed
// expectations and assertions are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	dir, err := os.MkdirTemp("", "driftless-harness-")
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	defer os.RemoveAll(dir)

	clk := testutil.NewClock()
	cloud := testutil.NewCloud(clk)
	logger := zap.NewNop()
	p := pipeline.New(pipeline.Deps{
		Objects:   cloud,
		Functions: cloud,
		Logs:      cloud,
		Stacks:    cloud,
		Accounts:  cloud,
		Ledger:    st,
	},
		pipeline.WithClock(clk),
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(pipeline.NewMetrics(prometheus.NewRegistry())),
	)

	h := &Harness{
		cloud:     cloud,
		clock:     clk,
		store:     st,
		pipeline:  p,
		logger:    logger,
		dir:       dir,
		service:   scenario.Service,
		artifacts: make(map[string]string, len(scenario.Artifacts)),
	}
	for path, content := range scenario.Artifacts {
		h.artifacts[path] = content
	}
	h.seed(scenario.Setup)

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.runStep(ctx, i+1, step, result); err != nil {
			return nil, fmt.Errorf("failed to execute step %d: %w", i+1, err)
		}
	}

	actx := &AssertionContext{
		Ctx:   ctx,
		Cloud: cloud,
		Store: st,
		Stack: h.stack,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) seed(setup Setup) {
	for _, b := range setup.Buckets {
		h.cloud.AddBucket(b)
	}
	for _, f := range setup.Filters {
		h.cloud.AddFilter(logsub.ObservedFilter{
			LogGroupName:   f.LogGroup,
			FilterName:     f.Name,
			FilterPattern:  f.Pattern,
			DestinationARN: f.Destination,
		})
	}
}

// runStep executes one step and records its trace event. Errors from the
// operation itself are outcomes, compared with the expect clause; only a
// step that cannot be prepared returns an error.
func (h *Harness) runStep(ctx context.Context, n int, step Step, result *Result) error {
	if step.Advance > 0 {
		h.clock.Increment(step.Advance)
	}
	if step.Service != nil {
		h.service = step.Service
	}
	for path, content := range step.Artifacts {
		h.artifacts[path] = content
	}

	svc, err := h.loadService()
	if err != nil {
		return err
	}
	h.stack = svc.StackName()
	bundle, err := h.writeArtifacts(svc)
	if err != nil {
		return err
	}
	for name, offset := range step.FunctionModified {
		h.cloud.SetFunctionModified(name, h.clock.Now().Add(offset))
	}

	opts := pipeline.Options{Force: step.Force, ClockSkew: step.ClockSkew}
	event := TraceEvent{Step: n, Op: step.Op}
	h.cloud.ResetCalls()

	var runErr error
	switch step.Op {
	case OpDeploy:
		var report *pipeline.Report
		report, runErr = h.pipeline.Deploy(ctx, svc, bundle, opts)
		if report != nil {
			event.fromReport(report)
			event.Deleted = deletedFilters(report.Filters.Deleted)
		}
	case OpCheck:
		var report *pipeline.Report
		report, runErr = h.pipeline.Check(ctx, svc, bundle, opts)
		if report != nil {
			event.fromReport(report)
		}
	case OpPlanLogs:
		var plan logsub.Plan
		plan, runErr = h.pipeline.PlanLogs(ctx, svc)
		event.Deleted = deletedFilters(plan.Deletions)
	}
	event.Uploads = h.cloud.Calls(testutil.OpPut)
	if runErr != nil {
		event.Error = errorCode(runErr)
	}
	result.AddTrace(event)

	h.logger.Info("scenario step completed",
		zap.Int("step", n),
		zap.String("op", step.Op),
		zap.String("reason", event.Reason),
		zap.String("error", event.Error))

	checkExpect(n, step.Expect, event, runErr, result)
	return nil
}

// loadService validates the current service document the way a service.yml
// is validated, then applies the default stage and region.
func (h *Harness) loadService() (*service.Service, error) {
	data, err := yaml.Marshal(h.service)
	if err != nil {
		return nil, fmt.Errorf("marshal service: %w", err)
	}
	svc, err := config.Parse("service.yml", data)
	if err != nil {
		return nil, err
	}
	config.Settings{}.Apply(svc)
	return svc, nil
}

func (h *Harness) writeArtifacts(svc *service.Service) (*pipeline.Bundle, error) {
	for path, content := range h.artifacts {
		full := filepath.Join(h.dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return nil, fmt.Errorf("write artifact %s: %w", path, err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("write artifact %s: %w", path, err)
		}
	}
	return pipeline.LoadBundle(svc, h.dir)
}

func (e *TraceEvent) fromReport(r *pipeline.Report) {
	e.Skip = r.Decision.Skip
	e.Reason = string(r.Decision.Reason)
	e.Detail = r.Decision.Detail
	e.Applied = string(r.Applied)
}

func deletedFilters(ds []logsub.Deletion) []DeletedFilter {
	if len(ds) == 0 {
		return nil
	}
	out := make([]DeletedFilter, len(ds))
	for i, d := range ds {
		out[i] = DeletedFilter{LogGroup: d.LogGroupName, Filter: d.FilterName}
	}
	return out
}

// errorCode is the stable code of err, or "error" when it has none.
func errorCode(err error) string {
	if code := pipeline.ErrorCode(err); code != "" {
		return code
	}
	return "error"
}

func checkExpect(n int, expect *Expect, event TraceEvent, err error, result *Result) {
	if expect == nil || expect.Error == "" {
		if err != nil {
			result.AddError(fmt.Sprintf("step %d: unexpected error: %v", n, err))
		}
	}
	if expect == nil {
		return
	}

	if expect.Error != "" {
		switch {
		case err == nil:
			result.AddError(fmt.Sprintf("step %d: expected error %s, got none", n, expect.Error))
		case event.Error != expect.Error:
			result.AddError(fmt.Sprintf("step %d: expected error %s, got %s (%v)", n, expect.Error, event.Error, err))
		}
	}
	if expect.Skip != nil && event.Skip != *expect.Skip {
		result.AddError(fmt.Sprintf("step %d: expected skip=%t, got %t (%s)", n, *expect.Skip, event.Skip, event.Reason))
	}
	if expect.Reason != "" && event.Reason != expect.Reason {
		result.AddError(fmt.Sprintf("step %d: expected reason %s, got %s", n, expect.Reason, event.Reason))
	}
	if expect.Detail != "" && event.Detail != expect.Detail {
		result.AddError(fmt.Sprintf("step %d: expected detail %q, got %q", n, expect.Detail, event.Detail))
	}
	if expect.Deleted != nil && len(event.Deleted) != *expect.Deleted {
		result.AddError(fmt.Sprintf("step %d: expected %d deleted filters, got %d", n, *expect.Deleted, len(event.Deleted)))
	}
	if expect.Uploads != nil && event.Uploads != *expect.Uploads {
		result.AddError(fmt.Sprintf("step %d: expected %d uploads, got %d", n, *expect.Uploads, event.Uploads))
	}
}
