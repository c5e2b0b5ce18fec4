package harness

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/roach88/driftless/internal/store"
	"github.com/roach88/driftless/internal/testutil"
)

// AssertionContext is the final state assertions read.
type AssertionContext struct {
	Ctx   context.Context
	Cloud *testutil.Cloud
	Store *store.Store
	// Stack is the stack of the last step.
	Stack string
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s", event.Step, event.Op)
		if event.Reason != "" {
			fmt.Fprintf(&buf, " %s", event.Reason)
		}
		if event.Error != "" {
			fmt.Fprintf(&buf, " error=%s", event.Error)
		}
		buf.WriteString("\n")
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(result.Trace, a, actx); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertFilterCount:
		return assertFilterCount(trace, a, actx)
	case AssertFilterPresent:
		return assertFilterPresence(trace, a, actx, true)
	case AssertFilterAbsent:
		return assertFilterPresence(trace, a, actx, false)
	case AssertDeployFolders:
		return assertDeployFolders(trace, a, actx)
	case AssertLedgerDecisions:
		return assertLedgerDecisions(trace, a, actx)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertFilterCount(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	got := len(actx.Cloud.Filters(a.LogGroup))
	if got == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertFilterCount,
		Expected: fmt.Sprintf("%d filters on %s", a.Count, a.LogGroup),
		Actual:   fmt.Sprintf("%d filters: %v", got, filterNames(actx, a.LogGroup)),
		Trace:    trace,
	}
}

func assertFilterPresence(trace []TraceEvent, a Assertion, actx *AssertionContext, present bool) error {
	names := filterNames(actx, a.LogGroup)
	found := slices.Contains(names, a.Filter)
	if found == present {
		return nil
	}
	expected := fmt.Sprintf("filter %s on %s", a.Filter, a.LogGroup)
	if !present {
		expected = "no " + expected
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: expected,
		Actual:   fmt.Sprintf("filters %v", names),
		Trace:    trace,
	}
}

func filterNames(actx *AssertionContext, logGroup string) []string {
	filters := actx.Cloud.Filters(logGroup)
	names := make([]string, len(filters))
	for i, f := range filters {
		names[i] = f.FilterName
	}
	return names
}

// assertDeployFolders counts the distinct deployment folders in the
// stack's bucket. A stack without a bucket has none.
func assertDeployFolders(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	got := 0
	if bucket, err := actx.Cloud.DeploymentBucket(actx.Ctx, actx.Stack); err == nil {
		folders := make(map[string]struct{})
		for _, key := range actx.Cloud.Keys(bucket) {
			folders[path.Dir(key)] = struct{}{}
		}
		got = len(folders)
	}
	if got == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertDeployFolders,
		Expected: fmt.Sprintf("%d deployment folders", a.Count),
		Actual:   fmt.Sprintf("%d deployment folders", got),
		Trace:    trace,
	}
}

// assertLedgerDecisions compares the recorded decisions, oldest first.
func assertLedgerDecisions(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	history, err := actx.Store.History(actx.Ctx, actx.Stack, 0)
	if err != nil {
		return fmt.Errorf("%s: %w", AssertLedgerDecisions, err)
	}
	got := make([]string, len(history))
	for i, d := range history {
		got[len(history)-1-i] = d.Decision
	}
	if slices.Equal(got, a.Decisions) {
		return nil
	}
	return &AssertionError{
		Type:     AssertLedgerDecisions,
		Expected: fmt.Sprintf("decisions %v", a.Decisions),
		Actual:   fmt.Sprintf("decisions %v", got),
		Trace:    trace,
	}
}
