package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/driftless/internal/canon"
)

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to the plain values canonical JSON
// accepts. Skip is only meaningful for deploy and check steps; details are
// left out because content changes name artifact hashes.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"step":    event.Step,
			"op":      event.Op,
			"uploads": event.Uploads,
		}
		if event.Op != OpPlanLogs {
			eventMap["skip"] = event.Skip
		}
		if event.Reason != "" {
			eventMap["reason"] = event.Reason
		}
		if event.Error != "" {
			eventMap["error"] = event.Error
		}
		if event.Applied != "" {
			eventMap["applied"] = event.Applied
		}
		if len(event.Deleted) > 0 {
			deleted := make([]any, len(event.Deleted))
			for j, d := range event.Deleted {
				deleted[j] = map[string]any{"log_group": d.LogGroup, "filter": d.Filter}
			}
			eventMap["deleted"] = deleted
		}
		traceList[i] = eventMap
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
	}
	traceJSON, err := canon.MarshalContent(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
