package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/driftless/internal/canon"
)

// TestScenarios_Golden runs every scenario in testdata/scenarios and
// compares its trace with testdata/golden. Regenerate with:
//
//	go test ./internal/harness -run TestScenarios_Golden -update
func TestScenarios_Golden(t *testing.T) {
	for _, file := range []string{
		"unchanged_redeploy_skips.yaml",
		"changed_code_proceeds.yaml",
		"log_event_reorder.yaml",
		"filter_limit_fails_fast.yaml",
	} {
		t.Run(file, func(t *testing.T) {
			result, err := RunWithGolden(t, loadTestdata(t, file))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestTraceSnapshot_CanonicalMap(t *testing.T) {
	snapshot := TraceSnapshot{
		ScenarioName: "snapshot",
		Trace: []TraceEvent{
			{Step: 1, Op: OpDeploy, Reason: "content-changed", Detail: "sha256:abc", Applied: "updated", Uploads: 3},
			{Step: 2, Op: OpPlanLogs, Deleted: []DeletedFilter{{LogGroup: "/g", Filter: "f"}}},
		},
	}

	data, err := canon.MarshalContent(snapshot.toCanonicalMap())
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"snapshot","trace":[`+
			`{"applied":"updated","op":"deploy","reason":"content-changed","skip":false,"step":1,"uploads":3},`+
			`{"deleted":[{"filter":"f","log_group":"/g"}],"op":"plan_logs","step":2,"uploads":0}]}`,
		string(data))
}
