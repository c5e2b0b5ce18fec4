package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalService = `
service:
  service: orders
  provider:
    runtime: nodejs20.x
  package:
    artifact: .serverless/orders.zip
  functions:
    hello:
      handler: handler.hello
`

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
`+minimalService+`
artifacts:
  .serverless/orders.zip: "v1"
setup:
  buckets: [preexisting]
  filters:
    - log_group: /aws/lambda/source
      name: audit
steps:
  - op: deploy
  - op: check
    advance: 90s
    clock_skew: 5s
    function_modified:
      orders-dev-hello: -1h
    expect:
      skip: true
      reason: unchanged
      deleted: 0
assertions:
  - type: ledger_decisions
    decisions: [proceed]
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "orders", scenario.Service["service"])
	assert.Equal(t, "v1", scenario.Artifacts[".serverless/orders.zip"])
	assert.Equal(t, []string{"preexisting"}, scenario.Setup.Buckets)
	require.Len(t, scenario.Setup.Filters, 1)
	assert.Equal(t, "audit", scenario.Setup.Filters[0].Name)

	require.Len(t, scenario.Steps, 2)
	step := scenario.Steps[1]
	assert.Equal(t, OpCheck, step.Op)
	assert.Equal(t, 90*time.Second, step.Advance)
	assert.Equal(t, 5*time.Second, step.ClockSkew)
	assert.Equal(t, -time.Hour, step.FunctionModified["orders-dev-hello"])
	require.NotNil(t, step.Expect)
	require.NotNil(t, step.Expect.Skip)
	assert.True(t, *step.Expect.Skip)
	require.NotNil(t, step.Expect.Deleted)
	assert.Equal(t, 0, *step.Expect.Deleted)
	assert.Nil(t, step.Expect.Uploads)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MalformedYAML(t *testing.T) {
	_, err := ParseScenario([]byte("name: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_UnknownFieldsRejected(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: "assertion instead of assertions"
` + minimalService + `
steps:
  - op: deploy
assertion:
  - type: deploy_folders
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assertion")
}

func TestLoadScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\n" + minimalService + "steps:\n  - op: deploy\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\n" + minimalService + "steps:\n  - op: deploy\n",
			wantErr: "description is required",
		},
		{
			name:    "missing service",
			content: "name: n\ndescription: d\nsteps:\n  - op: deploy\n",
			wantErr: "service is required",
		},
		{
			name:    "missing steps",
			content: "name: n\ndescription: d\n" + minimalService,
			wantErr: "steps list is required",
		},
		{
			name:    "missing op",
			content: "name: n\ndescription: d\n" + minimalService + "steps:\n  - advance: 1m\n",
			wantErr: "steps[0]: op is required",
		},
		{
			name:    "unknown op",
			content: "name: n\ndescription: d\n" + minimalService + "steps:\n  - op: destroy\n",
			wantErr: `unknown op "destroy"`,
		},
		{
			name:    "negative advance",
			content: "name: n\ndescription: d\n" + minimalService + "steps:\n  - op: deploy\n    advance: -1m\n",
			wantErr: "advance must not be negative",
		},
		{
			name:    "setup filter without name",
			content: "name: n\ndescription: d\n" + minimalService + "setup:\n  filters:\n    - log_group: g\nsteps:\n  - op: deploy\n",
			wantErr: "setup.filters[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_AssertionTypes(t *testing.T) {
	tests := []struct {
		name      string
		assertion string
		wantErr   string
	}{
		{name: "filter_count", assertion: "type: filter_count\n    log_group: g\n    count: 0"},
		{name: "filter_count without group", assertion: "type: filter_count\n    count: 1", wantErr: "log_group is required"},
		{name: "filter_present", assertion: "type: filter_present\n    log_group: g\n    filter: f"},
		{name: "filter_absent without filter", assertion: "type: filter_absent\n    log_group: g", wantErr: "log_group and filter are required"},
		{name: "deploy_folders", assertion: "type: deploy_folders\n    count: 2"},
		{name: "deploy_folders negative", assertion: "type: deploy_folders\n    count: -1", wantErr: "count must be non-negative"},
		{name: "ledger_decisions", assertion: "type: ledger_decisions\n    decisions: [proceed]"},
		{name: "ledger_decisions empty", assertion: "type: ledger_decisions", wantErr: "decisions list is required"},
		{name: "missing type", assertion: "count: 1", wantErr: "type is required"},
		{name: "unknown type", assertion: "type: trace_contains", wantErr: `unknown assertion type "trace_contains"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := "name: n\ndescription: d\n" + minimalService +
				"steps:\n  - op: deploy\nassertions:\n  - " + tt.assertion + "\n"
			_, err := ParseScenario([]byte(content))
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// TestLoadExampleScenarios validates the scenario files in testdata/scenarios.
func TestLoadExampleScenarios(t *testing.T) {
	tests := []struct {
		file           string
		wantSteps      int
		wantAssertions int
	}{
		{file: "unchanged_redeploy_skips.yaml", wantSteps: 3, wantAssertions: 2},
		{file: "changed_code_proceeds.yaml", wantSteps: 5, wantAssertions: 2},
		{file: "log_event_reorder.yaml", wantSteps: 3, wantAssertions: 6},
		{file: "filter_limit_fails_fast.yaml", wantSteps: 1, wantAssertions: 3},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", tt.file))
			require.NoError(t, err)
			assert.Len(t, scenario.Steps, tt.wantSteps)
			assert.Len(t, scenario.Assertions, tt.wantAssertions)
		})
	}
}
