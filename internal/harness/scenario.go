package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is one deploy scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Service is the service document, in service.yml form.
	Service map[string]any `yaml:"service"`

	// Artifacts maps artifact paths, relative to the service directory, to
	// their content.
	Artifacts map[string]string `yaml:"artifacts"`

	// Setup is the cloud state before the first step.
	Setup Setup `yaml:"setup,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Setup seeds the cloud.
type Setup struct {
	// Buckets are created empty.
	Buckets []string `yaml:"buckets,omitempty"`

	// Filters are subscription filters that already exist, usually ones
	// another stack owns.
	Filters []Filter `yaml:"filters,omitempty"`
}

// Filter is a subscription filter placed on a log group.
type Filter struct {
	LogGroup    string `yaml:"log_group"`
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern,omitempty"`
	Destination string `yaml:"destination,omitempty"`
}

// Step is one operation.
type Step struct {
	// Op is deploy, check or plan_logs.
	Op string `yaml:"op"`

	// Advance moves the clock forward before the step runs.
	Advance time.Duration `yaml:"advance,omitempty"`

	Force     bool          `yaml:"force,omitempty"`
	ClockSkew time.Duration `yaml:"clock_skew,omitempty"`

	// Service replaces the service document from this step on.
	Service map[string]any `yaml:"service,omitempty"`

	// Artifacts overwrites artifact contents from this step on.
	Artifacts map[string]string `yaml:"artifacts,omitempty"`

	// FunctionModified sets the last modification time of deployed
	// functions, as an offset from the clock, before the step runs. It
	// stands for an update made outside the deploy.
	FunctionModified map[string]time.Duration `yaml:"function_modified,omitempty"`

	// Expect checks the outcome. Without it the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is the expected outcome of a step. Unset fields are not checked.
type Expect struct {
	Skip   *bool  `yaml:"skip,omitempty"`
	Reason string `yaml:"reason,omitempty"`
	Detail string `yaml:"detail,omitempty"`

	// Error is the expected error code. "error" matches an error that
	// carries no code.
	Error string `yaml:"error,omitempty"`

	// Deleted is the number of filters deleted, or planned for deletion.
	Deleted *int `yaml:"deleted,omitempty"`

	// Uploads is the number of objects uploaded.
	Uploads *int `yaml:"uploads,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// LogGroup is used by filter_count, filter_present and filter_absent.
	LogGroup string `yaml:"log_group,omitempty"`

	// Filter is the filter name for filter_present and filter_absent.
	Filter string `yaml:"filter,omitempty"`

	// Count is used by filter_count and deploy_folders.
	Count int `yaml:"count,omitempty"`

	// Decisions is the expected ledger history for ledger_decisions.
	Decisions []string `yaml:"decisions,omitempty"`
}

// Step operations.
const (
	OpDeploy   = "deploy"
	OpCheck    = "check"
	OpPlanLogs = "plan_logs"
)

// Assertion type constants.
const (
	AssertFilterCount     = "filter_count"
	AssertFilterPresent   = "filter_present"
	AssertFilterAbsent    = "filter_absent"
	AssertDeployFolders   = "deploy_folders"
	AssertLedgerDecisions = "ledger_decisions"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Service) == 0 {
		return fmt.Errorf("service is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, f := range s.Setup.Filters {
		if f.LogGroup == "" || f.Name == "" {
			return fmt.Errorf("setup.filters[%d]: log_group and name are required", i)
		}
	}

	for i, step := range s.Steps {
		switch step.Op {
		case OpDeploy, OpCheck, OpPlanLogs:
		case "":
			return fmt.Errorf("steps[%d]: op is required", i)
		default:
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		if step.Advance < 0 {
			return fmt.Errorf("steps[%d]: advance must not be negative", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertFilterCount:
		if a.LogGroup == "" {
			return fmt.Errorf("assertions[%d]: log_group is required for filter_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for filter_count", index)
		}
	case AssertFilterPresent, AssertFilterAbsent:
		if a.LogGroup == "" || a.Filter == "" {
			return fmt.Errorf("assertions[%d]: log_group and filter are required for %s", index, a.Type)
		}
	case AssertDeployFolders:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for deploy_folders", index)
		}
	case AssertLedgerDecisions:
		if len(a.Decisions) == 0 {
			return fmt.Errorf("assertions[%d]: decisions list is required for ledger_decisions", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
