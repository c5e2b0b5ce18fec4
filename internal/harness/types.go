package harness

// TraceEvent is the observable outcome of one step.
type TraceEvent struct {
	Step int    `json:"step"`
	Op   string `json:"op"`
	// Skip and Reason are set by deploy and check steps.
	Skip    bool   `json:"skip"`
	Reason  string `json:"reason,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Error   string `json:"error,omitempty"` // error code
	Applied string `json:"applied,omitempty"`
	Uploads int    `json:"uploads"`
	// Deleted lists the filters deleted, or planned for deletion, sorted by
	// log group and name.
	Deleted []DeletedFilter `json:"deleted,omitempty"`
}

// DeletedFilter names one deleted subscription filter.
type DeletedFilter struct {
	LogGroup string `json:"log_group"`
	Filter   string `json:"filter"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Trace holds one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends the event of a step.
func (r *Result) AddTrace(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}
