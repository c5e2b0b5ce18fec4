package store

import (
	"time"

	"github.com/google/uuid"
)

// Deploy is one recorded evaluation of a stack.
type Deploy struct {
	ID           uuid.UUID `json:"id"`
	Stack        string    `json:"stack"`
	StartedAt    time.Time `json:"started_at"`
	Decision     string    `json:"decision"` // "skip" or "proceed"
	Reason       string    `json:"reason"`
	TemplateHash string    `json:"template_hash,omitempty"`
}

// FunctionVersion is the version hash a function was deployed with.
type FunctionVersion struct {
	Stack      string    `json:"stack"`
	Function   string    `json:"function"`
	Hash       string    `json:"hash"`
	LogicalID  string    `json:"logical_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

// FilterDeletion is one subscription filter removed, or attempted, during a
// deploy. Error is empty on success.
type FilterDeletion struct {
	DeployID   uuid.UUID `json:"deploy_id"`
	LogGroup   string    `json:"log_group"`
	FilterName string    `json:"filter_name"`
	Error      string    `json:"error,omitempty"`
}

// NewDeployID returns a fresh random deploy id.
func NewDeployID() uuid.UUID {
	return uuid.New()
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
