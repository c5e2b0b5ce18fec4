package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

// createTestStore creates a new temporary store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testEpoch = time.Date(2024, 3, 9, 13, 5, 7, 0, time.UTC)

// createTestDeploy creates a deploy record started n minutes after testEpoch.
func createTestDeploy(stack string, n int) Deploy {
	return Deploy{
		ID:        uuid.New(),
		Stack:     stack,
		StartedAt: testEpoch.Add(time.Duration(n) * time.Minute),
		Decision:  "proceed",
		Reason:    "content-changed",
	}
}
