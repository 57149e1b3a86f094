package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore creates a new on-disk store for testing.
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

// beginTestRun records a simulation run with minimal required fields.
func beginTestRun(t *testing.T, s *Store, id string) {
	t.Helper()
	err := s.BeginRun(context.Background(), Run{ID: id, JobName: "letters", Mode: ModeSimulate})
	if err != nil {
		t.Fatalf("BeginRun(%s) failed: %v", id, err)
	}
}
