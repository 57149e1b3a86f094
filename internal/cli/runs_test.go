package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuns_ListsJournal(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "journal.db")

	stdout, _, err := execute(t, NewRunsCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, stdout, "no runs recorded")

	_, _, err = execute(t, newMergeCommand(mergeCmd("text", "run-a")), "--db", db, "--out", dir, lettersJob)
	require.NoError(t, err)
	_, _, err = execute(t, newSimulateCommand(simulateCmd("text", "sim-b")), "--db", db, lettersJob)
	require.NoError(t, err)

	stdout, _, err = execute(t, NewRunsCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, stdout, "run-a  print")
	assert.Contains(t, stdout, "sim-b  simulate")
	assert.Less(t, strings.Index(stdout, "run-a"), strings.Index(stdout, "sim-b"))
}

func TestCaptures_UnknownRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "journal.db")

	stdout, _, err := execute(t, NewCapturesCommand(&RootOptions{Format: "text"}), "--db", db, "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "run missing not found")
}
