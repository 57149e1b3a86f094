package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/printmerge/internal/job"
)

func TestValidate_ValidJob(t *testing.T) {
	stdout, _, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), lettersJob)
	require.NoError(t, err)
	assert.Equal(t, "✓ letters is valid (3 rows)\n", stdout)
}

func TestValidate_ValidJobJSON(t *testing.T) {
	stdout, _, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), lettersJob)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, "letters", resp.Data.Job)
	assert.Equal(t, 3, resp.Data.Rows)
}

func TestValidate_InvalidJob(t *testing.T) {
	path := writeJob(t, `
name: "-bad"
document:
  body: "Hi {{Name}}"
data:
  rows:
    - {Name: Ada}
selection: x-y
`)

	stdout, _, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "Validation failed")
	assert.Contains(t, stdout, job.ErrSchemaViolation)
	assert.Contains(t, stdout, job.ErrInvalidSelection)
}

func TestValidate_InvalidJobJSON(t *testing.T) {
	path := writeJob(t, `
name: memo
document:
  body: "Hi"
data:
  csv: rows.csv
  rows:
    - {Name: Ada}
`)

	stdout, _, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidJob, resp.Error.Code)
	require.NotEmpty(t, resp.Data.Errors)
	assert.Equal(t, job.ErrTwoRowSources, resp.Data.Errors[0].Code)
}

func TestValidate_MissingFile(t *testing.T) {
	_, _, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}),
		filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
