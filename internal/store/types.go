package store

import "errors"

// ErrRunNotFound is returned when a run id is not in the journal.
var ErrRunNotFound = errors.New("run not found")

// Mode is how a run produced its output.
type Mode string

const (
	ModePrint    Mode = "print"
	ModeSimulate Mode = "simulate"
)

// Status is a run's lifecycle state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Run is one journal entry.
type Run struct {
	Seq           int64  `json:"seq"`
	ID            string `json:"id"`
	JobName       string `json:"job_name"`
	Mode          Mode   `json:"mode"`
	Status        Status `json:"status"`
	Selection     string `json:"selection"`
	RowsProcessed int    `json:"rows_processed"`
	Productions   int    `json:"productions"`
	Error         string `json:"error,omitempty"`
}

// Outcome is the final state recorded by FinishRun.
type Outcome struct {
	Status        Status
	RowsProcessed int
	Productions   int
	Error         string
}

// Capture is one simulated row as stored.
type Capture struct {
	ID         string            `json:"id"`
	RunID      string            `json:"run_id"`
	Position   int               `json:"position"`
	Index      int               `json:"index"`
	Fields     map[string]string `json:"fields"`
	Visibility map[string]bool   `json:"visibility"`
}
