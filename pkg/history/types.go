package history

import "time"

// RunStatus is the lifecycle state of a recorded run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one recorded invocation of a command that touched the remote.
type Run struct {
	ID          string     `json:"id"`
	Command     string     `json:"command"`
	UniverseID  int64      `json:"universe_id"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	Created     int        `json:"created"`
	Updated     int        `json:"updated"`
	Skipped     int        `json:"skipped"`
	Warnings    int        `json:"warnings"`
}

// Event is one applied action within a run.
type Event struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Kind      string    `json:"kind"`
	Key       string    `json:"key"`
	Action    string    `json:"action"`
	RemoteID  *int64    `json:"remote_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
