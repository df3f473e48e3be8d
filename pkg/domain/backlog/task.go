package backlog

import (
	"time"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusConfirmed  TaskStatus = "confirmed"
	StatusDeveloping TaskStatus = "developing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// Task is an approved unit of change: a requirement to apply against one
// managed artifact. Tasks are created by an external approval step; the
// pipeline only ever transitions them confirmed → developing → terminal.
type Task struct {
	ID           string     `json:"id" yaml:"id"`
	Title        string     `json:"title" yaml:"title"`
	Requirement  string     `json:"requirement" yaml:"requirement"`
	ArtifactPath string     `json:"artifact_path" yaml:"artifact_path"`
	Status       TaskStatus `json:"status" yaml:"status"`
	Priority     int        `json:"priority" yaml:"priority"` // lower selected first
	CreatedAt    time.Time  `json:"created_at" yaml:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

// IsSelectable reports whether the selector may hand this task to a run.
// Developing is included so a manual re-dispatch of an interrupted run can
// target the task it left in flight.
func (t *Task) IsSelectable() bool {
	return t.Status == StatusConfirmed || t.Status == StatusDeveloping
}

// IsTerminal reports whether the task has reached a final status.
// Terminal tasks are never revisited; retry is an explicit human action
// that creates a new task.
func (t *Task) IsTerminal() bool {
	return t.Status.IsTerminal()
}
