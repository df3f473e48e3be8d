package backlog

import (
	"context"
	"errors"
)

// ErrTaskNotFound indicates the requested task does not exist in the store.
var ErrTaskNotFound = errors.New("task not found")

// ErrInvalidTransition indicates an event was fired that the task's current
// status does not allow.
var ErrInvalidTransition = errors.New("invalid status transition")

// TransitionError carries the task and event of a rejected transition.
type TransitionError struct {
	TaskID     string
	FromStatus string
	Event      string
}

func (e *TransitionError) Error() string {
	return "cannot transition task " + e.TaskID + " from " + e.FromStatus + " via " + e.Event
}

// Is allows errors.Is to work with TransitionError.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Repository handles persistence of backlog tasks. Implementations must
// order ListByStatus deterministically: priority ascending, then creation
// time ascending, then id ascending.
type Repository interface {
	Create(ctx context.Context, task *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	ListByStatus(ctx context.Context, status TaskStatus) ([]*Task, error)
	// UpdateStatus persists a status transition. Implementations set the
	// completion timestamp when the new status is terminal.
	UpdateStatus(ctx context.Context, id string, status TaskStatus) error
}
