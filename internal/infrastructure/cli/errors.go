package cli

import (
	"errors"
	"fmt"

	"github.com/sovereignlab/sovereign/pkg/domain"
	"github.com/sovereignlab/sovereign/pkg/domain/backlog"
)

// CLIError wraps domain errors with user-facing messages and actionable hints.
type CLIError struct {
	Message  string
	Hint     string
	Err      error
	ExitCode int
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a CLIError with a default exit code of 1.
func NewCLIError(msg, hint string, err error) *CLIError {
	return &CLIError{
		Message:  msg,
		Hint:     hint,
		Err:      err,
		ExitCode: 1,
	}
}

// MapError converts known domain errors into CLIErrors with actionable hints.
// Unmapped errors are returned as-is.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return NewCLIError(
			verr.Error(),
			"The artifact was restored; inspect the ledger note with 'sovereign ledger list'",
			err,
		)
	}

	var terr *backlog.TransitionError
	if errors.As(err, &terr) {
		return NewCLIError(
			terr.Error(),
			fmt.Sprintf("Task '%s' is '%s' — check its status with 'sovereign backlog list'", terr.TaskID, terr.FromStatus),
			err,
		)
	}

	switch {
	case errors.Is(err, domain.ErrNoTask):
		return NewCLIError("no selectable task", "Confirm a task with 'sovereign backlog confirm <id>' or pass --task", err)
	case errors.Is(err, domain.ErrLockHeld):
		return NewCLIError("artifact lock held by another run", "Wait for the running release to finish, or remove a stale lock under .sovereign/locks", err)
	case errors.Is(err, domain.ErrSnapshotFailure):
		return NewCLIError("pre-mutation snapshot failed", "The artifact was not touched; check .sovereign/snapshots is writable", err)
	case errors.Is(err, domain.ErrSynthesisFailure):
		return NewCLIError("no usable candidate was synthesized", "The run failed before any mutation; re-dispatch with 'sovereign run --task <id>'", err)
	case errors.Is(err, domain.ErrPushFailure):
		return NewCLIError("push failed after acceptance", "The artifact was restored; check remote access and re-dispatch the task", err)
	case errors.Is(err, domain.ErrGateFailure):
		return NewCLIError("smoke gate failed", "Nothing was pushed; see the gate diagnostics in the ledger note", err)
	case errors.Is(err, backlog.ErrTaskNotFound):
		return NewCLIError("task not found", "Run 'sovereign backlog list' to see available tasks", err)
	}

	return err
}
