package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/sovereignlab/sovereign/pkg/domain"
	"github.com/sovereignlab/sovereign/pkg/domain/backlog"
)

// SelectorService picks the next approved change to apply. Selection is the
// only path that moves a task into developing, which keeps the
// at-most-one-developing invariant in one place.
type SelectorService struct {
	repo backlog.Repository
}

func NewSelectorService(repo backlog.Repository) *SelectorService {
	return &SelectorService{repo: repo}
}

// SelectNext returns the task the pipeline should work on.
//
// With an override id (manual single-target dispatch) it returns exactly
// that task when its status is confirmed or developing, and otherwise
// performs no selection at all: an override that does not match never falls
// back to automatic selection.
//
// Without an override it returns the first confirmed task ordered by
// priority ascending, then creation time ascending, then id ascending (the
// repository guarantees this order, making ties deterministic).
//
// On selection the task transitions to developing via its state machine.
func (s *SelectorService) SelectNext(ctx context.Context, overrideID string) (*backlog.Task, error) {
	if overrideID != "" {
		return s.selectOverride(ctx, overrideID)
	}
	return s.selectByPriority(ctx)
}

func (s *SelectorService) selectOverride(ctx context.Context, id string) (*backlog.Task, error) {
	task, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, backlog.ErrTaskNotFound) {
			return nil, fmt.Errorf("%w: override task %q does not exist", domain.ErrNoTask, id)
		}
		return nil, err
	}

	if !task.IsSelectable() {
		return nil, fmt.Errorf("%w: override task %q has status %q", domain.ErrNoTask, id, task.Status)
	}

	// A developing task is an interrupted run being re-dispatched; it is
	// already in the state the selector would put it in.
	if task.Status == backlog.StatusDeveloping {
		return task, nil
	}

	return s.transitionToDeveloping(ctx, task)
}

func (s *SelectorService) selectByPriority(ctx context.Context) (*backlog.Task, error) {
	// At most one task may be developing at a time. An existing developing
	// task belongs to an interrupted run and needs explicit re-dispatch or
	// cleanup before automatic selection may continue.
	developing, err := s.repo.ListByStatus(ctx, backlog.StatusDeveloping)
	if err != nil {
		return nil, err
	}
	if len(developing) > 0 {
		return nil, fmt.Errorf("task %q is already developing; re-dispatch it explicitly or resolve it before automatic selection", developing[0].ID)
	}

	confirmed, err := s.repo.ListByStatus(ctx, backlog.StatusConfirmed)
	if err != nil {
		return nil, err
	}
	if len(confirmed) == 0 {
		return nil, domain.ErrNoTask
	}

	return s.transitionToDeveloping(ctx, confirmed[0])
}

func (s *SelectorService) transitionToDeveloping(ctx context.Context, task *backlog.Task) (*backlog.Task, error) {
	fsm, err := backlog.NewTaskStateMachine(string(task.Status), task.ID, nil)
	if err != nil {
		return nil, err
	}
	if err := fsm.Transition("develop"); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, task.ID, fsm.CurrentStatus()); err != nil {
		return nil, err
	}
	task.Status = fsm.CurrentStatus()
	return task, nil
}

// Finalize moves a developing task to its terminal status after the run.
func (s *SelectorService) Finalize(ctx context.Context, task *backlog.Task, event string) error {
	fsm, err := backlog.NewTaskStateMachine(string(task.Status), task.ID, nil)
	if err != nil {
		return err
	}
	if err := fsm.Transition(event); err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, task.ID, fsm.CurrentStatus()); err != nil {
		return err
	}
	task.Status = fsm.CurrentStatus()
	return nil
}
