package backlog_test

import (
	"errors"
	"testing"

	"github.com/sovereignlab/sovereign/pkg/domain/backlog"
)

func TestTaskStateMachineHappyPath(t *testing.T) {
	sm, err := backlog.NewTaskStateMachine(backlog.StatePending, "t1", nil)
	if err != nil {
		t.Fatalf("NewTaskStateMachine: %v", err)
	}

	for _, event := range []string{"confirm", "develop", "complete"} {
		if err := sm.Transition(event); err != nil {
			t.Fatalf("Transition(%q): %v", event, err)
		}
	}

	if sm.CurrentStatus() != backlog.StatusCompleted {
		t.Errorf("final status = %q, want %q", sm.CurrentStatus(), backlog.StatusCompleted)
	}
	if !sm.IsTerminal() {
		t.Error("completed should be terminal")
	}
}

func TestTaskStateMachineRejectsInvalidEvent(t *testing.T) {
	sm, err := backlog.NewTaskStateMachine(backlog.StatePending, "t1", nil)
	if err != nil {
		t.Fatalf("NewTaskStateMachine: %v", err)
	}

	err = sm.Transition("develop")
	if err == nil {
		t.Fatal("expected develop from pending to be rejected")
	}
	if !errors.Is(err, backlog.ErrInvalidTransition) {
		t.Errorf("error should match ErrInvalidTransition, got %v", err)
	}

	var terr *backlog.TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TransitionError, got %T", err)
	}
	if terr.TaskID != "t1" || terr.Event != "develop" {
		t.Errorf("TransitionError = %+v", terr)
	}

	if sm.Current() != backlog.StatePending {
		t.Errorf("state changed on rejected event: %q", sm.Current())
	}
}

func TestTaskStateMachineSelectionGuard(t *testing.T) {
	denied := func(taskID, event string) bool { return false }
	sm, err := backlog.NewTaskStateMachine(backlog.StateConfirmed, "t1", denied)
	if err != nil {
		t.Fatalf("NewTaskStateMachine: %v", err)
	}

	if err := sm.Transition("develop"); err == nil {
		t.Fatal("guard should have blocked develop")
	}
	if sm.CurrentStatus() != backlog.StatusConfirmed {
		t.Errorf("status = %q, want confirmed", sm.CurrentStatus())
	}

	allowed := func(taskID, event string) bool { return true }
	sm, err = backlog.NewTaskStateMachine(backlog.StateConfirmed, "t1", allowed)
	if err != nil {
		t.Fatalf("NewTaskStateMachine: %v", err)
	}
	if err := sm.Transition("develop"); err != nil {
		t.Fatalf("guard should have allowed develop: %v", err)
	}
	if sm.CurrentStatus() != backlog.StatusDeveloping {
		t.Errorf("status = %q, want developing", sm.CurrentStatus())
	}
}

func TestTaskStateMachineTerminalStatesHaveNoEvents(t *testing.T) {
	for _, state := range []string{backlog.StateCompleted, backlog.StateFailed} {
		sm, err := backlog.NewTaskStateMachine(state, "t1", nil)
		if err != nil {
			t.Fatalf("NewTaskStateMachine(%q): %v", state, err)
		}
		for _, event := range []string{"confirm", "develop", "complete", "fail"} {
			if err := sm.Transition(event); err == nil {
				t.Errorf("event %q from terminal state %q should be rejected", event, state)
			}
		}
	}
}
