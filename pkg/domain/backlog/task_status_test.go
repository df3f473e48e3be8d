package backlog_test

import (
	"testing"

	"github.com/sovereignlab/sovereign/pkg/domain/backlog"
)

func TestTransitionWith(t *testing.T) {
	tests := []struct {
		name    string
		from    backlog.TaskStatus
		event   string
		want    backlog.TaskStatus
		wantErr bool
	}{
		{"pending confirm", backlog.StatusPending, "confirm", backlog.StatusConfirmed, false},
		{"confirmed develop", backlog.StatusConfirmed, "develop", backlog.StatusDeveloping, false},
		{"developing complete", backlog.StatusDeveloping, "complete", backlog.StatusCompleted, false},
		{"developing fail", backlog.StatusDeveloping, "fail", backlog.StatusFailed, false},
		{"pending develop rejected", backlog.StatusPending, "develop", backlog.StatusPending, true},
		{"confirmed complete rejected", backlog.StatusConfirmed, "complete", backlog.StatusConfirmed, true},
		{"completed is terminal", backlog.StatusCompleted, "develop", backlog.StatusCompleted, true},
		{"failed is terminal", backlog.StatusFailed, "develop", backlog.StatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.from.TransitionWith(tt.event)
			if (err != nil) != tt.wantErr {
				t.Fatalf("TransitionWith(%q) error = %v, wantErr %v", tt.event, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("TransitionWith(%q) = %q, want %q", tt.event, got, tt.want)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []backlog.TaskStatus{backlog.StatusCompleted, backlog.StatusFailed} {
		if !s.IsTerminal() {
			t.Errorf("%q should be terminal", s)
		}
		if len(s.ValidEvents()) != 0 {
			t.Errorf("%q should have no valid events", s)
		}
	}
	for _, s := range []backlog.TaskStatus{backlog.StatusPending, backlog.StatusConfirmed, backlog.StatusDeveloping} {
		if s.IsTerminal() {
			t.Errorf("%q should not be terminal", s)
		}
	}
}

func TestIsSelectable(t *testing.T) {
	tests := []struct {
		status backlog.TaskStatus
		want   bool
	}{
		{backlog.StatusPending, false},
		{backlog.StatusConfirmed, true},
		{backlog.StatusDeveloping, true},
		{backlog.StatusCompleted, false},
		{backlog.StatusFailed, false},
	}
	for _, tt := range tests {
		task := &backlog.Task{ID: "t1", Status: tt.status}
		if got := task.IsSelectable(); got != tt.want {
			t.Errorf("IsSelectable() with status %q = %v, want %v", tt.status, got, tt.want)
		}
	}
}
