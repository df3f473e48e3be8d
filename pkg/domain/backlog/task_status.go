package backlog

import (
	"fmt"
)

// validTransitions defines the allowed status transitions and their events.
// Map: currentStatus -> event -> targetStatus
var validTransitions = map[TaskStatus]map[string]TaskStatus{
	StatusPending: {
		"confirm": StatusConfirmed,
	},
	StatusConfirmed: {
		"develop": StatusDeveloping,
	},
	StatusDeveloping: {
		"complete": StatusCompleted,
		"fail":     StatusFailed,
	},
	// completed and failed are terminal: no events defined.
}

// AllTaskStatuses returns all valid task statuses.
func AllTaskStatuses() []TaskStatus {
	return []TaskStatus{
		StatusPending,
		StatusConfirmed,
		StatusDeveloping,
		StatusCompleted,
		StatusFailed,
	}
}

// IsValid returns true if the status is a valid task status.
func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusDeveloping, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status.
func (s TaskStatus) String() string {
	return string(s)
}

// CanTransitionWith returns true if the given event can trigger a transition
// from this status.
func (s TaskStatus) CanTransitionWith(event string) bool {
	transitions, ok := validTransitions[s]
	if !ok {
		return false
	}
	_, ok = transitions[event]
	return ok
}

// TransitionWith returns the target status for a given event, or an error if
// the transition is not allowed.
func (s TaskStatus) TransitionWith(event string) (TaskStatus, error) {
	transitions, ok := validTransitions[s]
	if !ok {
		return s, fmt.Errorf("status %q is terminal", s)
	}

	target, ok := transitions[event]
	if !ok {
		return s, fmt.Errorf("event %q not allowed from status %q", event, s)
	}

	return target, nil
}

// ValidEvents returns all valid events that can be triggered from this status.
func (s TaskStatus) ValidEvents() []string {
	transitions, ok := validTransitions[s]
	if !ok {
		return nil
	}

	var events []string
	for event := range transitions {
		events = append(events, event)
	}
	return events
}

// IsTerminal returns true if this is a final status. Completed and failed
// tasks are never re-selected.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
