package backlog

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// State constants for statekit integration.
// These must remain as untyped string constants for statekit.StateID
// compatibility. Values are kept in sync with TaskStatus constants.
const (
	StatePending    = "pending"
	StateConfirmed  = "confirmed"
	StateDeveloping = "developing"
	StateCompleted  = "completed"
	StateFailed     = "failed"
)

// init validates at startup that FSM state constants match TaskStatus values.
func init() {
	stateMap := map[string]TaskStatus{
		StatePending:    StatusPending,
		StateConfirmed:  StatusConfirmed,
		StateDeveloping: StatusDeveloping,
		StateCompleted:  StatusCompleted,
		StateFailed:     StatusFailed,
	}

	for fsmState, taskStatus := range stateMap {
		if fsmState != string(taskStatus) {
			panic(fmt.Sprintf("FSM state %q does not match TaskStatus %q - constants are out of sync", fsmState, taskStatus))
		}
	}
}

// TaskContext carries state data.
type TaskContext struct {
	TaskID string
	Guard  func(taskID string, event string) bool
}

// TaskStateMachine defines the valid lifecycle transitions for a backlog task.
type TaskStateMachine struct {
	interpreter *statekit.Interpreter[TaskContext]
	taskID      string
}

func NewTaskStateMachine(initialState string, taskID string, guard func(string, string) bool) (*TaskStateMachine, error) {
	if guard == nil {
		guard = func(string, string) bool { return true }
	}

	builder := statekit.NewMachine[TaskContext]("backlog-task").
		WithInitial(statekit.StateID(initialState)).
		WithContext(TaskContext{
			TaskID: taskID,
			Guard:  guard,
		}).
		WithGuard("selectionGuard", func(ctx TaskContext, e statekit.Event) bool {
			return ctx.Guard(ctx.TaskID, string(e.Type))
		})

	builder.State(StatePending).
		On("confirm").Target(StateConfirmed).
		Done()

	// The selector is the only caller allowed to fire "develop"; the guard
	// enforces the at-most-one-developing invariant.
	builder.State(StateConfirmed).
		On("develop").Target(StateDeveloping).Guard("selectionGuard").
		Done()

	builder.State(StateDeveloping).
		On("complete").Target(StateCompleted).
		On("fail").Target(StateFailed).
		Done()

	// Completed and failed are terminal: no outgoing events.
	builder.State(StateCompleted).Done()
	builder.State(StateFailed).Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build state machine: %w", err)
	}

	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()

	return &TaskStateMachine{interpreter: interpreter, taskID: taskID}, nil
}

// Transition attempts to move the task to a new state.
func (sm *TaskStateMachine) Transition(event string) error {
	before := sm.Current()
	sm.interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	after := sm.Current()

	if before != after {
		return nil
	}

	// If no transition matches or the guard fails, statekit leaves the state
	// unchanged, which we surface as a rejected event.
	return &TransitionError{TaskID: sm.taskID, FromStatus: before, Event: event}
}

func (sm *TaskStateMachine) Current() string {
	return string(sm.interpreter.State().Value)
}

// CurrentStatus returns the current state as a TaskStatus value object.
func (sm *TaskStateMachine) CurrentStatus() TaskStatus {
	return TaskStatus(sm.Current())
}

// CanTransition checks if the given event is valid for the current state.
func (sm *TaskStateMachine) CanTransition(event string) bool {
	return sm.CurrentStatus().CanTransitionWith(event)
}

// IsTerminal returns true if the current state is a final state.
func (sm *TaskStateMachine) IsTerminal() bool {
	return sm.CurrentStatus().IsTerminal()
}
