package release

import (
	"context"
	"errors"
)

var (
	// ErrRunNotFound indicates no started entry exists for the run id.
	ErrRunNotFound = errors.New("run not found in ledger")

	// ErrRunClosed indicates the run already has its terminal update.
	ErrRunClosed = errors.New("run already closed")
)

// LedgerRepository persists release entries. Begin inserts the started
// record; Complete applies the single permitted terminal update.
type LedgerRepository interface {
	Begin(ctx context.Context, entry *Entry) error
	Complete(ctx context.Context, runID string, status RunStatus, commitID, note string) error
	GetRun(ctx context.Context, runID string) (*Entry, error)
	ListRuns(ctx context.Context, limit int) ([]*Entry, error)
}

// EventSink is the append-only fallback for ledger writes and for
// informational markers. Sink failures are logged, never propagated into a
// run's outcome.
type EventSink interface {
	RecordEvent(event Event) error
	LoadEvents() ([]Event, error)
}
