package artifact

import "context"

// SnapshotStore durably persists pre-mutation copies. Save must not return
// until the copy is confirmed readable; a failed confirmation aborts the run
// before any mutation is attempted.
type SnapshotStore interface {
	Save(ctx context.Context, snapshot *Snapshot) error
	Load(ctx context.Context, artifactPath string, capturedAt string) (*Snapshot, error)
}
