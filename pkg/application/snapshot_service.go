package application

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sovereignlab/sovereign/pkg/domain"
	"github.com/sovereignlab/sovereign/pkg/domain/artifact"
)

// SnapshotService captures durable pre-mutation copies of artifacts. It
// fails closed: a capture that cannot be confirmed aborts the run before
// any write happens.
type SnapshotService struct {
	store artifact.SnapshotStore
	root  string // workspace root artifact paths are relative to
}

func NewSnapshotService(store artifact.SnapshotStore, root string) *SnapshotService {
	return &SnapshotService{store: store, root: root}
}

// Capture reads the artifact's current bytes and persists a timestamped
// copy keyed by (path, timestamp).
func (s *SnapshotService) Capture(ctx context.Context, artifactPath string) (*artifact.Snapshot, error) {
	absPath := s.Abs(artifactPath)

	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, &domain.SnapshotError{ArtifactPath: artifactPath, Cause: err}
	}

	snapshot := &artifact.Snapshot{
		ArtifactPath: artifactPath,
		Content:      content,
		Checksum:     artifact.ChecksumOf(content),
		CapturedAt:   time.Now().UTC(),
	}

	if err := s.store.Save(ctx, snapshot); err != nil {
		return nil, err
	}

	return snapshot, nil
}

// Restore writes the snapshot content back over the artifact and verifies
// the restored bytes exactly match the captured ones.
func (s *SnapshotService) Restore(snapshot *artifact.Snapshot) error {
	absPath := s.Abs(snapshot.ArtifactPath)

	mode := os.FileMode(0644)
	if fi, err := os.Stat(absPath); err == nil {
		mode = fi.Mode().Perm()
	}

	if err := os.WriteFile(absPath, snapshot.Content, mode); err != nil {
		return fmt.Errorf("restore %s: %w", snapshot.ArtifactPath, err)
	}

	restored, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("verify restore of %s: %w", snapshot.ArtifactPath, err)
	}
	if !snapshot.Matches(restored) {
		return fmt.Errorf("restore of %s did not reproduce the snapshot bytes", snapshot.ArtifactPath)
	}

	return nil
}

// Abs resolves an artifact path against the workspace root.
func (s *SnapshotService) Abs(artifactPath string) string {
	if filepath.IsAbs(artifactPath) {
		return artifactPath
	}
	return filepath.Join(s.root, artifactPath)
}
