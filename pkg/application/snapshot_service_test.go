package application_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sovereignlab/sovereign/pkg/application"
	"github.com/sovereignlab/sovereign/pkg/domain"
	"github.com/sovereignlab/sovereign/pkg/domain/artifact"
	"github.com/sovereignlab/sovereign/pkg/storage"
)

func newSnapshotFixture(t *testing.T) (*application.SnapshotService, string) {
	t.Helper()
	root := t.TempDir()
	fsRepo := storage.NewFilesystemRepository(root)
	if err := fsRepo.Initialize(); err != nil {
		t.Fatalf("initialize workspace: %v", err)
	}
	return application.NewSnapshotService(fsRepo, root), root
}

func TestCaptureAndRestoreRoundTrip(t *testing.T) {
	svc, root := newSnapshotFixture(t)
	path := filepath.Join(root, "main.py")
	original := []byte("print('original')\n")
	if err := os.WriteFile(path, original, 0755); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	snap, err := svc.Capture(context.Background(), "main.py")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if snap.Checksum != artifact.ChecksumOf(original) {
		t.Error("checksum mismatch")
	}
	if snap.StoredAt == "" {
		t.Error("snapshot must record its durable location")
	}

	if err := os.WriteFile(path, []byte("print('mutated')\n"), 0755); err != nil {
		t.Fatalf("mutate artifact: %v", err)
	}
	if err := svc.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	restored, _ := os.ReadFile(path)
	if string(restored) != string(original) {
		t.Errorf("restored bytes = %q, want %q", restored, original)
	}
	if fi, err := os.Stat(path); err == nil && fi.Mode().Perm() != 0755 {
		t.Errorf("restore changed the file mode to %v", fi.Mode().Perm())
	}
}

func TestCaptureMissingArtifactFailsClosed(t *testing.T) {
	svc, _ := newSnapshotFixture(t)

	_, err := svc.Capture(context.Background(), "does-not-exist.py")
	if !errors.Is(err, domain.ErrSnapshotFailure) {
		t.Fatalf("expected ErrSnapshotFailure, got %v", err)
	}

	var serr *domain.SnapshotError
	if !errors.As(err, &serr) || serr.ArtifactPath != "does-not-exist.py" {
		t.Errorf("error = %v", err)
	}
}
