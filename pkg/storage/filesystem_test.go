package storage_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/sovereignlab/sovereign/pkg/domain"
	"github.com/sovereignlab/sovereign/pkg/domain/artifact"
	"github.com/sovereignlab/sovereign/pkg/domain/release"
	"github.com/sovereignlab/sovereign/pkg/storage"
)

func newRepo(t *testing.T) *storage.FilesystemRepository {
	t.Helper()
	repo := storage.NewFilesystemRepository(t.TempDir())
	if err := repo.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return repo
}

func TestResolvePathRejectsTraversal(t *testing.T) {
	repo := newRepo(t)

	if _, err := repo.ResolvePath("../outside.txt"); err == nil {
		t.Error("traversal outside the workspace directory must be rejected")
	}
	if _, err := repo.ResolvePath(""); err == nil {
		t.Error("empty filename must be rejected")
	}
	if _, err := repo.ResolvePath(storage.SnapshotsDir, "abc.snap"); err != nil {
		t.Errorf("nested snapshot path should resolve: %v", err)
	}
}

func TestSnapshotSaveLoadRoundTrip(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	captured := time.Now().UTC()
	content := []byte("def main():\n    pass\n")
	snap := &artifact.Snapshot{
		ArtifactPath: "app/main.py",
		Content:      content,
		Checksum:     artifact.ChecksumOf(content),
		CapturedAt:   captured,
	}
	if err := repo.Save(ctx, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if snap.StoredAt == "" {
		t.Fatal("Save must record the durable location")
	}

	key := captured.Format("20060102T150405.000000000Z")
	loaded, err := repo.Load(ctx, "app/main.py", key)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(loaded.Content) != string(content) || loaded.Checksum != snap.Checksum {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestSnapshotLoadDetectsCorruption(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	captured := time.Now().UTC()
	content := []byte("original bytes")
	snap := &artifact.Snapshot{
		ArtifactPath: "app/main.py",
		Content:      content,
		Checksum:     artifact.ChecksumOf(content),
		CapturedAt:   captured,
	}
	if err := repo.Save(ctx, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := os.WriteFile(snap.StoredAt, []byte("tampered"), 0600); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	key := captured.Format("20060102T150405.000000000Z")
	if _, err := repo.Load(ctx, "app/main.py", key); err == nil {
		t.Error("a snapshot whose bytes no longer match its checksum must not load")
	}
}

func TestSaveWithoutWorkspaceIsSnapshotError(t *testing.T) {
	// Uninitialized repo: the snapshots directory does not exist.
	repo := storage.NewFilesystemRepository(t.TempDir())

	content := []byte("x")
	err := repo.Save(context.Background(), &artifact.Snapshot{
		ArtifactPath: "a.py",
		Content:      content,
		Checksum:     artifact.ChecksumOf(content),
		CapturedAt:   time.Now().UTC(),
	})
	if !errors.Is(err, domain.ErrSnapshotFailure) {
		t.Fatalf("expected ErrSnapshotFailure, got %v", err)
	}
}

func TestEventSinkAppendAndLoad(t *testing.T) {
	repo := newRepo(t)

	first := release.Event{ID: "e1", Timestamp: time.Now().UTC(), Action: "run.idle"}
	first.Hash = first.CalculateHash()
	second := release.Event{ID: "e2", Timestamp: time.Now().UTC(), Action: "ledger.begin", RunID: "r1", PrevHash: first.Hash}
	second.Hash = second.CalculateHash()

	for _, e := range []release.Event{first, second} {
		if err := repo.RecordEvent(e); err != nil {
			t.Fatalf("RecordEvent(%s): %v", e.ID, err)
		}
	}

	events, err := repo.LoadEvents()
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if len(events) != 2 || events[0].ID != "e1" || events[1].ID != "e2" {
		t.Errorf("events = %+v", events)
	}
	if events[1].PrevHash != events[0].Hash {
		t.Error("chain linkage lost on the round trip")
	}
}

func TestLoadEventsSkipsMalformedLines(t *testing.T) {
	repo := newRepo(t)

	event := release.Event{ID: "e1", Timestamp: time.Now().UTC(), Action: "run.idle"}
	if err := repo.RecordEvent(event); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	path, _ := repo.ResolvePath(storage.EventsFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatalf("open events file: %v", err)
	}
	if _, err := f.WriteString("{not json\n"); err != nil {
		t.Fatalf("append garbage: %v", err)
	}
	f.Close()

	events, err := repo.LoadEvents()
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if len(events) != 1 || events[0].ID != "e1" {
		t.Errorf("events = %+v", events)
	}
}

func TestLoadEventsMissingFileIsEmpty(t *testing.T) {
	repo := newRepo(t)
	events, err := repo.LoadEvents()
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
}
