package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/sovereignlab/sovereign/pkg/domain"
	"github.com/sovereignlab/sovereign/pkg/domain/artifact"
	"github.com/sovereignlab/sovereign/pkg/domain/release"
)

const SovereignDir = ".sovereign"
const ConfigFile = "config.yaml"
const LedgerDBFile = "ledger.db"
const EventsFile = "events.jsonl"
const ManifestFile = "rollback.yaml"
const SnapshotsDir = "snapshots"
const LocksDir = "locks"

// snapshotTimeLayout keys snapshot files; colons are not filesystem-safe.
const snapshotTimeLayout = "20060102T150405.000000000Z"

// FilesystemRepository persists snapshots and the append-only fallback sink
// under <root>/.sovereign/.
type FilesystemRepository struct {
	root        string
	retryConfig retry.Config
}

var (
	_ artifact.SnapshotStore = (*FilesystemRepository)(nil)
	_ release.EventSink      = (*FilesystemRepository)(nil)
)

func NewFilesystemRepository(root string) *FilesystemRepository {
	return &FilesystemRepository{
		root: root,
		retryConfig: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  10 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		},
	}
}

// Root returns the workspace root directory.
func (r *FilesystemRepository) Root() string {
	return r.root
}

// BaseDir returns the .sovereign directory path.
func (r *FilesystemRepository) BaseDir() string {
	return filepath.Join(r.root, SovereignDir)
}

// ResolvePath ensures the path is within the .sovereign directory and
// prevents traversal. Sub-directories (snapshots/, locks/) are allowed one
// level deep.
func (r *FilesystemRepository) ResolvePath(elem ...string) (string, error) {
	if len(elem) == 0 || elem[0] == "" {
		return "", fmt.Errorf("filename cannot be empty")
	}

	baseDir := r.BaseDir()
	fullPath := filepath.Join(append([]string{baseDir}, elem...)...)
	cleanPath := filepath.Clean(fullPath)

	if !strings.HasPrefix(cleanPath, baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid file path: %s", filepath.Join(elem...))
	}

	return cleanPath, nil
}

func (r *FilesystemRepository) Initialize() error {
	for _, dir := range []string{"", SnapshotsDir, LocksDir} {
		path := filepath.Join(r.BaseDir(), dir)
		if err := os.MkdirAll(path, 0700); err != nil {
			return fmt.Errorf("create %s directory: %w", path, err)
		}
	}
	return nil
}

func (r *FilesystemRepository) IsInitialized() bool {
	_, err := os.Stat(r.BaseDir())
	return err == nil
}

// LockDir returns the directory holding per-artifact run locks.
func (r *FilesystemRepository) LockDir() string {
	return filepath.Join(r.BaseDir(), LocksDir)
}

// LedgerDBPath returns the SQLite primary store path.
func (r *FilesystemRepository) LedgerDBPath() string {
	return filepath.Join(r.BaseDir(), LedgerDBFile)
}

// --- artifact.SnapshotStore ---

type snapshotMeta struct {
	ArtifactPath string    `json:"artifact_path"`
	Checksum     string    `json:"checksum"`
	CapturedAt   time.Time `json:"captured_at"`
}

func snapshotKey(artifactPath string, capturedAt time.Time) string {
	sum := sha256.Sum256([]byte(artifactPath))
	return hex.EncodeToString(sum[:8]) + "-" + capturedAt.UTC().Format(snapshotTimeLayout)
}

// Save durably persists the snapshot and confirms it by reading the copy
// back and comparing checksums. An unconfirmed write is a SnapshotError:
// the run must abort before mutating anything.
func (r *FilesystemRepository) Save(ctx context.Context, s *artifact.Snapshot) error {
	key := snapshotKey(s.ArtifactPath, s.CapturedAt)

	contentPath, err := r.ResolvePath(SnapshotsDir, key+".snap")
	if err != nil {
		return &domain.SnapshotError{ArtifactPath: s.ArtifactPath, Cause: err}
	}
	metaPath, err := r.ResolvePath(SnapshotsDir, key+".json")
	if err != nil {
		return &domain.SnapshotError{ArtifactPath: s.ArtifactPath, Cause: err}
	}

	if err := os.WriteFile(contentPath, s.Content, 0600); err != nil {
		return &domain.SnapshotError{ArtifactPath: s.ArtifactPath, Cause: err}
	}

	meta := snapshotMeta{
		ArtifactPath: s.ArtifactPath,
		Checksum:     s.Checksum,
		CapturedAt:   s.CapturedAt,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return &domain.SnapshotError{ArtifactPath: s.ArtifactPath, Cause: err}
	}
	if err := os.WriteFile(metaPath, data, 0600); err != nil {
		return &domain.SnapshotError{ArtifactPath: s.ArtifactPath, Cause: err}
	}

	// Read-back confirmation. Nothing has been mutated yet, so a failure
	// here aborts the run with no restore needed.
	written, err := os.ReadFile(contentPath)
	if err != nil {
		return &domain.SnapshotError{ArtifactPath: s.ArtifactPath, Cause: err}
	}
	if artifact.ChecksumOf(written) != s.Checksum || !bytes.Equal(written, s.Content) {
		return &domain.SnapshotError{
			ArtifactPath: s.ArtifactPath,
			Cause:        fmt.Errorf("read-back verification mismatch"),
		}
	}

	s.StoredAt = contentPath
	return nil
}

func (r *FilesystemRepository) Load(ctx context.Context, artifactPath string, capturedAt string) (*artifact.Snapshot, error) {
	ts, err := time.Parse(snapshotTimeLayout, capturedAt)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot timestamp: %w", err)
	}
	key := snapshotKey(artifactPath, ts)

	contentPath, err := r.ResolvePath(SnapshotsDir, key+".snap")
	if err != nil {
		return nil, err
	}
	metaPath, err := r.ResolvePath(SnapshotsDir, key+".json")
	if err != nil {
		return nil, err
	}

	retryer := retry.New[*artifact.Snapshot](r.retryConfig)
	return retryer.Do(ctx, func(ctx context.Context) (*artifact.Snapshot, error) {
		// #nosec G304 -- Path is resolved and validated via ResolvePath
		content, err := os.ReadFile(contentPath)
		if err != nil {
			return nil, fmt.Errorf("read snapshot content: %w", err)
		}
		// #nosec G304 -- Path is resolved and validated via ResolvePath
		metaData, err := os.ReadFile(metaPath)
		if err != nil {
			return nil, fmt.Errorf("read snapshot metadata: %w", err)
		}

		var meta snapshotMeta
		if err := json.Unmarshal(metaData, &meta); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot metadata: %w", err)
		}
		if artifact.ChecksumOf(content) != meta.Checksum {
			return nil, fmt.Errorf("snapshot %s is corrupt", key)
		}

		return &artifact.Snapshot{
			ArtifactPath: meta.ArtifactPath,
			Content:      content,
			Checksum:     meta.Checksum,
			CapturedAt:   meta.CapturedAt,
			StoredAt:     contentPath,
		}, nil
	})
}

// --- release.EventSink ---

func (r *FilesystemRepository) RecordEvent(event release.Event) error {
	path, err := r.ResolvePath(EventsFile)
	if err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	data = append(data, '\n')

	// #nosec G304 -- Path is resolved and validated via ResolvePath
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open events file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

func (r *FilesystemRepository) LoadEvents() ([]release.Event, error) {
	path, err := r.ResolvePath(EventsFile)
	if err != nil {
		return nil, err
	}

	// #nosec G304 -- Path is resolved and validated via ResolvePath
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []release.Event{}, nil
		}
		return nil, fmt.Errorf("failed to read events file: %w", err)
	}

	var events []release.Event
	lines := bytes.Split(data, []byte("\n"))
	for _, line := range lines {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var e release.Event
		if err := json.Unmarshal(line, &e); err != nil {
			continue // Skip malformed lines
		}
		events = append(events, e)
	}

	return events, nil
}
