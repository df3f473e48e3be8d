// Package storage provides the persistence backends: a SQLite store for
// backlog tasks and the primary release ledger, and a filesystem repository
// for snapshots and the append-only fallback sink.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sovereignlab/sovereign/pkg/domain/backlog"
	"github.com/sovereignlab/sovereign/pkg/domain/release"
)

const schema = `
CREATE TABLE IF NOT EXISTS backlog_tasks (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	requirement   TEXT NOT NULL,
	artifact_path TEXT NOT NULL,
	status        TEXT NOT NULL,
	priority      INTEGER NOT NULL DEFAULT 100,
	created_at    TIMESTAMP NOT NULL,
	completed_at  TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_backlog_status ON backlog_tasks(status, priority, created_at, id);

CREATE TABLE IF NOT EXISTS release_ledger (
	run_id       TEXT PRIMARY KEY,
	status       TEXT NOT NULL,
	branch       TEXT NOT NULL,
	commit_id    TEXT,
	backlog_id   TEXT,
	release_type TEXT NOT NULL,
	started_at   TIMESTAMP NOT NULL,
	completed_at TIMESTAMP,
	note         TEXT
);
`

// SQLiteStore is the primary store for backlog tasks and the release ledger.
// SQLite works best with a single writer, which also matches the pipeline's
// one-run-at-a-time execution model.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ backlog.Repository       = (*SQLiteStore)(nil)
	_ release.LedgerRepository = (*SQLiteStore)(nil)
)

// OpenSQLite opens (and migrates) the store at the given path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- backlog.Repository ---

func (s *SQLiteStore) Create(ctx context.Context, t *backlog.Task) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = backlog.StatusPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO backlog_tasks (id, title, requirement, artifact_path, status, priority, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Requirement, t.ArtifactPath, string(t.Status), t.Priority, t.CreatedAt, t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*backlog.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, requirement, artifact_path, status, priority, created_at, completed_at
		FROM backlog_tasks WHERE id = ?`, id)
	return scanTask(row)
}

// ListByStatus returns tasks in deterministic selection order: priority
// ascending, then creation time ascending, then id ascending.
func (s *SQLiteStore) ListByStatus(ctx context.Context, status backlog.TaskStatus) ([]*backlog.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, requirement, artifact_path, status, priority, created_at, completed_at
		FROM backlog_tasks WHERE status = ?
		ORDER BY priority ASC, created_at ASC, id ASC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*backlog.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, status backlog.TaskStatus) error {
	var completedAt interface{}
	if status.IsTerminal() {
		completedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE backlog_tasks SET status = ?, completed_at = ? WHERE id = ?`,
		string(status), completedAt, id,
	)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	if n == 0 {
		return backlog.ErrTaskNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*backlog.Task, error) {
	t := &backlog.Task{}
	var status string
	var completedAt sql.NullTime
	err := row.Scan(&t.ID, &t.Title, &t.Requirement, &t.ArtifactPath, &status, &t.Priority, &t.CreatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, backlog.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	t.Status = backlog.TaskStatus(status)
	if completedAt.Valid {
		ts := completedAt.Time
		t.CompletedAt = &ts
	}
	return t, nil
}

// --- release.LedgerRepository ---

func (s *SQLiteStore) Begin(ctx context.Context, e *release.Entry) error {
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now().UTC()
	}
	e.Status = release.StatusStarted

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO release_ledger (run_id, status, branch, commit_id, backlog_id, release_type, started_at, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, string(e.Status), e.Branch, nullable(e.CommitID), nullable(e.BacklogID), string(e.ReleaseType), e.StartedAt, nullable(e.Note),
	)
	if err != nil {
		return fmt.Errorf("begin ledger entry: %w", err)
	}
	return nil
}

// Complete applies the single permitted terminal update. It only matches the
// started row, so a second completion attempt reports the run as closed
// instead of overwriting history.
func (s *SQLiteStore) Complete(ctx context.Context, runID string, status release.RunStatus, commitID, note string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("status %q is not terminal", status)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE release_ledger
		SET status = ?, commit_id = ?, completed_at = ?, note = ?
		WHERE run_id = ? AND status = ?`,
		string(status), nullable(commitID), time.Now().UTC(), nullable(note), runID, string(release.StatusStarted),
	)
	if err != nil {
		return fmt.Errorf("complete ledger entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete ledger entry: %w", err)
	}
	if n == 0 {
		if _, gerr := s.GetRun(ctx, runID); gerr != nil {
			return release.ErrRunNotFound
		}
		return release.ErrRunClosed
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*release.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, status, branch, commit_id, backlog_id, release_type, started_at, completed_at, note
		FROM release_ledger WHERE run_id = ?`, runID)
	return scanEntry(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*release.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, status, branch, commit_id, backlog_id, release_type, started_at, completed_at, note
		FROM release_ledger ORDER BY started_at DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*release.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(row rowScanner) (*release.Entry, error) {
	e := &release.Entry{}
	var status, releaseType string
	var commitID, backlogID, note sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(&e.RunID, &status, &e.Branch, &commitID, &backlogID, &releaseType, &e.StartedAt, &completedAt, &note)
	if err == sql.ErrNoRows {
		return nil, release.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}
	e.Status = release.RunStatus(status)
	e.ReleaseType = release.ReleaseType(releaseType)
	e.CommitID = commitID.String
	e.BacklogID = backlogID.String
	e.Note = note.String
	if completedAt.Valid {
		ts := completedAt.Time
		e.CompletedAt = &ts
	}
	return e, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
