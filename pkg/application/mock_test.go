package application_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sovereignlab/sovereign/pkg/domain/backlog"
	"github.com/sovereignlab/sovereign/pkg/domain/release"
	"github.com/sovereignlab/sovereign/pkg/domain/synth"
	"github.com/sovereignlab/sovereign/pkg/smoke"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockTaskRepo is an in-memory backlog.Repository.
type MockTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]*backlog.Task

	UpdateStatusErr error
}

func NewMockTaskRepo(tasks ...*backlog.Task) *MockTaskRepo {
	repo := &MockTaskRepo{tasks: make(map[string]*backlog.Task)}
	for _, t := range tasks {
		copied := *t
		if copied.CreatedAt.IsZero() {
			copied.CreatedAt = time.Now()
		}
		repo.tasks[t.ID] = &copied
	}
	return repo
}

func (r *MockTaskRepo) Create(ctx context.Context, t *backlog.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *t
	r.tasks[t.ID] = &copied
	return nil
}

func (r *MockTaskRepo) Get(ctx context.Context, id string) (*backlog.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, backlog.ErrTaskNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *MockTaskRepo) ListByStatus(ctx context.Context, status backlog.TaskStatus) ([]*backlog.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*backlog.Task
	for _, t := range r.tasks {
		if t.Status == status {
			copied := *t
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MockTaskRepo) UpdateStatus(ctx context.Context, id string, status backlog.TaskStatus) error {
	if r.UpdateStatusErr != nil {
		return r.UpdateStatusErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return backlog.ErrTaskNotFound
	}
	t.Status = status
	if status.IsTerminal() {
		now := time.Now()
		t.CompletedAt = &now
	}
	return nil
}

func (r *MockTaskRepo) Status(id string) backlog.TaskStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tasks[id].Status
}

// MockLedgerRepo is an in-memory release.LedgerRepository.
type MockLedgerRepo struct {
	mu      sync.Mutex
	entries map[string]*release.Entry
	order   []string

	BeginErr    error
	CompleteErr error
}

func NewMockLedgerRepo() *MockLedgerRepo {
	return &MockLedgerRepo{entries: make(map[string]*release.Entry)}
}

func (r *MockLedgerRepo) Begin(ctx context.Context, e *release.Entry) error {
	if r.BeginErr != nil {
		return r.BeginErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *e
	copied.Status = release.StatusStarted
	r.entries[e.RunID] = &copied
	r.order = append(r.order, e.RunID)
	return nil
}

func (r *MockLedgerRepo) Complete(ctx context.Context, runID string, status release.RunStatus, commitID, note string) error {
	if r.CompleteErr != nil {
		return r.CompleteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[runID]
	if !ok {
		return release.ErrRunNotFound
	}
	if e.Status != release.StatusStarted {
		return release.ErrRunClosed
	}
	e.Status = status
	e.CommitID = commitID
	e.Note = note
	now := time.Now()
	e.CompletedAt = &now
	return nil
}

func (r *MockLedgerRepo) GetRun(ctx context.Context, runID string) (*release.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[runID]
	if !ok {
		return nil, release.ErrRunNotFound
	}
	copied := *e
	return &copied, nil
}

func (r *MockLedgerRepo) ListRuns(ctx context.Context, limit int) ([]*release.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*release.Entry
	for i := len(r.order) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		copied := *r.entries[r.order[i]]
		out = append(out, &copied)
	}
	return out, nil
}

func (r *MockLedgerRepo) Only() *release.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.order) != 1 {
		return nil
	}
	copied := *r.entries[r.order[0]]
	return &copied
}

func (r *MockLedgerRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// MockProvider returns a canned response.
type MockProvider struct {
	Response string
	Err      error
	Requests []synth.CompletionRequest
}

func (p *MockProvider) ID() string { return "mock" }

func (p *MockProvider) Complete(ctx context.Context, req synth.CompletionRequest) (*synth.CompletionResponse, error) {
	p.Requests = append(p.Requests, req)
	if p.Err != nil {
		return nil, p.Err
	}
	return &synth.CompletionResponse{
		Text:  p.Response,
		Usage: synth.TokenUsage{InputTokens: 100, OutputTokens: 200},
		Model: "mock",
	}, nil
}

// MockGit records version-control calls.
type MockGit struct {
	CommitErr  error
	PushErr    error
	RestoreErr error
	OnRestore  func(revision string, paths []string) error

	Commits    [][]string
	Pushes     []string
	RestoredAt []string
	head       int
}

func (g *MockGit) Commit(ctx context.Context, paths []string, message string) (string, error) {
	if g.CommitErr != nil {
		return "", g.CommitErr
	}
	g.Commits = append(g.Commits, paths)
	g.head++
	return fmt.Sprintf("commit-%d", g.head), nil
}

func (g *MockGit) Push(ctx context.Context, branch string) error {
	if g.PushErr != nil {
		return g.PushErr
	}
	g.Pushes = append(g.Pushes, branch)
	return nil
}

func (g *MockGit) RestoreAt(ctx context.Context, revision string, paths []string) error {
	if g.RestoreErr != nil {
		return g.RestoreErr
	}
	g.RestoredAt = append(g.RestoredAt, revision)
	if g.OnRestore != nil {
		return g.OnRestore(revision, paths)
	}
	return nil
}

func (g *MockGit) ShowAt(ctx context.Context, revision, path string) ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}

func (g *MockGit) Head(ctx context.Context) (string, error) {
	return fmt.Sprintf("commit-%d", g.head), nil
}

// MockSmoke returns a fixed verdict.
type MockSmoke struct {
	Passed      bool
	Diagnostics string
	Err         error
	Refs        []string
}

func (g *MockSmoke) Run(ctx context.Context, snapshotRef string) (*smoke.Result, error) {
	g.Refs = append(g.Refs, snapshotRef)
	if g.Err != nil {
		return nil, g.Err
	}
	return &smoke.Result{Passed: g.Passed, Diagnostics: g.Diagnostics}, nil
}
