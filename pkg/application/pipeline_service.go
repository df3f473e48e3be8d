package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/sovereignlab/sovereign/pkg/domain"
	"github.com/sovereignlab/sovereign/pkg/domain/artifact"
	"github.com/sovereignlab/sovereign/pkg/domain/backlog"
	"github.com/sovereignlab/sovereign/pkg/domain/release"
	"github.com/sovereignlab/sovereign/pkg/gate"
	"github.com/sovereignlab/sovereign/pkg/lock"
	"github.com/sovereignlab/sovereign/pkg/smoke"
	"github.com/sovereignlab/sovereign/pkg/vcs"
)

// forwardSmokeRef is the snapshot ref handed to the smoke gate on forward
// runs, where the candidate under test is the working tree itself.
const forwardSmokeRef = "worktree"

// RunResult summarizes one pipeline run for the caller.
type RunResult struct {
	RunID    string
	TaskID   string
	Status   release.RunStatus
	CommitID string
	Note     string
}

// PipelineService drives one forward release: select a task, snapshot the
// artifact, synthesize a candidate, validate it, and commit-and-push or
// restore. Every run that selects a task produces exactly one ledger entry
// with exactly one terminal update, and the artifact lock is released on
// every exit path.
type PipelineService struct {
	selector  *SelectorService
	snapshots *SnapshotService
	synthesis *SynthesisService
	ledger    *LedgerService
	git       vcs.Client
	smokeGate smoke.Gate // nil when no gate command is configured
	locks     *lock.Manager
	rulesFor  func(artifactPath string) gate.Rules
	branch    string
	logger    *slog.Logger
}

func NewPipelineService(
	selector *SelectorService,
	snapshots *SnapshotService,
	synthesis *SynthesisService,
	ledger *LedgerService,
	git vcs.Client,
	smokeGate smoke.Gate,
	locks *lock.Manager,
	rulesFor func(artifactPath string) gate.Rules,
	branch string,
	logger *slog.Logger,
) *PipelineService {
	return &PipelineService{
		selector:  selector,
		snapshots: snapshots,
		synthesis: synthesis,
		ledger:    ledger,
		git:       git,
		smokeGate: smokeGate,
		locks:     locks,
		rulesFor:  rulesFor,
		branch:    branch,
		logger:    logger,
	}
}

// Run executes one forward release cycle. An empty backlog is an idle tick:
// no run is opened and no ledger entry is written. With a non-empty
// overrideID only that task may be selected.
func (s *PipelineService) Run(ctx context.Context, overrideID string) (*RunResult, error) {
	task, err := s.selector.SelectNext(ctx, overrideID)
	if err != nil {
		if overrideID == "" && errors.Is(err, domain.ErrNoTask) {
			s.logger.Info("backlog empty, idling")
			s.ledger.RecordIdle("no confirmed task in backlog")
			return nil, nil
		}
		return nil, err
	}

	s.logger.Info("task selected",
		"task_id", task.ID, "artifact", task.ArtifactPath, "priority", task.Priority)

	held, err := s.locks.Acquire(task.ArtifactPath, task.ID)
	if err != nil {
		// The task stays developing; the holder's run owns the artifact.
		return nil, err
	}
	defer func() {
		if rerr := held.Release(); rerr != nil {
			s.logger.Error("lock release failed", "artifact", task.ArtifactPath, "error", rerr)
		}
	}()

	runID := s.ledger.Begin(ctx, s.branch, task.ID, release.TypeFeature)
	s.logger.Info("run started", "run_id", runID, "task_id", task.ID)

	return s.execute(ctx, runID, task)
}

func (s *PipelineService) execute(ctx context.Context, runID string, task *backlog.Task) (*RunResult, error) {
	// Snapshot before any mutation. Without a confirmed snapshot there is
	// nothing to restore from, so the run aborts here with the artifact
	// untouched and the task still developing for re-dispatch.
	snapshot, err := s.snapshots.Capture(ctx, task.ArtifactPath)
	if err != nil {
		note := fmt.Sprintf("snapshot capture failed: %v", err)
		s.ledger.Complete(ctx, runID, release.StatusFailure, "", note)
		s.logger.Error("snapshot capture failed, aborting before mutation",
			"run_id", runID, "artifact", task.ArtifactPath, "error", err)
		return s.result(runID, task, release.StatusFailure, "", note), err
	}

	candidate, usage, err := s.synthesis.Synthesize(ctx, task, snapshot.Content)
	if err != nil {
		return s.failBeforeWrite(ctx, runID, task, fmt.Sprintf("synthesis failed: %v", err), err)
	}
	if usage != nil {
		s.logger.Info("candidate synthesized",
			"run_id", runID, "input_tokens", usage.InputTokens, "output_tokens", usage.OutputTokens)
	}

	validator := gate.NewValidator(s.rulesFor(task.ArtifactPath))
	if err := validator.Validate(ctx, task.ArtifactPath, candidate, snapshot.Content); err != nil {
		var verr *domain.ValidationError
		note := fmt.Sprintf("validation rejected: %v", err)
		if errors.As(err, &verr) {
			s.logger.Warn("candidate rejected",
				"run_id", runID, "artifact", task.ArtifactPath, "reasons", verr.Reasons())
		}
		return s.failBeforeWrite(ctx, runID, task, note, err)
	}

	if err := s.writeArtifact(task.ArtifactPath, candidate); err != nil {
		return s.failAfterWrite(ctx, runID, task, snapshot, fmt.Sprintf("artifact write failed: %v", err), err)
	}

	if s.smokeGate != nil {
		result, err := s.smokeGate.Run(ctx, forwardSmokeRef)
		if err != nil {
			return s.failAfterWrite(ctx, runID, task, snapshot, fmt.Sprintf("smoke gate error: %v", err), err)
		}
		if !result.Passed {
			gerr := &domain.GateError{Diagnostics: result.Diagnostics}
			return s.failAfterWrite(ctx, runID, task, snapshot, fmt.Sprintf("smoke gate failed: %s", result.Diagnostics), gerr)
		}
	}

	message := fmt.Sprintf("release: %s (task %s)", task.Title, task.ID)
	commitID, err := s.git.Commit(ctx, []string{task.ArtifactPath}, message)
	if err != nil {
		return s.failAfterWrite(ctx, runID, task, snapshot, fmt.Sprintf("commit failed: %v", err), err)
	}

	if err := s.git.Push(ctx, s.branch); err != nil {
		perr := &domain.PushError{Branch: s.branch, Cause: err}
		// The mutation is not published; undo the local change so the
		// deployed artifact matches what was last pushed.
		return s.failAfterWrite(ctx, runID, task, snapshot, fmt.Sprintf("push to %s failed: %v", s.branch, err), perr)
	}

	s.ledger.Complete(ctx, runID, release.StatusSuccess, commitID, "")
	if err := s.selector.Finalize(ctx, task, "complete"); err != nil {
		s.logger.Error("task finalize failed after successful release",
			"run_id", runID, "task_id", task.ID, "error", err)
	}

	s.logger.Info("release published",
		"run_id", runID, "task_id", task.ID, "commit", commitID, "branch", s.branch)
	return s.result(runID, task, release.StatusSuccess, commitID, ""), nil
}

// failBeforeWrite closes a run whose artifact was never mutated.
func (s *PipelineService) failBeforeWrite(ctx context.Context, runID string, task *backlog.Task, note string, cause error) (*RunResult, error) {
	s.ledger.Complete(ctx, runID, release.StatusFailure, "", note)
	s.finalizeFailed(ctx, runID, task)
	return s.result(runID, task, release.StatusFailure, "", note), cause
}

// failAfterWrite restores the snapshot bytes before closing the run. The
// restore is verified byte-exact; a restore failure is appended to the note
// so the ledger shows the artifact may be in a dirty state.
func (s *PipelineService) failAfterWrite(ctx context.Context, runID string, task *backlog.Task, snapshot *artifact.Snapshot, note string, cause error) (*RunResult, error) {
	if rerr := s.snapshots.Restore(snapshot); rerr != nil {
		note = fmt.Sprintf("%s; RESTORE FAILED: %v", note, rerr)
		s.logger.Error("snapshot restore failed, artifact may be dirty",
			"run_id", runID, "artifact", task.ArtifactPath, "error", rerr)
	} else {
		s.logger.Info("artifact restored from snapshot",
			"run_id", runID, "artifact", task.ArtifactPath, "checksum", snapshot.Checksum)
	}

	s.ledger.Complete(ctx, runID, release.StatusFailure, "", note)
	s.finalizeFailed(ctx, runID, task)
	return s.result(runID, task, release.StatusFailure, "", note), cause
}

func (s *PipelineService) finalizeFailed(ctx context.Context, runID string, task *backlog.Task) {
	if err := s.selector.Finalize(ctx, task, "fail"); err != nil {
		s.logger.Error("task finalize failed", "run_id", runID, "task_id", task.ID, "error", err)
	}
}

func (s *PipelineService) writeArtifact(artifactPath string, content []byte) error {
	absPath := s.snapshots.Abs(artifactPath)

	mode := os.FileMode(0644)
	if fi, err := os.Stat(absPath); err == nil {
		mode = fi.Mode().Perm()
	}
	return os.WriteFile(absPath, content, mode)
}

func (s *PipelineService) result(runID string, task *backlog.Task, status release.RunStatus, commitID, note string) *RunResult {
	return &RunResult{
		RunID:    runID,
		TaskID:   task.ID,
		Status:   status,
		CommitID: commitID,
		Note:     note,
	}
}
