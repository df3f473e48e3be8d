package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sovereignlab/sovereign/pkg/domain"
	"github.com/sovereignlab/sovereign/pkg/domain/artifact"
	"github.com/sovereignlab/sovereign/pkg/domain/release"
	"github.com/sovereignlab/sovereign/pkg/lock"
	"github.com/sovereignlab/sovereign/pkg/smoke"
	"github.com/sovereignlab/sovereign/pkg/storage"
	"github.com/sovereignlab/sovereign/pkg/vcs"
)

// RollbackService restores the manifest's fixed artifact set to a historical
// revision and re-releases it, gated by the smoke check. Rollback bypasses
// the selector and the synthesizer entirely; it shares only the committer,
// the ledger, and the lock discipline with the forward path.
type RollbackService struct {
	manifests *storage.FilesystemRepository
	snapshots *SnapshotService
	ledger    *LedgerService
	git       vcs.Client
	smokeGate smoke.Gate
	locks     *lock.Manager
	branch    string
	logger    *slog.Logger
}

func NewRollbackService(
	manifests *storage.FilesystemRepository,
	snapshots *SnapshotService,
	ledger *LedgerService,
	git vcs.Client,
	smokeGate smoke.Gate,
	locks *lock.Manager,
	branch string,
	logger *slog.Logger,
) *RollbackService {
	return &RollbackService{
		manifests: manifests,
		snapshots: snapshots,
		ledger:    ledger,
		git:       git,
		smokeGate: smokeGate,
		locks:     locks,
		branch:    branch,
		logger:    logger,
	}
}

// Rollback restores every manifest artifact at targetRevision as one atomic
// unit. Only a passing smoke gate authorizes commit and push; a failing gate
// leaves the working state as it was before the rollback began.
func (s *RollbackService) Rollback(ctx context.Context, targetRevision string) (*RunResult, error) {
	if targetRevision == "" {
		return nil, fmt.Errorf("rollback requires a target revision")
	}
	if s.smokeGate == nil {
		return nil, fmt.Errorf("rollback requires a configured smoke gate")
	}

	manifest, err := s.manifests.LoadRollbackManifest()
	if err != nil {
		return nil, err
	}

	held := make([]*lock.Lock, 0, len(manifest.Artifacts))
	defer func() {
		for _, l := range held {
			if rerr := l.Release(); rerr != nil {
				s.logger.Error("lock release failed", "error", rerr)
			}
		}
	}()
	for _, path := range manifest.Artifacts {
		l, err := s.locks.Acquire(path, "rollback:"+targetRevision)
		if err != nil {
			return nil, err
		}
		held = append(held, l)
	}

	runID := s.ledger.Begin(ctx, s.branch, "", release.TypeRollback)
	s.logger.Info("rollback started",
		"run_id", runID, "revision", targetRevision, "artifacts", len(manifest.Artifacts))

	// Pre-rollback snapshots of every artifact, captured before any restore.
	// Without all of them confirmed there is no way back, so the run aborts
	// with the working tree untouched.
	preRollback := make([]*artifact.Snapshot, 0, len(manifest.Artifacts))
	for _, path := range manifest.Artifacts {
		snap, err := s.snapshots.Capture(ctx, path)
		if err != nil {
			note := fmt.Sprintf("pre-rollback snapshot of %s failed: %v", path, err)
			s.ledger.Complete(ctx, runID, release.StatusFailure, "", note)
			return s.failed(runID, note), err
		}
		preRollback = append(preRollback, snap)
	}

	if err := s.git.RestoreAt(ctx, targetRevision, manifest.Artifacts); err != nil {
		note := fmt.Sprintf("restore at %s failed: %v", targetRevision, err)
		return s.abort(ctx, runID, preRollback, note, err)
	}

	result, err := s.smokeGate.Run(ctx, targetRevision)
	if err != nil {
		note := fmt.Sprintf("smoke gate error: %v", err)
		return s.abort(ctx, runID, preRollback, note, err)
	}
	if !result.Passed {
		gerr := &domain.GateError{Diagnostics: result.Diagnostics}
		note := fmt.Sprintf("smoke gate failed: %s", result.Diagnostics)
		return s.abort(ctx, runID, preRollback, note, gerr)
	}

	message := fmt.Sprintf("rollback: restore %d artifact(s) to %s", len(manifest.Artifacts), targetRevision)
	commitID, err := s.git.Commit(ctx, manifest.Artifacts, message)
	if err != nil {
		note := fmt.Sprintf("rollback commit failed: %v", err)
		return s.abort(ctx, runID, preRollback, note, err)
	}

	if err := s.git.Push(ctx, s.branch); err != nil {
		perr := &domain.PushError{Branch: s.branch, Cause: err}
		note := fmt.Sprintf("rollback push to %s failed: %v", s.branch, err)
		return s.abort(ctx, runID, preRollback, note, perr)
	}

	s.ledger.Complete(ctx, runID, release.StatusRolledBack, commitID, "restored to "+targetRevision)
	s.logger.Info("rollback published",
		"run_id", runID, "revision", targetRevision, "commit", commitID, "branch", s.branch)

	return &RunResult{
		RunID:    runID,
		Status:   release.StatusRolledBack,
		CommitID: commitID,
		Note:     "restored to " + targetRevision,
	}, nil
}

// abort puts every artifact back to its pre-rollback bytes and closes the
// run as a failure. Restore failures are appended to the note; the ledger
// must show when the working tree could not be proven clean.
func (s *RollbackService) abort(ctx context.Context, runID string, preRollback []*artifact.Snapshot, note string, cause error) (*RunResult, error) {
	for _, snap := range preRollback {
		if rerr := s.snapshots.Restore(snap); rerr != nil {
			note = fmt.Sprintf("%s; RESTORE FAILED for %s: %v", note, snap.ArtifactPath, rerr)
			s.logger.Error("pre-rollback restore failed, artifact may be dirty",
				"run_id", runID, "artifact", snap.ArtifactPath, "error", rerr)
		}
	}

	s.ledger.Complete(ctx, runID, release.StatusFailure, "", note)
	return s.failed(runID, note), cause
}

func (s *RollbackService) failed(runID, note string) *RunResult {
	return &RunResult{RunID: runID, Status: release.StatusFailure, Note: note}
}
