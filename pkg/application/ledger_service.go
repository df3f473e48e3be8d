package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sovereignlab/sovereign/pkg/domain/release"
)

// LedgerService records run outcomes. The primary store is authoritative;
// when it is unreachable the entry lands in the append-only fallback sink
// instead. A ledger write failure never changes a run's true outcome, which
// the committer alone determines.
type LedgerService struct {
	primary release.LedgerRepository
	sink    release.EventSink
	logger  *slog.Logger
}

func NewLedgerService(primary release.LedgerRepository, sink release.EventSink, logger *slog.Logger) *LedgerService {
	return &LedgerService{primary: primary, sink: sink, logger: logger}
}

// Begin writes the started record and returns the run id.
func (s *LedgerService) Begin(ctx context.Context, branch, backlogID string, releaseType release.ReleaseType) string {
	entry := &release.Entry{
		RunID:       uuid.New().String(),
		Branch:      branch,
		BacklogID:   backlogID,
		ReleaseType: releaseType,
		StartedAt:   time.Now().UTC(),
	}

	if err := s.primary.Begin(ctx, entry); err != nil {
		s.logger.Error("primary ledger begin failed, using fallback sink",
			"run_id", entry.RunID, "error", err)
		s.appendFallback("ledger.begin", entry.RunID, map[string]interface{}{
			"branch":       entry.Branch,
			"backlog_id":   entry.BacklogID,
			"release_type": string(entry.ReleaseType),
			"error":        err.Error(),
		})
	}

	return entry.RunID
}

// Complete writes the single terminal update for the run.
func (s *LedgerService) Complete(ctx context.Context, runID string, status release.RunStatus, commitID, note string) {
	if err := s.primary.Complete(ctx, runID, status, commitID, note); err != nil {
		s.logger.Error("primary ledger complete failed, using fallback sink",
			"run_id", runID, "status", string(status), "error", err)
		s.appendFallback("ledger.complete", runID, map[string]interface{}{
			"status":    string(status),
			"commit_id": commitID,
			"note":      note,
			"error":     err.Error(),
		})
	}
}

// RecordIdle appends an informational idle marker to the fallback sink only.
// Idle ticks open no run and get no ledger row.
func (s *LedgerService) RecordIdle(reason string) {
	s.appendFallback("run.idle", "", map[string]interface{}{"reason": reason})
}

// RecordEvent appends an informational event to the fallback sink.
func (s *LedgerService) RecordEvent(action, runID string, metadata map[string]interface{}) {
	s.appendFallback(action, runID, metadata)
}

// appendFallback writes a hash-chained event. Sink failures are logged and
// dropped: the sink is the last resort, not a run dependency.
func (s *LedgerService) appendFallback(action, runID string, metadata map[string]interface{}) {
	events, err := s.sink.LoadEvents()
	if err != nil {
		s.logger.Error("fallback sink unreadable", "action", action, "error", err)
		return
	}
	prevHash := ""
	if len(events) > 0 {
		prevHash = events[len(events)-1].Hash
	}

	event := release.Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		RunID:     runID,
		Metadata:  metadata,
		PrevHash:  prevHash,
	}
	event.Hash = event.CalculateHash()

	if err := s.sink.RecordEvent(event); err != nil {
		s.logger.Error("fallback sink write failed", "action", action, "error", err)
	}
}

// VerifyIntegrity walks the fallback sink's hash chain and returns any
// violations found.
func (s *LedgerService) VerifyIntegrity() ([]string, error) {
	events, err := s.sink.LoadEvents()
	if err != nil {
		return nil, err
	}

	var violations []string
	lastHash := ""

	for i, e := range events {
		if e.PrevHash != lastHash {
			violations = append(violations, fmt.Sprintf("Event %d (%s): PrevHash mismatch. Audit trail broken.", i, e.ID))
		}

		expected := e.CalculateHash()
		if e.Hash != expected {
			violations = append(violations, fmt.Sprintf("Event %d (%s): Content hash mismatch. Possible tampering.", i, e.ID))
		}

		lastHash = e.Hash
	}

	return violations, nil
}

// ListRuns exposes recent ledger entries for the CLI.
func (s *LedgerService) ListRuns(ctx context.Context, limit int) ([]*release.Entry, error) {
	return s.primary.ListRuns(ctx, limit)
}
