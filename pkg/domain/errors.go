package domain

import (
	"errors"
	"strings"
)

// Domain errors for the release pipeline. Every component returns one of
// these classified outcomes; the orchestrator never swallows a failure
// without mapping it to a terminal ledger status.
var (
	// ErrNoTask indicates no selectable backlog task exists.
	ErrNoTask = errors.New("no selectable task")

	// ErrSnapshotFailure indicates the pre-mutation backup could not be
	// confirmed. The run aborts before any write.
	ErrSnapshotFailure = errors.New("snapshot capture failed")

	// ErrSynthesisFailure indicates no usable candidate could be extracted
	// from the generation service response.
	ErrSynthesisFailure = errors.New("synthesis produced no usable candidate")

	// ErrValidationRejected indicates the candidate failed the validation gate.
	ErrValidationRejected = errors.New("candidate rejected by validation gate")

	// ErrPushFailure indicates the post-acceptance push did not complete.
	ErrPushFailure = errors.New("push failed")

	// ErrGateFailure indicates the smoke gate rejected a restored snapshot.
	ErrGateFailure = errors.New("smoke gate failed")

	// ErrLockHeld indicates another run owns the artifact lock.
	ErrLockHeld = errors.New("artifact lock held by another run")

	// ErrLedgerUnavailable indicates the primary ledger store is unreachable.
	ErrLedgerUnavailable = errors.New("primary ledger store unavailable")
)

// RejectReason classifies a single validation gate violation.
type RejectReason string

const (
	SyntaxInvalid        RejectReason = "syntax_invalid"
	StructuralRegression RejectReason = "structural_regression"
	SizeAnomaly          RejectReason = "size_anomaly"
)

// Violation is one failed gate check with its diagnostic detail.
type Violation struct {
	Reason RejectReason
	Detail string
}

// ValidationError aggregates every violated check for a rejected candidate.
// All three gate checks run unconditionally, so a single rejection can
// report each violation.
type ValidationError struct {
	ArtifactPath string
	Violations   []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, string(v.Reason)+": "+v.Detail)
	}
	return "candidate for " + e.ArtifactPath + " rejected: " + strings.Join(parts, "; ")
}

// Is allows errors.Is to match ValidationError against ErrValidationRejected.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationRejected
}

// Has reports whether the rejection includes the given reason.
func (e *ValidationError) Has(reason RejectReason) bool {
	for _, v := range e.Violations {
		if v.Reason == reason {
			return true
		}
	}
	return false
}

// Reasons returns the violated reasons in check order.
func (e *ValidationError) Reasons() []RejectReason {
	reasons := make([]RejectReason, 0, len(e.Violations))
	for _, v := range e.Violations {
		reasons = append(reasons, v.Reason)
	}
	return reasons
}

// SnapshotError carries the artifact whose backup could not be confirmed.
type SnapshotError struct {
	ArtifactPath string
	Cause        error
}

func (e *SnapshotError) Error() string {
	return "snapshot of " + e.ArtifactPath + " failed: " + e.Cause.Error()
}

func (e *SnapshotError) Is(target error) bool { return target == ErrSnapshotFailure }

func (e *SnapshotError) Unwrap() error { return e.Cause }

// PushError carries the branch a post-acceptance push failed against.
type PushError struct {
	Branch string
	Cause  error
}

func (e *PushError) Error() string {
	return "push to " + e.Branch + " failed: " + e.Cause.Error()
}

func (e *PushError) Is(target error) bool { return target == ErrPushFailure }

func (e *PushError) Unwrap() error { return e.Cause }

// GateError carries the smoke gate's diagnostic output.
type GateError struct {
	Diagnostics string
}

func (e *GateError) Error() string {
	if e.Diagnostics == "" {
		return "smoke gate failed"
	}
	return "smoke gate failed: " + e.Diagnostics
}

func (e *GateError) Is(target error) bool { return target == ErrGateFailure }
