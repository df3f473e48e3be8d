package release

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

type RunStatus string

const (
	StatusStarted    RunStatus = "started"
	StatusSuccess    RunStatus = "success"
	StatusFailure    RunStatus = "failure"
	StatusRolledBack RunStatus = "rolled_back"
)

// IsTerminal reports whether the status closes a run. Exactly one terminal
// update is permitted per run id.
func (s RunStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailure || s == StatusRolledBack
}

type ReleaseType string

const (
	TypeFeature  ReleaseType = "feature"
	TypeRollback ReleaseType = "rollback"
)

// Entry is one pipeline run's audit record. A run writes a single started
// entry and a single terminal update; no other mutation is permitted.
type Entry struct {
	RunID       string      `json:"run_id"`
	Status      RunStatus   `json:"status"`
	Branch      string      `json:"branch"`
	CommitID    string      `json:"commit_id,omitempty"` // empty until committed
	BacklogID   string      `json:"backlog_id,omitempty"` // empty for rollback runs
	ReleaseType ReleaseType `json:"release_type"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Note        string      `json:"note,omitempty"`
}

// Event is a hash-chained record for the fallback sink and for informational
// markers that do not open a run (e.g. idle ticks). The chain makes the
// append-only file tamper-evident.
type Event struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Action    string                 `json:"action"`
	RunID     string                 `json:"run_id,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	PrevHash  string                 `json:"prev_hash,omitempty"`
	Hash      string                 `json:"hash,omitempty"`
}

// CalculateHash generates a deterministic SHA256 hash of the event data.
func (e *Event) CalculateHash() string {
	h := sha256.New()
	// Deterministic sequence: PrevHash + ID + Timestamp + Action + RunID + Metadata
	h.Write([]byte(e.PrevHash))
	h.Write([]byte(e.ID))
	h.Write([]byte(e.Timestamp.Format(time.RFC3339Nano)))
	h.Write([]byte(e.Action))
	h.Write([]byte(e.RunID))
	h.Write([]byte(canonicalJSON(e.Metadata)))
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalJSON produces a deterministic JSON representation of metadata.
// Keys are sorted alphabetically to ensure consistent hashing.
func canonicalJSON(m map[string]interface{}) string {
	if len(m) == 0 {
		return ""
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]byte, 0, 256)
	ordered = append(ordered, '{')
	for i, k := range keys {
		if i > 0 {
			ordered = append(ordered, ',')
		}
		keyJSON, _ := json.Marshal(k)
		valJSON, _ := json.Marshal(m[k])
		ordered = append(ordered, keyJSON...)
		ordered = append(ordered, ':')
		ordered = append(ordered, valJSON...)
	}
	ordered = append(ordered, '}')

	return string(ordered)
}
