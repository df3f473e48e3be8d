package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Snapshot is a durable pre-mutation copy of one artifact, keyed by
// (path, capture time). It is owned by exactly one pipeline run and is only
// authoritative until that run ends: afterwards it is retained for forensics.
type Snapshot struct {
	ArtifactPath string    `json:"artifact_path"`
	Content      []byte    `json:"-"`
	Checksum     string    `json:"checksum"`
	CapturedAt   time.Time `json:"captured_at"`
	StoredAt     string    `json:"stored_at"` // location inside the snapshot store
}

// ChecksumOf returns the hex SHA256 of the given content.
func ChecksumOf(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Matches reports whether the given bytes are identical to the snapshot
// content. Restores are verified with this before a run is allowed to end.
func (s *Snapshot) Matches(content []byte) bool {
	return bytes.Equal(s.Content, content)
}
