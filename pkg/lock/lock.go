// Package lock provides the run-level mutual exclusion that keeps
// overlapping triggers (a scheduled tick racing a manual dispatch) from
// mutating the same artifact concurrently. A lock is keyed by artifact path,
// acquired before snapshot capture, and released on every exit path.
package lock

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sovereignlab/sovereign/pkg/domain"
)

// DefaultStaleAfter is how old a lock file may be before a new run may break
// it. A crashed run cannot release its lock, so age is the recovery signal.
const DefaultStaleAfter = 30 * time.Minute

type lockInfo struct {
	RunID      string    `json:"run_id"`
	PID        int       `json:"pid"`
	Artifact   string    `json:"artifact"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Manager creates and releases per-artifact run locks inside a lock
// directory.
type Manager struct {
	dir        string
	staleAfter time.Duration
}

func NewManager(dir string) *Manager {
	return &Manager{dir: dir, staleAfter: DefaultStaleAfter}
}

// WithStaleAfter overrides the stale threshold.
func (m *Manager) WithStaleAfter(d time.Duration) *Manager {
	if d > 0 {
		m.staleAfter = d
	}
	return m
}

// Lock is a held run lock. Release is safe to call more than once.
type Lock struct {
	path     string
	released bool
}

func (m *Manager) lockPath(artifactPath string) string {
	sum := sha256.Sum256([]byte(artifactPath))
	return filepath.Join(m.dir, hex.EncodeToString(sum[:8])+".lock")
}

// Acquire takes the lock for the given artifact path or returns
// domain.ErrLockHeld when a live run owns it. A lock older than the stale
// threshold is treated as abandoned and replaced.
func (m *Manager) Acquire(artifactPath, runID string) (*Lock, error) {
	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	path := m.lockPath(artifactPath)

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err == nil {
			info := lockInfo{
				RunID:      runID,
				PID:        os.Getpid(),
				Artifact:   artifactPath,
				AcquiredAt: time.Now(),
			}
			data, merr := json.Marshal(info)
			if merr == nil {
				_, merr = f.Write(data)
			}
			cerr := f.Close()
			if merr != nil || cerr != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("write lock file: %w", errFirst(merr, cerr))
			}
			return &Lock{path: path}, nil
		}

		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}

		stale, serr := m.isStale(path)
		if serr != nil {
			return nil, serr
		}
		if !stale {
			return nil, fmt.Errorf("%w: %s", domain.ErrLockHeld, artifactPath)
		}
		// Abandoned by a crashed run; break it and retry once.
		if rerr := os.Remove(path); rerr != nil && !os.IsNotExist(rerr) {
			return nil, fmt.Errorf("break stale lock: %w", rerr)
		}
	}

	return nil, fmt.Errorf("%w: %s", domain.ErrLockHeld, artifactPath)
}

func (m *Manager) isStale(path string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("stat lock file: %w", err)
	}
	return time.Since(fi.ModTime()) > m.staleAfter, nil
}

// Release removes the lock file. It must run on every exit path: success,
// rejection, or abort.
func (l *Lock) Release() error {
	if l == nil || l.released {
		return nil
	}
	l.released = true
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

func errFirst(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
