// Package watch provides the scheduled and change-driven trigger surface:
// pipeline runs fire on an interval tick or when the backlog store changes,
// with rapid change bursts coalesced into a single run.
package watch

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid triggers into a single callback invocation. The
// callback fires once the quiet window elapses with no further triggers.
type Debouncer struct {
	quiet    time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	callback func()
}

func NewDebouncer(quiet time.Duration, callback func()) *Debouncer {
	return &Debouncer{
		quiet:    quiet,
		callback: callback,
	}
}

// Trigger resets the quiet window.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.quiet, d.callback)
}

// Stop cancels any pending callback.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
}
