package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Trigger tells the run loop why a pipeline run fired.
type Trigger struct {
	Source string // "tick" or "backlog"
	Path   string // changed path for backlog triggers
}

// RunTrigger fires pipeline runs from two sources: an interval ticker (the
// scheduled trigger) and backlog store writes (a task was confirmed). Both
// funnel through a debouncer so a burst of store writes yields one run, and
// runs never overlap: the next trigger waits for the current run to return.
type RunTrigger struct {
	watcher  *fsnotify.Watcher
	filter   *PatternFilter
	interval time.Duration
	debounce time.Duration
	onRun    func(Trigger)
}

// NewRunTrigger watches the given store directory. A zero interval disables
// the scheduled tick, leaving only change-driven runs.
func NewRunTrigger(storeDir string, interval time.Duration, onRun func(Trigger)) (*RunTrigger, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := w.Add(storeDir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", storeDir, err)
	}

	return &RunTrigger{
		watcher: w,
		// The primary store plus its WAL sidecars; config edits should not
		// fire a release.
		filter:   NewPatternFilter([]string{"ledger.db", "ledger.db-*"}, nil),
		interval: interval,
		debounce: 2 * time.Second,
		onRun:    onRun,
	}, nil
}

// Run starts the trigger loop. It blocks until the context is cancelled.
func (t *RunTrigger) Run(ctx context.Context) error {
	defer t.watcher.Close()

	var pending Trigger
	debouncer := NewDebouncer(t.debounce, func() {
		t.onRun(pending)
	})
	defer debouncer.Stop()

	var tick <-chan time.Time
	if t.interval > 0 {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-tick:
			t.onRun(Trigger{Source: "tick"})

		case event, ok := <-t.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if !t.filter.Matches(event.Name) {
				continue
			}
			pending = Trigger{Source: "backlog", Path: event.Name}
			debouncer.Trigger()

		case err, ok := <-t.watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}
