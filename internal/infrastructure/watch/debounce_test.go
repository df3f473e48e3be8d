package watch_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/sovereignlab/sovereign/internal/infrastructure/watch"
)

func TestDebouncerCoalescesBursts(t *testing.T) {
	var fired atomic.Int32
	d := watch.NewDebouncer(30*time.Millisecond, func() { fired.Add(1) })
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("burst fired %d callbacks, want 1", got)
	}
}

func TestDebouncerStopCancelsPending(t *testing.T) {
	var fired atomic.Int32
	d := watch.NewDebouncer(20*time.Millisecond, func() { fired.Add(1) })

	d.Trigger()
	d.Stop()

	time.Sleep(60 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("stopped debouncer fired %d callbacks", got)
	}
}

func TestPatternFilterMatches(t *testing.T) {
	tests := []struct {
		name    string
		include []string
		exclude []string
		path    string
		want    bool
	}{
		{"include by base name", []string{"ledger.db", "ledger.db-*"}, nil, "/ws/.sovereign/ledger.db", true},
		{"include wal sidecar", []string{"ledger.db", "ledger.db-*"}, nil, "/ws/.sovereign/ledger.db-wal", true},
		{"non-matching file", []string{"ledger.db", "ledger.db-*"}, nil, "/ws/.sovereign/config.yaml", false},
		{"exclude wins over include", []string{"*.db"}, []string{"ledger.db"}, "ledger.db", false},
		{"no includes passes everything", nil, nil, "anything.txt", true},
		{"exclude only", nil, []string{"*.tmp"}, "scratch.tmp", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := watch.NewPatternFilter(tt.include, tt.exclude)
			if got := f.Matches(tt.path); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
