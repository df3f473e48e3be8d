// Package smoke invokes the external smoke gate: a boolean pass/fail over
// critical end-user flows, consumed before forward releases and after
// rollback restoration.
package smoke

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Result is the gate's verdict plus whatever diagnostics it printed.
type Result struct {
	Passed      bool
	Diagnostics string
}

// Gate runs the smoke check against a restored snapshot. The snapshot ref is
// whatever the gate script expects (a revision id for rollback runs, a
// working-tree marker for forward runs).
type Gate interface {
	Run(ctx context.Context, snapshotRef string) (*Result, error)
}

const defaultGateTimeout = 5 * time.Minute

// CommandGate shells out to a configured gate command. Exit code zero is a
// pass; anything else, including a timeout, is a fail with the combined
// output as diagnostics.
type CommandGate struct {
	command []string
	workDir string
	timeout time.Duration
}

func NewCommandGate(command []string, workDir string, timeout time.Duration) *CommandGate {
	if timeout <= 0 {
		timeout = defaultGateTimeout
	}
	return &CommandGate{
		command: command,
		workDir: workDir,
		timeout: timeout,
	}
}

func (g *CommandGate) Run(ctx context.Context, snapshotRef string) (*Result, error) {
	if len(g.command) == 0 {
		return nil, fmt.Errorf("smoke gate command not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	args := append(g.command[1:], snapshotRef)
	// #nosec G204 -- the gate command comes from operator configuration
	cmd := exec.CommandContext(ctx, g.command[0], args...)
	cmd.Dir = g.workDir

	out, err := cmd.CombinedOutput()
	diagnostics := strings.TrimSpace(string(out))

	if ctx.Err() == context.DeadlineExceeded {
		return &Result{
			Passed:      false,
			Diagnostics: fmt.Sprintf("smoke gate timed out after %s; partial output: %s", g.timeout, diagnostics),
		}, nil
	}
	if err != nil {
		// Non-zero exit is the gate's fail signal, not a transport error.
		if _, ok := err.(*exec.ExitError); ok {
			return &Result{Passed: false, Diagnostics: diagnostics}, nil
		}
		return nil, fmt.Errorf("smoke gate could not run: %w", err)
	}

	return &Result{Passed: true, Diagnostics: diagnostics}, nil
}
