// Package vcs wraps the version-control operations the pipeline consumes:
// commit, push, and restore-at-revision. The pipeline only depends on the
// Client interface; the git implementation shells out with bounded timeouts.
package vcs

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Identity is the fixed release identity commits are authored under.
type Identity struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// Client is the version-control contract the pipeline consumes. Every call
// is fallible and bounded; a timeout is a failure outcome.
type Client interface {
	// Commit stages the given paths and commits them, returning the new
	// revision id.
	Commit(ctx context.Context, paths []string, message string) (string, error)
	// Push publishes the current branch head to the integration branch.
	Push(ctx context.Context, branch string) error
	// RestoreAt replaces the working copies of the given paths with their
	// content at the given revision.
	RestoreAt(ctx context.Context, revision string, paths []string) error
	// ShowAt returns the content of one path at the given revision.
	ShowAt(ctx context.Context, revision, path string) ([]byte, error)
	// Head returns the current head revision id.
	Head(ctx context.Context) (string, error)
}

const defaultCommandTimeout = 30 * time.Second

// GitClient runs git against a local working tree.
type GitClient struct {
	workDir  string
	identity Identity
	timeout  time.Duration
}

func NewGitClient(workDir string, identity Identity) *GitClient {
	return &GitClient{
		workDir:  workDir,
		identity: identity,
		timeout:  defaultCommandTimeout,
	}
}

// WithTimeout overrides the per-command timeout.
func (c *GitClient) WithTimeout(d time.Duration) *GitClient {
	if d > 0 {
		c.timeout = d
	}
	return c
}

func (c *GitClient) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// #nosec G204 -- args are fixed git subcommands plus validated paths
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.workDir
	cmd.Env = append(cmd.Environ(),
		"GIT_AUTHOR_NAME="+c.identity.Name,
		"GIT_AUTHOR_EMAIL="+c.identity.Email,
		"GIT_COMMITTER_NAME="+c.identity.Name,
		"GIT_COMMITTER_EMAIL="+c.identity.Email,
	)

	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("git %s timed out after %s", args[0], c.timeout)
		}
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

func (c *GitClient) Commit(ctx context.Context, paths []string, message string) (string, error) {
	if len(paths) == 0 {
		return "", fmt.Errorf("commit requires at least one path")
	}

	addArgs := append([]string{"add", "--"}, paths...)
	if _, err := c.run(ctx, addArgs...); err != nil {
		return "", err
	}

	if _, err := c.run(ctx, "commit", "-m", message); err != nil {
		return "", err
	}

	return c.Head(ctx)
}

func (c *GitClient) Push(ctx context.Context, branch string) error {
	if branch == "" {
		return fmt.Errorf("push requires a branch")
	}
	_, err := c.run(ctx, "push", "origin", "HEAD:"+branch)
	return err
}

func (c *GitClient) RestoreAt(ctx context.Context, revision string, paths []string) error {
	if revision == "" {
		return fmt.Errorf("restore requires a revision")
	}
	if len(paths) == 0 {
		return fmt.Errorf("restore requires at least one path")
	}
	args := append([]string{"checkout", revision, "--"}, paths...)
	_, err := c.run(ctx, args...)
	return err
}

func (c *GitClient) ShowAt(ctx context.Context, revision, path string) ([]byte, error) {
	out, err := c.run(ctx, "show", revision+":"+path)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

func (c *GitClient) Head(ctx context.Context) (string, error) {
	return c.run(ctx, "rev-parse", "HEAD")
}
