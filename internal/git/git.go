package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Client runs the mutating and history commands of one working copy. Every
// call spawns its own git process through the Runner.
type Client struct {
	dir    string
	r      Runner
	logger *slog.Logger
}

func NewClient(dir string, r Runner, logger *slog.Logger) *Client {
	return &Client{dir: dir, r: r, logger: logger}
}

// Dir returns the working copy root the client operates on.
func (c *Client) Dir() string {
	return c.dir
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	return c.r.Run(ctx, c.dir, args...)
}

func (c *Client) StageFile(ctx context.Context, path string) error {
	_, err := c.run(ctx, "add", "--", path)
	return err
}

func (c *Client) UnstageFile(ctx context.Context, path string) error {
	_, err := c.run(ctx, "restore", "--staged", "--", path)
	return err
}

func (c *Client) StageAll(ctx context.Context) error {
	_, err := c.run(ctx, "add", "-A")
	return err
}

func (c *Client) UnstageAll(ctx context.Context) error {
	_, err := c.run(ctx, "reset", "-q")
	return err
}

// Discard throws away working-tree changes to path.
func (c *Client) Discard(ctx context.Context, path string) error {
	_, err := c.run(ctx, "checkout", "--", path)
	return err
}

// Commit records the index. A non-empty description becomes the second
// paragraph of the message.
func (c *Client) Commit(ctx context.Context, message, description string) error {
	args := []string{"commit", "-m", message}
	if strings.TrimSpace(description) != "" {
		args = append(args, "-m", description)
	}
	_, err := c.run(ctx, args...)
	return err
}

// Amend rewrites the last commit. An empty message keeps the existing one.
func (c *Client) Amend(ctx context.Context, message string) error {
	args := []string{"commit", "--amend"}
	if strings.TrimSpace(message) == "" {
		args = append(args, "--no-edit")
	} else {
		args = append(args, "-m", message)
	}
	_, err := c.run(ctx, args...)
	return err
}

func (c *Client) Checkout(ctx context.Context, branch string) error {
	_, err := c.run(ctx, "checkout", branch)
	return err
}

func (c *Client) CreateBranch(ctx context.Context, name, base string) error {
	args := []string{"checkout", "-b", name}
	if base != "" {
		args = append(args, base)
	}
	_, err := c.run(ctx, args...)
	return err
}

func (c *Client) Stash(ctx context.Context, message string) error {
	_, err := c.run(ctx, "stash", "push", "-m", message)
	return err
}

// FetchBranch creates or fast-forwards the local branch name from remote.
func (c *Client) FetchBranch(ctx context.Context, remote, name string) error {
	_, err := c.run(ctx, "fetch", remote, name+":"+name)
	return err
}

// LogFormat is the pretty format the history parser expects.
const LogFormat = "%H|%an|%ae|%at|%s"

// Log returns raw history text, newest first, with shortstat lines.
func (c *Client) Log(ctx context.Context, skip, limit int) (string, error) {
	out, err := c.run(ctx,
		"log",
		"--pretty=format:"+LogFormat,
		"--shortstat",
		"--no-merges",
		"--skip="+strconv.Itoa(skip),
		"-"+strconv.Itoa(limit),
	)
	if err != nil {
		var pe *ProcessError
		if errors.As(err, &pe) && isEmptyHistory(pe.Stderr) {
			return "", nil
		}
		return "", fmt.Errorf("git log: %w", err)
	}
	return out, nil
}

// isEmptyHistory reports a log failure caused by a repository with no
// commits yet.
func isEmptyHistory(stderr string) bool {
	return strings.Contains(stderr, "does not have any commits yet") ||
		strings.Contains(stderr, "bad default revision 'HEAD'")
}

// RemoteURL returns the configured URL of remote, or "" when none is set.
func (c *Client) RemoteURL(ctx context.Context, remote string) (string, error) {
	out, err := c.run(ctx, "config", "--get", "remote."+remote+".url")
	if err != nil {
		var pe *ProcessError
		// git config exits 1 with no output when the key is absent.
		if errors.As(err, &pe) && strings.TrimSpace(pe.Stderr) == "" {
			return "", nil
		}
		return "", err
	}
	return out, nil
}

// TopLevel resolves the root of the working copy containing the client dir.
func (c *Client) TopLevel(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		var pe *ProcessError
		if errors.As(err, &pe) && strings.Contains(pe.Stderr, "not a git repository") {
			return "", ErrNoRepository
		}
		return "", err
	}
	return out, nil
}
