package git

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/marcin-skalski/gitdesk/internal/status"
)

// Backend is the read side of a working copy.
type Backend interface {
	// Head returns the current branch name, or a short hash when detached.
	Head(ctx context.Context) (string, error)
	// AheadBehind counts commits relative to the upstream; no upstream is 0/0.
	AheadBehind(ctx context.Context) (ahead, behind int, err error)
	// Changes returns the index and working-tree change lists. Unmerged
	// paths are reported on the working-tree side.
	Changes(ctx context.Context) (index, worktree []status.ChangeRecord, err error)
	// Branches lists local branch short names.
	Branches(ctx context.Context) ([]string, error)
}

// ExecBackend reads repository state by parsing git plumbing output.
type ExecBackend struct {
	c      *Client
	logger *slog.Logger
}

func NewExecBackend(c *Client, logger *slog.Logger) *ExecBackend {
	return &ExecBackend{c: c, logger: logger}
}

func (b *ExecBackend) Head(ctx context.Context) (string, error) {
	name, err := b.c.run(ctx, "branch", "--show-current")
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}
	if name != "" {
		return name, nil
	}
	hash, err := b.c.run(ctx, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return hash, nil
}

func (b *ExecBackend) AheadBehind(ctx context.Context) (int, int, error) {
	return aheadBehind(ctx, b.c, b.logger)
}

func aheadBehind(ctx context.Context, c *Client, logger *slog.Logger) (int, int, error) {
	out, err := c.run(ctx, "rev-list", "--left-right", "--count", "HEAD...@{upstream}")
	if err != nil {
		logger.Debug("no upstream, reporting 0/0", "error", err)
		return 0, 0, nil
	}
	fields := strings.Fields(out)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("unexpected rev-list output %q", out)
	}
	ahead, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("parse ahead count: %w", err)
	}
	behind, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("parse behind count: %w", err)
	}
	return ahead, behind, nil
}

func (b *ExecBackend) Changes(ctx context.Context) ([]status.ChangeRecord, []status.ChangeRecord, error) {
	out, err := b.c.run(ctx, "status", "--porcelain=v1", "-z", "--untracked-files=all")
	if err != nil {
		return nil, nil, fmt.Errorf("git status: %w", err)
	}
	index, worktree := ParsePorcelain(out)
	return index, worktree, nil
}

func (b *ExecBackend) Branches(ctx context.Context) ([]string, error) {
	out, err := b.c.run(ctx, "for-each-ref", "--format=%(refname:short)", "refs/heads")
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	var names []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}
