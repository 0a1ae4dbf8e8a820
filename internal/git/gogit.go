package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/marcin-skalski/gitdesk/internal/status"
)

// GoGitBackend answers reads from an opened go-git repository. Ahead/behind
// needs upstream tracking that go-git does not resolve, so it goes through
// the exec client when one is given.
type GoGitBackend struct {
	repo     *gogit.Repository
	fallback *Client
	logger   *slog.Logger
}

func NewGoGitBackend(repo *gogit.Repository, fallback *Client, logger *slog.Logger) *GoGitBackend {
	return &GoGitBackend{repo: repo, fallback: fallback, logger: logger}
}

// OpenGoGitBackend opens the repository at dir.
func OpenGoGitBackend(dir string, fallback *Client, logger *slog.Logger) (*GoGitBackend, error) {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, ErrNoRepository
		}
		return nil, fmt.Errorf("open repo: %w", err)
	}
	return NewGoGitBackend(repo, fallback, logger), nil
}

func (g *GoGitBackend) Head(_ context.Context) (string, error) {
	head, err := g.repo.Head()
	if err == nil {
		if head.Name().IsBranch() {
			return head.Name().Short(), nil
		}
		return head.Hash().String()[:7], nil
	}
	if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}

	// Unborn branch: HEAD points at a ref with no commits yet.
	ref, err := g.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	if ref.Type() == plumbing.SymbolicReference {
		return ref.Target().Short(), nil
	}
	return "", fmt.Errorf("resolve HEAD: %w", plumbing.ErrReferenceNotFound)
}

func (g *GoGitBackend) AheadBehind(ctx context.Context) (int, int, error) {
	if g.fallback == nil {
		return 0, 0, nil
	}
	return aheadBehind(ctx, g.fallback, g.logger)
}

func (g *GoGitBackend) Changes(_ context.Context) ([]status.ChangeRecord, []status.ChangeRecord, error) {
	wt, err := g.repo.Worktree()
	if err != nil {
		return nil, nil, fmt.Errorf("open worktree: %w", err)
	}
	st, err := wt.Status()
	if err != nil {
		return nil, nil, fmt.Errorf("worktree status: %w", err)
	}

	paths := make([]string, 0, len(st))
	for p := range st {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var index, worktree []status.ChangeRecord
	for _, p := range paths {
		fs := st[p]
		switch {
		case fs.Staging == gogit.Untracked || fs.Worktree == gogit.Untracked:
			worktree = append(worktree, status.ChangeRecord{Path: p, Code: status.Untracked, Origin: status.OriginWorkingTree})
			continue
		case fs.Staging == gogit.UpdatedButUnmerged || fs.Worktree == gogit.UpdatedButUnmerged:
			worktree = append(worktree, status.ChangeRecord{Path: p, Code: status.BothModified, Origin: status.OriginWorkingTree})
			continue
		}

		if code, ok := goGitIndexCodes[fs.Staging]; ok {
			index = append(index, status.ChangeRecord{Path: p, Code: code, Origin: status.OriginIndex})
		}
		if code, ok := goGitWorktreeCodes[fs.Worktree]; ok {
			worktree = append(worktree, status.ChangeRecord{Path: p, Code: code, Origin: status.OriginWorkingTree})
		}
	}
	return index, worktree, nil
}

var goGitIndexCodes = map[gogit.StatusCode]status.Code{
	gogit.Modified: status.IndexModified,
	gogit.Added:    status.IndexAdded,
	gogit.Deleted:  status.IndexDeleted,
	gogit.Renamed:  status.IndexRenamed,
	gogit.Copied:   status.IndexCopied,
}

var goGitWorktreeCodes = map[gogit.StatusCode]status.Code{
	gogit.Modified: status.Modified,
	gogit.Deleted:  status.Deleted,
	gogit.Added:    status.IntentToAdd,
}

func (g *GoGitBackend) Branches(_ context.Context) ([]string, error) {
	iter, err := g.repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	sort.Strings(names)
	return names, nil
}
