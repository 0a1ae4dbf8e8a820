package git_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcin-skalski/gitdesk/internal/git"
	"github.com/marcin-skalski/gitdesk/internal/logging"
	"github.com/marcin-skalski/gitdesk/internal/status"
)

func writeFile(t *testing.T, fs billy.Filesystem, name, content string) {
	t.Helper()
	f, err := fs.Create(name)
	require.NoError(t, err)
	_, err = f.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func memRepo(t *testing.T) (*gogit.Repository, billy.Filesystem) {
	t.Helper()
	fs := memfs.New()
	repo, err := gogit.InitWithOptions(memory.NewStorage(), fs, gogit.InitOptions{
		DefaultBranch: plumbing.NewBranchReferenceName("main"),
	})
	require.NoError(t, err)
	return repo, fs
}

func commitAll(t *testing.T, repo *gogit.Repository, msg string) plumbing.Hash {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.AddWithOptions(&gogit.AddOptions{All: true}))
	h, err := wt.Commit(msg, &gogit.CommitOptions{
		Author: &object.Signature{Name: "Dev", Email: "dev@example.com", When: time.Unix(1700000000, 0)},
	})
	require.NoError(t, err)
	return h
}

func TestGoGitBackendUnbornHead(t *testing.T) {
	repo, _ := memRepo(t)
	b := git.NewGoGitBackend(repo, nil, logging.Discard())

	head, err := b.Head(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "main", head)

	names, err := b.Branches(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestGoGitBackendChanges(t *testing.T) {
	repo, fs := memRepo(t)
	writeFile(t, fs, "a.txt", "one\n")
	commitAll(t, repo, "init")

	writeFile(t, fs, "a.txt", "one\ntwo\n")
	writeFile(t, fs, "b.txt", "new\n")
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("b.txt")
	require.NoError(t, err)
	writeFile(t, fs, "c.txt", "scratch\n")

	b := git.NewGoGitBackend(repo, nil, logging.Discard())
	index, worktree, err := b.Changes(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []status.ChangeRecord{
		{Path: "b.txt", Code: status.IndexAdded, Origin: status.OriginIndex},
	}, index)
	assert.Equal(t, []status.ChangeRecord{
		{Path: "a.txt", Code: status.Modified, Origin: status.OriginWorkingTree},
		{Path: "c.txt", Code: status.Untracked, Origin: status.OriginWorkingTree},
	}, worktree)

	files := status.NewReconciler("", logging.Discard()).Reconcile(index, worktree)
	assert.Len(t, files, 3)
}

func TestGoGitBackendHeadAndBranches(t *testing.T) {
	repo, fs := memRepo(t)
	writeFile(t, fs, "a.txt", "one\n")
	h := commitAll(t, repo, "init")

	require.NoError(t, repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("develop"), h)))

	b := git.NewGoGitBackend(repo, nil, logging.Discard())
	head, err := b.Head(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "main", head)

	names, err := b.Branches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"develop", "main"}, names)

	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&gogit.CheckoutOptions{Hash: h}))
	head, err = b.Head(context.Background())
	require.NoError(t, err)
	assert.Equal(t, h.String()[:7], head)

	ahead, behind, err := b.AheadBehind(context.Background())
	require.NoError(t, err)
	assert.Zero(t, ahead+behind)
}
