package daemon

import (
	"context"
	"os/exec"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcin-skalski/gitdesk/internal/bus"
	"github.com/marcin-skalski/gitdesk/internal/config"
	"github.com/marcin-skalski/gitdesk/internal/git"
	"github.com/marcin-skalski/gitdesk/internal/git/gittest"
	"github.com/marcin-skalski/gitdesk/internal/github"
	"github.com/marcin-skalski/gitdesk/internal/history"
	"github.com/marcin-skalski/gitdesk/internal/logging"
	"github.com/marcin-skalski/gitdesk/internal/status"
)

const root = "/work/repo"

type countingPRs struct {
	calls atomic.Int32
}

func (c *countingPRs) List(context.Context) github.Listing {
	c.calls.Add(1)
	return github.Listing{PullRequests: []github.PullRequest{{Number: 1, Title: "t", Status: github.StatusOpen}}}
}

type nopHost struct{}

func (nopHost) OpenURL(context.Context, string) error      { return nil }
func (nopHost) OpenSettings(context.Context, string) error { return nil }

func testConfig() *config.Config {
	cfg := config.Default()
	disabled := false
	cfg.Watch.Enabled = &disabled
	cfg.PollInterval = 20 * time.Millisecond
	return cfg
}

func newTestDaemon(t *testing.T, r *gittest.Runner, prs bus.PullRequestSource) *Daemon {
	t.Helper()
	logger := logging.Discard()
	client := git.NewClient(root, r, logger)
	b := bus.New(bus.Options{
		Git:        client,
		Backend:    git.NewExecBackend(client, logger),
		Reconciler: status.NewReconciler(root, logger),
		Pager:      history.NewPager(client, history.PageSize),
		PRs:        prs,
		Host:       nopHost{},
		Logger:     logger,
	})
	return newDaemon(testConfig(), b, root, logger)
}

func runDaemon(t *testing.T, d *Daemon) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("daemon did not stop")
		}
	})
}

func TestRunLoadsEverythingAndPolls(t *testing.T) {
	r := gittest.NewRunner().
		On("branch --show-current", gittest.Reply{Out: "main"}).
		On("rev-list", gittest.Reply{Out: "1\t0"}).
		On("status", gittest.Reply{Out: " M a.txt\x00"}).
		On("for-each-ref", gittest.Reply{Out: "main"}).
		On("log", gittest.Reply{Out: "aaa|Ada|ada@x|1700000000|first"})
	prs := &countingPRs{}
	d := newTestDaemon(t, r, prs)

	runDaemon(t, d)

	require.Eventually(t, func() bool {
		s := d.GetSnapshot()
		return len(s.Status.Files) == 1 && len(s.Commits) == 1 &&
			s.Branches.Current == "main" && len(s.PullRequests.PullRequests) == 1
	}, 2*time.Second, 5*time.Millisecond)

	snap := d.GetSnapshot()
	assert.Equal(t, root, snap.Root)
	assert.Equal(t, 1, snap.Status.Ahead)
	assert.Empty(t, snap.Notice)

	// The poll ticker keeps asking for pull requests.
	require.Eventually(t, func() bool { return prs.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestSnapshotCarriesRecentNotice(t *testing.T) {
	r := gittest.NewRunner().
		On("branch --show-current", gittest.Reply{Out: "main"}).
		On("add", gittest.Reply{Fail: true, Stderr: "fatal: pathspec 'x' did not match any files"})
	d := newTestDaemon(t, r, &countingPRs{})

	runDaemon(t, d)

	d.Dispatch(context.Background(), bus.StageFile{Path: "x"})
	require.Eventually(t, func() bool {
		return strings.Contains(d.GetSnapshot().Notice, "pathspec")
	}, 2*time.Second, 5*time.Millisecond)

	d.noticeMu.Lock()
	d.noticeAt = time.Now().Add(-noticeTTL)
	d.noticeMu.Unlock()
	assert.Empty(t, d.GetSnapshot().Notice)
}

func TestNewRejectsNonRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	cfg := testConfig()
	cfg.Repo = t.TempDir()

	_, err := New(context.Background(), cfg, logging.Discard())
	require.Error(t, err)
	assert.ErrorIs(t, err, git.ErrNoRepository)
}

func TestNewWiresGoGitBackend(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	out, err := exec.Command("git", "init", "-q", "-b", "main", dir).CombinedOutput()
	require.NoError(t, err, string(out))

	cfg := testConfig()
	cfg.Repo = dir
	cfg.Backend = "gogit"

	d, err := New(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	assert.NotNil(t, d.Bus())
	assert.NotEmpty(t, d.Root())
}
