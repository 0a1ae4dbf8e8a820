package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marcin-skalski/gitdesk/internal/bus"
	"github.com/marcin-skalski/gitdesk/internal/config"
	"github.com/marcin-skalski/gitdesk/internal/git"
	"github.com/marcin-skalski/gitdesk/internal/github"
	"github.com/marcin-skalski/gitdesk/internal/history"
	"github.com/marcin-skalski/gitdesk/internal/status"
	"github.com/marcin-skalski/gitdesk/internal/tui"
	"github.com/marcin-skalski/gitdesk/internal/watcher"
)

// noticeTTL is how long the last failure stays in the TUI snapshot.
const noticeTTL = 10 * time.Second

type Daemon struct {
	cfg    *config.Config
	bus    *bus.Bus
	root   string
	logger *slog.Logger

	wg sync.WaitGroup

	noticeMu sync.Mutex
	notice   bus.Notice
	noticeAt time.Time
}

// New resolves the working copy named in cfg and wires every component
// around it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	runner := git.NewExecRunner(cfg.GitBinary, logger)

	root, err := git.NewClient(cfg.Repo, runner, logger).TopLevel(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve repository %s: %w", cfg.Repo, err)
	}
	client := git.NewClient(root, runner, logger)

	backend, err := newBackend(cfg.Backend, root, client, logger)
	if err != nil {
		return nil, err
	}

	var tokens []github.TokenSource
	if cfg.GitHub.UseGHCLI != nil && *cfg.GitHub.UseGHCLI {
		tokens = append(tokens, github.NewGHSession(logger))
	}
	tokens = append(tokens, github.EnvSession{}, github.StaticToken(cfg.GitHub.Token))

	api := github.NewClient(github.ClientOptions{
		APIURL:  cfg.GitHub.APIURL,
		PerPage: cfg.GitHub.PerPage,
		Timeout: cfg.GitHub.Timeout,
	}, logger)

	b := bus.New(bus.Options{
		Git:        client,
		Backend:    backend,
		Reconciler: status.NewReconciler(root, logger),
		Pager:      history.NewPager(client, cfg.History.PageSize),
		PRs:        github.NewBridge(cfg.Remote, client, github.NewChain(logger, tokens...), api, logger),
		Host:       bus.NewExecHost(cfg.Path, logger),
		Remote:     cfg.Remote,
		Logger:     logger,
	})

	return newDaemon(cfg, b, root, logger), nil
}

func newDaemon(cfg *config.Config, b *bus.Bus, root string, logger *slog.Logger) *Daemon {
	return &Daemon{cfg: cfg, bus: b, root: root, logger: logger}
}

func newBackend(kind, root string, client *git.Client, logger *slog.Logger) (git.Backend, error) {
	switch kind {
	case "gogit":
		gb, err := git.OpenGoGitBackend(root, client, logger)
		if err != nil {
			return nil, fmt.Errorf("open repository with go-git: %w", err)
		}
		return gb, nil
	default:
		return git.NewExecBackend(client, logger), nil
	}
}

// Bus is the command and result hub the UI transports attach to.
func (d *Daemon) Bus() *bus.Bus {
	return d.bus
}

// Root is the top level of the working copy.
func (d *Daemon) Root() string {
	return d.root
}

func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("daemon started",
		"repo", d.root,
		"backend", d.cfg.Backend,
		"poll_interval", d.cfg.PollInterval)

	unsubscribe := d.bus.Subscribe(bus.KindNotice, d.recordNotice)
	defer unsubscribe()

	// Initial load
	d.refreshAll(ctx)

	if d.cfg.WatchEnabled() {
		w := watcher.New(d.root, d.cfg.Watch.Debounce, func() {
			if ctx.Err() != nil {
				return
			}
			d.bus.Dispatch(ctx, bus.GetStatus{})
		}, d.logger)

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := w.Run(ctx); err != nil {
				d.logger.Error("watcher stopped", "err", err)
			}
		}()
	}

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("shutting down, waiting for in-flight commands")
			d.wg.Wait()
			d.bus.Wait()
			d.logger.Info("daemon stopped")
			return nil
		case <-ticker.C:
			d.bus.Dispatch(ctx, bus.GetPullRequests{})
		}
	}
}

func (d *Daemon) refreshAll(ctx context.Context) {
	for _, cmd := range []bus.Command{
		bus.GetStatus{},
		bus.GetBranches{},
		bus.GetCommitHistory{},
		bus.GetPullRequests{},
	} {
		d.bus.Dispatch(ctx, cmd)
	}
}

// Dispatch forwards a UI command to the bus.
func (d *Daemon) Dispatch(ctx context.Context, cmd bus.Command) string {
	return d.bus.Dispatch(ctx, cmd)
}

func (d *Daemon) recordNotice(r bus.Result) {
	n, ok := r.(bus.Notice)
	if !ok {
		return
	}
	d.noticeMu.Lock()
	defer d.noticeMu.Unlock()
	d.notice = n
	d.noticeAt = time.Now()
}

func (d *Daemon) GetSnapshot() tui.Snapshot {
	now := time.Now()

	d.noticeMu.Lock()
	var notice string
	if !d.noticeAt.IsZero() && now.Sub(d.noticeAt) < noticeTTL {
		notice = d.notice.Text
	}
	d.noticeMu.Unlock()

	return tui.Snapshot{
		Timestamp:    now,
		Root:         d.root,
		Status:       d.bus.Snapshot(),
		Commits:      d.bus.Commits(),
		Branches:     d.bus.Branches(),
		PullRequests: d.bus.PullRequests(),
		Notice:       notice,
	}
}
