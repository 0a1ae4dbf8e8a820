// Package bus is the request/response and fan-out layer between a UI and a
// working copy. Commands are handled one per goroutine; every read carries a
// per-kind sequence number so that a reply older than the last applied one
// is dropped instead of overwriting fresher state.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marcin-skalski/gitdesk/internal/git"
	"github.com/marcin-skalski/gitdesk/internal/github"
	"github.com/marcin-skalski/gitdesk/internal/history"
	"github.com/marcin-skalski/gitdesk/internal/status"
	"github.com/marcin-skalski/gitdesk/internal/workflow"
)

// PullRequestSource lists pull requests; it never fails.
type PullRequestSource interface {
	List(ctx context.Context) github.Listing
}

type Options struct {
	Git        *git.Client
	Backend    git.Backend
	Reconciler *status.Reconciler
	Pager      *history.Pager
	PRs        PullRequestSource
	Host       Host
	Remote     string
	Logger     *slog.Logger
}

// seqKinds are the read kinds guarded by sequence numbers.
var seqKinds = []Kind{KindStatus, KindHistory, KindBranches, KindPullRequests}

type Bus struct {
	git        *git.Client
	backend    git.Backend
	reconciler *status.Reconciler
	pager      *history.Pager
	prs        PullRequestSource
	host       Host
	remote     string
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.RWMutex
	snapshot status.Snapshot
	commits  []history.Commit
	branches BranchSet
	listing  github.Listing

	seqMu     sync.Mutex
	requested map[Kind]uint64
	applied   map[Kind]uint64
	// kindMu serializes apply and publish per kind so listeners see results
	// in applied order.
	kindMu map[Kind]*sync.Mutex

	hubs map[Kind]*Hub[Result]
	all  *Hub[Result]

	wg sync.WaitGroup
}

func New(opts Options) *Bus {
	remote := opts.Remote
	if remote == "" {
		remote = "origin"
	}
	b := &Bus{
		git:        opts.Git,
		backend:    opts.Backend,
		reconciler: opts.Reconciler,
		pager:      opts.Pager,
		prs:        opts.PRs,
		host:       opts.Host,
		remote:     remote,
		logger:     opts.Logger,
		now:        time.Now,
		requested:  map[Kind]uint64{},
		applied:    map[Kind]uint64{},
		kindMu:     map[Kind]*sync.Mutex{},
		hubs:       map[Kind]*Hub[Result]{},
		all:        NewHub[Result](),
	}
	for _, k := range seqKinds {
		b.kindMu[k] = &sync.Mutex{}
	}
	for _, k := range Kinds {
		b.hubs[k] = NewHub[Result]()
	}
	b.snapshot = status.Snapshot{Files: []status.FileView{}}
	return b
}

// Subscribe registers fn for results of one kind. Listeners must not block
// and must not call Handle synchronously.
func (b *Bus) Subscribe(kind Kind, fn func(Result)) (unsubscribe func()) {
	h, ok := b.hubs[kind]
	if !ok {
		panic(fmt.Sprintf("bus: unknown result kind %q", kind))
	}
	return h.Subscribe(fn)
}

// SubscribeAll registers fn for every result.
func (b *Bus) SubscribeAll(fn func(Result)) (unsubscribe func()) {
	return b.all.Subscribe(fn)
}

func (b *Bus) publish(r Result) {
	b.hubs[r.Kind()].Publish(r)
	b.all.Publish(r)
}

type requestIDKey struct{}

// RequestID returns the correlation id Dispatch attached to ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Dispatch handles cmd on its own goroutine and returns its correlation id.
func (b *Bus) Dispatch(ctx context.Context, cmd Command) string {
	id := uuid.NewString()
	ctx = context.WithValue(ctx, requestIDKey{}, id)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		_ = b.Handle(ctx, cmd)
	}()
	return id
}

// Wait blocks until every dispatched command has finished.
func (b *Bus) Wait() {
	b.wg.Wait()
}

// Handle runs cmd to completion. A failure is published as a Notice and
// also returned.
func (b *Bus) Handle(ctx context.Context, cmd Command) error {
	logger := b.logger.With("command", fmt.Sprintf("%T", cmd))
	if id := RequestID(ctx); id != "" {
		logger = logger.With("request_id", id)
	}
	logger.Debug("handling command")

	err := b.handle(ctx, cmd)
	if err != nil {
		logger.Warn("command failed", "error", err)
		b.publish(Notice{Category: categorize(err), Text: err.Error(), RequestID: RequestID(ctx)})
	}
	return err
}

func (b *Bus) handle(ctx context.Context, cmd Command) error {
	switch c := cmd.(type) {
	case GetStatus:
		b.refreshStatus(ctx)
		return nil
	case StageFile:
		return b.mutate(ctx, requirePath(c.Path), func() error { return b.git.StageFile(ctx, c.Path) }, KindStatus)
	case UnstageFile:
		return b.mutate(ctx, requirePath(c.Path), func() error { return b.git.UnstageFile(ctx, c.Path) }, KindStatus)
	case StageAll:
		return b.mutate(ctx, nil, func() error { return b.git.StageAll(ctx) }, KindStatus)
	case UnstageAll:
		return b.mutate(ctx, nil, func() error { return b.git.UnstageAll(ctx) }, KindStatus)
	case DiscardChanges:
		return b.mutate(ctx, requirePath(c.Path), func() error { return b.git.Discard(ctx, c.Path) }, KindStatus)
	case Commit:
		return b.mutate(ctx, workflow.ValidateCommitMessage(c.Message),
			func() error { return b.git.Commit(ctx, c.Message, c.Description) }, KindStatus, KindHistory)
	case AmendLastCommit:
		return b.mutate(ctx, nil, func() error { return b.git.Amend(ctx, c.Message) }, KindStatus, KindHistory)
	case GetBranches:
		b.refreshBranches(ctx)
		return nil
	case SwitchBranch:
		return b.switchBranch(ctx, c)
	case CreateBranch:
		return b.createBranch(ctx, c)
	case StashChanges:
		return b.stash(ctx, c.Message)
	case GetCommitHistory:
		b.refreshHistory(ctx)
		return nil
	case LoadMoreCommits:
		return b.loadMore(ctx, c.Offset)
	case GetPullRequests:
		b.refreshPullRequests(ctx)
		return nil
	case SwitchToPR:
		return b.switchToPR(ctx, c)
	case OpenExternalURL:
		return b.host.OpenURL(ctx, c.URL)
	case OpenSettings:
		return b.host.OpenSettings(ctx, c.Section)
	case GetFullFilePath:
		return b.fullFilePath(c.Path)
	default:
		return fmt.Errorf("unhandled command %T", cmd)
	}
}

// mutate runs op after validation and follows a success with the re-reads
// named by kinds.
func (b *Bus) mutate(ctx context.Context, invalid error, op func() error, kinds ...Kind) error {
	if invalid != nil {
		return invalid
	}
	if err := op(); err != nil {
		return err
	}
	b.reread(ctx, kinds...)
	return nil
}

func (b *Bus) reread(ctx context.Context, kinds ...Kind) {
	for _, k := range kinds {
		switch k {
		case KindStatus:
			b.refreshStatus(ctx)
		case KindHistory:
			b.refreshHistory(ctx)
		case KindBranches:
			b.refreshBranches(ctx)
		case KindPullRequests:
			b.refreshPullRequests(ctx)
		}
	}
}

func requirePath(p string) error {
	if strings.TrimSpace(p) == "" {
		return &workflow.ValidationError{Field: "path", Reason: "must not be empty"}
	}
	return nil
}

func (b *Bus) nextSeq(k Kind) uint64 {
	b.seqMu.Lock()
	defer b.seqMu.Unlock()
	b.requested[k]++
	return b.requested[k]
}

// apply stores and publishes the result of read seq unless a newer read of
// the same kind was already applied.
func (b *Bus) apply(k Kind, seq uint64, store func(), r Result) bool {
	km := b.kindMu[k]
	km.Lock()
	defer km.Unlock()

	b.seqMu.Lock()
	if seq <= b.applied[k] {
		last := b.applied[k]
		b.seqMu.Unlock()
		b.logger.Debug("dropping stale reply", "kind", string(k), "seq", seq, "applied", last)
		return false
	}
	b.applied[k] = seq
	b.seqMu.Unlock()

	b.mu.Lock()
	store()
	b.mu.Unlock()

	b.publish(r)
	return true
}

func (b *Bus) refreshStatus(ctx context.Context) {
	seq := b.nextSeq(KindStatus)
	snap, err := b.readStatus(ctx)
	if err != nil {
		b.logger.Warn("status read failed", "error", err)
		snap = status.Snapshot{Files: []status.FileView{}, Branch: "unknown", Error: err.Error()}
	}
	snap.Seq = seq
	snap.TakenAt = b.now()

	b.apply(KindStatus, seq, func() { b.snapshot = snap }, StatusUpdate{Snapshot: snap.Clone()})
}

func (b *Bus) readStatus(ctx context.Context) (status.Snapshot, error) {
	head, err := b.backend.Head(ctx)
	if err != nil {
		return status.Snapshot{}, err
	}
	ahead, behind, err := b.backend.AheadBehind(ctx)
	if err != nil {
		return status.Snapshot{}, err
	}
	index, worktree, err := b.backend.Changes(ctx)
	if err != nil {
		return status.Snapshot{}, err
	}
	return status.Snapshot{
		Files:  b.reconciler.Reconcile(index, worktree),
		Branch: head,
		Ahead:  ahead,
		Behind: behind,
	}, nil
}

func (b *Bus) refreshHistory(ctx context.Context) {
	seq := b.nextSeq(KindHistory)
	commits, err := b.pager.FirstPage(ctx)
	upd := CommitHistoryUpdate{Commits: commits}
	if err != nil {
		b.logger.Warn("history read failed", "error", err)
		upd = CommitHistoryUpdate{Commits: []history.Commit{}, Error: err.Error()}
	}
	if upd.Commits == nil {
		upd.Commits = []history.Commit{}
	}

	list := upd.Commits
	upd.Commits = append([]history.Commit(nil), list...)
	b.apply(KindHistory, seq, func() { b.commits = list }, upd)
}

// loadMore appends the page at offset. The page is dropped when a full
// history refresh landed in the meantime or offset no longer matches the
// list length.
func (b *Bus) loadMore(ctx context.Context, offset int) error {
	if offset < 0 {
		return &workflow.ValidationError{Field: "offset", Reason: "must not be negative"}
	}

	b.seqMu.Lock()
	generation := b.applied[KindHistory]
	b.seqMu.Unlock()

	page, err := b.pager.LoadMore(ctx, offset)
	if err != nil {
		return fmt.Errorf("load more commits: %w", err)
	}

	km := b.kindMu[KindHistory]
	km.Lock()
	defer km.Unlock()

	b.seqMu.Lock()
	current := b.applied[KindHistory]
	b.seqMu.Unlock()

	b.mu.Lock()
	if current != generation || offset != len(b.commits) {
		n := len(b.commits)
		b.mu.Unlock()
		b.logger.Debug("dropping stale page", "offset", offset, "have", n, "generation", generation, "current", current)
		return nil
	}
	b.commits = history.Extend(b.commits, page)
	b.mu.Unlock()

	if page == nil {
		page = []history.Commit{}
	}
	b.publish(AdditionalCommits{Commits: append([]history.Commit(nil), page...), Offset: offset})
	return nil
}

func (b *Bus) refreshBranches(ctx context.Context) {
	seq := b.nextSeq(KindBranches)
	set, err := b.readBranches(ctx)
	upd := BranchesUpdate{Branches: set}
	if err != nil {
		b.logger.Warn("branch read failed", "error", err)
		upd = BranchesUpdate{Branches: BranchSet{Names: []string{}}, Error: err.Error()}
	}
	stored := upd.Branches
	upd.Branches = stored.clone()
	b.apply(KindBranches, seq, func() { b.branches = stored }, upd)
}

func (b *Bus) readBranches(ctx context.Context) (BranchSet, error) {
	names, err := b.backend.Branches(ctx)
	if err != nil {
		return BranchSet{}, err
	}
	if names == nil {
		names = []string{}
	}
	head, err := b.backend.Head(ctx)
	if err != nil {
		return BranchSet{}, err
	}
	return NewBranchSet(names, head), nil
}

func (b *Bus) refreshPullRequests(ctx context.Context) {
	seq := b.nextSeq(KindPullRequests)
	listing := b.prs.List(ctx)
	b.apply(KindPullRequests, seq, func() { b.listing = listing }, PullRequestsUpdate{Listing: cloneListing(listing)})
}

func cloneListing(l github.Listing) github.Listing {
	out := l
	out.PullRequests = append([]github.PullRequest{}, l.PullRequests...)
	if l.Repository != nil {
		r := *l.Repository
		out.Repository = &r
	}
	return out
}

// repoState reads what the branch workflow needs straight from the backend
// rather than from possibly stale published state.
func (b *Bus) repoState(ctx context.Context) (workflow.RepoState, error) {
	set, err := b.readBranches(ctx)
	if err != nil {
		return workflow.RepoState{}, err
	}
	index, worktree, err := b.backend.Changes(ctx)
	if err != nil {
		return workflow.RepoState{}, err
	}
	return workflow.RepoState{
		CurrentBranch: set.Current,
		DefaultBranch: set.Default,
		Branches:      set.Names,
		Uncommitted:   len(b.reconciler.Reconcile(index, worktree)),
	}, nil
}

// branchOps adapts the bus to the workflow side effects. Refresh re-reads
// status, branches and history.
type branchOps struct {
	b *Bus
}

func (o branchOps) Stash(ctx context.Context, msg string) error { return o.b.git.Stash(ctx, msg) }
func (o branchOps) Checkout(ctx context.Context, name string) error {
	return o.b.git.Checkout(ctx, name)
}
func (o branchOps) CreateBranch(ctx context.Context, name, base string) error {
	return o.b.git.CreateBranch(ctx, name, base)
}
func (o branchOps) Refresh(ctx context.Context) error {
	o.b.reread(ctx, KindStatus, KindBranches, KindHistory)
	return nil
}

func (b *Bus) switchBranch(ctx context.Context, c SwitchBranch) error {
	if strings.TrimSpace(c.Name) == "" {
		return &workflow.ValidationError{Field: "branch name", Reason: "must not be empty"}
	}
	if err := workflow.ValidateStashAction(c.StashAction); err != nil {
		return err
	}
	r, err := b.repoState(ctx)
	if err != nil {
		return fmt.Errorf("read repository state: %w", err)
	}
	m := workflow.Resolved(workflow.ModeSwitch, r, workflow.Intent{Name: c.Name, StashAction: c.StashAction}, b.logger)
	return m.Run(ctx, branchOps{b})
}

func (b *Bus) createBranch(ctx context.Context, c CreateBranch) error {
	if err := workflow.ValidateBranchName(c.Name, nil); err != nil {
		return err
	}
	if err := workflow.ValidateBase(c.BaseBranch); err != nil {
		return err
	}
	if err := workflow.ValidateStashAction(c.StashAction); err != nil {
		return err
	}
	r, err := b.repoState(ctx)
	if err != nil {
		return fmt.Errorf("read repository state: %w", err)
	}
	m := workflow.Resolved(workflow.ModeCreate, r, workflow.Intent{Name: c.Name, Base: c.BaseBranch, StashAction: c.StashAction}, b.logger)
	return m.Run(ctx, branchOps{b})
}

func (b *Bus) stash(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		head, err := b.backend.Head(ctx)
		if err != nil || head == "" {
			head = "unknown"
		}
		message = "WIP on " + head
	}
	return b.mutate(ctx, nil, func() error { return b.git.Stash(ctx, message) }, KindStatus)
}

func (b *Bus) switchToPR(ctx context.Context, c SwitchToPR) error {
	branch := strings.TrimSpace(c.Branch)
	switch {
	case branch == "":
		return &workflow.ValidationError{Field: "branch name", Reason: "invalid branch name received"}
	case branch == github.UnknownBranch:
		return &workflow.ValidationError{Field: "branch name", Reason: "branch name could not be determined from pull request data"}
	}
	logger := b.logger.With("pr", c.Number, "branch", branch)

	set, err := b.readBranches(ctx)
	if err != nil {
		return fmt.Errorf("list branches: %w", err)
	}
	if !set.Contains(branch) {
		logger.Info("branch not local, fetching from remote", "remote", b.remote)
		if err := b.git.FetchBranch(ctx, b.remote, branch); err != nil {
			return fmt.Errorf("branch %q does not exist locally and could not be fetched from %s: %w", branch, b.remote, err)
		}
	}
	if err := b.git.Checkout(ctx, branch); err != nil {
		return err
	}
	logger.Info("switched to pull request branch")
	b.reread(ctx, KindStatus, KindBranches, KindHistory)
	return nil
}

func (b *Bus) fullFilePath(p string) error {
	if err := requirePath(p); err != nil {
		return err
	}
	clean := path.Clean(filepath.ToSlash(p))
	if clean == ".." || strings.HasPrefix(clean, "../") || path.IsAbs(clean) {
		return &workflow.ValidationError{Field: "path", Reason: fmt.Sprintf("%q is outside the repository", p)}
	}
	b.publish(FullFilePath{Path: p, FullPath: filepath.Join(b.git.Dir(), filepath.FromSlash(clean))})
	return nil
}

func categorize(err error) NoticeCategory {
	var (
		ve *workflow.ValidationError
		ae *github.APIError
	)
	switch {
	case errors.As(err, &ve):
		return NoticeValidationFailure
	case errors.As(err, &ae):
		return NoticeRemoteAPIFailure
	case errors.Is(err, git.ErrNoRepository), errors.Is(err, github.ErrNoRemote), errors.Is(err, github.ErrNoToken):
		return NoticeConfigurationMissing
	default:
		return NoticeProcessFailure
	}
}

// Snapshot returns a copy of the last applied status.
func (b *Bus) Snapshot() status.Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot.Clone()
}

// Commits returns a copy of the loaded history.
func (b *Bus) Commits() []history.Commit {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]history.Commit(nil), b.commits...)
}

// Branches returns a copy of the last applied branch set.
func (b *Bus) Branches() BranchSet {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.branches.clone()
}

// PullRequests returns a copy of the last applied pull request listing.
func (b *Bus) PullRequests() github.Listing {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return cloneListing(b.listing)
}
