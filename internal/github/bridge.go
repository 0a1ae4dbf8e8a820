package github

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var (
	// ErrNoRemote means the working copy has no usable remote URL.
	ErrNoRemote = errors.New("no remote configured")
	// ErrNoToken means no token source produced a token.
	ErrNoToken = errors.New("no GitHub token available")
)

const (
	authRequiredTitle = "GitHub Authentication Required"
	authRequiredHint  = "Sign in with `gh auth login`, export GH_TOKEN or GITHUB_TOKEN, or set github.token in the config file"
	apiErrorTitle     = "GitHub API Error"
	noRemoteMessage   = "Unable to determine repository information. Make sure you have a remote origin configured."
	systemAuthor      = "system"
)

// RemoteSource resolves the URL of a named remote. "" means not configured.
type RemoteSource interface {
	RemoteURL(ctx context.Context, remote string) (string, error)
}

// Lister fetches open pull requests.
type Lister interface {
	ListOpen(ctx context.Context, repo Repository, token string) ([]PullRequest, error)
}

// Listing is what the UI receives for a pull request refresh.
type Listing struct {
	PullRequests []PullRequest `json:"pullRequests"`
	Repository   *Repository   `json:"repository,omitempty"`
	Message      string        `json:"message,omitempty"`
}

// Bridge combines remote resolution, token lookup and the API client. Its
// List never fails: problems come back as a message or an info record.
type Bridge struct {
	remote  string
	remotes RemoteSource
	tokens  TokenSource
	api     Lister
	logger  *slog.Logger
	now     func() time.Time
}

func NewBridge(remote string, remotes RemoteSource, tokens TokenSource, api Lister, logger *slog.Logger) *Bridge {
	if remote == "" {
		remote = "origin"
	}
	return &Bridge{remote: remote, remotes: remotes, tokens: tokens, api: api, logger: logger, now: time.Now}
}

// Repository resolves the hosted repository behind the configured remote.
func (b *Bridge) Repository(ctx context.Context) (Repository, error) {
	raw, err := b.remotes.RemoteURL(ctx, b.remote)
	if err != nil {
		return Repository{}, err
	}
	if raw == "" {
		return Repository{}, ErrNoRemote
	}
	repo, err := ParseRemoteURL(raw)
	if err != nil {
		return Repository{}, errors.Join(ErrNoRemote, err)
	}
	return repo, nil
}

func (b *Bridge) List(ctx context.Context) Listing {
	repo, err := b.Repository(ctx)
	if err != nil {
		b.logger.Info("pull requests unavailable", "remote", b.remote, "error", err)
		return Listing{PullRequests: []PullRequest{}, Message: noRemoteMessage}
	}

	token, err := b.tokens.Token(ctx, repo.Host)
	if err == nil && token == "" {
		err = ErrNoToken
	}
	if err != nil {
		b.logger.Info("no GitHub token", "host", repo.Host)
		return Listing{
			PullRequests: []PullRequest{b.info(repo, authRequiredTitle, authRequiredHint)},
			Repository:   &repo,
		}
	}

	prs, err := b.api.ListOpen(ctx, repo, token)
	if err != nil {
		b.logger.Warn("list pull requests failed", "repo", repo.String(), "error", err)
		return Listing{
			PullRequests: []PullRequest{b.info(repo, apiErrorTitle, "API Error: "+err.Error())},
			Repository:   &repo,
		}
	}
	return Listing{PullRequests: prs, Repository: &repo}
}

func (b *Bridge) info(repo Repository, title, message string) PullRequest {
	return PullRequest{
		Title:     title,
		Author:    systemAuthor,
		Branch:    "main",
		CreatedAt: b.now(),
		Status:    StatusInfo,
		URL:       repo.PullsURL(),
		Message:   message,
	}
}
