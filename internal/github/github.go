package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultAPIURL  = "https://api.github.com"
	DefaultTimeout = 10 * time.Second
	DefaultPerPage = 10

	// UnknownBranch stands in for a pull request whose head ref is missing.
	UnknownBranch = "unknown-branch"
	unknownAuthor = "unknown"
	userAgent     = "gitdesk"
)

// PR status values. StatusInfo marks synthetic records that carry a message
// instead of a real pull request.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
	StatusMerged = "merged"
	StatusInfo   = "info"
)

type PullRequest struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Branch    string    `json:"branch"`
	CreatedAt time.Time `json:"createdAt"`
	Status    string    `json:"status"`
	URL       string    `json:"htmlUrl"`
	Message   string    `json:"message,omitempty"`
}

// ErrorKind classifies a failed API call.
type ErrorKind string

const (
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindNotFound     ErrorKind = "notFound"
	KindOther        ErrorKind = "other"
)

type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	switch e.Kind {
	case KindUnauthorized:
		return "GitHub authentication failed. Please check your token."
	case KindForbidden:
		return "Access denied. Please check your token permissions."
	case KindNotFound:
		return "Repository not found or access denied."
	}
	if e.Err != nil {
		return "GitHub API error: " + e.Err.Error()
	}
	return "GitHub API error: " + strconv.Itoa(e.StatusCode)
}

func (e *APIError) Unwrap() error { return e.Err }

func kindFor(code int) ErrorKind {
	switch code {
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	default:
		return KindOther
	}
}

// Client talks to the GitHub REST API.
type Client struct {
	apiURL  string
	perPage int
	timeout time.Duration
	http    *http.Client
	logger  *slog.Logger
}

type ClientOptions struct {
	APIURL  string
	PerPage int
	Timeout time.Duration
	HTTP    *http.Client
}

func NewClient(opts ClientOptions, logger *slog.Logger) *Client {
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.PerPage <= 0 {
		opts.PerPage = DefaultPerPage
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTP == nil {
		opts.HTTP = &http.Client{}
	}
	return &Client{
		apiURL:  strings.TrimRight(opts.APIURL, "/"),
		perPage: opts.PerPage,
		timeout: opts.Timeout,
		http:    opts.HTTP,
		logger:  logger,
	}
}

// apiBase picks the REST root for repo. Enterprise hosts use /api/v3 unless
// an explicit API URL was configured.
func (c *Client) apiBase(repo Repository) string {
	if c.apiURL == DefaultAPIURL && repo.Host != "" && repo.Host != "github.com" {
		return "https://" + repo.Host + "/api/v3"
	}
	return c.apiURL
}

type apiPull struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	State     string     `json:"state"`
	HTMLURL   string     `json:"html_url"`
	CreatedAt time.Time  `json:"created_at"`
	MergedAt  *time.Time `json:"merged_at"`
	User      *struct {
		Login string `json:"login"`
	} `json:"user"`
	Head *struct {
		Ref string `json:"ref"`
	} `json:"head"`
}

// ListOpen fetches the open pull requests of repo.
func (c *Client) ListOpen(ctx context.Context, repo Repository, token string) ([]PullRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/repos/%s/%s/pulls?state=open&per_page=%d", c.apiBase(repo), repo.Owner, repo.Name, c.perPage)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &APIError{Kind: KindOther, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug("list pull requests", "repo", repo.String())
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{Kind: KindOther, Err: fmt.Errorf("network error: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &APIError{Kind: kindFor(resp.StatusCode), StatusCode: resp.StatusCode}
	}

	var pulls []apiPull
	if err := json.NewDecoder(resp.Body).Decode(&pulls); err != nil {
		return nil, &APIError{Kind: KindOther, StatusCode: resp.StatusCode, Err: fmt.Errorf("parse response: %w", err)}
	}

	prs := make([]PullRequest, 0, len(pulls))
	for _, p := range pulls {
		prs = append(prs, convert(p))
	}
	return prs, nil
}

func convert(p apiPull) PullRequest {
	pr := PullRequest{
		Number:    p.Number,
		Title:     p.Title,
		Author:    unknownAuthor,
		Branch:    UnknownBranch,
		CreatedAt: p.CreatedAt,
		Status:    p.State,
		URL:       p.HTMLURL,
	}
	if p.User != nil && p.User.Login != "" {
		pr.Author = p.User.Login
	}
	if p.Head != nil && p.Head.Ref != "" {
		pr.Branch = p.Head.Ref
	}
	if p.MergedAt != nil {
		pr.Status = StatusMerged
	}
	return pr
}
