package github

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// TokenSource yields an access token for host, or "" when it has none.
type TokenSource interface {
	Token(ctx context.Context, host string) (string, error)
}

// GHSession reuses the session the gh CLI already holds.
type GHSession struct {
	Bin    string
	logger *slog.Logger
}

func NewGHSession(logger *slog.Logger) *GHSession {
	return &GHSession{Bin: "gh", logger: logger}
}

func (g *GHSession) Token(ctx context.Context, host string) (string, error) {
	if _, err := exec.LookPath(g.Bin); err != nil {
		return "", nil
	}
	args := []string{"auth", "token", "--hostname", host}
	g.logger.Debug("gh", "args", strings.Join(args[:2], " "), "host", host)
	cmd := exec.CommandContext(ctx, g.Bin, args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// EnvSession reads GH_TOKEN, then GITHUB_TOKEN.
type EnvSession struct {
	Getenv func(string) string
}

func (e EnvSession) Token(_ context.Context, _ string) (string, error) {
	getenv := e.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, key := range []string{"GH_TOKEN", "GITHUB_TOKEN"} {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v, nil
		}
	}
	return "", nil
}

// StaticToken is a token taken from configuration.
type StaticToken string

func (s StaticToken) Token(context.Context, string) (string, error) {
	return strings.TrimSpace(string(s)), nil
}

// Chain asks each source in order and returns the first non-empty token.
// Failing sources are skipped.
type Chain struct {
	sources []TokenSource
	logger  *slog.Logger
}

func NewChain(logger *slog.Logger, sources ...TokenSource) *Chain {
	return &Chain{sources: sources, logger: logger}
}

func (c *Chain) Token(ctx context.Context, host string) (string, error) {
	for _, s := range c.sources {
		tok, err := s.Token(ctx, host)
		if err != nil {
			c.logger.Debug("token source failed", "source", fmt.Sprintf("%T", s), "error", err)
			continue
		}
		if tok != "" {
			return tok, nil
		}
	}
	return "", nil
}
