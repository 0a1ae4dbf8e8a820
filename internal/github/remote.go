package github

import (
	"fmt"
	"net/url"
	"strings"
)

// Repository identifies a hosted repository.
type Repository struct {
	Host  string `json:"host"`
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

func (r Repository) String() string {
	return r.Owner + "/" + r.Name
}

// PullsURL is the web page listing the repository's pull requests.
func (r Repository) PullsURL() string {
	return fmt.Sprintf("https://%s/%s/%s/pulls", r.Host, r.Owner, r.Name)
}

// ParseRemoteURL understands https://, ssh:// and scp-like remote URLs.
func ParseRemoteURL(raw string) (Repository, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Repository{}, fmt.Errorf("empty remote URL")
	}

	var host, p string
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return Repository{}, fmt.Errorf("parse remote URL: %w", err)
		}
		switch u.Scheme {
		case "https", "http", "ssh", "git":
		default:
			return Repository{}, fmt.Errorf("unsupported remote scheme %q", u.Scheme)
		}
		host, p = u.Hostname(), u.Path
	} else {
		// scp-like: [user@]host:owner/repo
		at := strings.LastIndex(raw, "@")
		rest := raw[at+1:]
		colon := strings.Index(rest, ":")
		if colon <= 0 {
			return Repository{}, fmt.Errorf("unrecognized remote URL %q", raw)
		}
		host, p = rest[:colon], rest[colon+1:]
	}

	p = strings.Trim(p, "/")
	p = strings.TrimSuffix(p, ".git")
	parts := strings.Split(p, "/")
	if host == "" || len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Repository{}, fmt.Errorf("unrecognized remote URL %q", raw)
	}
	return Repository{Host: host, Owner: parts[0], Name: parts[1]}, nil
}
