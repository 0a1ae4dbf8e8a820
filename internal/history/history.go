// Package history turns `git log --shortstat` text into commit records and
// pages through it.
package history

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// PageSize is the number of commits fetched per page.
const PageSize = 30

type Commit struct {
	Hash         string    `json:"hash"`
	Author       string    `json:"author"`
	AuthorEmail  string    `json:"authorEmail"`
	Timestamp    int64     `json:"timestampSeconds"`
	Date         time.Time `json:"date"`
	Subject      string    `json:"subject"`
	FilesChanged int       `json:"filesChanged"`
	Insertions   int       `json:"insertions"`
	Deletions    int       `json:"deletions"`
}

var (
	statLine    = regexp.MustCompile(`^\s*\d+ files? changed`)
	filesRe     = regexp.MustCompile(`(\d+) files? changed`)
	insertionRe = regexp.MustCompile(`(\d+) insertions?`)
	deletionRe  = regexp.MustCompile(`(\d+) deletions?`)
)

// Parse scans raw log output. A line with at least four pipes starts a
// commit; the subject keeps any further pipes. A shortstat line directly
// after a header fills the counters. Anything else is ignored.
func Parse(raw string) []Commit {
	var lines []string
	for _, l := range strings.Split(raw, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}

	var commits []Commit
	for i := 0; i < len(lines); i++ {
		if strings.Count(lines[i], "|") < 4 {
			continue
		}
		c := parseHeader(lines[i])
		if i+1 < len(lines) && isStatLine(lines[i+1]) {
			c.FilesChanged = firstInt(filesRe, lines[i+1])
			c.Insertions = firstInt(insertionRe, lines[i+1])
			c.Deletions = firstInt(deletionRe, lines[i+1])
			i++
		}
		commits = append(commits, c)
	}
	return commits
}

// isStatLine rejects headers whose subject happens to read like a stat line.
func isStatLine(line string) bool {
	return strings.Count(line, "|") < 4 && statLine.MatchString(line)
}

func parseHeader(line string) Commit {
	parts := strings.SplitN(line, "|", 5)
	ts, _ := strconv.ParseInt(strings.TrimSpace(parts[3]), 10, 64)
	return Commit{
		Hash:        strings.TrimSpace(parts[0]),
		Author:      strings.TrimSpace(parts[1]),
		AuthorEmail: strings.TrimSpace(parts[2]),
		Timestamp:   ts,
		Date:        time.Unix(ts, 0).UTC(),
		Subject:     strings.TrimSpace(parts[4]),
	}
}

func firstInt(re *regexp.Regexp, s string) int {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// Extend returns existing followed by page without touching existing.
func Extend(existing, page []Commit) []Commit {
	out := make([]Commit, 0, len(existing)+len(page))
	out = append(out, existing...)
	return append(out, page...)
}

// LogSource produces raw log text starting skip commits from the tip.
type LogSource interface {
	Log(ctx context.Context, skip, limit int) (string, error)
}

type Pager struct {
	src      LogSource
	pageSize int
}

func NewPager(src LogSource, pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = PageSize
	}
	return &Pager{src: src, pageSize: pageSize}
}

func (p *Pager) PageSize() int {
	return p.pageSize
}

// FirstPage reads the newest page.
func (p *Pager) FirstPage(ctx context.Context) ([]Commit, error) {
	return p.LoadMore(ctx, 0)
}

// LoadMore reads the page that starts offset commits from the tip.
func (p *Pager) LoadMore(ctx context.Context, offset int) ([]Commit, error) {
	raw, err := p.src.Log(ctx, offset, p.pageSize)
	if err != nil {
		return nil, err
	}
	return Parse(raw), nil
}
