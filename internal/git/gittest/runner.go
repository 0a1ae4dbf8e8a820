// Package gittest provides a scripted git.Runner for tests.
package gittest

import (
	"context"
	"strings"
	"sync"

	"github.com/marcin-skalski/gitdesk/internal/git"
)

// Reply is the canned outcome of one invocation.
type Reply struct {
	Out    string
	Stderr string
	Fail   bool
}

// Runner records every invocation and answers from replies keyed by the
// space-joined argument vector. The longest matching prefix wins; unknown
// commands succeed with empty output.
type Runner struct {
	mu      sync.Mutex
	replies map[string]Reply
	calls   [][]string
}

func NewRunner() *Runner {
	return &Runner{replies: map[string]Reply{}}
}

// On registers the reply for invocations starting with args.
func (r *Runner) On(args string, reply Reply) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies[args] = reply
	return r
}

func (r *Runner) Run(_ context.Context, _ string, args ...string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string(nil), args...))

	joined := strings.Join(args, " ")
	best, found := "", false
	for k := range r.replies {
		if (joined == k || strings.HasPrefix(joined, k+" ")) && len(k) >= len(best) {
			best, found = k, true
		}
	}
	if !found {
		return "", nil
	}
	rep := r.replies[best]
	if rep.Fail {
		return "", &git.ProcessError{Args: args, Stderr: rep.Stderr}
	}
	return rep.Out, nil
}

// Calls returns the recorded argument vectors joined by spaces.
func (r *Runner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = strings.Join(c, " ")
	}
	return out
}

// Mutations returns the recorded calls minus read-only ones.
func (r *Runner) Mutations() []string {
	var out []string
	for _, c := range r.Calls() {
		if isRead(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

var readPrefixes = []string{
	"status", "branch --show-current", "rev-parse", "rev-list", "for-each-ref", "log", "config --get",
}

func isRead(call string) bool {
	for _, p := range readPrefixes {
		if call == p || strings.HasPrefix(call, p+" ") {
			return true
		}
	}
	return false
}

// Reset forgets recorded calls but keeps the replies.
func (r *Runner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
