package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
)

// ErrNoRepository is returned when the configured directory is not inside a
// git working copy.
var ErrNoRepository = errors.New("not a git repository")

// Runner executes one git invocation in dir and returns its stdout with
// trailing whitespace removed. Leading whitespace is significant for
// porcelain output and is kept.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// ProcessError is a git invocation that exited non-zero or could not start.
type ProcessError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *ProcessError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("git %s: %s", subcommand(e.Args), msg)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// ExecRunner spawns a fresh git process per call. There is no queue and no
// process reuse; ctx only carries shutdown.
type ExecRunner struct {
	bin    string
	logger *slog.Logger
}

func NewExecRunner(bin string, logger *slog.Logger) *ExecRunner {
	if strings.TrimSpace(bin) == "" {
		bin = "git"
	}
	return &ExecRunner{bin: bin, logger: logger}
}

func (r *ExecRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	r.logger.Debug("exec", "cmd", r.bin+" "+strings.Join(args, " "), "dir", dir)

	cmd := exec.CommandContext(ctx, r.bin, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		return "", &ProcessError{
			Args:   append([]string(nil), args...),
			Stderr: redactTokens(msg),
			Err:    err,
		}
	}
	return strings.TrimRight(stdout.String(), " \t\r\n"), nil
}

var safeWord = regexp.MustCompile(`^[a-z][a-z-]*$`)

// subcommand keeps at most the first two plain words of args so paths and
// URLs never end up in error text.
func subcommand(args []string) string {
	safe := make([]string, 0, 2)
	for _, a := range args {
		if !safeWord.MatchString(a) {
			break
		}
		safe = append(safe, a)
		if len(safe) == 2 {
			break
		}
	}
	if len(safe) == 0 {
		return "<redacted>"
	}
	return strings.Join(safe, " ")
}

var (
	credentialURL = regexp.MustCompile(`(https?)://[^\s@/]+@`)
	credentialKV  = regexp.MustCompile(`(?i)(token|secret|password|passwd|bearer)=[^\s]+`)
)

func redactTokens(s string) string {
	s = credentialURL.ReplaceAllString(s, "$1://<redacted>@")
	return credentialKV.ReplaceAllString(s, "$1=<redacted>")
}
