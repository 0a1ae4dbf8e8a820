package bus

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"runtime"

	"github.com/marcin-skalski/gitdesk/internal/workflow"
)

// Host performs UI pass-through actions outside the repository.
type Host interface {
	OpenURL(ctx context.Context, rawURL string) error
	OpenSettings(ctx context.Context, section string) error
}

// ExecHost opens things with the desktop's default handler.
type ExecHost struct {
	ConfigPath string
	logger     *slog.Logger
}

func NewExecHost(configPath string, logger *slog.Logger) *ExecHost {
	return &ExecHost{ConfigPath: configPath, logger: logger}
}

// OpenURL opens an http(s) URL in the browser.
func (h *ExecHost) OpenURL(ctx context.Context, rawURL string) error {
	if err := ValidateExternalURL(rawURL); err != nil {
		return err
	}
	return h.open(ctx, rawURL)
}

// OpenSettings opens the config file. The section is only logged.
func (h *ExecHost) OpenSettings(ctx context.Context, section string) error {
	if h.ConfigPath == "" {
		return fmt.Errorf("no config file path known")
	}
	h.logger.Info("opening settings", "section", section, "path", h.ConfigPath)
	return h.open(ctx, h.ConfigPath)
}

func (h *ExecHost) open(_ context.Context, target string) error {
	bin := "xdg-open"
	if runtime.GOOS == "darwin" {
		bin = "open"
	}
	h.logger.Debug("exec", "cmd", bin, "target", target)
	// Not bound to ctx: the opener outlives the request.
	cmd := exec.Command(bin, target)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%s: %w", bin, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// ValidateExternalURL accepts absolute http and https URLs only.
func ValidateExternalURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return &workflow.ValidationError{Field: "url", Reason: fmt.Sprintf("%q is not an http(s) URL", rawURL)}
	}
	return nil
}
