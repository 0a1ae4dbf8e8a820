package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Repo         string        `yaml:"repo"`
	GitBinary    string        `yaml:"git_binary"`
	Backend      string        `yaml:"backend"`
	Remote       string        `yaml:"remote"`
	PollInterval time.Duration `yaml:"-"`
	RawInterval  string        `yaml:"poll_interval"`
	LogFile      string        `yaml:"log_file"`
	Log          LogConfig     `yaml:"log"`
	GitHub       GitHubConfig  `yaml:"github"`
	History      HistoryConfig `yaml:"history"`
	Watch        WatchConfig   `yaml:"watch"`
	TUI          TUIConfig     `yaml:"tui"`

	// path the config was loaded from, empty when defaults are used
	Path string `yaml:"-"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type GitHubConfig struct {
	Token      string        `yaml:"token"`
	APIURL     string        `yaml:"api_url"`
	Timeout    time.Duration `yaml:"-"`
	RawTimeout string        `yaml:"timeout"`
	PerPage    int           `yaml:"per_page"`
	UseGHCLI   *bool         `yaml:"use_gh_cli,omitempty"`
}

type HistoryConfig struct {
	PageSize int `yaml:"page_size"`
}

type WatchConfig struct {
	Enabled     *bool         `yaml:"enabled,omitempty"`
	Debounce    time.Duration `yaml:"-"`
	RawDebounce string        `yaml:"debounce"`
}

type TUIConfig struct {
	RefreshInterval time.Duration `yaml:"-"`
	RawInterval     string        `yaml:"refresh_interval"`
}

// Load reads the YAML config at path. A missing file is not an error: the
// defaults are returned instead.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		cfg.Path = path
	}

	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Default returns a config with every default applied.
func Default() *Config {
	var cfg Config
	// defaults never fail to parse
	_ = cfg.setDefaults()
	return &cfg
}

func (c *Config) setDefaults() error {
	if c.Repo == "" {
		c.Repo = "."
	}
	if c.GitBinary == "" {
		c.GitBinary = "git"
	}
	if c.Backend == "" {
		c.Backend = "exec"
	}
	if c.Remote == "" {
		c.Remote = "origin"
	}

	if c.RawInterval == "" {
		c.RawInterval = "60s"
	}
	d, err := time.ParseDuration(c.RawInterval)
	if err != nil {
		return fmt.Errorf("parse poll_interval %q: %w", c.RawInterval, err)
	}
	c.PollInterval = d

	if c.LogFile == "" {
		c.LogFile = defaultLogFile()
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.GitHub.APIURL == "" {
		c.GitHub.APIURL = "https://api.github.com"
	}
	c.GitHub.APIURL = strings.TrimRight(c.GitHub.APIURL, "/")
	if c.GitHub.RawTimeout == "" {
		c.GitHub.RawTimeout = "10s"
	}
	timeout, err := time.ParseDuration(c.GitHub.RawTimeout)
	if err != nil {
		return fmt.Errorf("parse github.timeout %q: %w", c.GitHub.RawTimeout, err)
	}
	c.GitHub.Timeout = timeout
	if c.GitHub.PerPage == 0 {
		c.GitHub.PerPage = 10
	}
	if c.GitHub.UseGHCLI == nil {
		defaultTrue := true
		c.GitHub.UseGHCLI = &defaultTrue
	}

	if c.History.PageSize == 0 {
		c.History.PageSize = 30
	}

	if c.Watch.Enabled == nil {
		defaultTrue := true
		c.Watch.Enabled = &defaultTrue
	}
	if c.Watch.RawDebounce == "" {
		c.Watch.RawDebounce = "300ms"
	}
	debounce, err := time.ParseDuration(c.Watch.RawDebounce)
	if err != nil {
		return fmt.Errorf("parse watch.debounce %q: %w", c.Watch.RawDebounce, err)
	}
	c.Watch.Debounce = debounce

	if c.TUI.RawInterval == "" {
		c.TUI.RawInterval = "1s"
	}
	tuiInterval, err := time.ParseDuration(c.TUI.RawInterval)
	if err != nil {
		return fmt.Errorf("parse tui.refresh_interval %q: %w", c.TUI.RawInterval, err)
	}
	if tuiInterval <= 0 {
		return fmt.Errorf("tui.refresh_interval must be positive, got %s", c.TUI.RawInterval)
	}
	c.TUI.RefreshInterval = tuiInterval

	return nil
}

func (c *Config) validate() error {
	switch c.Backend {
	case "exec", "gogit":
	default:
		return fmt.Errorf("invalid backend %q (exec|gogit)", c.Backend)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q (debug|info|warn|error)", c.Log.Level)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.RawInterval)
	}
	if c.GitHub.Timeout <= 0 {
		return fmt.Errorf("github.timeout must be positive, got %s", c.GitHub.RawTimeout)
	}
	if c.GitHub.PerPage < 1 || c.GitHub.PerPage > 100 {
		return fmt.Errorf("github.per_page must be within 1..100, got %d", c.GitHub.PerPage)
	}
	if c.History.PageSize < 1 {
		return fmt.Errorf("history.page_size must be positive, got %d", c.History.PageSize)
	}
	if c.Watch.Debounce <= 0 {
		return fmt.Errorf("watch.debounce must be positive, got %s", c.Watch.RawDebounce)
	}
	return nil
}

// WatchEnabled reports whether the file watcher should run.
func (c *Config) WatchEnabled() bool {
	return c.Watch.Enabled != nil && *c.Watch.Enabled
}

func defaultLogFile() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "gitdesk", "gitdesk.log")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "gitdesk", "gitdesk.log")
	}
	return filepath.Join(home, ".local", "state", "gitdesk", "gitdesk.log")
}
