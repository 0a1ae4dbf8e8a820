package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/marcin-skalski/gitdesk/internal/config"
	"github.com/marcin-skalski/gitdesk/internal/daemon"
	"github.com/marcin-skalski/gitdesk/internal/ipc"
	"github.com/marcin-skalski/gitdesk/internal/logging"
	"github.com/marcin-skalski/gitdesk/internal/tui"
)

func main() {
	configPath := flag.String("config", "gitdesk.yaml", "path to config file")
	repo := flag.String("repo", "", "working copy to open (overrides config)")
	stdio := flag.Bool("stdio", false, "speak JSON lines on stdin/stdout instead of drawing a TUI")
	noTUI := flag.Bool("no-tui", false, "disable TUI mode")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *repo != "" {
		cfg.Repo = *repo
	}

	// Auto-detect TUI capability
	enableTUI := !*stdio && !*noTUI && os.Getenv("GITDESK_TUI") != "0" &&
		isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())

	logger, err := logging.SetupLogger(cfg.LogFile, cfg.Log.Level, enableTUI || *stdio)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logging.CloseFile() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := daemon.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *stdio:
		// Daemon in background, JSON transport in foreground; EOF on stdin ends the session.
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		s := ipc.NewServer(d.Bus(), os.Stdout, logger)
		done := make(chan error, 1)
		go func() { done <- d.Run(ctx) }()

		logger.Info("gitdesk serving stdio", "repo", d.Root())
		if err := s.Serve(ctx, os.Stdin); err != nil {
			logger.Error("stdio transport", "err", err)
		}
		cancel()
		if err := <-done; err != nil {
			logger.Error("daemon error", "err", err)
			os.Exit(1)
		}

	case enableTUI:
		// TUI mode: run daemon in background, TUI in foreground
		errCh := make(chan error, 1)
		go func() {
			logger.Info("gitdesk daemon starting in background", "config", *configPath, "repo", d.Root())
			if err := d.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("daemon error", "err", err)
				errCh <- err
			}
		}()

		m := tui.NewModel(ctx, d, cfg.TUI.RefreshInterval, logger)
		p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

		// Exit if daemon fails immediately
		go func() {
			if err := <-errCh; err != nil {
				p.Send(tea.Quit())
			}
		}()

		if _, err := p.Run(); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			os.Exit(1)
		}

	default:
		// Headless mode
		logger.Info("gitdesk starting (headless)", "config", *configPath, "repo", d.Root())
		if err := d.Run(ctx); err != nil {
			logger.Error("daemon error", "err", err)
			os.Exit(1)
		}
	}
}
