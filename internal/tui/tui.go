package tui

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcin-skalski/gitdesk/internal/bus"
	"github.com/marcin-skalski/gitdesk/internal/github"
	"github.com/marcin-skalski/gitdesk/internal/workflow"
)

type Provider interface {
	GetSnapshot() Snapshot
	Dispatch(ctx context.Context, cmd bus.Command) string
}

type tab int

const (
	tabChanges tab = iota
	tabHistory
	tabPulls
	tabCount
)

type prompt int

const (
	promptNone prompt = iota
	promptCommit
	promptBranch
	promptBase
	promptDisposition
	promptDiscard
)

type Model struct {
	ctx             context.Context
	provider        Provider
	snapshot        Snapshot
	refreshInterval time.Duration
	logger          *slog.Logger

	tab    tab
	cursor int
	width  int

	prompt   prompt
	input    textinput.Model
	machine  *workflow.Machine
	feedback string // shown under the active prompt, e.g. a rejected branch name
}

type tickMsg time.Time

func NewModel(ctx context.Context, provider Provider, refreshInterval time.Duration, logger *slog.Logger) Model {
	ti := textinput.New()
	ti.Width = 50

	return Model{
		ctx:             ctx,
		provider:        provider,
		snapshot:        provider.GetSnapshot(),
		refreshInterval: refreshInterval,
		logger:          logger,
		input:           ti,
	}
}

func (m Model) Init() tea.Cmd {
	return tickCmd(m.refreshInterval)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if m.prompt != promptNone {
			return m.updatePrompt(msg)
		}
		return m.updateList(msg)

	case tickMsg:
		m.snapshot = m.provider.GetSnapshot()
		m.clampCursor()
		return m, tickCmd(m.refreshInterval)
	}

	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab":
		m.tab = (m.tab + 1) % tabCount
		m.cursor = 0
	case "shift+tab":
		m.tab = (m.tab + tabCount - 1) % tabCount
		m.cursor = 0
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < m.rows()-1 {
			m.cursor++
		}
	case "r":
		// Manual refresh
		for _, cmd := range []bus.Command{bus.GetStatus{}, bus.GetBranches{}, bus.GetCommitHistory{}, bus.GetPullRequests{}} {
			m.dispatch(cmd)
		}
	case "n":
		return m.beginBranch(workflow.ModeCreate)
	case "b":
		return m.beginBranch(workflow.ModeSwitch)
	case "S":
		m.dispatch(bus.StashChanges{})
	case ",":
		m.dispatch(bus.OpenSettings{})
	default:
		switch m.tab {
		case tabChanges:
			return m.updateChanges(msg)
		case tabHistory:
			if msg.String() == "m" {
				m.dispatch(bus.LoadMoreCommits{Offset: len(m.snapshot.Commits)})
			}
		case tabPulls:
			return m.updatePulls(msg)
		}
	}
	return m, nil
}

func (m Model) updateChanges(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	files := m.snapshot.Status.Files
	selected := m.cursor >= 0 && m.cursor < len(files)

	switch msg.String() {
	case " ", "enter":
		if !selected {
			return m, nil
		}
		f := files[m.cursor]
		if f.IsStaged {
			m.dispatch(bus.UnstageFile{Path: f.Path})
		} else {
			m.dispatch(bus.StageFile{Path: f.Path})
		}
	case "a":
		m.dispatch(bus.StageAll{})
	case "u":
		m.dispatch(bus.UnstageAll{})
	case "d":
		if selected {
			m.prompt = promptDiscard
			m.feedback = ""
		}
	case "c":
		return m.openInput(promptCommit, "Summary of changes", 0)
	case "A":
		m.dispatch(bus.AmendLastCommit{})
	}
	return m, nil
}

func (m Model) updatePulls(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	prs := m.snapshot.PullRequests.PullRequests
	if m.cursor < 0 || m.cursor >= len(prs) {
		return m, nil
	}
	pr := prs[m.cursor]

	switch msg.String() {
	case "enter":
		if pr.Status == github.StatusInfo {
			return m, nil
		}
		m.dispatch(bus.SwitchToPR{Number: pr.Number, Branch: pr.Branch})
	case "o":
		if pr.URL != "" {
			m.dispatch(bus.OpenExternalURL{URL: pr.URL})
		}
	}
	return m, nil
}

func (m Model) openInput(p prompt, placeholder string, limit int) (tea.Model, tea.Cmd) {
	m.prompt = p
	m.feedback = ""
	m.input.Reset()
	m.input.Placeholder = placeholder
	m.input.CharLimit = limit
	return m, m.input.Focus()
}

func (m Model) closePrompt() Model {
	m.prompt = promptNone
	m.feedback = ""
	m.machine = nil
	m.input.Blur()
	m.input.Reset()
	return m
}

func (m Model) beginBranch(mode workflow.Mode) (tea.Model, tea.Cmd) {
	machine := workflow.NewMachine(mode, m.snapshot.RepoState(), m.logger)
	if err := machine.Begin(); err != nil {
		m.logger.Warn("branch prompt", "err", err)
		return m, nil
	}
	m.machine = machine
	placeholder := "feature/my-branch"
	if mode == workflow.ModeSwitch {
		placeholder = "branch to switch to"
	}
	return m.openInput(promptBranch, placeholder, workflow.MaxBranchNameLength)
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if msg.String() == "esc" {
		if m.machine != nil {
			m.machine.Cancel()
		}
		return m.closePrompt(), nil
	}

	switch m.prompt {
	case promptCommit:
		if msg.String() == "enter" {
			text := m.input.Value()
			if err := workflow.ValidateCommitMessage(text); err != nil {
				m.feedback = err.Error()
				return m, nil
			}
			m.dispatch(bus.Commit{Message: text})
			return m.closePrompt(), nil
		}

	case promptBranch:
		switch msg.String() {
		case "enter":
			if err := m.machine.Submit(m.input.Value()); err != nil {
				m.feedback = err.Error()
				return m, nil
			}
			return m.advanceBranch()
		case "tab":
			if m.machine.Mode() == workflow.ModeSwitch {
				if matches := m.machine.Filter(m.input.Value()); len(matches) > 0 {
					m.input.SetValue(matches[0])
					m.input.CursorEnd()
				}
			}
			return m, nil
		}

	case promptBase:
		var base workflow.Base
		switch msg.String() {
		case "m":
			base = workflow.BaseMain
		case "c":
			base = workflow.BaseCurrent
		default:
			return m, nil
		}
		if err := m.machine.ChooseBase(base); err != nil {
			m.feedback = err.Error()
			return m, nil
		}
		return m.advanceBranch()

	case promptDisposition:
		var action workflow.StashAction
		switch msg.String() {
		case "l":
			action = workflow.StashLeave
		case "b":
			action = workflow.StashBring
		default:
			return m, nil
		}
		if err := m.machine.ChooseDisposition(action); err != nil {
			m.feedback = err.Error()
			return m, nil
		}
		return m.advanceBranch()

	case promptDiscard:
		if msg.String() == "y" {
			files := m.snapshot.Status.Files
			if m.cursor >= 0 && m.cursor < len(files) {
				m.dispatch(bus.DiscardChanges{Path: files[m.cursor].Path})
			}
		}
		return m.closePrompt(), nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// advanceBranch moves the prompt along with the machine and hands the
// resolved intent to the bus once nothing is left to ask.
func (m Model) advanceBranch() (tea.Model, tea.Cmd) {
	switch m.machine.State() {
	case workflow.StateAwaitBaseBranch:
		m.prompt = promptBase
		m.input.Blur()
		m.feedback = ""
	case workflow.StateAwaitUncommittedDisposition:
		m.prompt = promptDisposition
		m.input.Blur()
		m.feedback = ""
	case workflow.StateDirectCreate, workflow.StateReady:
		in := m.machine.Intent()
		if m.machine.Mode() == workflow.ModeCreate {
			m.dispatch(bus.CreateBranch{Name: in.Name, BaseBranch: in.Base, StashAction: in.StashAction})
		} else {
			m.dispatch(bus.SwitchBranch{Name: in.Name, StashAction: in.StashAction})
		}
		return m.closePrompt(), nil
	}
	return m, nil
}

func (m Model) dispatch(cmd bus.Command) {
	id := m.provider.Dispatch(m.ctx, cmd)
	m.logger.Debug("tui dispatched", "request_id", id)
}

func (m Model) rows() int {
	switch m.tab {
	case tabChanges:
		return len(m.snapshot.Status.Files)
	case tabHistory:
		return len(m.snapshot.Commits)
	case tabPulls:
		return len(m.snapshot.PullRequests.PullRequests)
	}
	return 0
}

func (m *Model) clampCursor() {
	if n := m.rows(); m.cursor >= n {
		m.cursor = max(0, n-1)
	}
}

func (m Model) View() string {
	return renderView(m)
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
