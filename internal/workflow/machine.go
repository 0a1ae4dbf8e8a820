package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
)

type State int

const (
	StateIdle State = iota
	StateFiltering
	StateDirectCreate
	StateAwaitBaseBranch
	StateAwaitUncommittedDisposition
	StateReady
	StateCommitted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFiltering:
		return "filtering"
	case StateDirectCreate:
		return "direct_create"
	case StateAwaitBaseBranch:
		return "await_base_branch"
	case StateAwaitUncommittedDisposition:
		return "await_uncommitted_disposition"
	case StateReady:
		return "ready"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further events are accepted.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateFailed || s == StateCancelled
}

// Mode is the branch operation a Machine walks through.
type Mode int

const (
	ModeCreate Mode = iota
	ModeSwitch
)

// TransitionError is an event that is not valid in the current state.
type TransitionError struct {
	From  State
	Event string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Event, e.From)
}

// Machine holds one pass through the branch prompt sequence. It is not safe
// for concurrent use; a UI owns it for the lifetime of the dialog.
type Machine struct {
	mode   Mode
	repo   RepoState
	state  State
	plan   Plan
	intent Intent
	err    error
	logger *slog.Logger
}

func NewMachine(mode Mode, repo RepoState, logger *slog.Logger) *Machine {
	return &Machine{mode: mode, repo: repo, logger: logger}
}

// Resolved returns a machine that already holds a complete intent, ready to
// Run. It serves callers that collected the choices somewhere else.
func Resolved(mode Mode, repo RepoState, in Intent, logger *slog.Logger) *Machine {
	m := NewMachine(mode, repo, logger)
	m.intent = in
	if mode == ModeCreate {
		m.plan = PlanCreate(repo)
	} else {
		m.plan = PlanSwitch(repo)
	}
	if mode == ModeCreate && m.plan.Direct() {
		m.state = StateDirectCreate
	} else {
		m.state = StateReady
	}
	return m
}

func (m *Machine) State() State   { return m.state }
func (m *Machine) Mode() Mode     { return m.mode }
func (m *Machine) Intent() Intent { return m.intent }
func (m *Machine) Plan() Plan     { return m.plan }

// Err is the failure that moved the machine to StateFailed.
func (m *Machine) Err() error { return m.err }

func (m *Machine) to(s State) {
	m.logger.Debug("branch workflow transition", "from", m.state.String(), "to", s.String())
	m.state = s
}

// Begin opens the branch picker.
func (m *Machine) Begin() error {
	if m.state != StateIdle {
		return &TransitionError{From: m.state, Event: "begin"}
	}
	m.to(StateFiltering)
	return nil
}

// Filter returns the known branches matching query.
func (m *Machine) Filter(query string) []string {
	return FilterBranches(m.repo.Branches, query)
}

// Submit accepts a branch name and moves to the first prompt the plan
// needs. An invalid name leaves the machine in StateFiltering.
func (m *Machine) Submit(name string) error {
	if m.state != StateFiltering {
		return &TransitionError{From: m.state, Event: "submit"}
	}

	switch m.mode {
	case ModeCreate:
		if err := ValidateBranchName(name, m.repo.Branches); err != nil {
			return err
		}
		m.plan = PlanCreate(m.repo)
	case ModeSwitch:
		if name == "" || !slices.Contains(m.repo.Branches, name) {
			return &ValidationError{Field: "branch name", Reason: fmt.Sprintf("no local branch %q", name)}
		}
		m.plan = PlanSwitch(m.repo)
	}

	m.intent = Intent{Name: name, Base: m.plan.FixedBase}
	switch {
	case m.plan.AskBase:
		m.to(StateAwaitBaseBranch)
	case m.plan.AskDisposition:
		m.to(StateAwaitUncommittedDisposition)
	case m.mode == ModeCreate:
		m.to(StateDirectCreate)
	default:
		m.to(StateReady)
	}
	return nil
}

func (m *Machine) ChooseBase(b Base) error {
	if m.state != StateAwaitBaseBranch {
		return &TransitionError{From: m.state, Event: "choose base"}
	}
	if b != BaseMain && b != BaseCurrent {
		return &ValidationError{Field: "base branch", Reason: fmt.Sprintf("unknown choice %q", b)}
	}
	m.intent.Base = b
	if m.plan.AskDisposition {
		m.to(StateAwaitUncommittedDisposition)
	} else {
		m.to(StateReady)
	}
	return nil
}

func (m *Machine) ChooseDisposition(a StashAction) error {
	if m.state != StateAwaitUncommittedDisposition {
		return &TransitionError{From: m.state, Event: "choose disposition"}
	}
	if a != StashLeave && a != StashBring {
		return &ValidationError{Field: "stash action", Reason: fmt.Sprintf("unknown choice %q", a)}
	}
	m.intent.StashAction = a
	m.to(StateReady)
	return nil
}

// Cancel abandons the dialog. It is a no-op in a terminal state.
func (m *Machine) Cancel() {
	if m.state.Terminal() {
		return
	}
	m.to(StateCancelled)
}

// Run carries out the resolved intent.
func (m *Machine) Run(ctx context.Context, ops Ops) error {
	if m.state != StateDirectCreate && m.state != StateReady {
		return &TransitionError{From: m.state, Event: "run"}
	}

	var err error
	if m.mode == ModeCreate {
		err = Execute(ctx, ops, m.repo, m.intent, m.logger)
	} else {
		err = ExecuteSwitch(ctx, ops, m.repo, m.intent.Name, m.intent.StashAction, m.logger)
	}
	if err != nil {
		m.err = err
		m.to(StateFailed)
		return err
	}
	m.to(StateCommitted)
	return nil
}
