package workflow

import (
	"context"
	"fmt"
	"log/slog"
)

// Base selects what a new branch starts from.
type Base string

const (
	BaseMain    Base = "main"
	BaseCurrent Base = "current"
)

// StashAction is the choice made for uncommitted changes.
type StashAction string

const (
	StashNone  StashAction = ""
	StashLeave StashAction = "leave" // stash before leaving the branch
	StashBring StashAction = "bring" // let checkout carry the changes over
)

// RepoState is what the workflow needs to know about the working copy.
type RepoState struct {
	CurrentBranch string
	DefaultBranch string
	Branches      []string
	Uncommitted   int
}

func (r RepoState) onDefault() bool {
	return r.CurrentBranch == r.DefaultBranch
}

// Plan lists the prompts still needed before a branch operation can run.
type Plan struct {
	AskBase        bool
	AskDisposition bool
	// FixedBase is set when the base is decided without asking.
	FixedBase Base
}

// Direct reports that nothing has to be asked.
func (p Plan) Direct() bool {
	return !p.AskBase && !p.AskDisposition
}

// PlanCreate decides the prompts for creating a branch.
func PlanCreate(r RepoState) Plan {
	if r.onDefault() {
		return Plan{AskDisposition: r.Uncommitted > 0, FixedBase: BaseMain}
	}
	return Plan{AskBase: true, AskDisposition: r.Uncommitted > 0}
}

// PlanSwitch decides the prompts for switching branches.
func PlanSwitch(r RepoState) Plan {
	return Plan{AskDisposition: r.Uncommitted > 0}
}

// Intent is the fully resolved user choice.
type Intent struct {
	Name        string      `json:"name"`
	Base        Base        `json:"baseBranch,omitempty"`
	StashAction StashAction `json:"stashAction,omitempty"`
}

// Ops are the side effects a branch operation needs.
type Ops interface {
	Stash(ctx context.Context, message string) error
	CreateBranch(ctx context.Context, name, base string) error
	Checkout(ctx context.Context, name string) error
	Refresh(ctx context.Context) error
}

// StepError names the step that aborted a chain. Earlier steps are not
// undone.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ResolveBase turns a Base choice into a branch name.
func ResolveBase(r RepoState, b Base) string {
	if b == BaseCurrent && r.CurrentBranch != "" {
		return r.CurrentBranch
	}
	return r.DefaultBranch
}

// Execute creates and checks out the branch named by in. Steps run in
// order and the first failure stops the chain.
func Execute(ctx context.Context, ops Ops, r RepoState, in Intent, logger *slog.Logger) error {
	if err := ValidateBranchName(in.Name, r.Branches); err != nil {
		return err
	}
	if err := ValidateBase(in.Base); err != nil {
		return err
	}
	if err := ValidateStashAction(in.StashAction); err != nil {
		return err
	}
	base := ResolveBase(r, in.Base)
	logger = logger.With("branch", in.Name, "base", base, "stash_action", string(in.StashAction))

	if in.StashAction == StashLeave && r.Uncommitted > 0 {
		msg := fmt.Sprintf("WIP on %s before creating %s", currentOrUnknown(r), in.Name)
		logger.Info("stashing uncommitted changes")
		if err := ops.Stash(ctx, msg); err != nil {
			return &StepError{Step: "stash", Err: err}
		}
	}

	logger.Info("creating branch")
	if err := ops.CreateBranch(ctx, in.Name, base); err != nil {
		return &StepError{Step: "create branch", Err: err}
	}

	if err := ops.Refresh(ctx); err != nil {
		return &StepError{Step: "refresh", Err: err}
	}
	return nil
}

// ExecuteSwitch checks out an existing branch, stashing first when asked.
func ExecuteSwitch(ctx context.Context, ops Ops, r RepoState, name string, action StashAction, logger *slog.Logger) error {
	if name == "" {
		return &ValidationError{Field: "branch name", Reason: "must not be empty"}
	}
	if err := ValidateStashAction(action); err != nil {
		return err
	}
	logger = logger.With("branch", name, "stash_action", string(action))

	if action == StashLeave && r.Uncommitted > 0 {
		msg := fmt.Sprintf("WIP on %s before switching to %s", currentOrUnknown(r), name)
		logger.Info("stashing uncommitted changes")
		if err := ops.Stash(ctx, msg); err != nil {
			return &StepError{Step: "stash", Err: err}
		}
	}

	logger.Info("switching branch")
	if err := ops.Checkout(ctx, name); err != nil {
		return &StepError{Step: "checkout", Err: err}
	}

	if err := ops.Refresh(ctx); err != nil {
		return &StepError{Step: "refresh", Err: err}
	}
	return nil
}

func currentOrUnknown(r RepoState) string {
	if r.CurrentBranch == "" {
		return "unknown"
	}
	return r.CurrentBranch
}
