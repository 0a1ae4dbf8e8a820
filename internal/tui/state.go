package tui

import (
	"time"

	"github.com/marcin-skalski/gitdesk/internal/bus"
	"github.com/marcin-skalski/gitdesk/internal/github"
	"github.com/marcin-skalski/gitdesk/internal/history"
	"github.com/marcin-skalski/gitdesk/internal/status"
	"github.com/marcin-skalski/gitdesk/internal/workflow"
)

type Snapshot struct {
	Timestamp    time.Time
	Root         string
	Status       status.Snapshot
	Commits      []history.Commit
	Branches     bus.BranchSet
	PullRequests github.Listing
	Notice       string // last failure, empty once it has aged out
}

// RepoState is what the branch prompts need from a snapshot.
func (s Snapshot) RepoState() workflow.RepoState {
	current := s.Branches.Current
	if current == "" {
		current = s.Status.Branch
	}
	return workflow.RepoState{
		CurrentBranch: current,
		DefaultBranch: s.Branches.Default,
		Branches:      s.Branches.Names,
		Uncommitted:   s.Status.Uncommitted(),
	}
}
