package bus

import (
	"github.com/marcin-skalski/gitdesk/internal/github"
	"github.com/marcin-skalski/gitdesk/internal/history"
	"github.com/marcin-skalski/gitdesk/internal/status"
	"github.com/marcin-skalski/gitdesk/internal/workflow"
)

// Command is a request from the UI. The set of variants is closed.
type Command interface {
	command()
}

type (
	GetStatus       struct{}
	StageFile       struct{ Path string }
	UnstageFile     struct{ Path string }
	StageAll        struct{}
	UnstageAll      struct{}
	DiscardChanges  struct{ Path string }
	Commit          struct{ Message, Description string }
	AmendLastCommit struct{ Message string }
	GetBranches     struct{}
	SwitchBranch    struct {
		Name        string
		StashAction workflow.StashAction
	}
	CreateBranch struct {
		Name        string
		BaseBranch  workflow.Base
		StashAction workflow.StashAction
	}
	StashChanges     struct{ Message string }
	GetCommitHistory struct{}
	LoadMoreCommits  struct{ Offset int }
	GetPullRequests  struct{}
	SwitchToPR       struct {
		Number int
		Branch string
	}
	OpenExternalURL struct{ URL string }
	OpenSettings    struct{ Section string }
	GetFullFilePath struct{ Path string }
)

func (GetStatus) command()        {}
func (StageFile) command()        {}
func (UnstageFile) command()      {}
func (StageAll) command()         {}
func (UnstageAll) command()       {}
func (DiscardChanges) command()   {}
func (Commit) command()           {}
func (AmendLastCommit) command()  {}
func (GetBranches) command()      {}
func (SwitchBranch) command()     {}
func (CreateBranch) command()     {}
func (StashChanges) command()     {}
func (GetCommitHistory) command() {}
func (LoadMoreCommits) command()  {}
func (GetPullRequests) command()  {}
func (SwitchToPR) command()       {}
func (OpenExternalURL) command()  {}
func (OpenSettings) command()     {}
func (GetFullFilePath) command()  {}

// Kind names a stream of results subscribers can listen to.
type Kind string

const (
	KindStatus            Kind = "statusUpdate"
	KindHistory           Kind = "commitHistoryUpdate"
	KindAdditionalCommits Kind = "additionalCommits"
	KindBranches          Kind = "branchesUpdate"
	KindPullRequests      Kind = "pullRequestsUpdate"
	KindFullFilePath      Kind = "fullFilePath"
	KindNotice            Kind = "notice"
)

// Kinds lists every result kind.
var Kinds = []Kind{
	KindStatus, KindHistory, KindAdditionalCommits, KindBranches,
	KindPullRequests, KindFullFilePath, KindNotice,
}

// Result is a message delivered to subscribers. The set of variants is
// closed.
type Result interface {
	Kind() Kind
}

type StatusUpdate struct {
	Snapshot status.Snapshot
}

type CommitHistoryUpdate struct {
	Commits []history.Commit `json:"commits"`
	Error   string           `json:"error,omitempty"`
}

// AdditionalCommits is a page appended at Offset.
type AdditionalCommits struct {
	Commits []history.Commit `json:"commits"`
	Offset  int              `json:"offset"`
}

type BranchesUpdate struct {
	Branches BranchSet `json:"branches"`
	Error    string    `json:"error,omitempty"`
}

type PullRequestsUpdate struct {
	Listing github.Listing
}

type FullFilePath struct {
	Path     string `json:"path"`
	FullPath string `json:"fullPath"`
}

// NoticeCategory says what kind of failure or information a Notice carries.
type NoticeCategory string

const (
	NoticeProcessFailure       NoticeCategory = "processFailure"
	NoticeConfigurationMissing NoticeCategory = "configurationMissing"
	NoticeRemoteAPIFailure     NoticeCategory = "remoteAPIFailure"
	NoticeValidationFailure    NoticeCategory = "validationFailure"
)

// Notice is a user-visible message about a failed command.
type Notice struct {
	Category  NoticeCategory `json:"category"`
	Text      string         `json:"text"`
	RequestID string         `json:"requestId,omitempty"`
}

func (StatusUpdate) Kind() Kind        { return KindStatus }
func (CommitHistoryUpdate) Kind() Kind { return KindHistory }
func (AdditionalCommits) Kind() Kind   { return KindAdditionalCommits }
func (BranchesUpdate) Kind() Kind      { return KindBranches }
func (PullRequestsUpdate) Kind() Kind  { return KindPullRequests }
func (FullFilePath) Kind() Kind        { return KindFullFilePath }
func (Notice) Kind() Kind              { return KindNotice }

// BranchSet is the local branch list with the current and default branch.
type BranchSet struct {
	Names   []string `json:"names"`
	Current string   `json:"current"`
	Default string   `json:"default"`
}

// NewBranchSet picks the default branch: main, then master, then the first
// name.
func NewBranchSet(names []string, current string) BranchSet {
	bs := BranchSet{Names: names, Current: current}
	for _, candidate := range []string{"main", "master"} {
		for _, n := range names {
			if n == candidate {
				bs.Default = candidate
				return bs
			}
		}
	}
	if len(names) > 0 {
		bs.Default = names[0]
	}
	return bs
}

// Contains reports whether name is a local branch.
func (b BranchSet) Contains(name string) bool {
	for _, n := range b.Names {
		if n == name {
			return true
		}
	}
	return false
}

func (b BranchSet) clone() BranchSet {
	out := b
	out.Names = append([]string(nil), b.Names...)
	return out
}
