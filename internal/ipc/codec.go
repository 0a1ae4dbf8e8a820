// Package ipc carries bus commands and results as JSON lines, one message
// per line, so a UI process can drive gitdesk over stdin and stdout.
package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/marcin-skalski/gitdesk/internal/bus"
	"github.com/marcin-skalski/gitdesk/internal/github"
	"github.com/marcin-skalski/gitdesk/internal/workflow"
)

// inbound is the union of every command's fields.
type inbound struct {
	Type        string               `json:"type"`
	Path        string               `json:"path,omitempty"`
	Message     string               `json:"message,omitempty"`
	Description string               `json:"description,omitempty"`
	Name        string               `json:"name,omitempty"`
	BaseBranch  workflow.Base        `json:"baseBranch,omitempty"`
	StashAction workflow.StashAction `json:"stashAction,omitempty"`
	Offset      int                  `json:"offset,omitempty"`
	Number      int                  `json:"number,omitempty"`
	Branch      string               `json:"branch,omitempty"`
	BranchName  string               `json:"branchName,omitempty"`
	URL         string               `json:"url,omitempty"`
	Section     string               `json:"section,omitempty"`
}

// UnknownTypeError is a line whose type names no command.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown message type %q", e.Type)
}

// DecodeCommand parses one inbound line.
func DecodeCommand(line []byte) (bus.Command, error) {
	var in inbound
	if err := json.Unmarshal(line, &in); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	switch in.Type {
	case "getStatus":
		return bus.GetStatus{}, nil
	case "stageFile":
		return bus.StageFile{Path: in.Path}, nil
	case "unstageFile":
		return bus.UnstageFile{Path: in.Path}, nil
	case "stageAll":
		return bus.StageAll{}, nil
	case "unstageAll":
		return bus.UnstageAll{}, nil
	case "discardChanges":
		return bus.DiscardChanges{Path: in.Path}, nil
	case "commit":
		return bus.Commit{Message: in.Message, Description: in.Description}, nil
	case "amendLastCommit":
		return bus.AmendLastCommit{Message: in.Message}, nil
	case "getBranches":
		return bus.GetBranches{}, nil
	case "switchBranch":
		name := in.Name
		if name == "" {
			name = in.BranchName
		}
		return bus.SwitchBranch{Name: name, StashAction: in.StashAction}, nil
	case "createBranch":
		return bus.CreateBranch{Name: in.Name, BaseBranch: in.BaseBranch, StashAction: in.StashAction}, nil
	case "stashChanges":
		return bus.StashChanges{Message: in.Message}, nil
	case "getCommitHistory":
		return bus.GetCommitHistory{}, nil
	case "loadMoreCommits":
		return bus.LoadMoreCommits{Offset: in.Offset}, nil
	case "getPullRequests":
		return bus.GetPullRequests{}, nil
	case "switchToPR":
		branch := in.Branch
		if branch == "" {
			branch = in.BranchName
		}
		return bus.SwitchToPR{Number: in.Number, Branch: branch}, nil
	case "openExternalUrl":
		return bus.OpenExternalURL{URL: in.URL}, nil
	case "openSettings":
		return bus.OpenSettings{Section: in.Section}, nil
	case "getFullFilePath":
		return bus.GetFullFilePath{Path: in.Path}, nil
	default:
		return nil, &UnknownTypeError{Type: in.Type}
	}
}

type outbound struct {
	Type       string             `json:"type"`
	Data       any                `json:"data"`
	Repository *github.Repository `json:"repository,omitempty"`
	Message    string             `json:"message,omitempty"`
	Error      string             `json:"error,omitempty"`
	RequestID  string             `json:"requestId,omitempty"`
}

// EncodeResult renders one result as a single JSON line without the
// trailing newline.
func EncodeResult(r bus.Result) ([]byte, error) {
	out := outbound{Type: string(r.Kind())}

	switch v := r.(type) {
	case bus.StatusUpdate:
		out.Data = v.Snapshot
		out.Error = v.Snapshot.Error
	case bus.CommitHistoryUpdate:
		out.Data = v.Commits
		out.Error = v.Error
	case bus.AdditionalCommits:
		out.Data = v.Commits
	case bus.BranchesUpdate:
		out.Data = v.Branches
		out.Error = v.Error
	case bus.PullRequestsUpdate:
		out.Data = v.Listing.PullRequests
		out.Repository = v.Listing.Repository
		out.Message = v.Listing.Message
	case bus.FullFilePath:
		out.Data = v
	case bus.Notice:
		out.Data = v
		out.RequestID = v.RequestID
	default:
		return nil, fmt.Errorf("unsupported result %T", r)
	}

	return json.Marshal(out)
}
