package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcin-skalski/gitdesk/internal/bus"
	"github.com/marcin-skalski/gitdesk/internal/github"
	"github.com/marcin-skalski/gitdesk/internal/history"
	"github.com/marcin-skalski/gitdesk/internal/logging"
	"github.com/marcin-skalski/gitdesk/internal/status"
	"github.com/marcin-skalski/gitdesk/internal/workflow"
)

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		line string
		want bus.Command
	}{
		{`{"type":"getStatus"}`, bus.GetStatus{}},
		{`{"type":"stageFile","path":"a.txt"}`, bus.StageFile{Path: "a.txt"}},
		{`{"type":"unstageFile","path":"a.txt"}`, bus.UnstageFile{Path: "a.txt"}},
		{`{"type":"stageAll"}`, bus.StageAll{}},
		{`{"type":"unstageAll"}`, bus.UnstageAll{}},
		{`{"type":"discardChanges","path":"b"}`, bus.DiscardChanges{Path: "b"}},
		{`{"type":"commit","message":"fix","description":"body"}`, bus.Commit{Message: "fix", Description: "body"}},
		{`{"type":"amendLastCommit"}`, bus.AmendLastCommit{}},
		{`{"type":"getBranches"}`, bus.GetBranches{}},
		{`{"type":"switchBranch","name":"dev","stashAction":"bring"}`, bus.SwitchBranch{Name: "dev", StashAction: workflow.StashBring}},
		{`{"type":"switchBranch","branchName":"dev"}`, bus.SwitchBranch{Name: "dev"}},
		{
			`{"type":"createBranch","name":"feat","baseBranch":"main","stashAction":"leave"}`,
			bus.CreateBranch{Name: "feat", BaseBranch: workflow.BaseMain, StashAction: workflow.StashLeave},
		},
		{`{"type":"stashChanges","message":"wip"}`, bus.StashChanges{Message: "wip"}},
		{`{"type":"getCommitHistory"}`, bus.GetCommitHistory{}},
		{`{"type":"loadMoreCommits","offset":30}`, bus.LoadMoreCommits{Offset: 30}},
		{`{"type":"getPullRequests"}`, bus.GetPullRequests{}},
		{`{"type":"switchToPR","number":7,"branch":"fix-7"}`, bus.SwitchToPR{Number: 7, Branch: "fix-7"}},
		{`{"type":"openExternalUrl","url":"https://github.com"}`, bus.OpenExternalURL{URL: "https://github.com"}},
		{`{"type":"openSettings","section":"github"}`, bus.OpenSettings{Section: "github"}},
		{`{"type":"getFullFilePath","path":"src/a.go"}`, bus.GetFullFilePath{Path: "src/a.go"}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := DecodeCommand([]byte(tt.line))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeCommandErrors(t *testing.T) {
	_, err := DecodeCommand([]byte(`{"type":"rebase"}`))
	var ute *UnknownTypeError
	require.ErrorAs(t, err, &ute)
	assert.Equal(t, "rebase", ute.Type)

	_, err = DecodeCommand([]byte(`{"type":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode message")
}

func TestEncodeResult(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		data, err := EncodeResult(bus.StatusUpdate{Snapshot: status.Snapshot{
			Files:  []status.FileView{{Path: "a", Status: status.CategoryModified, IsStaged: true}},
			Branch: "main",
		}})
		require.NoError(t, err)

		var got struct {
			Type string          `json:"type"`
			Data status.Snapshot `json:"data"`
		}
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "statusUpdate", got.Type)
		assert.Equal(t, "main", got.Data.Branch)
		require.Len(t, got.Data.Files, 1)
		assert.True(t, got.Data.Files[0].IsStaged)
	})

	t.Run("history carries error", func(t *testing.T) {
		data, err := EncodeResult(bus.CommitHistoryUpdate{Commits: []history.Commit{}, Error: "boom"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"commitHistoryUpdate","data":[],"error":"boom"}`, string(data))
	})

	t.Run("pull requests with repository and message", func(t *testing.T) {
		repo := &github.Repository{Host: "github.com", Owner: "o", Name: "r"}
		data, err := EncodeResult(bus.PullRequestsUpdate{Listing: github.Listing{
			PullRequests: []github.PullRequest{},
			Repository:   repo,
			Message:      "no token",
		}})
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "pullRequestsUpdate", got["type"])
		assert.Equal(t, "no token", got["message"])
		assert.NotNil(t, got["repository"])
	})

	t.Run("notice keeps request id", func(t *testing.T) {
		data, err := EncodeResult(bus.Notice{Category: bus.NoticeProcessFailure, Text: "x", RequestID: "id-1"})
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "notice", got["type"])
		assert.Equal(t, "id-1", got["requestId"])
	})
}

type fakeDispatcher struct {
	mu   sync.Mutex
	cmds []bus.Command
	subs []func(bus.Result)
}

func (f *fakeDispatcher) Dispatch(_ context.Context, cmd bus.Command) string {
	f.mu.Lock()
	f.cmds = append(f.cmds, cmd)
	subs := append(([]func(bus.Result))(nil), f.subs...)
	f.mu.Unlock()

	if p, ok := cmd.(bus.GetFullFilePath); ok {
		for _, fn := range subs {
			fn(bus.FullFilePath{Path: p.Path, FullPath: "/repo/" + p.Path})
		}
	}
	return "req"
}

func (f *fakeDispatcher) SubscribeAll(fn func(bus.Result)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, fn)
	return func() {}
}

func (f *fakeDispatcher) Wait() {}

func TestServeRoundTrip(t *testing.T) {
	d := &fakeDispatcher{}
	var out bytes.Buffer
	s := NewServer(d, &out, logging.Discard())

	in := strings.NewReader(strings.Join([]string{
		`{"type":"stageFile","path":"a.txt"}`,
		``,
		`{"type":"bogus"}`,
		`{"type":"getFullFilePath","path":"b.txt"}`,
	}, "\n"))
	require.NoError(t, s.Serve(context.Background(), in))

	assert.Equal(t, []bus.Command{
		bus.StageFile{Path: "a.txt"},
		bus.GetFullFilePath{Path: "b.txt"},
	}, d.cmds)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"type":"notice"`)
	assert.Contains(t, lines[0], `validationFailure`)
	assert.JSONEq(t, `{"type":"fullFilePath","data":{"path":"b.txt","fullPath":"/repo/b.txt"}}`, lines[1])
}
