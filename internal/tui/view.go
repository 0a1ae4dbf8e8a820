package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/marcin-skalski/gitdesk/internal/history"
	"github.com/marcin-skalski/gitdesk/internal/workflow"
)

const (
	maxTitleWidth = 60
	maxRows       = 20
)

var tabNames = [tabCount]string{"Changes", "History", "Pull requests"}

func renderView(m Model) string {
	snap := m.snapshot
	var b strings.Builder

	// Header
	staged, unstaged := snap.Status.Counts()
	header := fmt.Sprintf("gitdesk │ %s │ ↑%d ↓%d │ %d staged │ %d unstaged",
		orUnknown(snap.Status.Branch), snap.Status.Ahead, snap.Status.Behind, staged, unstaged)
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")

	tabs := make([]string, 0, tabCount)
	for i, name := range tabNames {
		if tab(i) == m.tab {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, tabStyle.Render(name))
		}
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	b.WriteString("\n")

	switch m.tab {
	case tabChanges:
		b.WriteString(renderChanges(snap, m.cursor))
	case tabHistory:
		b.WriteString(renderHistory(snap.Commits, m.cursor))
	case tabPulls:
		b.WriteString(renderPulls(snap, m.cursor))
	}

	if p := renderPrompt(m); p != "" {
		b.WriteString("\n")
		b.WriteString(p)
	}

	if snap.Notice != "" {
		b.WriteString("\n")
		b.WriteString(noticeStyle.Render("✗ " + truncate(snap.Notice, 100)))
	}

	// Footer
	b.WriteString("\n")
	footer := fmt.Sprintf("Last updated: %s │ %s", snap.Timestamp.Format("15:04:05"), keyHelp(m))
	b.WriteString(footerStyle.Render(footer))

	return b.String()
}

func renderChanges(snap Snapshot, cursor int) string {
	if snap.Status.Error != "" {
		return emptyStyle.Render("  (status unavailable: " + snap.Status.Error + ")")
	}
	if len(snap.Status.Files) == 0 {
		return emptyStyle.Render("  (working tree clean)")
	}

	var b strings.Builder
	start := window(cursor, len(snap.Status.Files))
	for i := start; i < len(snap.Status.Files) && i < start+maxRows; i++ {
		f := snap.Status.Files[i]
		mark := " "
		if f.IsStaged {
			mark = "●"
		}
		icon := lipgloss.NewStyle().Foreground(statusColor(f.Status)).Render(statusIcon(f.Status))
		line := fmt.Sprintf("%s %s %s", mark, icon, truncate(f.Path, maxTitleWidth))
		b.WriteString(row(line, i == cursor))
		b.WriteString("\n")
	}
	return b.String()
}

func renderHistory(commits []history.Commit, cursor int) string {
	if len(commits) == 0 {
		return emptyStyle.Render("  (no commits)")
	}

	var b strings.Builder
	start := window(cursor, len(commits))
	for i := start; i < len(commits) && i < start+maxRows; i++ {
		c := commits[i]
		short := c.Hash
		if len(short) > 7 {
			short = short[:7]
		}
		line := fmt.Sprintf("%s %s %s (+%d -%d) %s",
			short, truncate(c.Subject, 50), truncate(c.Author, 20), c.Insertions, c.Deletions, relative(c.Date))
		b.WriteString(row(line, i == cursor))
		b.WriteString("\n")
	}
	b.WriteString(emptyStyle.Render(fmt.Sprintf("  %d commits loaded │ m:load more", len(commits))))
	return b.String()
}

func renderPulls(snap Snapshot, cursor int) string {
	listing := snap.PullRequests
	var b strings.Builder

	if listing.Repository != nil {
		b.WriteString(sectionStyle.Render(listing.Repository.String()))
		b.WriteString("\n")
	}
	if listing.Message != "" {
		b.WriteString(emptyStyle.Render("  " + listing.Message))
		return b.String()
	}
	if len(listing.PullRequests) == 0 {
		b.WriteString(emptyStyle.Render("  (no open pull requests)"))
		return b.String()
	}

	for i, pr := range listing.PullRequests {
		var line string
		if pr.Message != "" {
			line = fmt.Sprintf("%s: %s", pr.Title, truncate(pr.Message, 80))
		} else {
			line = fmt.Sprintf("#%d %s [%s] @%s", pr.Number, truncate(pr.Title, maxTitleWidth), pr.Branch, pr.Author)
		}
		state := lipgloss.NewStyle().Foreground(prColor(pr.Status)).Render(pr.Status)
		b.WriteString(row(line, i == cursor) + " " + state)
		b.WriteString("\n")
	}
	return b.String()
}

func renderPrompt(m Model) string {
	var b strings.Builder
	switch m.prompt {
	case promptNone:
		return ""
	case promptCommit:
		b.WriteString(promptStyle.Render("Commit message: ") + m.input.View())
	case promptBranch:
		label := "New branch name: "
		if m.machine != nil && m.machine.Mode() == workflow.ModeSwitch {
			label = "Switch to branch: "
		}
		b.WriteString(promptStyle.Render(label) + m.input.View())
		if m.machine != nil && m.machine.Mode() == workflow.ModeSwitch {
			matches := m.machine.Filter(m.input.Value())
			for i, name := range matches {
				if i == 5 {
					b.WriteString("\n" + emptyStyle.Render(fmt.Sprintf("  … %d more", len(matches)-i)))
					break
				}
				b.WriteString("\n  " + name)
			}
		}
	case promptBase:
		b.WriteString(promptStyle.Render("Create from: ") + "m:main  c:current branch")
	case promptDisposition:
		b.WriteString(promptStyle.Render("Uncommitted changes: ") + "l:leave them here (stash)  b:bring them along")
	case promptDiscard:
		b.WriteString(promptStyle.Render("Discard changes to this file? ") + "y:yes  any other key:no")
	}
	if m.feedback != "" {
		b.WriteString("\n" + noticeStyle.Render(m.feedback))
	}
	return b.String()
}

func keyHelp(m Model) string {
	if m.prompt != promptNone {
		return "esc:cancel"
	}
	common := "tab:switch view n:new branch b:switch branch S:stash r:refresh q:quit"
	switch m.tab {
	case tabChanges:
		return "space:stage/unstage a:stage all u:unstage all d:discard c:commit A:amend " + common
	case tabPulls:
		return "enter:checkout o:open " + common
	}
	return common
}

func row(line string, selected bool) string {
	if selected {
		return selectedRowStyle.Render("▸ " + line)
	}
	return rowStyle.Render("  " + line)
}

// window keeps the cursor visible in a list of n rows.
func window(cursor, n int) int {
	if n <= maxRows || cursor < maxRows {
		return 0
	}
	return min(cursor-maxRows+1, n-maxRows)
}

func truncate(s string, width int) string {
	if runewidth.StringWidth(s) > width {
		return runewidth.Truncate(s, width, "...")
	}
	return s
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func relative(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return formatDuration(time.Since(t)) + " ago"
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	case d >= time.Hour:
		return fmt.Sprintf("%dh %dm", d/time.Hour, (d%time.Hour)/time.Minute)
	case d >= time.Minute:
		return fmt.Sprintf("%dm %ds", d/time.Minute, (d%time.Minute)/time.Second)
	}
	return fmt.Sprintf("%ds", d/time.Second)
}
