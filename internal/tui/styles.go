package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/marcin-skalski/gitdesk/internal/github"
	"github.com/marcin-skalski/gitdesk/internal/status"
)

var (
	// Status colors
	colorAdded     = lipgloss.Color("46")  // green
	colorModified  = lipgloss.Color("220") // yellow
	colorDeleted   = lipgloss.Color("196") // red
	colorUntracked = lipgloss.Color("33")  // blue
	colorUnknown   = lipgloss.Color("135") // purple
	colorMuted     = lipgloss.Color("240") // gray

	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			PaddingLeft(1).
			PaddingRight(1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			MarginTop(1).
			MarginBottom(0)

	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			PaddingLeft(1).
			PaddingRight(1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Background(lipgloss.Color("237")).
			PaddingLeft(1).
			PaddingRight(1)

	rowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Background(lipgloss.Color("237"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(colorDeleted).
			Bold(true)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)

	emptyStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true)
)

func statusIcon(c status.Category) string {
	switch c {
	case status.CategoryAdded:
		return "A"
	case status.CategoryModified:
		return "M"
	case status.CategoryDeleted:
		return "D"
	case status.CategoryUntracked:
		return "?"
	default:
		return "!"
	}
}

func statusColor(c status.Category) lipgloss.Color {
	switch c {
	case status.CategoryAdded:
		return colorAdded
	case status.CategoryModified:
		return colorModified
	case status.CategoryDeleted:
		return colorDeleted
	case status.CategoryUntracked:
		return colorUntracked
	default:
		return colorUnknown
	}
}

func prColor(state string) lipgloss.Color {
	switch state {
	case github.StatusOpen:
		return colorAdded
	case github.StatusMerged:
		return colorUnknown
	case github.StatusClosed:
		return colorDeleted
	default:
		return colorMuted
	}
}
