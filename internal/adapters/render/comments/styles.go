package comments

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title     lipgloss.Style
	header    lipgloss.Style
	author    lipgloss.Style
	self      lipgloss.Style
	timestamp lipgloss.Style
	content   lipgloss.Style
	section   lipgloss.Style
	empty     lipgloss.Style
	warning   lipgloss.Style
	online    lipgloss.Style
	offline   lipgloss.Style
	hint      lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:     lipgloss.NewStyle().Bold(true),
		header:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		author:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		self:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("35")),
		timestamp: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		content:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")).PaddingLeft(2),
		section:   lipgloss.NewStyle().MarginTop(1),
		empty:     lipgloss.NewStyle().Faint(true),
		warning:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		online:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		offline:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		hint:      lipgloss.NewStyle().Faint(true),
	}
}
