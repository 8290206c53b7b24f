package ui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	logo    lipgloss.Style
	header  lipgloss.Style
	muted   lipgloss.Style
	accent  lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	danger  lipgloss.Style
	toast   lipgloss.Style
	modal   lipgloss.Style
	status  lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		logo:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		header:  lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
		accent:  lipgloss.NewStyle().Foreground(lipgloss.Color("111")),
		success: lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		danger:  lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		toast: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("111")).
			Padding(0, 1),
		modal: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(1, 2),
		status: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	}
}
