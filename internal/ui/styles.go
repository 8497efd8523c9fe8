package ui

import "github.com/charmbracelet/lipgloss"

const sidebarWidth = 30

var (
	colorPanel   = lipgloss.Color("#1e1f20")
	colorRaised  = lipgloss.Color("#282a2d")
	colorActive  = lipgloss.Color("#333537")
	colorText    = lipgloss.Color("#e3e3e3")
	colorMuted   = lipgloss.Color("#6b7280")
	colorAccent  = lipgloss.Color("#dc2626")
	colorSuggest = lipgloss.Color("#4285f4")

	sidebarStyle = lipgloss.NewStyle().
			Width(sidebarWidth).
			Padding(1, 1).
			Background(colorPanel).
			Foreground(colorText)

	sidebarHeaderStyle = lipgloss.NewStyle().
				Foreground(colorMuted).
				Bold(true).
				MarginBottom(1)

	sessionStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(colorText)

	sessionActiveStyle = sessionStyle.
				Background(colorActive).
				Bold(true)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorText)

	badgeStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Border(lipgloss.NormalBorder()).
			BorderForeground(colorAccent).
			Padding(0, 1)

	userStyle = lipgloss.NewStyle().
			Background(colorRaised).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 2)

	modelLabelStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)

	heroStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorText).
			MarginTop(1)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorRaised).
			Padding(0, 1).
			Width(24)

	cardSelectedStyle = cardStyle.
				BorderForeground(colorSuggest)

	attachmentStyle = lipgloss.NewStyle().
			Foreground(colorSuggest)

	composerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorRaised)

	errorStyle = lipgloss.NewStyle().Foreground(colorAccent)
)
