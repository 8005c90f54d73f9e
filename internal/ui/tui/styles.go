package tui

import "github.com/charmbracelet/lipgloss"

// Colors matching the stack output palette.
var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBlue).MarginTop(1)
	footerStyle  = lipgloss.NewStyle().Foreground(colorDim).MarginTop(1)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
	failedStyle  = statusStyles[StatusFailed]
	readyStyle   = statusStyles[StatusDone]
	warningStyle = statusStyles[StatusSkipped]
	activeStyle  = statusStyles[StatusActive]

	progressBarFull  = lipgloss.NewStyle().Foreground(colorGreen)
	progressBarEmpty = lipgloss.NewStyle().Foreground(colorDim)

	statusStyles = map[Status]lipgloss.Style{
		StatusPending: lipgloss.NewStyle().Foreground(colorDim),
		StatusActive:  lipgloss.NewStyle().Bold(true).Foreground(colorWhite),
		StatusDone:    lipgloss.NewStyle().Foreground(colorGreen),
		StatusSkipped: lipgloss.NewStyle().Foreground(colorYellow),
		StatusFailed:  lipgloss.NewStyle().Foreground(colorRed),
	}

	// statusMarks are the row icons of settled resources. Active rows spin.
	statusMarks = map[Status]string{
		StatusPending: "[  ]",
		StatusDone:    "[OK]",
		StatusSkipped: "[--]",
		StatusFailed:  "[!!]",
	}
)

var spinnerFrames = []string{"[· ]", "[ ·]", "[··]", "[ ·]"}
