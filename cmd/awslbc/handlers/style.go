package handlers

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Colors matching the stack output palette.
var (
	colorBlue  = lipgloss.Color("#3b82f6")
	colorGreen = lipgloss.Color("#22c55e")
	colorDim   = lipgloss.Color("#6b7280")
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue)

	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorGreen)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)
)

// printHeader announces an operation before it starts.
func printHeader(operation, stackName, configPath string) {
	fmt.Fprintln(stdout, headerStyle.Render(fmt.Sprintf("awslbc %s: stack %s", operation, stackName)))
	fmt.Fprintln(stdout, dimStyle.Render("  config: "+configPath))
	fmt.Fprintln(stdout)
}
