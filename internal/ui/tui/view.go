package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

func renderView(m Model) string {
	var b strings.Builder

	renderHeader(&b, m)
	renderProgressBar(&b, m)
	renderResources(&b, m)
	renderErrors(&b, m)
	renderFooter(&b, m)

	return b.String()
}

func renderHeader(b *strings.Builder, m Model) {
	b.WriteString(titleStyle.Render(fmt.Sprintf("awslbc %s: stack %s", m.Operation, m.Stack)))

	status := " "
	switch {
	case m.Err != nil:
		status += failedStyle.Render(fmt.Sprintf("Error: %v", m.Err))
	case m.Done:
		status += readyStyle.Render("Complete")
	default:
		status += activeStyle.Render(currentSpinner(m.SpinnerFrame)+" ") + warningStyle.Render(m.Operation+"ing")
	}
	b.WriteString(status)
	b.WriteString("\n")
}

func renderProgressBar(b *strings.Builder, m Model) {
	progress := calculateProgress(m)
	barWidth := 40
	if m.Width > 0 && m.Width < 80 {
		barWidth = max(m.Width-30, 10)
	}
	filled := min(int(float64(barWidth)*progress), barWidth)

	bar := progressBarFull.Render(strings.Repeat("█", filled)) +
		progressBarEmpty.Render(strings.Repeat("░", barWidth-filled))

	fmt.Fprintf(b, "  %s %d/%d\n", bar, m.Finished(), len(m.Rows))
}

func renderResources(b *strings.Builder, m Model) {
	b.WriteString(sectionStyle.Render("  Resources"))
	b.WriteString("\n")

	for _, row := range m.Rows {
		icon, style := statusIcon(row.Status, m.SpinnerFrame)

		extra := ""
		switch row.Status {
		case StatusActive:
			if !row.StartedAt.IsZero() {
				extra = dimStyle.Render(formatDuration(time.Since(row.StartedAt)))
			}
		case StatusDone, StatusFailed:
			if row.Elapsed > 0 {
				extra = dimStyle.Render(formatDuration(row.Elapsed))
			}
		case StatusSkipped:
			extra = dimStyle.Render("skipped")
		}

		fmt.Fprintf(b, "    %s %-32s %-22s %s\n",
			style.Render(icon), style.Render(row.URN.Name()), dimStyle.Render(row.URN.Type()), extra)
	}
}

func renderErrors(b *strings.Builder, m Model) {
	var failed []ResourceRow
	for _, row := range m.Rows {
		if row.Err != nil {
			failed = append(failed, row)
		}
	}
	if len(failed) == 0 {
		return
	}

	b.WriteString(sectionStyle.Render("  Errors"))
	b.WriteString("\n")

	// Show the last 3 failures
	start := max(len(failed)-3, 0)
	for _, row := range failed[start:] {
		fmt.Fprintf(b, "    %s [%s] %s\n",
			failedStyle.Render(statusMarks[StatusFailed]), row.URN.Name(), dimStyle.Render(row.Err.Error()))
	}
}

func renderFooter(b *strings.Builder, m Model) {
	elapsed := formatDuration(time.Since(m.StartTime))
	b.WriteString(footerStyle.Render(fmt.Sprintf("  elapsed: %s  |  q: quit", elapsed)))
	b.WriteString("\n")
}

func statusIcon(status Status, frame int) (string, lipgloss.Style) {
	if status == StatusActive {
		return currentSpinner(frame), activeStyle
	}
	return statusMarks[status], statusStyles[status]
}

func currentSpinner(frame int) string {
	if frame < 0 {
		frame = -frame
	}
	return spinnerFrames[frame%len(spinnerFrames)]
}

func calculateProgress(m Model) float64 {
	if m.Done {
		return 1.0
	}
	if len(m.Rows) == 0 {
		return 0
	}
	return float64(m.Finished()) / float64(len(m.Rows))
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
