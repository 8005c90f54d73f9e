package stack

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"sigs.k8s.io/yaml"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorYellow = lipgloss.Color("#eab308")
	colorRed    = lipgloss.Color("#ef4444")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)
	dimStyle   = lipgloss.NewStyle().Foreground(colorDim)

	actionStyles = map[Action]lipgloss.Style{
		ActionCreate: lipgloss.NewStyle().Foreground(colorGreen),
		ActionUpdate: lipgloss.NewStyle().Foreground(colorYellow),
		ActionDelete: lipgloss.NewStyle().Foreground(colorRed),
		ActionSame:   dimStyle,
	}

	actionSymbols = map[Action]string{
		ActionCreate: "+",
		ActionUpdate: "~",
		ActionDelete: "-",
		ActionSame:   " ",
	}
)

// FormatChanges renders a preview. Unchanged items are listed only when
// verbose is set.
func FormatChanges(stackName string, changes []Change, verbose bool) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Previewing stack %s", stackName)))
	b.WriteString("\n\n")

	for _, c := range changes {
		style := actionStyles[c.Action]
		b.WriteString(style.Render(fmt.Sprintf("%s %s", actionSymbols[c.Action], c.URN)))
		b.WriteString("\n")
		for _, item := range c.Items {
			if item.Action == ActionSame && !verbose {
				continue
			}
			b.WriteString(actionStyles[item.Action].Render(fmt.Sprintf("    %s %s", actionSymbols[item.Action], item.Key)))
			b.WriteString("\n")
		}
	}

	counts := Summarize(changes)
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Resources: %d to create, %d to update, %d to delete, %d unchanged",
		counts[ActionCreate], counts[ActionUpdate], counts[ActionDelete], counts[ActionSame])))
	b.WriteString("\n")
	return b.String()
}

// FormatSummary renders the outcome of up or destroy.
func FormatSummary(operation string, s *Summary) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s complete", operation)))
	b.WriteString("\n")

	line := func(style lipgloss.Style, label string, urns []URN) {
		if len(urns) == 0 {
			return
		}
		b.WriteString(style.Render(fmt.Sprintf("  %s: %d", label, len(urns))))
		b.WriteString("\n")
		for _, urn := range urns {
			b.WriteString(dimStyle.Render("    " + string(urn)))
			b.WriteString("\n")
		}
	}
	line(actionStyles[ActionCreate], "applied", s.Applied)
	line(actionStyles[ActionDelete], "deleted", s.Deleted)
	line(actionStyles[ActionUpdate], "skipped", s.Skipped)
	line(actionStyles[ActionDelete], "failed", s.Failed)
	return b.String()
}

// WriteRendered writes every resource's objects as a multi-document YAML
// stream. Cloud resources are listed as comments.
func WriteRendered(w io.Writer, rendered []Rendered) error {
	for _, r := range rendered {
		if _, err := fmt.Fprintf(w, "# %s\n", r.URN); err != nil {
			return err
		}
		for _, c := range r.Desired.Cloud {
			name := c.Name
			if c.Kind == KindIAMPolicyAttachment {
				name = c.Role + " <- " + c.PolicyARN
			}
			if _, err := fmt.Fprintf(w, "# cloud: %s %s\n", c.Kind, name); err != nil {
				return err
			}
		}
		for _, obj := range r.Desired.Objects {
			data, err := yaml.Marshal(obj.Object)
			if err != nil {
				return fmt.Errorf("failed to encode %s: %w", ObjectRef(obj), err)
			}
			if _, err := fmt.Fprintf(w, "---\n%s", data); err != nil {
				return err
			}
		}
	}
	return nil
}
