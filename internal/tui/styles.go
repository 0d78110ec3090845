package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Shimmer animation for the TESS wordmark.
type shimmerTickMsg time.Time

func shimmerTickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return shimmerTickMsg(t)
	})
}

// renderShimmerLogo renders "T E S S" as a slow wave running from dusk
// indigo (#3b3f8f) to morning sky (#8ab4ff).
func renderShimmerLogo(frame int) string {
	const text = "TESS"
	n := len(text)

	var out string
	t := float64(frame)
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n-1)

		phase := t*0.08 - x*2.5
		phase += math.Sin(t*0.02) * 1.5

		b := math.Sin(phase)*0.5 + 0.5
		b = math.Pow(b, 1.2)
		b = b*0.8 + 0.15
		if b > 1.0 {
			b = 1.0
		}

		r := clampByte(59 + b*(138-59))
		g := clampByte(63 + b*(180-63))
		bl := clampByte(143 + b*(255-143))

		s := lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", r, g, bl)))
		out += s.Render(string(text[i]))

		if i < n-1 {
			out += "  "
		}
	}
	return out
}

func clampByte(v float64) int {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return int(v)
}

var (
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#eef0fa")).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c0c4d0"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5a6078"))

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	helpLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5a6078"))

	accentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8ab4ff"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c4b5fd")).
			Bold(true)

	// Tess's own voice.
	tessVoiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f5c86b")).
			Italic(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ade80"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f59e0b"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f87171"))

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#2a2f45")).
			Padding(0, 1)

	selectedCardStyle = cardStyle.
				BorderForeground(lipgloss.Color("#8ab4ff"))

	// Progress dots: done, current, todo.
	stepDoneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ade80")).Bold(true)
	stepCurrentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8ab4ff")).Bold(true)
	stepTodoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#3a4258"))
)

// colorStyle returns a bold style in the content table's hex color, falling
// back to the accent for an empty value.
func colorStyle(hex string) lipgloss.Style {
	if hex == "" {
		return accentStyle.Bold(true)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Bold(true)
}

// helpEntry renders a single "key label" pair for help bars.
func helpEntry(k, label string) string {
	return helpKeyStyle.Render(k) + " " + helpLabelStyle.Render(label)
}

// helpBar renders the bindings' help text on one line.
func helpBar(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, helpEntry(h.Key, h.Desc))
	}
	return " " + strings.Join(parts, "  ")
}

// helpItem is a selectable link in the help overlay.
type helpItem struct {
	label string
	desc  string
	url   string
}

var helpItems = []helpItem{
	{"988 Lifeline", "call or text 988 (US)", "https://988lifeline.org"},
	{"Crisis Text Line", "text HOME to 741741", "https://www.crisistextline.org"},
}

// helpView renders the help overlay with a cursor on the links.
func helpView(cursor int, version string) string {
	cmdStyle := lipgloss.NewStyle().Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	sectionStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)
	linkDescStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)

	commands := []struct{ cmd, desc string }{
		{"tess", "Start a check-in"},
		{"tess login", "Sign in from the terminal"},
		{"tess logout", "Forget this device's sign-in"},
		{"tess version", "Show version"},
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n  %s  %s\n\n", titleStyle.Render("T E S S"), metaStyle.Render(version))
	fmt.Fprintf(&b, "  %s\n\n", tessVoiceStyle.Render(`"It's always okay to feel your feelings."`))

	fmt.Fprintf(&b, "  %s\n", sectionStyle.Render("Commands"))
	for _, c := range commands {
		fmt.Fprintf(&b, "    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-14s", c.cmd)), descStyle.Render(c.desc))
	}

	fmt.Fprintf(&b, "\n  %s\n", sectionStyle.Render("Need to talk to someone now? (enter to open)"))
	for i, item := range helpItems {
		label := cmdStyle.Render(fmt.Sprintf("%-18s", item.label))
		prefix := "    "
		if i == cursor {
			label = accentStyle.Bold(true).Render(fmt.Sprintf("%-18s", item.label))
			prefix = "  > "
		}
		fmt.Fprintf(&b, "%s%s  %s\n", prefix, label, linkDescStyle.Render(item.desc))
	}
	return b.String()
}
