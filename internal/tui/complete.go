package tui

import (
	"math/rand/v2"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/tess/internal/flow"
)

var encouragements = []string{
	"You did an amazing job today!",
	"I'm so proud of how you shared your feelings!",
	"You're getting better at understanding your emotions!",
	"Great work practicing that skill!",
	"You're such a brave and thoughtful person!",
}

// completeModel thanks the student and recaps the check-in.
type completeModel struct {
	flow    *flow.Machine
	message string
	summary flow.Summary
	width   int
	height  int
}

func newCompleteModel(f *flow.Machine) completeModel {
	return completeModel{flow: f}
}

// show prepares the screen for a just-finished session.
func (m completeModel) show(sum flow.Summary, pick int) completeModel {
	m.summary = sum
	m.message = encouragements[pick%len(encouragements)]
	return m
}

func randomEncouragement() int {
	return rand.IntN(len(encouragements))
}

func (m completeModel) Update(msg tea.Msg) (completeModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}
	return m, nil
}

func (m completeModel) View() string {
	sel := m.flow.State().Selection

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString("  " + titleStyle.Render("✦ Session Complete!") + "\n")
	if m.message != "" {
		b.WriteString("  " + tessVoiceStyle.Render(m.message) + "\n")
	}
	b.WriteString("\n  " + selectedStyle.Render("What we did today:") + "\n")

	var lines []string
	if sel.Mood != nil {
		lines = append(lines, metaStyle.Render("Your feeling    ")+sel.Mood.Emoji+" "+colorStyle(sel.Mood.Color).Render(sel.Mood.Label))
	}
	if sel.Skill != nil {
		lines = append(lines, metaStyle.Render("Skill practiced ")+normalStyle.Render(sel.Skill.Title))
	}
	if m.summary.Duration > 0 {
		lines = append(lines, metaStyle.Render("Time together   ")+accentStyle.Render(formatClock(m.summary.Duration)))
	}
	if len(lines) > 0 {
		for _, l := range strings.Split(cardStyle.Render(strings.Join(lines, "\n")), "\n") {
			b.WriteString("  " + l + "\n")
		}
	}

	b.WriteString("\n  " + warnStyle.Render("★ You earned a sticker!") + "\n")
	b.WriteString("  " + dimStyle.Render("Keep practicing these skills, and remember - it's always okay to feel your feelings!") + "\n")
	return b.String()
}

func (m completeModel) helpKeys() string {
	return helpBar(key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "return home")), keys.Games, keys.History, keys.Quit)
}
