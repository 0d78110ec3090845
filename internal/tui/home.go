package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/naveenspark/tess/internal/appstate"
	"github.com/naveenspark/tess/internal/content"
	"github.com/naveenspark/tess/internal/flow"
	"github.com/naveenspark/tess/pkg/domain"
)

// moodColumns is the width of the mood grid.
const moodColumns = 5

// startResultMsg carries the outcome of StartSession.
type startResultMsg struct {
	err error
}

// homeModel walks the student through mood, context and skill.
type homeModel struct {
	flow    *flow.Machine
	catalog *content.Catalog
	cursor  int
	step    appstate.Step // step the cursor belongs to
	busy    bool
	err     string
	spin    spinner.Model
	width   int
	height  int
}

func newHomeModel(f *flow.Machine, c *content.Catalog) homeModel {
	return homeModel{
		flow:    f,
		catalog: c,
		spin:    spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(accentStyle)),
	}
}

// itemCount is the number of choices on the current step.
func (m homeModel) itemCount(step appstate.Step) int {
	switch step {
	case appstate.StepMoodSelect:
		return len(m.catalog.Moods)
	case appstate.StepContextSelect:
		return len(m.catalog.ContextTags) + 1 // trailing "skip"
	case appstate.StepSkillSelect:
		return len(m.catalog.Skills)
	}
	return 0
}

// sync resets the cursor when the flow has moved to another step, placing
// it on the current choice if one was made earlier.
func (m homeModel) sync() homeModel {
	fs := m.flow.State()
	if fs.Step == m.step {
		return m
	}
	m.step = fs.Step
	m.cursor = 0
	sel := fs.Selection
	switch fs.Step {
	case appstate.StepMoodSelect:
		if sel.Mood != nil {
			for i, mood := range m.catalog.Moods {
				if mood.Value == sel.Mood.Value {
					m.cursor = i
				}
			}
		}
	case appstate.StepContextSelect:
		if sel.ContextState == domain.ContextSkipped {
			m.cursor = len(m.catalog.ContextTags)
		} else if id := sel.ContextTagID(); id != "" {
			for i, t := range m.catalog.ContextTags {
				if t.ID == id {
					m.cursor = i
				}
			}
		}
	case appstate.StepSkillSelect:
		if sel.Skill != nil {
			for i, s := range m.catalog.Skills {
				if s.ID == sel.Skill.ID {
					m.cursor = i
				}
			}
		}
	}
	return m
}

func (m homeModel) choose() (homeModel, tea.Cmd) {
	var err error
	switch m.step {
	case appstate.StepMoodSelect:
		err = m.flow.SelectMood(m.catalog.Moods[m.cursor])
	case appstate.StepContextSelect:
		if m.cursor == len(m.catalog.ContextTags) {
			err = m.flow.SkipContext()
		} else {
			err = m.flow.SelectContext(m.catalog.ContextTags[m.cursor])
		}
	case appstate.StepSkillSelect:
		err = m.flow.SelectSkill(m.catalog.Skills[m.cursor])
	case appstate.StepReadyToStart:
		return m.start()
	}
	if err != nil {
		m.err = err.Error()
		return m, nil
	}
	m.err = ""
	return m.sync(), nil
}

func (m homeModel) start() (homeModel, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	m.busy = true
	m.err = ""
	f := m.flow
	return m, tea.Batch(m.spin.Tick, func() tea.Msg {
		return startResultMsg{err: f.StartSession(context.Background())}
	})
}

func (m homeModel) move(delta int) homeModel {
	n := m.itemCount(m.step)
	if n == 0 {
		return m
	}
	next := m.cursor + delta
	if next >= 0 && next < n {
		m.cursor = next
	}
	return m
}

func (m homeModel) Update(msg tea.Msg) (homeModel, tea.Cmd) {
	m = m.sync()
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case startResultMsg:
		m.busy = false
		switch {
		case msg.err == nil, errors.Is(msg.err, flow.ErrStale):
			m.err = ""
		case errors.Is(msg.err, flow.ErrBusy):
		default:
			var serr *flow.StartError
			if errors.As(msg.err, &serr) && !serr.Retryable() {
				m.err = ""
			} else if le := m.flow.State().LastError; le != "" {
				m.err = le
			} else {
				m.err = "Failed to start session. Please try again."
			}
		}
		return m.sync(), nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.busy {
			return m, nil
		}
		grid := m.step == appstate.StepMoodSelect
		switch {
		case key.Matches(msg, keys.Select):
			return m.choose()
		case key.Matches(msg, keys.Back):
			if err := m.flow.Back(); err == nil {
				m.err = ""
			}
			return m.sync(), nil
		case key.Matches(msg, keys.Skip) && m.step == appstate.StepContextSelect:
			m.cursor = len(m.catalog.ContextTags)
			return m.choose()
		case key.Matches(msg, keys.Left) && grid:
			return m.move(-1), nil
		case key.Matches(msg, keys.Right) && grid:
			return m.move(1), nil
		case key.Matches(msg, keys.Up):
			if grid {
				return m.move(-moodColumns), nil
			}
			return m.move(-1), nil
		case key.Matches(msg, keys.Down):
			if grid {
				return m.move(moodColumns), nil
			}
			return m.move(1), nil
		}
	}
	return m, nil
}

// progress renders the three selection dots.
func progress(step appstate.Step) string {
	order := []appstate.Step{appstate.StepMoodSelect, appstate.StepContextSelect, appstate.StepSkillSelect, appstate.StepReadyToStart}
	labels := []string{"mood", "context", "skill", "ready"}
	cur := 0
	for i, s := range order {
		if s == step {
			cur = i
		}
	}
	parts := make([]string, len(order))
	for i, l := range labels {
		switch {
		case i < cur:
			parts[i] = stepDoneStyle.Render("● " + l)
		case i == cur:
			parts[i] = stepCurrentStyle.Render("◉ " + l)
		default:
			parts[i] = stepTodoStyle.Render("○ " + l)
		}
	}
	return strings.Join(parts, metaStyle.Render("  ─  "))
}

func (m homeModel) View() string {
	fs := m.flow.State()
	m = m.sync()

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString("  " + progress(fs.Step) + "\n\n")

	switch fs.Step {
	case appstate.StepMoodSelect:
		b.WriteString("  " + tessVoiceStyle.Render("How are you feeling right now?") + "\n\n")
		b.WriteString(m.moodGrid(fs.Selection))
	case appstate.StepContextSelect:
		mood := fs.Selection.Mood
		if mood != nil {
			fmt.Fprintf(&b, "  %s %s\n", mood.Emoji, colorStyle(mood.Color).Render("You're feeling "+strings.ToLower(mood.Label)))
		}
		b.WriteString("  " + tessVoiceStyle.Render("Is something going on? You can skip this.") + "\n\n")
		for i, t := range m.catalog.ContextTags {
			b.WriteString(m.row(i, t.Emoji+"  "+t.Label, "", colorStyle(t.Color)))
		}
		b.WriteString(m.row(len(m.catalog.ContextTags), "   Skip", "nothing in particular", dimStyle))
	case appstate.StepSkillSelect:
		b.WriteString("  " + tessVoiceStyle.Render("What would you like to practice?") + "\n\n")
		for i, s := range m.catalog.Skills {
			b.WriteString(m.row(i, s.Title, s.Description, normalStyle))
		}
	case appstate.StepReadyToStart:
		b.WriteString(m.readyCard(fs.Selection))
	}

	b.WriteString("\n")
	switch {
	case m.busy:
		b.WriteString("  " + m.spin.View() + " " + dimStyle.Render("Calling Tess...") + "\n")
	case m.err != "":
		b.WriteString("  " + errorStyle.Render(m.err) + "\n")
	}
	return b.String()
}

func (m homeModel) row(i int, label, desc string, style lipgloss.Style) string {
	if i == m.cursor {
		line := "  " + accentStyle.Render(">") + " " + style.Bold(true).Render(label)
		if desc != "" {
			line += "  " + dimStyle.Render(desc)
		}
		return line + "\n"
	}
	line := "    " + style.UnsetBold().Render(label)
	if desc != "" {
		line += "  " + metaStyle.Render(truncStr(desc, 60))
	}
	return line + "\n"
}

func (m homeModel) moodGrid(sel domain.SelectionState) string {
	var b strings.Builder
	moods := m.catalog.Moods
	for start := 0; start < len(moods); start += moodColumns {
		end := min(start+moodColumns, len(moods))
		cells := make([]string, 0, moodColumns)
		for i := start; i < end; i++ {
			mood := moods[i]
			style := cardStyle
			if i == m.cursor {
				style = selectedCardStyle.BorderForeground(lipgloss.Color(mood.Color))
			}
			label := mood.Label
			if sel.Mood != nil && sel.Mood.Value == mood.Value {
				label = "✓ " + label
			}
			cells = append(cells, style.Width(12).Align(lipgloss.Center).Render(mood.Emoji+"\n"+colorStyle(mood.Color).Render(label)))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		b.WriteString("\n")
	}
	if m.cursor < len(moods) {
		b.WriteString("\n  " + dimStyle.Render(moods[m.cursor].Description) + "\n")
	}
	return b.String()
}

func (m homeModel) readyCard(sel domain.SelectionState) string {
	var lines []string
	if sel.Mood != nil {
		lines = append(lines, metaStyle.Render("Feeling  ")+sel.Mood.Emoji+" "+colorStyle(sel.Mood.Color).Render(sel.Mood.Label))
	}
	if sel.Context != nil && sel.ContextState == domain.ContextSet {
		lines = append(lines, metaStyle.Render("About    ")+sel.Context.Emoji+" "+normalStyle.Render(sel.Context.Label))
	}
	if sel.Skill != nil {
		lines = append(lines, metaStyle.Render("Practice ")+selectedStyle.Render(sel.Skill.Title))
		if sel.Skill.Duration > 0 {
			lines = append(lines, metaStyle.Render("         about "+formatClock(time.Duration(sel.Skill.Duration)*time.Second)))
		}
	}
	card := selectedCardStyle.Padding(1, 2).Render(strings.Join(lines, "\n"))

	var b strings.Builder
	b.WriteString("  " + tessVoiceStyle.Render("All set! Tess is ready when you are.") + "\n\n")
	for _, l := range strings.Split(card, "\n") {
		b.WriteString("  " + l + "\n")
	}
	b.WriteString("\n  " + accentStyle.Render("enter") + dimStyle.Render(" to start talking with Tess") + "\n")
	return b.String()
}

func (m homeModel) helpKeys() string {
	switch m.flow.State().Step {
	case appstate.StepMoodSelect:
		return helpBar(keys.Left, keys.Right, keys.Select, keys.Games, keys.History, keys.Help, keys.Quit)
	case appstate.StepContextSelect:
		return helpBar(keys.Up, keys.Down, keys.Select, keys.Skip, keys.Back, keys.Quit)
	case appstate.StepSkillSelect:
		return helpBar(keys.Up, keys.Down, keys.Select, keys.Back, keys.Quit)
	case appstate.StepReadyToStart:
		return helpBar(key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "start")), keys.Back, keys.Quit)
	}
	return helpBar(keys.Help, keys.Quit)
}
