package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/tess/internal/content"
	"github.com/naveenspark/tess/pkg/domain"
)

// historyLoadedMsg carries the student's past sessions.
type historyLoadedMsg struct {
	sessions []domain.CheckInSession
	err      error
}

// HistorySource lists past check-ins. *flow.Machine satisfies it.
type HistorySource interface {
	History(ctx context.Context) ([]domain.CheckInSession, error)
}

// historyModel is a scrollable list of past check-ins.
type historyModel struct {
	src      HistorySource
	catalog  *content.Catalog
	now      func() time.Time
	sessions []domain.CheckInSession
	loading  bool
	err      string
	closed   bool
	viewport viewport.Model
	width    int
	height   int
}

func newHistoryModel(src HistorySource, c *content.Catalog, now func() time.Time) historyModel {
	return historyModel{src: src, catalog: c, now: now}
}

// load fetches the list in the background.
func (m historyModel) load() (historyModel, tea.Cmd) {
	m.loading = true
	m.closed = false
	m.err = ""
	src := m.src
	return m, func() tea.Msg {
		sessions, err := src.History(context.Background())
		return historyLoadedMsg{sessions: sessions, err: err}
	}
}

func (m historyModel) setSize(width, height int) historyModel {
	m.width = width
	m.height = height
	m.viewport.Width = max(1, width-2)
	m.viewport.Height = max(1, height-4) // title block
	m.viewport.SetContent(m.renderRows())
	return m
}

func (m historyModel) Update(msg tea.Msg) (historyModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.setSize(msg.Width, msg.Height), nil

	case historyLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = "Couldn't load your past check-ins."
			return m, nil
		}
		m.sessions = msg.sessions
		m.viewport.SetContent(m.renderRows())
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Back):
			m.closed = true
			return m, nil
		case key.Matches(msg, keys.Up):
			m.viewport.LineUp(1)
		case key.Matches(msg, keys.Down):
			m.viewport.LineDown(1)
		}
	}
	return m, nil
}

func (m historyModel) renderRows() string {
	now := time.Now()
	if m.now != nil {
		now = m.now()
	}
	var b strings.Builder
	for _, s := range m.sessions {
		skill := s.SELSkill
		if sk, ok := m.catalog.Skill(s.SELSkill); ok {
			skill = sk.Title
		}
		dur := metaStyle.Render("—")
		if s.Duration > 0 {
			dur = accentStyle.Render(formatClock(time.Duration(s.Duration) * time.Second))
		}
		line := fmt.Sprintf("%s  %s  %s  %s",
			metaStyle.Render(fmt.Sprintf("%-8s", formatTime(s.CreatedAt, now))),
			s.MoodEmoji,
			normalStyle.Render(fmt.Sprintf("%-24s", truncStr(skill, 24))),
			dur)
		if tag, ok := m.catalog.ContextTag(s.ContextTag); ok {
			line += "  " + dimStyle.Render(tag.Emoji+" "+tag.Label)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m historyModel) View() string {
	var b strings.Builder
	b.WriteString("\n  " + titleStyle.Render("Past check-ins") + "\n\n")
	switch {
	case m.loading:
		b.WriteString("  " + dimStyle.Render("Loading...") + "\n")
	case m.err != "":
		b.WriteString("  " + errorStyle.Render(m.err) + "\n")
	case len(m.sessions) == 0:
		b.WriteString("  " + tessVoiceStyle.Render("No check-ins yet. Your first one is waiting!") + "\n")
	default:
		for _, l := range strings.Split(m.viewport.View(), "\n") {
			b.WriteString("  " + l + "\n")
		}
	}
	return b.String()
}

func (m historyModel) helpKeys() string {
	return helpBar(keys.Up, keys.Down, keys.Back, keys.Quit)
}
