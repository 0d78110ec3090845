package tui

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/naveenspark/tess/internal/content"
	"github.com/naveenspark/tess/internal/game"
	"github.com/naveenspark/tess/pkg/domain"
)

// gameTickMsg is the one-second countdown tick. Ticks from an earlier
// round carry an old id and are dropped.
type gameTickMsg struct {
	id int
}

func gameTickCmd(id int) tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return gameTickMsg{id: id}
	})
}

type gameColumn int

const (
	columnEmotions gameColumn = iota
	columnSituations
)

// gamesModel lists the mini-games and runs the matching board.
type gamesModel struct {
	games  []domain.MiniGame
	log    *slog.Logger
	cursor int

	// Active round; nil while browsing the list.
	current *domain.MiniGame
	engine  *game.Engine
	column  gameColumn
	rows    [2]int // cursor per column
	tickID  int
	flash   string
	closed  bool // set when the player leaves the list

	width  int
	height int
}

func newGamesModel(c *content.Catalog, log *slog.Logger) gamesModel {
	return gamesModel{games: c.PlayableGames(), log: log}
}

// open shows the game list.
func (m gamesModel) open() gamesModel {
	m.closed = false
	m.current = nil
	m.engine = nil
	m.tickID++
	return m
}

func (m gamesModel) playing() bool {
	return m.engine != nil
}

func (m gamesModel) startGame(g domain.MiniGame) (gamesModel, tea.Cmd) {
	e, err := game.FromMiniGame(g, nil)
	if err != nil {
		m.flash = "This game can't be played right now."
		m.log.Warn("start game", "game", g.ID, "err", err)
		return m, nil
	}
	m.current = &g
	m.engine = e
	m.column = columnEmotions
	m.rows = [2]int{}
	m.flash = ""
	m.tickID++
	return m, gameTickCmd(m.tickID)
}

func (m gamesModel) replay() (gamesModel, tea.Cmd) {
	m.engine.Replay()
	m.column = columnEmotions
	m.rows = [2]int{}
	m.flash = ""
	m.tickID++
	return m, gameTickCmd(m.tickID)
}

func (m gamesModel) finish() gamesModel {
	m.log.Info("game finished",
		"game", m.current.ID,
		"score", m.engine.Score(),
		"attempts", m.engine.Attempts(),
		"final", m.engine.FinalScore(),
		"timed_out", m.engine.TimedOut())
	return m
}

// pick acts on the tile under the cursor.
func (m gamesModel) pick() gamesModel {
	e := m.engine
	switch m.column {
	case columnEmotions:
		tile := e.Emotions()[m.rows[columnEmotions]]
		if e.SelectEmotion(tile.ID) {
			m.column = columnSituations
			m.flash = ""
		}
	case columnSituations:
		tile := e.Situations()[m.rows[columnSituations]]
		switch e.SelectSituation(tile.ID) {
		case game.Correct:
			m.flash = successStyle.Render("That's a match!")
			m.column = columnEmotions
			if e.Completed() {
				m.tickID++
				return m.finish()
			}
		case game.Incorrect:
			m.flash = warnStyle.Render("Not quite. Try another one!")
			m.column = columnEmotions
		case game.Ignored:
			m.flash = dimStyle.Render("Pick an emotion first.")
		}
	}
	return m
}

func (m gamesModel) Update(msg tea.Msg) (gamesModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case gameTickMsg:
		if !m.playing() || msg.id != m.tickID || m.engine.Completed() {
			return m, nil
		}
		if m.engine.Tick() {
			m.tickID++
			return m.finish(), nil
		}
		return m, gameTickCmd(m.tickID)

	case tea.KeyMsg:
		if !m.playing() {
			switch {
			case key.Matches(msg, keys.Up):
				if m.cursor > 0 {
					m.cursor--
				}
			case key.Matches(msg, keys.Down):
				if m.cursor < len(m.games)-1 {
					m.cursor++
				}
			case key.Matches(msg, keys.Select):
				if m.cursor < len(m.games) {
					return m.startGame(m.games[m.cursor])
				}
			case key.Matches(msg, keys.Back):
				m.closed = true
			}
			return m, nil
		}

		if m.engine.Completed() {
			switch {
			case key.Matches(msg, keys.Replay):
				return m.replay()
			case key.Matches(msg, keys.Back), key.Matches(msg, keys.Select):
				return m.open(), nil
			}
			return m, nil
		}

		switch {
		case key.Matches(msg, keys.Back):
			return m.open(), nil
		case key.Matches(msg, keys.Replay):
			return m.replay()
		case key.Matches(msg, keys.Left):
			m.column = columnEmotions
		case key.Matches(msg, keys.Right), key.Matches(msg, keys.Next):
			m.column = 1 - m.column
		case key.Matches(msg, keys.Up):
			if m.rows[m.column] > 0 {
				m.rows[m.column]--
			}
		case key.Matches(msg, keys.Down):
			if m.rows[m.column] < m.engine.Total()-1 {
				m.rows[m.column]++
			}
		case key.Matches(msg, keys.Select):
			return m.pick(), nil
		}
	}
	return m, nil
}

func (m gamesModel) View() string {
	if !m.playing() {
		return m.listView()
	}
	if m.engine.Completed() {
		return m.resultView()
	}
	return m.boardView()
}

func (m gamesModel) listView() string {
	var b strings.Builder
	b.WriteString("\n  " + titleStyle.Render("Feelings Games") + "\n")
	b.WriteString("  " + tessVoiceStyle.Render("Practice spotting feelings. Ready to play?") + "\n\n")
	if len(m.games) == 0 {
		b.WriteString("  " + dimStyle.Render("No games yet. Check back soon!") + "\n")
		return b.String()
	}
	for i, g := range m.games {
		meta := fmt.Sprintf("%s · %s", formatClock(time.Duration(g.Duration)*time.Second), g.Difficulty)
		if i == m.cursor {
			fmt.Fprintf(&b, "  %s %s  %s\n", accentStyle.Render(">"), selectedStyle.Render(g.Title), metaStyle.Render(meta))
			b.WriteString("    " + dimStyle.Render(g.Description) + "\n")
		} else {
			fmt.Fprintf(&b, "    %s  %s\n", normalStyle.Render(g.Title), metaStyle.Render(meta))
		}
	}
	if m.flash != "" {
		b.WriteString("\n  " + errorStyle.Render(m.flash) + "\n")
	}
	return b.String()
}

func (m gamesModel) boardView() string {
	e := m.engine
	var b strings.Builder

	left := e.TimeLeft()
	clock := accentStyle.Render(fmt.Sprintf("Time: %d:%02d", left/60, left%60))
	if left <= 10 {
		clock = errorStyle.Render(fmt.Sprintf("Time: %d:%02d", left/60, left%60))
	}
	fmt.Fprintf(&b, "\n  %s   %s   %s\n",
		titleStyle.Render(m.current.Title),
		normalStyle.Render(fmt.Sprintf("Score: %d", e.Score())),
		clock)
	b.WriteString("  " + dimStyle.Render("Pick an emotion, then the situation that matches it!") + "\n\n")

	pending, hasPending := e.Pending()
	colWidth := max(24, (m.width-8)/2)

	render := func(col gameColumn, tiles []game.Tile, header string) string {
		var c strings.Builder
		c.WriteString(selectedStyle.Render(header) + "\n")
		for i, t := range tiles {
			text := t.Text
			if col == columnSituations {
				text = truncStr(text, colWidth-4)
			}
			style := cardStyle
			switch {
			case e.IsMatched(t.ID):
				style = style.BorderForeground(lipgloss.Color("#4ade80"))
				text = successStyle.Render("✓ " + text)
			case col == columnEmotions && hasPending && t.ID == pending:
				style = style.BorderForeground(lipgloss.Color("#c4b5fd"))
				text = titleStyle.Render(text)
			case !hasPending && col == columnSituations:
				text = metaStyle.Render(text)
			}
			if m.column == col && m.rows[col] == i {
				style = style.BorderForeground(lipgloss.Color("#8ab4ff"))
			}
			c.WriteString(style.Width(colWidth).Render(text) + "\n")
		}
		return c.String()
	}

	board := lipgloss.JoinHorizontal(lipgloss.Top,
		render(columnEmotions, e.Emotions(), "Emotions"),
		"  ",
		render(columnSituations, e.Situations(), "Situations"),
	)
	for _, l := range strings.Split(board, "\n") {
		b.WriteString("  " + l + "\n")
	}
	if m.flash != "" {
		b.WriteString("  " + m.flash + "\n")
	}
	return b.String()
}

func (m gamesModel) resultView() string {
	e := m.engine
	var b strings.Builder
	b.WriteString("\n")
	if e.TimedOut() {
		b.WriteString("  " + warnStyle.Render("Time's up!") + "\n")
		fmt.Fprintf(&b, "  %s\n", normalStyle.Render(fmt.Sprintf("You matched %d of %d pairs.", e.Matched(), e.Total())))
	} else {
		b.WriteString("  " + titleStyle.Render("★ Great Job!") + "\n")
		fmt.Fprintf(&b, "  %s\n", normalStyle.Render(fmt.Sprintf("You scored %d points in %d attempts!", e.Score(), e.Attempts())))
	}
	fmt.Fprintf(&b, "  %s %s\n", metaStyle.Render("Final score:"), accentStyle.Bold(true).Render(fmt.Sprintf("%d", e.FinalScore())))
	return b.String()
}

func (m gamesModel) helpKeys() string {
	switch {
	case !m.playing():
		return helpBar(keys.Up, keys.Down, keys.Select, keys.Back, keys.Quit)
	case m.engine.Completed():
		return helpBar(keys.Replay, key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "games")), keys.Quit)
	}
	return helpBar(keys.Up, keys.Down, keys.Next, keys.Select, keys.Replay, keys.Back)
}
