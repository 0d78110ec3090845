package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/tess/internal/flow"
	"github.com/naveenspark/tess/pkg/domain"
)

// joinResultMsg carries the outcome of handing the join URL to the call
// transport.
type joinResultMsg struct {
	err error
}

// endResultMsg carries the outcome of EndSession.
type endResultMsg struct {
	summary flow.Summary
	err     error
}

// sessionModel is the in-call screen: status, clock, skill steps and call
// controls.
type sessionModel struct {
	flow   *flow.Machine
	copy   func(string) error
	muted  bool
	ending bool
	note   string
	err    string
	spin   spinner.Model
	width  int
	height int
}

func newSessionModel(f *flow.Machine, copyFn func(string) error) sessionModel {
	return sessionModel{
		flow: f,
		copy: copyFn,
		spin: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(accentStyle)),
	}
}

// reset clears per-call state when a new call begins.
func (m sessionModel) reset() sessionModel {
	m.muted = false
	m.ending = false
	m.note = ""
	m.err = ""
	return m
}

// joinCmd opens the call on entering the session screen.
func joinCmd(f *flow.Machine) tea.Cmd {
	return func() tea.Msg {
		return joinResultMsg{err: f.Join(context.Background())}
	}
}

// reopenCmd brings the call back up, or retries a failed join.
func reopenCmd(f *flow.Machine) tea.Cmd {
	return func() tea.Msg {
		return joinResultMsg{err: f.Reopen(context.Background())}
	}
}

func endCmd(f *flow.Machine) tea.Cmd {
	return func() tea.Msg {
		sum, err := f.EndSession(context.Background())
		return endResultMsg{summary: sum, err: err}
	}
}

func (m sessionModel) Update(msg tea.Msg) (sessionModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case joinResultMsg:
		if msg.err != nil {
			m.err = "Could not open the call. Press o to try again, or c to copy the link."
		} else {
			m.err = ""
		}
		return m, nil

	case endResultMsg:
		m.ending = false
		if msg.err != nil {
			m.err = "Could not end the session."
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.ending {
			return m, nil
		}
		switch {
		case key.Matches(msg, keys.Mute):
			if !m.flow.AudioControl() {
				return m, nil
			}
			on, err := m.flow.ToggleMute()
			if err != nil {
				m.err = "Could not change the microphone."
				return m, nil
			}
			m.muted = !on
			m.err = ""
		case key.Matches(msg, keys.Copy):
			url := m.flow.State().Conversation.JoinURL
			if url == "" || m.copy == nil {
				return m, nil
			}
			if err := m.copy(url); err != nil {
				m.note = "Copy failed. The link is: " + url
			} else {
				m.note = "Link copied. Paste it into your browser."
			}
		case key.Matches(msg, keys.Reopen):
			m.err = ""
			return m, reopenCmd(m.flow)
		case key.Matches(msg, keys.End):
			m.ending = true
			return m, tea.Batch(m.spin.Tick, endCmd(m.flow))
		}
	}
	return m, nil
}

func statusLine(status domain.ConversationStatus, spin string) string {
	switch status {
	case domain.ConversationConnected:
		return successStyle.Render("●") + " " + normalStyle.Render("Tess is here")
	case domain.ConversationConnecting:
		return spin + " " + dimStyle.Render("Waiting for Tess in your browser...")
	case domain.ConversationEnded:
		return metaStyle.Render("○ Call ended")
	}
	return metaStyle.Render("○ Not connected")
}

func (m sessionModel) View() string {
	fs := m.flow.State()
	sel := fs.Selection

	var b strings.Builder
	b.WriteString("\n")

	header := statusLine(fs.Conversation.Status, m.spin.View()) +
		metaStyle.Render("   ") + accentStyle.Render(formatClock(m.flow.Elapsed().Truncate(time.Second)))
	if sel.Mood != nil {
		header += metaStyle.Render("   ") + sel.Mood.Emoji + " " + colorStyle(sel.Mood.Color).Render(sel.Mood.Label)
	}
	b.WriteString("  " + header + "\n\n")

	b.WriteString("  " + tessVoiceStyle.Render("Tess is waiting for you in your browser. Talk to her there!") + "\n")
	if url := fs.Conversation.JoinURL; url != "" {
		b.WriteString("  " + metaStyle.Render(truncStr(url, max(20, m.width-4))) + "\n")
	}
	b.WriteString("\n")

	if sel.Skill != nil {
		b.WriteString("  " + titleStyle.Render(sel.Skill.Title) + "\n")
		if sel.Skill.Description != "" {
			b.WriteString("  " + dimStyle.Render(sel.Skill.Description) + "\n")
		}
		b.WriteString("\n  " + selectedStyle.Render("Follow along:") + "\n")
		for i, step := range sel.Skill.Instructions {
			fmt.Fprintf(&b, "  %s %s\n", accentStyle.Render(fmt.Sprintf("%d.", i+1)), normalStyle.Render(step))
		}
		b.WriteString("\n")
	}

	if m.flow.AudioControl() {
		mic := successStyle.Render("mic on")
		if m.muted {
			mic = errorStyle.Render("mic off")
		}
		b.WriteString("  " + mic + "\n")
	} else {
		b.WriteString("  " + dimStyle.Render("Use the mute button on the call page to turn your mic off.") + "\n")
	}

	switch {
	case m.ending:
		b.WriteString("  " + m.spin.View() + " " + dimStyle.Render("Saying goodbye...") + "\n")
	case m.err != "":
		b.WriteString("  " + errorStyle.Render(m.err) + "\n")
	case m.note != "":
		b.WriteString("  " + dimStyle.Render(m.note) + "\n")
	}
	return b.String()
}

func (m sessionModel) helpKeys() string {
	if !m.flow.AudioControl() {
		return helpBar(keys.Copy, keys.Reopen, keys.End, keys.Help)
	}
	return helpBar(keys.Mute, keys.Copy, keys.Reopen, keys.End, keys.Help)
}
