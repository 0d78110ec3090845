package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/tess/internal/auth"
)

type loginMode int

const (
	loginChoose loginMode = iota
	loginScan
	loginSignUp
	loginStaff
	loginDemo
)

// loginResultMsg carries the outcome of any sign-in path.
type loginResultMsg struct {
	err error
}

type loginOption struct {
	label string
	desc  string
	mode  loginMode
}

var loginOptions = []loginOption{
	{"Scan my badge", "type or paste the code on your badge", loginScan},
	{"Quick demo", "try Tess as Demo Student", loginDemo},
	{"I'm new here", "make a profile on this device", loginSignUp},
	{"Teacher or staff", "sign in with email and password", loginStaff},
}

// Authenticator is the part of the auth machine the login screen drives.
type Authenticator interface {
	LoginScanToken(ctx context.Context, token string) error
	LoginStaff(ctx context.Context, email, password string) error
	SignUp(name string, grade int, classID string) error
	DemoSignIn() error
}

type loginModel struct {
	auth   Authenticator
	mode   loginMode
	cursor int
	inputs []textinput.Model
	focus  int
	busy   bool
	err    string
	notice string // shown above the options, e.g. after an expiry
	spin   spinner.Model
	width  int
	height int
}

func newLoginModel(a Authenticator) loginModel {
	return loginModel{
		auth: a,
		spin: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(accentStyle)),
	}
}

func newInput(placeholder string, limit int) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	ti.Prompt = "> "
	return ti
}

// editing reports whether keystrokes belong to a text field.
func (m loginModel) editing() bool {
	return m.mode != loginChoose
}

func (m loginModel) enter(mode loginMode) (loginModel, tea.Cmd) {
	m.mode = mode
	m.err = ""
	m.focus = 0
	switch mode {
	case loginScan:
		m.inputs = []textinput.Model{newInput("badge code", 256)}
	case loginSignUp:
		m.inputs = []textinput.Model{
			newInput("your first name", 60),
			newInput("grade (1-12)", 2),
			newInput("class code", 40),
		}
	case loginStaff:
		pw := newInput("password", 128)
		pw.EchoMode = textinput.EchoPassword
		pw.EchoCharacter = '•'
		m.inputs = []textinput.Model{newInput("email", 254), pw}
	case loginDemo:
		m.mode = loginChoose
		return m.submit(func(a Authenticator) error { return a.DemoSignIn() })
	}
	return m, m.inputs[0].Focus()
}

func (m loginModel) back() loginModel {
	m.mode = loginChoose
	m.inputs = nil
	m.err = ""
	return m
}

// submit runs fn off the update loop and shows the spinner meanwhile.
func (m loginModel) submit(fn func(Authenticator) error) (loginModel, tea.Cmd) {
	m.busy = true
	m.err = ""
	a := m.auth
	return m, tea.Batch(m.spin.Tick, func() tea.Msg {
		return loginResultMsg{err: fn(a)}
	})
}

func (m loginModel) submitForm() (loginModel, tea.Cmd) {
	val := func(i int) string { return strings.TrimSpace(m.inputs[i].Value()) }
	switch m.mode {
	case loginScan:
		token := val(0)
		if token == "" {
			m.err = "Please enter the code from your badge."
			return m, nil
		}
		return m.submit(func(a Authenticator) error {
			return a.LoginScanToken(context.Background(), token)
		})
	case loginSignUp:
		name, class := val(0), val(2)
		grade, err := strconv.Atoi(val(1))
		if err != nil {
			m.err = "Grade must be a number from 1 to 12."
			return m, nil
		}
		return m.submit(func(a Authenticator) error { return a.SignUp(name, grade, class) })
	case loginStaff:
		email, pw := val(0), m.inputs[1].Value()
		if email == "" || pw == "" {
			m.err = "Please enter your email and password."
			return m, nil
		}
		return m.submit(func(a Authenticator) error {
			return a.LoginStaff(context.Background(), email, pw)
		})
	}
	return m, nil
}

func (m loginModel) moveFocus(delta int) (loginModel, tea.Cmd) {
	n := len(m.inputs)
	if n == 0 {
		return m, nil
	}
	m.inputs[m.focus].Blur()
	m.focus = (m.focus + delta + n) % n
	return m, m.inputs[m.focus].Focus()
}

func (m loginModel) Update(msg tea.Msg) (loginModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loginResultMsg:
		m.busy = false
		if msg.err != nil {
			m.err = auth.UserMessage(msg.err)
			return m, nil
		}
		m = m.back()
		m.notice = ""
		return m, nil

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
		if m.mode == loginChoose {
			switch {
			case key.Matches(msg, keys.Up):
				if m.cursor > 0 {
					m.cursor--
				}
			case key.Matches(msg, keys.Down):
				if m.cursor < len(loginOptions)-1 {
					m.cursor++
				}
			case key.Matches(msg, keys.Select):
				return m.enter(loginOptions[m.cursor].mode)
			}
			return m, nil
		}

		switch msg.String() {
		case "esc":
			return m.back(), nil
		case "tab", "down":
			return m.moveFocus(1)
		case "shift+tab", "up":
			return m.moveFocus(-1)
		case "enter":
			if m.focus < len(m.inputs)-1 {
				return m.moveFocus(1)
			}
			return m.submitForm()
		}
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m loginModel) View() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString("  " + titleStyle.Render("Welcome to Tess") + "\n")
	b.WriteString("  " + tessVoiceStyle.Render("Hi! I'm Tess. Let's check in together.") + "\n\n")

	if m.notice != "" {
		b.WriteString("  " + warnStyle.Render(m.notice) + "\n\n")
	}

	if m.mode == loginChoose {
		for i, opt := range loginOptions {
			if i == m.cursor {
				fmt.Fprintf(&b, "  %s %s  %s\n", accentStyle.Render(">"), selectedStyle.Render(opt.label), dimStyle.Render(opt.desc))
			} else {
				fmt.Fprintf(&b, "    %s  %s\n", normalStyle.Render(opt.label), metaStyle.Render(opt.desc))
			}
		}
	} else {
		b.WriteString("  " + selectedStyle.Render(m.formTitle()) + "\n\n")
		for _, in := range m.inputs {
			b.WriteString("  " + in.View() + "\n")
		}
	}

	b.WriteString("\n")
	switch {
	case m.busy:
		b.WriteString("  " + m.spin.View() + " " + dimStyle.Render("Signing you in...") + "\n")
	case m.err != "":
		b.WriteString("  " + errorStyle.Render(m.err) + "\n")
	}
	return b.String()
}

func (m loginModel) formTitle() string {
	switch m.mode {
	case loginScan:
		return "Scan your badge"
	case loginSignUp:
		return "Tell Tess about you"
	case loginStaff:
		return "Staff sign in"
	}
	return ""
}

func (m loginModel) helpKeys() string {
	if m.mode == loginChoose {
		return helpBar(keys.Up, keys.Down, keys.Select, keys.Help, keys.Quit)
	}
	return helpBar(keys.Next, key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "continue")), key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")))
}
