package tui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/naveenspark/tess/internal/appstate"
	"github.com/naveenspark/tess/internal/auth"
	"github.com/naveenspark/tess/internal/browser"
	"github.com/naveenspark/tess/internal/content"
	"github.com/naveenspark/tess/internal/flow"
	"github.com/naveenspark/tess/internal/transport"
	"github.com/naveenspark/tess/pkg/domain"
)

type screen int

const (
	screenLoading screen = iota
	screenLogin
	screenHome
	screenSession
	screenComplete
	screenGames
	screenHistory
	screenStaff
)

// restoredMsg is sent once the stored session has been checked.
type restoredMsg struct {
	state appstate.AuthState
}

// logoutMsg is sent after Logout has run.
type logoutMsg struct {
	err error
}

// clockTickMsg drives the session clock and the expiry check.
type clockTickMsg time.Time

func clockTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return clockTickMsg(t)
	})
}

// sessionExpiredMsg is sent once an expired session has been logged out.
type sessionExpiredMsg struct{}

// expiryCmd runs the expiry check off the UI goroutine, since the logout it
// may trigger touches the credential store and the backend.
func expiryCmd(m *auth.Machine) tea.Cmd {
	return func() tea.Msg {
		if m.CheckExpiry() {
			return sessionExpiredMsg{}
		}
		return nil
	}
}

// callEventMsg wraps an event from the live-call transport.
type callEventMsg struct {
	event transport.Event
}

// waitForEvent blocks on the next call event. It is re-armed after every
// event.
func waitForEvent(events <-chan transport.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		evt, ok := <-events
		if !ok {
			return nil
		}
		return callEventMsg{event: evt}
	}
}

// Deps are the services the TUI drives.
type Deps struct {
	Auth    *auth.Machine
	Flow    *flow.Machine
	State   *appstate.Store
	Catalog *content.Catalog
	Events  <-chan transport.Event
	Logger  *slog.Logger
	Version string
	Now     func() time.Time
	// Copy writes to the system clipboard. Defaults to clipboard.WriteAll.
	Copy func(string) error
	// OpenURL opens help links. Defaults to browser.Open.
	OpenURL func(string) error
}

// App is the root Bubbletea model.
type App struct {
	auth    *auth.Machine
	flow    *flow.Machine
	state   *appstate.Store
	events  <-chan transport.Event
	log     *slog.Logger
	version string
	now     func() time.Time
	openURL func(string) error

	screen   screen
	login    loginModel
	home     homeModel
	session  sessionModel
	complete completeModel
	games    gamesModel
	history  historyModel

	// back is where games and history return to.
	back screen

	spin       spinner.Model
	helpOpen   bool
	helpCursor int
	update     string // newer release, if any
	width      int
	height     int
	frame      int // logo shimmer animation frame
}

// NewApp creates the TUI application.
func NewApp(d Deps) App {
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Copy == nil {
		d.Copy = clipboard.WriteAll
	}
	if d.OpenURL == nil {
		d.OpenURL = browser.Open
	}
	return App{
		auth:     d.Auth,
		flow:     d.Flow,
		state:    d.State,
		events:   d.Events,
		log:      d.Logger,
		version:  d.Version,
		now:      d.Now,
		openURL:  d.OpenURL,
		screen:   screenLoading,
		login:    newLoginModel(d.Auth),
		home:     newHomeModel(d.Flow, d.Catalog),
		session:  newSessionModel(d.Flow, d.Copy),
		complete: newCompleteModel(d.Flow),
		games:    newGamesModel(d.Catalog, d.Logger),
		history:  newHistoryModel(d.Flow, d.Catalog, d.Now),
		spin:     spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(accentStyle)),
	}
}

func (a App) Init() tea.Cmd {
	m := a.auth
	restore := func() tea.Msg {
		return restoredMsg{state: m.Restore()}
	}
	return tea.Batch(restore, shimmerTickCmd(), clockTickCmd(), waitForEvent(a.events), a.spin.Tick, checkVersion(a.version))
}

// route picks the screen that matches the state container. Games and
// history are overlays on top of the home and complete screens.
func (a App) route() App {
	snap := a.state.Snapshot()
	switch snap.Auth.Phase {
	case appstate.AuthUninitialized, appstate.AuthRestoring:
		a.screen = screenLoading
		return a
	case appstate.AuthUnauthenticated:
		a.screen = screenLogin
		return a
	}
	if snap.Auth.Session.Role == domain.RoleStaff {
		a.screen = screenStaff
		return a
	}
	switch snap.Flow.Step {
	case appstate.StepInConversation:
		a.screen = screenSession
	case appstate.StepComplete:
		if a.screen != screenGames && a.screen != screenHistory {
			a.screen = screenComplete
		}
	default:
		if a.screen != screenGames && a.screen != screenHistory {
			a.screen = screenHome
		}
	}
	return a
}

// enterHome starts a fresh check-in if the flow is idle.
func (a App) enterHome() App {
	snap := a.state.Snapshot()
	if snap.Auth.Session.Role == domain.RoleStudent && snap.Flow.Step == appstate.StepGreeting {
		if err := a.flow.Begin(); err != nil {
			a.log.Warn("begin check-in", "err", err)
		}
	}
	a = a.route()
	a.home, _ = a.home.Update(nil)
	return a
}

func (a App) logout() tea.Cmd {
	m := a.auth
	return func() tea.Msg {
		return logoutMsg{err: m.Logout()}
	}
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Chrome: header(2) + status(1) + help(1) = 4 lines
		body := tea.WindowSizeMsg{Width: msg.Width, Height: msg.Height - 4}
		a.login, _ = a.login.Update(body)
		a.home, _ = a.home.Update(body)
		a.session, _ = a.session.Update(body)
		a.complete, _ = a.complete.Update(body)
		a.games, _ = a.games.Update(body)
		a.history, _ = a.history.Update(body)
		return a, nil

	case shimmerTickMsg:
		a.frame++
		return a, shimmerTickCmd()

	case spinner.TickMsg:
		var cmds []tea.Cmd
		var cmd tea.Cmd
		if a.screen == screenLoading {
			a.spin, cmd = a.spin.Update(msg)
			cmds = append(cmds, cmd)
		}
		a.login, cmd = a.login.Update(msg)
		cmds = append(cmds, cmd)
		a.home, cmd = a.home.Update(msg)
		cmds = append(cmds, cmd)
		if a.screen == screenSession {
			a.session, cmd = a.session.Update(msg)
			cmds = append(cmds, cmd)
		}
		return a, tea.Batch(cmds...)

	case restoredMsg:
		a.log.Info("startup", "auth", msg.state.Phase.String(), "role", string(msg.state.Session.Role))
		a = a.enterHome()
		if a.screen == screenSession {
			return a, joinCmd(a.flow)
		}
		return a, nil

	case clockTickMsg:
		return a, tea.Batch(expiryCmd(a.auth), clockTickCmd())

	case sessionExpiredMsg:
		a.login = newLoginModel(a.auth)
		a.login.notice = "Your session expired. Please sign in again."
		a.screen = screenLogin
		return a, nil

	case callEventMsg:
		if a.flow.HandleEvent(msg.event) {
			a.log.Debug("call event applied", "kind", msg.event.Kind)
		}
		return a, waitForEvent(a.events)

	case loginResultMsg:
		a.login, _ = a.login.Update(msg)
		if msg.err == nil {
			a = a.enterHome()
		}
		return a, nil

	case startResultMsg:
		a.home, _ = a.home.Update(msg)
		a = a.route()
		if a.screen == screenSession {
			a.session = a.session.reset()
			return a, tea.Batch(joinCmd(a.flow), a.session.spin.Tick)
		}
		return a, nil

	case joinResultMsg:
		a.session, _ = a.session.Update(msg)
		return a, nil

	case endResultMsg:
		a.session, _ = a.session.Update(msg)
		if msg.err == nil {
			a.complete = a.complete.show(msg.summary, randomEncouragement())
		}
		return a.route(), nil

	case logoutMsg:
		if msg.err != nil {
			a.log.Warn("logout", "err", msg.err)
		}
		a.login = newLoginModel(a.auth)
		return a.route(), nil

	case versionCheckMsg:
		if msg.err != nil {
			a.log.Debug("release check", "err", msg.err)
		}
		a.update = msg.latest
		return a, nil

	case historyLoadedMsg:
		a.history, _ = a.history.Update(msg)
		return a, nil

	case gameTickMsg:
		var cmd tea.Cmd
		a.games, cmd = a.games.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		if a.helpOpen {
			switch {
			case key.Matches(msg, keys.Back), key.Matches(msg, keys.Help):
				a.helpOpen = false
			case msg.String() == "ctrl+c":
				return a, tea.Quit
			case key.Matches(msg, keys.Down):
				if a.helpCursor < len(helpItems)-1 {
					a.helpCursor++
				}
			case key.Matches(msg, keys.Up):
				if a.helpCursor > 0 {
					a.helpCursor--
				}
			case msg.String() == "enter":
				if item := helpItems[a.helpCursor]; item.url != "" {
					a.openURL(item.url) //nolint:errcheck // best-effort browser open
				}
			}
			return a, nil
		}

		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}

		// Global keys (only when not typing)
		if !a.isEditing() {
			switch {
			case key.Matches(msg, keys.Help):
				a.helpOpen = true
				a.helpCursor = 0
				return a, nil
			case key.Matches(msg, keys.Quit) && a.screen != screenSession:
				return a, tea.Quit
			case key.Matches(msg, keys.Logout) && a.loggedIn():
				return a, a.logout()
			}
		}

		return a.updateScreen(msg)
	}

	return a, nil
}

func (a App) loggedIn() bool {
	return a.state.Snapshot().Auth.Phase == appstate.AuthAuthenticated
}

// updateScreen routes a key to the active screen.
func (a App) updateScreen(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.screen {
	case screenLogin:
		a.login, cmd = a.login.Update(msg)

	case screenHome:
		step := a.flow.State().Step
		if step == appstate.StepMoodSelect && !a.home.busy {
			switch {
			case key.Matches(msg, keys.Games):
				return a.openGames(screenHome), nil
			case key.Matches(msg, keys.History):
				return a.openHistory(screenHome)
			}
		}
		a.home, cmd = a.home.Update(msg)

	case screenSession:
		a.session, cmd = a.session.Update(msg)

	case screenComplete:
		switch {
		case key.Matches(msg, keys.Home):
			a.flow.ReturnHome(context.Background())
			a.screen = screenHome
			a = a.route()
			a.home, _ = a.home.Update(nil)
		case key.Matches(msg, keys.Games):
			return a.openGames(screenComplete), nil
		case key.Matches(msg, keys.History):
			return a.openHistory(screenComplete)
		}

	case screenGames:
		a.games, cmd = a.games.Update(msg)
		if a.games.closed {
			a.screen = a.back
			a = a.route()
		}

	case screenHistory:
		a.history, cmd = a.history.Update(msg)
		if a.history.closed {
			a.screen = a.back
			a = a.route()
		}
	}
	return a, cmd
}

func (a App) openGames(from screen) App {
	a.back = from
	a.games = a.games.open()
	a.screen = screenGames
	return a
}

func (a App) openHistory(from screen) (App, tea.Cmd) {
	a.back = from
	a.screen = screenHistory
	var cmd tea.Cmd
	a.history, cmd = a.history.load()
	return a, cmd
}

// isEditing reports whether a text field has the keyboard.
func (a App) isEditing() bool {
	return a.screen == screenLogin && a.login.editing()
}

func (a App) View() string {
	logo := renderShimmerLogo(a.frame)
	header := centered(logo, a.width, lipgloss.Width(logo))

	snap := a.state.Snapshot()
	status := ""
	if name := snap.Auth.Session.DisplayName(); snap.Auth.Phase == appstate.AuthAuthenticated && name != "" {
		status = metaStyle.Render(greeting(a.now())+", ") + selectedStyle.Render(name) + metaStyle.Render("!")
	}
	if a.update != "" {
		if status != "" {
			status += metaStyle.Render("  ·  ")
		}
		status += warnStyle.Render(a.update + " available")
	}
	header += "\n" + centered(status, a.width, lipgloss.Width(status))

	var body, help string
	switch a.screen {
	case screenLoading:
		body = "\n  " + a.spin.View() + " " + dimStyle.Render("Waking up Tess...")
		help = helpBar(keys.Quit)
	case screenLogin:
		body = a.login.View()
		help = a.login.helpKeys()
	case screenHome:
		body = a.home.View()
		help = a.home.helpKeys()
	case screenSession:
		body = a.session.View()
		help = a.session.helpKeys()
	case screenComplete:
		body = a.complete.View()
		help = a.complete.helpKeys()
	case screenGames:
		body = a.games.View()
		help = a.games.helpKeys()
	case screenHistory:
		body = a.history.View()
		help = a.history.helpKeys()
	case screenStaff:
		body = staffView(snap.Auth.Session.Educator)
		help = helpBar(keys.Help, keys.Quit)
	}
	if a.loggedIn() && a.screen != screenSession && !a.helpOpen {
		help += "  " + helpEntry("L", "log out")
	}

	if a.helpOpen {
		body = helpView(a.helpCursor, a.version)
		help = helpBar(keys.Up, keys.Down, key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")), key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")))
	}

	// Chrome budget: header(2) + separator(1) + help(1) = 4 lines + body
	chrome := 4
	body = strings.TrimRight(truncateToHeight(body, a.height-chrome), "\n")

	return fmt.Sprintf("%s\n%s\n%s", header, body, help)
}

func staffView(e *domain.Educator) string {
	var b strings.Builder
	b.WriteString("\n  " + titleStyle.Render("Staff") + "\n\n")
	if e == nil {
		return b.String()
	}
	fmt.Fprintf(&b, "  %s %s\n", metaStyle.Render("Signed in as"), selectedStyle.Render(e.Name))
	if e.Email != "" {
		b.WriteString("  " + dimStyle.Render(e.Email) + "\n")
	}
	if len(e.ClassIDs) > 0 {
		b.WriteString("\n  " + metaStyle.Render("Classes: ") + normalStyle.Render(strings.Join(e.ClassIDs, ", ")) + "\n")
	}
	b.WriteString("\n  " + tessVoiceStyle.Render("Check-ins are for students. Class reports live on the web dashboard.") + "\n")
	return b.String()
}
