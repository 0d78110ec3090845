package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/tess/internal/appstate"
	"github.com/naveenspark/tess/internal/auth"
	"github.com/naveenspark/tess/internal/content"
	"github.com/naveenspark/tess/internal/credstore"
	"github.com/naveenspark/tess/internal/flow"
	"github.com/naveenspark/tess/internal/transport"
	"github.com/naveenspark/tess/pkg/client"
	"github.com/naveenspark/tess/pkg/domain"
)

// directory is a stub directory service.
type directory struct {
	staff *client.StaffAuth
}

func (d directory) AuthenticateByScanToken(context.Context, string) (*client.StudentAuth, error) {
	return nil, &client.HTTPError{StatusCode: 401, Message: "bad token"}
}

func (d directory) AuthenticateStaff(_ context.Context, email, password string) (*client.StaffAuth, error) {
	if d.staff == nil || password != "demo123" {
		return nil, client.ErrInvalidCredentials
	}
	return d.staff, nil
}

// backend fakes the ledger and provisioner.
type backend struct {
	mu        sync.Mutex
	createErr error
	ended     []string
	list      []domain.CheckInSession
}

func (b *backend) CreateSession(_ context.Context, req client.CreateSessionRequest) (*domain.CheckInSession, error) {
	if b.createErr != nil {
		return nil, b.createErr
	}
	return &domain.CheckInSession{ID: "S1", StudentID: req.StudentID}, nil
}

func (b *backend) UpdateSession(_ context.Context, id string, _ domain.SessionUpdate) (*domain.CheckInSession, error) {
	return &domain.CheckInSession{ID: id}, nil
}

func (b *backend) ListSessions(context.Context, string) ([]domain.CheckInSession, error) {
	return b.list, nil
}

func (b *backend) CreateConversation(context.Context, client.CreateConversationRequest) (*domain.ConversationResource, error) {
	return &domain.ConversationResource{ConversationID: "C1", JoinURL: "https://call.example/tess-1"}, nil
}

func (b *backend) EndConversation(_ context.Context, id string) error {
	b.mu.Lock()
	b.ended = append(b.ended, id)
	b.mu.Unlock()
	return nil
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	t       *testing.T
	app     App
	state   *appstate.Store
	creds   *credstore.MemStore
	auth    *auth.Machine
	flow    *flow.Machine
	call    *transport.Fake
	backend *backend
	clock   *testClock
	copied  []string
	opened  []string
}

func newFixture(t *testing.T, dir directory) *fixture {
	t.Helper()
	cat, err := content.Default()
	if err != nil {
		t.Fatalf("content.Default: %v", err)
	}
	f := &fixture{
		t:       t,
		state:   appstate.New(),
		creds:   credstore.NewMemStore(),
		call:    transport.NewFake(),
		backend: &backend{},
		clock:   &testClock{t: time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)},
	}
	f.auth = auth.New(f.state, f.creds, dir, auth.Options{Now: f.clock.Now})
	f.flow = flow.New(f.state, f.auth, f.backend, f.backend, f.call, flow.Options{Now: f.clock.Now})
	f.app = NewApp(Deps{
		Auth:    f.auth,
		Flow:    f.flow,
		State:   f.state,
		Catalog: cat,
		Events:  f.call.Events(),
		Now:     f.clock.Now,
		Version: "dev",
		Copy: func(s string) error {
			f.copied = append(f.copied, s)
			return nil
		},
		OpenURL: func(u string) error {
			f.opened = append(f.opened, u)
			return nil
		},
	})
	f.send(tea.WindowSizeMsg{Width: 100, Height: 50})
	f.send(restoredMsg{state: f.auth.Restore()})
	return f
}

func (f *fixture) send(msg tea.Msg) tea.Cmd {
	m, cmd := f.app.Update(msg)
	f.app = m.(App)
	return cmd
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func (f *fixture) press(keys ...string) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		cmd = f.send(keyMsg(k))
	}
	return cmd
}

// drain runs cmd, expanding batches. Only use it on commands without
// tea.Tick timers.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drain(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func findMsg[T tea.Msg](t *testing.T, msgs []tea.Msg) T {
	t.Helper()
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			return v
		}
	}
	var zero T
	t.Fatalf("no %T among %d messages", zero, len(msgs))
	return zero
}

// deliver runs cmd and feeds back the first message of type T.
func deliver[T tea.Msg](f *fixture, cmd tea.Cmd) (T, tea.Cmd) {
	f.t.Helper()
	msg := findMsg[T](f.t, drain(cmd))
	return msg, f.send(msg)
}

func (f *fixture) demoLogin() {
	f.t.Helper()
	cmd := f.press("down", "enter")
	res, _ := deliver[loginResultMsg](f, cmd)
	if res.err != nil {
		f.t.Fatalf("demo sign-in: %v", res.err)
	}
}

// startSession walks the selection steps and starts a call.
func (f *fixture) startSession() {
	f.t.Helper()
	f.press("enter") // Happy
	f.press("s")     // skip context
	f.press("enter") // first skill
	if got := f.state.Snapshot().Flow.Step; got != appstate.StepReadyToStart {
		f.t.Fatalf("step = %s, want ready", got)
	}
	_, cmd := deliver[startResultMsg](f, f.press("enter"))
	if f.app.screen != screenSession {
		f.t.Fatalf("screen = %d, want session", f.app.screen)
	}
	deliver[joinResultMsg](f, cmd)
}

func TestAppWithoutStoredSessionShowsLogin(t *testing.T) {
	f := newFixture(t, directory{})
	if f.app.screen != screenLogin {
		t.Errorf("screen = %d, want login", f.app.screen)
	}
	if !strings.Contains(f.app.View(), "Welcome to Tess") {
		t.Error("login view missing welcome")
	}
}

func TestAppDemoLoginBeginsCheckIn(t *testing.T) {
	f := newFixture(t, directory{})
	f.demoLogin()

	if f.app.screen != screenHome {
		t.Fatalf("screen = %d, want home", f.app.screen)
	}
	if got := f.state.Snapshot().Flow.Step; got != appstate.StepMoodSelect {
		t.Errorf("step = %s, want mood", got)
	}
	view := f.app.View()
	if !strings.Contains(view, "How are you feeling") {
		t.Error("home view missing mood prompt")
	}
	if !strings.Contains(view, "Good Morning") || !strings.Contains(view, "Demo Student") {
		t.Error("header missing greeting")
	}
}

func TestAppFullCheckIn(t *testing.T) {
	f := newFixture(t, directory{})
	f.demoLogin()
	f.startSession()

	url, opts, joined := f.call.Joined()
	if !joined || url != "https://call.example/tess-1" || !opts.StartVideoOff {
		t.Fatalf("join = %q %+v %v", url, opts, joined)
	}

	f.send(callEventMsg{event: transport.Event{Kind: transport.ParticipantJoined}})
	if got := f.state.Snapshot().Flow.Conversation.Status; got != domain.ConversationConnected {
		t.Errorf("status = %s, want connected", got)
	}
	if !strings.Contains(f.app.View(), "Tess is here") {
		t.Error("session view missing connected status")
	}

	f.press("m")
	if !f.app.session.muted {
		t.Error("expected mic muted after m")
	}
	f.press("c")
	if len(f.copied) != 1 || f.copied[0] != url {
		t.Errorf("copied = %v", f.copied)
	}

	f.clock.Advance(95 * time.Second)
	res, _ := deliver[endResultMsg](f, f.press("e"))
	if res.summary.Duration != 95*time.Second {
		t.Errorf("duration = %v, want 95s", res.summary.Duration)
	}
	if f.app.screen != screenComplete {
		t.Fatalf("screen = %d, want complete", f.app.screen)
	}
	if len(f.backend.ended) != 1 || f.backend.ended[0] != "C1" {
		t.Errorf("ended = %v", f.backend.ended)
	}
	view := f.app.View()
	if !strings.Contains(view, "Session Complete") || !strings.Contains(view, "1:35") {
		t.Errorf("complete view missing summary:\n%s", view)
	}

	f.press("enter")
	if f.app.screen != screenHome || f.state.Snapshot().Flow.Step != appstate.StepMoodSelect {
		t.Errorf("after return home: screen=%d step=%s", f.app.screen, f.state.Snapshot().Flow.Step)
	}
}

func TestAppReopenKeepsConnected(t *testing.T) {
	f := newFixture(t, directory{})
	f.demoLogin()
	f.startSession()
	f.send(callEventMsg{event: transport.Event{Kind: transport.JoinedMeeting}})

	res, _ := deliver[joinResultMsg](f, f.press("o"))
	if res.err != nil {
		t.Fatalf("reopen: %v", res.err)
	}
	if got := f.state.Snapshot().Flow.Conversation.Status; got != domain.ConversationConnected {
		t.Errorf("status = %s, want connected", got)
	}
	if f.call.Reopens() != 1 {
		t.Errorf("reopens = %d, want 1", f.call.Reopens())
	}
	if strings.Contains(f.app.View(), "Waiting for Tess") {
		t.Error("session view fell back to the waiting status")
	}
}

func TestAppMuteHiddenWithoutAudioControl(t *testing.T) {
	f := newFixture(t, directory{})
	f.call.NoAudioControl = true
	f.demoLogin()
	f.startSession()

	if strings.Contains(f.app.session.helpKeys(), "mute") {
		t.Error("help bar offers mute without audio control")
	}
	view := f.app.View()
	if strings.Contains(view, "mic on") {
		t.Errorf("session view shows a mic state it cannot control:\n%s", view)
	}
	if !strings.Contains(view, "mute button on the call page") {
		t.Error("session view missing browser mic hint")
	}

	f.press("m")
	if f.app.session.muted || f.app.session.err != "" {
		t.Errorf("m changed state: muted=%v err=%q", f.app.session.muted, f.app.session.err)
	}
	for _, c := range f.call.Calls() {
		if c == "audio" {
			t.Error("transport saw an audio change")
		}
	}
}

func TestAppStartFailureStaysReady(t *testing.T) {
	f := newFixture(t, directory{})
	f.backend.createErr = errors.New("ledger down")
	f.demoLogin()

	f.press("enter", "s", "enter")
	deliver[startResultMsg](f, f.press("enter"))

	if f.app.screen != screenHome {
		t.Fatalf("screen = %d, want home", f.app.screen)
	}
	if got := f.state.Snapshot().Flow.Step; got != appstate.StepReadyToStart {
		t.Errorf("step = %s, want ready", got)
	}
	if !strings.Contains(f.app.View(), "Failed to start session") {
		t.Error("missing retry message")
	}
}

func TestAppQuitKeyIgnoredDuringCall(t *testing.T) {
	f := newFixture(t, directory{})
	f.demoLogin()
	f.startSession()

	if cmd := f.press("q"); cmd != nil {
		t.Error("q should not quit during a call")
	}
	cmd := f.press("ctrl+c")
	if cmd == nil {
		t.Fatal("ctrl+c should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c did not return tea.Quit")
	}
}

func TestAppQuitOnQ(t *testing.T) {
	f := newFixture(t, directory{})
	cmd := f.press("q")
	if cmd == nil {
		t.Fatal("expected quit command on 'q', got nil")
	}
}

func TestAppLogoutReturnsToLogin(t *testing.T) {
	f := newFixture(t, directory{})
	f.demoLogin()
	f.startSession()

	deliver[logoutMsg](f, f.press("L"))

	if f.app.screen != screenLogin {
		t.Errorf("screen = %d, want login", f.app.screen)
	}
	if f.creds.Len() != 0 {
		t.Errorf("credential store has %d keys after logout", f.creds.Len())
	}
	if _, _, joined := f.call.Joined(); joined {
		t.Error("call still live after logout")
	}
	if len(f.backend.ended) != 1 {
		t.Errorf("ended = %v, want the live conversation ended", f.backend.ended)
	}
}

func TestAppExpiryReturnsToLogin(t *testing.T) {
	f := newFixture(t, directory{})
	f.demoLogin()

	f.clock.Advance(auth.LocalTokenTTL + time.Minute)
	f.send(clockTickMsg(f.clock.Now()))
	if f.app.screen == screenLogin || f.creds.Len() == 0 {
		t.Fatal("clock tick logged out on the UI goroutine")
	}

	msg := expiryCmd(f.auth)()
	if _, ok := msg.(sessionExpiredMsg); !ok {
		t.Fatalf("expiry check = %T, want sessionExpiredMsg", msg)
	}
	f.send(msg)

	if f.app.screen != screenLogin {
		t.Fatalf("screen = %d, want login", f.app.screen)
	}
	if !strings.Contains(f.app.View(), "expired") {
		t.Error("login view missing expiry notice")
	}
}

func TestAppExpiryCheckBeforeExpiry(t *testing.T) {
	f := newFixture(t, directory{})
	f.demoLogin()

	if msg := expiryCmd(f.auth)(); msg != nil {
		t.Errorf("expiry check on a live session = %T, want nil", msg)
	}
	if f.creds.Len() == 0 {
		t.Error("live session was logged out")
	}
}

func TestAppHelpOverlay(t *testing.T) {
	f := newFixture(t, directory{})
	f.press("?")
	if !f.app.helpOpen {
		t.Fatal("expected help overlay open")
	}
	f.press("down", "enter")
	if len(f.opened) != 1 || f.opened[0] != helpItems[1].url {
		t.Errorf("opened = %v", f.opened)
	}
	f.press("esc")
	if f.app.helpOpen {
		t.Error("esc should close help")
	}
}

func TestAppStaffLogin(t *testing.T) {
	staff := &client.StaffAuth{
		Educator:  domain.Educator{ID: "E1", Name: "Ms. Rivera", Email: "demo@school.edu", ClassIDs: []string{"4B"}},
		Token:     "staff-token",
		ExpiresAt: time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC),
	}
	f := newFixture(t, directory{staff: staff})

	f.press("down", "down", "down", "enter")
	if !f.app.isEditing() {
		t.Fatal("expected staff form")
	}
	f.press("demo@school.edu", "tab", "demo123")
	deliver[loginResultMsg](f, f.press("enter"))

	if f.app.screen != screenStaff {
		t.Fatalf("screen = %d, want staff", f.app.screen)
	}
	if !strings.Contains(f.app.View(), "Ms. Rivera") {
		t.Error("staff view missing name")
	}
}

func TestAppStaffLoginRejected(t *testing.T) {
	f := newFixture(t, directory{})
	f.press("down", "down", "down", "enter")
	f.press("demo@school.edu", "tab", "wrong")
	deliver[loginResultMsg](f, f.press("enter"))

	if f.app.screen != screenLogin {
		t.Fatalf("screen = %d, want login", f.app.screen)
	}
	if !strings.Contains(f.app.View(), "demo@school.edu / demo123") {
		t.Error("missing invalid-credentials hint")
	}
}

func TestAppHistory(t *testing.T) {
	f := newFixture(t, directory{})
	f.backend.list = []domain.CheckInSession{
		{ID: "S9", MoodEmoji: "🐰", SELSkill: "deep-breathing", Duration: 95, CreatedAt: f.clock.Now().Add(-2 * time.Hour)},
	}
	f.demoLogin()

	deliver[historyLoadedMsg](f, f.press("p"))
	if f.app.screen != screenHistory {
		t.Fatalf("screen = %d, want history", f.app.screen)
	}
	view := f.app.View()
	if !strings.Contains(view, "Deep Breathing") || !strings.Contains(view, "2h ago") {
		t.Errorf("history view:\n%s", view)
	}

	f.press("esc")
	if f.app.screen != screenHome {
		t.Errorf("screen = %d, want home after esc", f.app.screen)
	}
}

func TestAppGamesFromHome(t *testing.T) {
	f := newFixture(t, directory{})
	f.demoLogin()

	f.press("g")
	if f.app.screen != screenGames {
		t.Fatalf("screen = %d, want games", f.app.screen)
	}
	if !strings.Contains(f.app.View(), "Match the Feeling") {
		t.Error("games list missing matching game")
	}
	f.press("esc")
	if f.app.screen != screenHome {
		t.Errorf("screen = %d, want home", f.app.screen)
	}
}

func TestAppVersionNotice(t *testing.T) {
	f := newFixture(t, directory{})
	f.send(versionCheckMsg{latest: "v0.9.0"})
	if !strings.Contains(f.app.View(), "v0.9.0 available") {
		t.Error("header missing update notice")
	}
}
