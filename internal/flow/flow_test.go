package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/naveenspark/tess/internal/appstate"
	"github.com/naveenspark/tess/internal/auth"
	"github.com/naveenspark/tess/internal/credstore"
	"github.com/naveenspark/tess/internal/transport"
	"github.com/naveenspark/tess/pkg/client"
	"github.com/naveenspark/tess/pkg/domain"
)

var (
	happy         = domain.MoodOption{Emoji: "🐰", Label: "Happy", Value: "happy"}
	sad           = domain.MoodOption{Emoji: "🐶", Label: "Sad", Value: "sad"}
	deepBreathing = domain.SELSkill{ID: "deep-breathing", Title: "Deep Breathing"}
	recess        = domain.ContextTag{ID: "recess", Label: "Recess"}
)

const realStudentID = "6f1c2b1e-8a7e-4d9a-9b0f-2f1e4c3d5a6b"

// remote fakes both the ledger and the provisioner and records call order.
type remote struct {
	mu    sync.Mutex
	calls []string

	createErr error
	provErr   error
	block     chan struct{} // when set, CreateSession waits for it

	created []client.CreateSessionRequest
	provReq []client.CreateConversationRequest
	updates map[string]domain.SessionUpdate
	ended   []string
	list    []domain.CheckInSession
	listFor string
}

func (r *remote) record(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *remote) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *remote) CreateSession(ctx context.Context, req client.CreateSessionRequest) (*domain.CheckInSession, error) {
	r.record("ledger.create")
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r.mu.Lock()
	r.created = append(r.created, req)
	r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	return &domain.CheckInSession{ID: "S1", StudentID: req.StudentID, MoodEmoji: req.MoodEmoji, SELSkill: req.SELSkill}, nil
}

func (r *remote) UpdateSession(_ context.Context, id string, upd domain.SessionUpdate) (*domain.CheckInSession, error) {
	r.record("ledger.update")
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updates == nil {
		r.updates = map[string]domain.SessionUpdate{}
	}
	r.updates[id] = upd
	return &domain.CheckInSession{ID: id}, nil
}

func (r *remote) ListSessions(_ context.Context, studentID string) ([]domain.CheckInSession, error) {
	r.record("ledger.list")
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listFor = studentID
	return r.list, nil
}

func (r *remote) CreateConversation(_ context.Context, req client.CreateConversationRequest) (*domain.ConversationResource, error) {
	r.record("provisioner.create")
	r.mu.Lock()
	r.provReq = append(r.provReq, req)
	r.mu.Unlock()
	if r.provErr != nil {
		return nil, r.provErr
	}
	return &domain.ConversationResource{ConversationID: "C1", JoinURL: "https://call/x", Status: "active"}, nil
}

func (r *remote) EndConversation(_ context.Context, id string) error {
	r.record("provisioner.end")
	r.mu.Lock()
	r.ended = append(r.ended, id)
	r.mu.Unlock()
	return nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	state  *appstate.Store
	remote *remote
	call   *transport.Fake
	clock  *clock
	flow   *Machine
}

func newFixture(t *testing.T, studentID string) *fixture {
	t.Helper()
	f := &fixture{
		state:  appstate.New(),
		remote: &remote{},
		call:   transport.NewFake(),
		clock:  &clock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)},
	}
	if studentID != "" {
		f.state.SetAuth(appstate.AuthState{Phase: appstate.AuthAuthenticated, Session: domain.AuthSession{
			Role:      domain.RoleStudent,
			Token:     "tok",
			ExpiresAt: f.clock.Now().Add(8 * time.Hour),
			Student:   &domain.Student{ID: studentID, Name: "Sam", Grade: 4},
		}})
	}
	f.flow = New(f.state, nil, f.remote, f.remote, f.call, Options{Now: f.clock.Now})
	return f
}

// ready drives the flow to ReadyToStart with happy + deep-breathing.
func (f *fixture) ready(t *testing.T) {
	t.Helper()
	if err := f.flow.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := f.flow.SelectMood(happy); err != nil {
		t.Fatalf("SelectMood: %v", err)
	}
	if err := f.flow.SkipContext(); err != nil {
		t.Fatalf("SkipContext: %v", err)
	}
	if err := f.flow.SelectSkill(deepBreathing); err != nil {
		t.Fatalf("SelectSkill: %v", err)
	}
	if got := f.flow.State().Step; got != appstate.StepReadyToStart {
		t.Fatalf("Step = %v, want ready", got)
	}
}

func TestBegin_RequiresStudent(t *testing.T) {
	f := newFixture(t, "")
	if err := f.flow.Begin(); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("Begin unauthenticated: err = %v, want ErrNotAuthenticated", err)
	}

	f.state.SetAuth(appstate.AuthState{Phase: appstate.AuthRestoring})
	if err := f.flow.Begin(); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("Begin while restoring: err = %v, want ErrNotAuthenticated", err)
	}

	f.state.SetAuth(appstate.AuthState{Phase: appstate.AuthAuthenticated, Session: domain.AuthSession{
		Role: domain.RoleStaff, Token: "t", Educator: &domain.Educator{ID: "e1"},
	}})
	if err := f.flow.Begin(); !errors.Is(err, ErrNoStudent) {
		t.Errorf("Begin as staff: err = %v, want ErrNoStudent", err)
	}
}

func TestSelection_AnyOrderReachesReady(t *testing.T) {
	f := newFixture(t, realStudentID)
	if err := f.flow.Begin(); err != nil {
		t.Fatal(err)
	}

	// Skill first, then mood, then context.
	if err := f.flow.SelectSkill(deepBreathing); err != nil {
		t.Fatal(err)
	}
	if got := f.flow.State().Step; got != appstate.StepMoodSelect {
		t.Errorf("after skill only: Step = %v, want mood", got)
	}
	if err := f.flow.SelectMood(happy); err != nil {
		t.Fatal(err)
	}
	if err := f.flow.SelectContext(recess); err != nil {
		t.Fatal(err)
	}
	st := f.flow.State()
	if st.Step != appstate.StepReadyToStart || !st.Selection.Ready() {
		t.Errorf("Step = %v Ready = %v, want ready", st.Step, st.Selection.Ready())
	}
	if st.Selection.ContextTagID() != "recess" {
		t.Errorf("ContextTagID = %q, want recess", st.Selection.ContextTagID())
	}
}

func TestSkipContextDistinctFromUnset(t *testing.T) {
	f := newFixture(t, realStudentID)
	f.flow.Begin()
	if got := f.flow.State().Selection.ContextState; got != domain.ContextUnset {
		t.Fatalf("ContextState = %v, want unset", got)
	}
	f.flow.SelectMood(happy)
	f.flow.SkipContext()
	st := f.flow.State()
	if st.Selection.ContextState != domain.ContextSkipped || st.Selection.Context != nil {
		t.Errorf("after skip: %+v", st.Selection)
	}
	if st.Step != appstate.StepSkillSelect {
		t.Errorf("Step = %v, want skill", st.Step)
	}
}

func TestBack_KeepsChoices(t *testing.T) {
	f := newFixture(t, realStudentID)
	f.ready(t)

	for _, want := range []appstate.Step{appstate.StepSkillSelect, appstate.StepContextSelect, appstate.StepMoodSelect} {
		if err := f.flow.Back(); err != nil {
			t.Fatalf("Back: %v", err)
		}
		if got := f.flow.State().Step; got != want {
			t.Fatalf("Step = %v, want %v", got, want)
		}
	}
	if err := f.flow.Back(); !errors.Is(err, ErrWrongStep) {
		t.Errorf("Back from mood: err = %v, want ErrWrongStep", err)
	}

	// Revising the mood keeps the skill; the stale combination is accepted.
	f.flow.SelectMood(sad)
	sel := f.flow.State().Selection
	if sel.Mood.Value != "sad" || sel.Skill == nil || sel.Skill.ID != "deep-breathing" {
		t.Errorf("selection after revise = %+v", sel)
	}
	f.flow.SkipContext()
	if got := f.flow.State().Step; got != appstate.StepReadyToStart {
		t.Errorf("Step = %v, want ready", got)
	}
}

func TestStartSession_NotReadyCallsNothing(t *testing.T) {
	f := newFixture(t, realStudentID)
	f.flow.Begin()
	f.flow.SelectMood(happy)

	if err := f.flow.StartSession(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
	if calls := f.remote.Calls(); len(calls) != 0 {
		t.Errorf("remote calls = %v, want none", calls)
	}
}

func TestStartSession_NoStudentCallsNothing(t *testing.T) {
	f := newFixture(t, realStudentID)
	f.ready(t)
	f.state.SetAuth(appstate.AuthState{Phase: appstate.AuthUnauthenticated})

	if err := f.flow.StartSession(context.Background()); !errors.Is(err, ErrNoStudent) {
		t.Fatalf("err = %v, want ErrNoStudent", err)
	}
	if calls := f.remote.Calls(); len(calls) != 0 {
		t.Errorf("remote calls = %v, want none", calls)
	}
}

func TestStartSession_HappyPath(t *testing.T) {
	f := newFixture(t, realStudentID)
	f.ready(t)

	if err := f.flow.StartSession(context.Background()); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	calls := f.remote.Calls()
	if len(calls) != 2 || calls[0] != "ledger.create" || calls[1] != "provisioner.create" {
		t.Fatalf("calls = %v, want [ledger.create provisioner.create]", calls)
	}
	req := f.remote.created[0]
	if req.StudentID != realStudentID || req.MoodEmoji != "🐰" || req.SELSkill != "deep-breathing" {
		t.Errorf("create request = %+v", req)
	}
	if req.Transcript != "" || req.Duration != 0 || req.Flags == nil || len(req.Flags) != 0 {
		t.Errorf("create request defaults = %+v", req)
	}
	if p := f.remote.provReq[0]; p.StudentID != realStudentID || p.Mood != "happy" || p.SELSkill != "deep-breathing" {
		t.Errorf("provision request = %+v", p)
	}

	st := f.flow.State()
	want := domain.ConversationResource{ConversationID: "C1", JoinURL: "https://call/x", Status: domain.ConversationConnected}
	if st.Step != appstate.StepInConversation || st.Conversation != want || st.SessionID != "S1" {
		t.Fatalf("state = %+v", st)
	}

	if err := f.flow.Join(context.Background()); err != nil {
		t.Fatalf("Join: %v", err)
	}
	url, opts, joined := f.call.Joined()
	if !joined || url != "https://call/x" || !opts.StartVideoOff || opts.StartAudioOff {
		t.Errorf("transport join = %q %+v %v", url, opts, joined)
	}
	if got := f.flow.State().Conversation.Status; got != domain.ConversationConnecting {
		t.Errorf("Status after join = %q, want connecting", got)
	}

	f.flow.HandleEvent(transport.Event{Kind: transport.ParticipantLeft})
	f.flow.HandleEvent(transport.Event{Kind: transport.EventError, Err: errors.New("ice failed")})
	if got := f.flow.State().Conversation.Status; got != domain.ConversationConnecting {
		t.Errorf("Status after left/error = %q, want connecting", got)
	}
	if !f.flow.HandleEvent(transport.Event{Kind: transport.ParticipantJoined}) {
		t.Error("participant-joined should change the flow")
	}
	if got := f.flow.State().Conversation.Status; got != domain.ConversationConnected {
		t.Errorf("Status = %q, want connected", got)
	}
}

func TestStartSession_LedgerFailure(t *testing.T) {
	f := newFixture(t, realStudentID)
	f.ready(t)
	f.remote.createErr = errors.New("network unreachable")

	err := f.flow.StartSession(context.Background())
	var serr *StartError
	if !errors.As(err, &serr) || serr.Stage != StageLedger || !serr.Retryable() {
		t.Fatalf("err = %v, want retryable ledger StartError", err)
	}

	if calls := f.remote.Calls(); len(calls) != 1 || calls[0] != "ledger.create" {
		t.Errorf("calls = %v, provisioner must not be called", calls)
	}
	st := f.flow.State()
	if st.Step != appstate.StepReadyToStart || st.SessionID != "" || st.Starting {
		t.Errorf("state = %+v", st)
	}
	if st.Conversation.Status != domain.ConversationIdle {
		t.Errorf("Conversation.Status = %q, want idle", st.Conversation.Status)
	}
	if st.LastError == "" {
		t.Error("LastError should carry a user-facing message")
	}

	// Retry succeeds.
	f.remote.createErr = nil
	if err := f.flow.StartSession(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if f.flow.State().LastError != "" {
		t.Error("LastError should clear on retry")
	}
}

func TestStartSession_ProvisionerFailureLeavesOrphan(t *testing.T) {
	f := newFixture(t, realStudentID)
	f.ready(t)
	f.remote.provErr = &client.HTTPError{StatusCode: 502, Message: "upstream"}

	err := f.flow.StartSession(context.Background())
	var serr *StartError
	if !errors.As(err, &serr) || serr.Stage != StageProvisioner {
		t.Fatalf("err = %v, want provisioner StartError", err)
	}
	st := f.flow.State()
	if st.Step != appstate.StepReadyToStart || st.SessionID != "" || st.Conversation.Status != domain.ConversationIdle {
		t.Errorf("state = %+v", st)
	}
	for _, c := range f.remote.Calls() {
		if c == "ledger.update" {
			t.Error("orphaned row must not be touched")
		}
	}
}

func TestStartSession_SubstitutesMalformedStudentID(t *testing.T) {
	f := newFixture(t, "demo_student_123")
	f.ready(t)
	if err := f.flow.StartSession(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := f.remote.created[0].StudentID
	if !domain.IsCanonicalID(got) {
		t.Fatalf("ledger student id %q is not canonical", got)
	}
	if got != LedgerStudentID("demo_student_123") {
		t.Error("substitute id should be stable for the same student")
	}
	if f.remote.provReq[0].StudentID != got {
		t.Errorf("provisioner student id = %q, want %q", f.remote.provReq[0].StudentID, got)
	}
}

func TestStartSession_StaleResponseDiscarded(t *testing.T) {
	f := newFixture(t, realStudentID)
	f.ready(t)
	f.remote.block = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- f.flow.StartSession(context.Background()) }()

	// Wait for the ledger call to be in flight.
	deadline := time.Now().Add(2 * time.Second)
	for len(f.remote.Calls()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("ledger create never called")
		}
		time.Sleep(time.Millisecond)
	}

	if err := f.flow.StartSession(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("concurrent StartSession: err = %v, want ErrBusy", err)
	}

	f.flow.ReturnHome(context.Background())
	close(f.remote.block)

	if err := <-done; !errors.Is(err, ErrStale) {
		t.Fatalf("err = %v, want ErrStale", err)
	}
	st := f.flow.State()
	if st.Step != appstate.StepMoodSelect || st.SessionID != "" || st.Selection.Mood != nil {
		t.Errorf("state after stale response = %+v", st)
	}
	for _, c := range f.remote.Calls() {
		if c == "provisioner.create" {
			t.Error("provisioner called after the flow was reset")
		}
	}
}

func TestEndSession(t *testing.T) {
	f := newFixture(t, realStudentID)
	f.ready(t)
	if err := f.flow.StartSession(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.flow.Join(context.Background())
	f.clock.Advance(95 * time.Second)

	sum, err := f.flow.EndSession(context.Background())
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if sum.Duration != 95*time.Second || sum.SessionID != "S1" || sum.ConversationID != "C1" {
		t.Errorf("summary = %+v", sum)
	}
	st := f.flow.State()
	if st.Step != appstate.StepComplete || st.Conversation.Status != domain.ConversationEnded {
		t.Errorf("state = %+v", st)
	}
	if f.call.Leaves() != 1 {
		t.Errorf("transport leaves = %d, want 1", f.call.Leaves())
	}
	if d := f.remote.updates["S1"].Duration; d == nil || *d != 95 {
		t.Errorf("ledger duration update = %v, want 95", d)
	}
	if len(f.remote.ended) != 1 || f.remote.ended[0] != "C1" {
		t.Errorf("ended conversations = %v", f.remote.ended)
	}

	// Second end is a no-op.
	before := len(f.remote.Calls())
	if _, err := f.flow.EndSession(context.Background()); err != nil {
		t.Fatalf("second EndSession: %v", err)
	}
	if len(f.remote.Calls()) != before || f.call.Leaves() != 1 {
		t.Error("second EndSession made calls")
	}

	f.flow.ReturnHome(context.Background())
	st = f.flow.State()
	if st.Step != appstate.StepMoodSelect || st.SessionID != "" || st.Conversation != domain.IdleConversation() {
		t.Errorf("after ReturnHome: %+v", st)
	}
	if st.Selection != (domain.SelectionState{}) {
		t.Errorf("selection not reset: %+v", st.Selection)
	}
}

func TestEndSession_WithoutJoin(t *testing.T) {
	f := newFixture(t, realStudentID)
	f.ready(t)
	if err := f.flow.StartSession(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := f.flow.EndSession(context.Background()); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if f.call.Leaves() != 0 {
		t.Errorf("Leaves = %d, want 0 for a call never joined", f.call.Leaves())
	}
	if f.flow.State().Step != appstate.StepComplete {
		t.Errorf("Step = %v, want complete", f.flow.State().Step)
	}
}

func TestJoinFailureStaysInConversation(t *testing.T) {
	f := newFixture(t, realStudentID)
	f.ready(t)
	f.flow.StartSession(context.Background())
	f.call.JoinErr = errors.New("no browser")

	if err := f.flow.Join(context.Background()); err == nil {
		t.Fatal("Join should report the transport error")
	}
	st := f.flow.State()
	if st.Step != appstate.StepInConversation || st.Conversation.Status != domain.ConversationConnecting {
		t.Errorf("state = %+v", st)
	}
}

func TestJoinAgainKeepsConnected(t *testing.T) {
	f := newFixture(t, realStudentID)
	f.ready(t)
	if err := f.flow.StartSession(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := f.flow.Join(context.Background()); err != nil {
		t.Fatalf("Join: %v", err)
	}
	f.flow.HandleEvent(transport.Event{Kind: transport.JoinedMeeting})
	if got := f.flow.State().Conversation.Status; got != domain.ConversationConnected {
		t.Fatalf("Status = %q, want connected", got)
	}

	if err := f.flow.Join(context.Background()); err != nil {
		t.Fatalf("second Join: %v", err)
	}
	if err := f.flow.Reopen(context.Background()); err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if got := f.flow.State().Conversation.Status; got != domain.ConversationConnected {
		t.Errorf("Status after rejoin = %q, want connected", got)
	}
	if n := f.call.Reopens(); n != 2 {
		t.Errorf("transport reopens = %d, want 2", n)
	}
	joins := 0
	for _, c := range f.call.Calls() {
		if c == "join" {
			joins++
		}
	}
	if joins != 1 {
		t.Errorf("transport joins = %d, want 1", joins)
	}
}

func TestReopenRetriesFailedJoin(t *testing.T) {
	f := newFixture(t, realStudentID)
	f.ready(t)
	f.flow.StartSession(context.Background())
	f.call.JoinErr = errors.New("no browser")
	if err := f.flow.Join(context.Background()); err == nil {
		t.Fatal("Join should fail")
	}

	f.call.JoinErr = nil
	if err := f.flow.Reopen(context.Background()); err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if _, _, joined := f.call.Joined(); !joined {
		t.Error("Reopen after a failed join should join")
	}
	if f.call.Reopens() != 0 {
		t.Errorf("Reopens = %d, want 0", f.call.Reopens())
	}
}

func TestReopenOutsideCall(t *testing.T) {
	f := newFixture(t, realStudentID)
	f.ready(t)
	if err := f.flow.Reopen(context.Background()); !errors.Is(err, ErrWrongStep) {
		t.Errorf("err = %v, want ErrWrongStep", err)
	}
}

func TestNextCallJoinsAfterReturnHome(t *testing.T) {
	f := newFixture(t, realStudentID)
	f.ready(t)
	f.flow.StartSession(context.Background())
	f.flow.Join(context.Background())
	f.flow.ReturnHome(context.Background())

	f.ready(t)
	f.flow.StartSession(context.Background())
	if err := f.flow.Join(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := f.flow.State().Conversation.Status; got != domain.ConversationConnecting {
		t.Errorf("Status = %q, want connecting for a fresh join", got)
	}
}

func TestToggleMuteUnsupported(t *testing.T) {
	f := newFixture(t, realStudentID)
	f.call.NoAudioControl = true
	f.ready(t)
	f.flow.StartSession(context.Background())
	f.flow.Join(context.Background())

	if f.flow.AudioControl() {
		t.Error("AudioControl should follow the transport")
	}
	if _, err := f.flow.ToggleMute(); !errors.Is(err, transport.ErrUnsupported) {
		t.Errorf("err = %v, want transport.ErrUnsupported", err)
	}
}

func TestToggleMute(t *testing.T) {
	f := newFixture(t, realStudentID)
	f.ready(t)
	f.flow.StartSession(context.Background())
	f.flow.Join(context.Background())

	on, err := f.flow.ToggleMute()
	if err != nil || on {
		t.Fatalf("ToggleMute = %v, %v; want muted", on, err)
	}
	on, _ = f.flow.ToggleMute()
	if !on {
		t.Error("second ToggleMute should unmute")
	}
}

func TestLogoutTearsDownCall(t *testing.T) {
	state := appstate.New()
	rem := &remote{}
	call := transport.NewFake()
	clk := &clock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	creds := credstore.NewMemStore()
	am := auth.New(state, creds, nil, auth.Options{Now: clk.Now})
	fm := New(state, am, rem, rem, call, Options{Now: clk.Now})

	am.Restore()
	if err := am.DemoSignIn(); err != nil {
		t.Fatal(err)
	}
	fm.Begin()
	fm.SelectMood(happy)
	fm.SelectSkill(deepBreathing)
	if err := fm.StartSession(context.Background()); err != nil {
		t.Fatal(err)
	}
	fm.Join(context.Background())
	clk.Advance(30 * time.Second)

	if err := am.Logout(); err != nil {
		t.Fatal(err)
	}
	if call.Leaves() != 1 {
		t.Errorf("Leaves = %d, want 1", call.Leaves())
	}
	snap := state.Snapshot()
	if snap.Flow.Step != appstate.StepGreeting || snap.Flow.Conversation.Status != domain.ConversationIdle {
		t.Errorf("flow after logout = %+v", snap.Flow)
	}
	if d := rem.updates["S1"].Duration; d == nil || *d != 30 {
		t.Errorf("duration update = %v, want 30", d)
	}
	if creds.Len() != 0 {
		t.Errorf("store has %d keys after logout", creds.Len())
	}
}

func TestHistory(t *testing.T) {
	f := newFixture(t, "demo_student_123")
	f.remote.list = []domain.CheckInSession{{ID: "S2"}, {ID: "S1"}}

	got, err := f.flow.History(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "S2" {
		t.Errorf("History = %+v", got)
	}
	if f.remote.listFor != LedgerStudentID("demo_student_123") {
		t.Errorf("listed for %q, want the ledger id", f.remote.listFor)
	}

	f.state.ClearAuth()
	if _, err := f.flow.History(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("History logged out: err = %v, want ErrNotAuthenticated", err)
	}
}
