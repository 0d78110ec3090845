// Package flow is the check-in session state machine.
//
// It walks an authenticated student from mood selection through a live
// conversation to completion. The machine is the only writer of the flow
// half of the state container; network responses are applied only if the
// flow generation they started under is still current, so a reply that
// lands after ReturnHome or Logout is dropped instead of resurrecting a
// finished flow.
package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/naveenspark/tess/internal/appstate"
	"github.com/naveenspark/tess/internal/transport"
	"github.com/naveenspark/tess/pkg/client"
	"github.com/naveenspark/tess/pkg/domain"
)

var (
	ErrNotAuthenticated = errors.New("flow: no authenticated student")
	ErrNoStudent        = errors.New("flow: no student profile")
	ErrNotReady         = errors.New("flow: mood and skill must be selected")
	ErrWrongStep        = errors.New("flow: not allowed at this step")
	ErrBusy             = errors.New("flow: a session is already starting")
	ErrStale            = errors.New("flow: response arrived after the flow was reset")
)

// Stage names the remote call a start failed in.
type Stage string

const (
	StageLedger      Stage = "ledger"
	StageProvisioner Stage = "provisioner"
)

// StartError is returned when StartSession fails on a remote call. The
// flow stays at ReadyToStart and the operation can be retried.
type StartError struct {
	Stage Stage
	Err   error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("flow.StartSession: %s: %v", e.Stage, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// Retryable reports whether the user can try again.
func (e *StartError) Retryable() bool { return !errors.Is(e.Err, context.Canceled) }

// Ledger is the remote session ledger. *client.Client satisfies it.
type Ledger interface {
	CreateSession(ctx context.Context, req client.CreateSessionRequest) (*domain.CheckInSession, error)
	UpdateSession(ctx context.Context, id string, upd domain.SessionUpdate) (*domain.CheckInSession, error)
	ListSessions(ctx context.Context, studentID string) ([]domain.CheckInSession, error)
}

// Provisioner is the remote conversation provisioner. *client.Client
// satisfies it.
type Provisioner interface {
	CreateConversation(ctx context.Context, req client.CreateConversationRequest) (*domain.ConversationResource, error)
	EndConversation(ctx context.Context, conversationID string) error
}

// LogoutNotifier lets the flow tear down a live call on logout.
// *auth.Machine satisfies it.
type LogoutNotifier interface {
	OnLogout(fn func())
}

// Options tune a Machine. The zero value is usable.
type Options struct {
	Logger *slog.Logger
	Now    func() time.Time
	// TeardownTimeout bounds the best-effort remote calls made when a
	// call is torn down by logout.
	TeardownTimeout time.Duration
}

// Machine is the session flow state machine.
type Machine struct {
	state  *appstate.Store
	ledger Ledger
	prov   Provisioner
	call   transport.Transport

	log             *slog.Logger
	now             func() time.Time
	teardownTimeout time.Duration

	mu        sync.Mutex
	starting  bool
	startedAt time.Time
	joined    string // conversation id the transport has joined
}

// New wires a flow machine. When auth is non-nil, logging out leaves any
// live call first.
func New(state *appstate.Store, auth LogoutNotifier, ledger Ledger, prov Provisioner, call transport.Transport, opts Options) *Machine {
	m := &Machine{
		state:           state,
		ledger:          ledger,
		prov:            prov,
		call:            call,
		log:             opts.Logger,
		now:             opts.Now,
		teardownTimeout: opts.TeardownTimeout,
	}
	if m.log == nil {
		m.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.teardownTimeout <= 0 {
		m.teardownTimeout = 5 * time.Second
	}
	if auth != nil {
		auth.OnLogout(m.teardown)
	}
	return m
}

// State returns the current flow state.
func (m *Machine) State() appstate.FlowState {
	return m.state.Snapshot().Flow
}

// student returns the authenticated student profile.
func (m *Machine) student() (*domain.Student, error) {
	a := m.state.Snapshot().Auth
	if a.Phase != appstate.AuthAuthenticated || !a.Session.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	if a.Session.Role != domain.RoleStudent || a.Session.Student == nil {
		return nil, ErrNoStudent
	}
	s := *a.Session.Student
	return &s, nil
}

// apply runs fn against the current generation.
func (m *Machine) apply(fn func(*appstate.FlowState)) {
	for {
		if m.state.UpdateFlow(m.state.Generation(), fn) {
			return
		}
	}
}

func selecting(s appstate.Step) bool {
	switch s {
	case appstate.StepMoodSelect, appstate.StepContextSelect, appstate.StepSkillSelect, appstate.StepReadyToStart:
		return true
	}
	return false
}

// Begin starts a fresh check-in at mood selection.
func (m *Machine) Begin() error {
	if _, err := m.student(); err != nil {
		return fmt.Errorf("flow.Begin: %w", err)
	}
	m.resetCall()
	m.state.ResetFlow(appstate.StepMoodSelect)
	return nil
}

// SelectMood records the mood and moves on to the optional context step.
func (m *Machine) SelectMood(mood domain.MoodOption) error {
	return m.selectStep("flow.SelectMood", func(f *appstate.FlowState) {
		f.Selection.Mood = &mood
		f.Step = appstate.StepContextSelect
	})
}

// SelectContext records a context tag.
func (m *Machine) SelectContext(tag domain.ContextTag) error {
	return m.selectStep("flow.SelectContext", func(f *appstate.FlowState) {
		f.Selection.Context = &tag
		f.Selection.ContextState = domain.ContextSet
		f.Step = afterContext(f.Selection)
	})
}

// SkipContext records an explicit skip, distinct from never choosing.
func (m *Machine) SkipContext() error {
	return m.selectStep("flow.SkipContext", func(f *appstate.FlowState) {
		f.Selection.Context = nil
		f.Selection.ContextState = domain.ContextSkipped
		f.Step = afterContext(f.Selection)
	})
}

func afterContext(sel domain.SelectionState) appstate.Step {
	if sel.Ready() {
		return appstate.StepReadyToStart
	}
	return appstate.StepSkillSelect
}

// SelectSkill records the skill. The flow is ready once mood and skill
// are both set, in whatever order they were chosen.
func (m *Machine) SelectSkill(skill domain.SELSkill) error {
	return m.selectStep("flow.SelectSkill", func(f *appstate.FlowState) {
		f.Selection.Skill = &skill
		if f.Selection.Ready() {
			f.Step = appstate.StepReadyToStart
		} else {
			f.Step = appstate.StepMoodSelect
		}
	})
}

func (m *Machine) selectStep(op string, fn func(*appstate.FlowState)) error {
	var err error
	m.apply(func(f *appstate.FlowState) {
		err = nil
		if !selecting(f.Step) {
			err = fmt.Errorf("%s: %w (%s)", op, ErrWrongStep, f.Step)
			return
		}
		if f.Starting {
			err = fmt.Errorf("%s: %w", op, ErrBusy)
			return
		}
		fn(f)
		f.LastError = ""
	})
	return err
}

// Back moves one selection step backwards without clearing anything.
func (m *Machine) Back() error {
	var err error
	m.apply(func(f *appstate.FlowState) {
		err = nil
		switch f.Step {
		case appstate.StepContextSelect:
			f.Step = appstate.StepMoodSelect
		case appstate.StepSkillSelect:
			f.Step = appstate.StepContextSelect
		case appstate.StepReadyToStart:
			if f.Starting {
				err = fmt.Errorf("flow.Back: %w", ErrBusy)
				return
			}
			f.Step = appstate.StepSkillSelect
		default:
			err = fmt.Errorf("flow.Back: %w (%s)", ErrWrongStep, f.Step)
		}
	})
	return err
}

// LedgerStudentID returns id if the ledger accepts it, otherwise a
// canonical UUID derived from it. Derivation is deterministic so History
// finds the rows written for the same student.
func LedgerStudentID(id string) string {
	if domain.IsCanonicalID(id) {
		return id
	}
	return uuid.NewSHA1(studentNamespace, []byte(id)).String()
}

var studentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://tess.app/students"))

// StartSession creates the ledger record and then provisions the live
// conversation, strictly in that order. On success the flow is
// InConversation; on failure it stays ReadyToStart with nothing retained.
func (m *Machine) StartSession(ctx context.Context) error {
	snap := m.state.Snapshot()
	sel := snap.Flow.Selection
	if !sel.Ready() {
		return fmt.Errorf("flow.StartSession: %w", ErrNotReady)
	}
	if !selecting(snap.Flow.Step) {
		return fmt.Errorf("flow.StartSession: %w (%s)", ErrWrongStep, snap.Flow.Step)
	}
	student, err := m.student()
	if err != nil {
		return fmt.Errorf("flow.StartSession: %w: %w", ErrNoStudent, err)
	}

	m.mu.Lock()
	if m.starting {
		m.mu.Unlock()
		return fmt.Errorf("flow.StartSession: %w", ErrBusy)
	}
	m.starting = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.starting = false
		m.mu.Unlock()
	}()

	gen := snap.Generation
	if !m.state.UpdateFlow(gen, func(f *appstate.FlowState) {
		f.Starting = true
		f.LastError = ""
	}) {
		return fmt.Errorf("flow.StartSession: %w", ErrStale)
	}

	studentID := LedgerStudentID(student.ID)
	if studentID != student.ID {
		m.log.Info("substituted ledger student id", "student", student.ID, "ledger_id", studentID)
	}

	sess, err := m.ledger.CreateSession(ctx, client.CreateSessionRequest{
		StudentID:  studentID,
		MoodEmoji:  sel.Mood.Emoji,
		MoodScore:  0,
		SELSkill:   sel.Skill.ID,
		ContextTag: sel.ContextTagID(),
		Transcript: "",
		Flags:      []string{},
		Duration:   0,
	})
	if err != nil {
		m.log.Warn("create session failed", "err", err)
		return m.failStart(gen, &StartError{Stage: StageLedger, Err: err})
	}
	if !m.state.UpdateFlow(gen, func(f *appstate.FlowState) { f.SessionID = sess.ID }) {
		m.log.Warn("orphaned check-in session", "session_id", sess.ID, "reason", "flow reset during start")
		return fmt.Errorf("flow.StartSession: %w", ErrStale)
	}

	conv, err := m.prov.CreateConversation(ctx, client.CreateConversationRequest{
		StudentID: studentID,
		Mood:      sel.Mood.Value,
		SELSkill:  sel.Skill.ID,
	})
	if err != nil {
		m.log.Warn("orphaned check-in session", "session_id", sess.ID, "reason", "provisioning failed", "err", err)
		return m.failStart(gen, &StartError{Stage: StageProvisioner, Err: err})
	}

	ok := m.state.UpdateFlow(gen, func(f *appstate.FlowState) {
		f.Conversation = domain.ConversationResource{
			ConversationID: conv.ConversationID,
			JoinURL:        conv.JoinURL,
			Status:         domain.ConversationConnected,
		}
		f.Step = appstate.StepInConversation
		f.Starting = false
	})
	if !ok {
		m.log.Warn("discarded conversation", "conversation_id", conv.ConversationID, "reason", "flow reset during start")
		m.endRemote(context.WithoutCancel(ctx), conv.ConversationID, sess.ID, 0)
		return fmt.Errorf("flow.StartSession: %w", ErrStale)
	}

	m.mu.Lock()
	m.startedAt = m.now()
	m.mu.Unlock()
	m.log.Info("session started", "session_id", sess.ID, "conversation_id", conv.ConversationID)
	return nil
}

func (m *Machine) failStart(gen uint64, serr *StartError) error {
	applied := m.state.UpdateFlow(gen, func(f *appstate.FlowState) {
		f.SessionID = ""
		f.Conversation = domain.IdleConversation()
		f.Starting = false
		f.LastError = "Failed to start session. Please try again."
	})
	if !applied {
		return fmt.Errorf("flow.StartSession: %w", ErrStale)
	}
	return serr
}

// Join hands the join URL to the transport with video off and audio on,
// and marks the call connecting until the transport reports it joined.
// Once the transport holds this call, Join reopens it instead and leaves the
// status alone. Transport errors are logged and returned; the flow stays in
// the call so the student can still end it.
func (m *Machine) Join(ctx context.Context) error {
	snap := m.state.Snapshot()
	conv := snap.Flow.Conversation
	if snap.Flow.Step != appstate.StepInConversation || conv.JoinURL == "" {
		return fmt.Errorf("flow.Join: %w (%s)", ErrWrongStep, snap.Flow.Step)
	}
	if m.joinedCall() == conv.ConversationID {
		return m.reopen(ctx, "flow.Join")
	}
	if !m.state.UpdateFlow(snap.Generation, func(f *appstate.FlowState) {
		f.Conversation.Status = domain.ConversationConnecting
	}) {
		return fmt.Errorf("flow.Join: %w", ErrStale)
	}
	err := m.call.Join(ctx, conv.JoinURL, transport.JoinOptions{StartVideoOff: true, StartAudioOff: false})
	if err != nil {
		m.log.Error("join call", "url", conv.JoinURL, "err", err)
		return fmt.Errorf("flow.Join: %w", err)
	}
	m.mu.Lock()
	m.joined = conv.ConversationID
	m.mu.Unlock()
	return nil
}

// Reopen brings the live call back up, joining first if an earlier Join
// failed. The conversation status is not changed by a reopen.
func (m *Machine) Reopen(ctx context.Context) error {
	snap := m.state.Snapshot()
	if snap.Flow.Step != appstate.StepInConversation {
		return fmt.Errorf("flow.Reopen: %w (%s)", ErrWrongStep, snap.Flow.Step)
	}
	if m.joinedCall() != snap.Flow.Conversation.ConversationID {
		return m.Join(ctx)
	}
	return m.reopen(ctx, "flow.Reopen")
}

func (m *Machine) reopen(ctx context.Context, op string) error {
	if err := m.call.Reopen(ctx); err != nil {
		m.log.Error("reopen call", "err", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (m *Machine) joinedCall() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.joined
}

// HandleEvent applies a transport event. It reports whether the flow
// changed.
func (m *Machine) HandleEvent(evt transport.Event) bool {
	snap := m.state.Snapshot()
	if snap.Flow.Step != appstate.StepInConversation {
		m.log.Debug("ignored call event", "kind", evt.Kind, "step", snap.Flow.Step)
		return false
	}
	switch evt.Kind {
	case transport.ParticipantJoined, transport.JoinedMeeting:
		if snap.Flow.Conversation.Status == domain.ConversationConnected {
			return false
		}
		return m.state.UpdateFlow(snap.Generation, func(f *appstate.FlowState) {
			f.Conversation.Status = domain.ConversationConnected
		})
	case transport.ParticipantLeft:
		m.log.Info("participant left", "participant", evt.Participant)
	case transport.EventError:
		m.log.Error("call error", "err", evt.Err)
	default:
		m.log.Debug("unknown call event", "kind", evt.Kind)
	}
	return false
}

// AudioControl reports whether ToggleMute can reach the microphone.
func (m *Machine) AudioControl() bool { return m.call.AudioControl() }

// ToggleMute flips the local microphone and returns whether it is now on.
// Transports without audio control return transport.ErrUnsupported.
func (m *Machine) ToggleMute() (bool, error) {
	if m.state.Snapshot().Flow.Step != appstate.StepInConversation {
		return false, fmt.Errorf("flow.ToggleMute: %w", ErrWrongStep)
	}
	enabled := !m.call.AudioEnabled()
	if err := m.call.SetLocalAudio(enabled); err != nil {
		return !enabled, fmt.Errorf("flow.ToggleMute: %w", err)
	}
	return enabled, nil
}

// Elapsed is the session clock: time since the conversation started.
func (m *Machine) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startedAt.IsZero() {
		return 0
	}
	return m.now().Sub(m.startedAt)
}

// resetCall forgets the session clock and the joined call.
func (m *Machine) resetCall() {
	m.mu.Lock()
	m.startedAt = time.Time{}
	m.joined = ""
	m.mu.Unlock()
}

// Summary describes a finished session.
type Summary struct {
	SessionID      string
	ConversationID string
	Duration       time.Duration
}

// EndSession leaves the call and completes the flow, then tells the
// provisioner and ledger on a best-effort basis. Ending a completed
// session again is a no-op.
func (m *Machine) EndSession(ctx context.Context) (Summary, error) {
	snap := m.state.Snapshot()
	switch snap.Flow.Step {
	case appstate.StepComplete:
		return Summary{SessionID: snap.Flow.SessionID, ConversationID: snap.Flow.Conversation.ConversationID}, nil
	case appstate.StepInConversation:
	default:
		return Summary{}, fmt.Errorf("flow.EndSession: %w (%s)", ErrWrongStep, snap.Flow.Step)
	}

	if err := m.call.Leave(ctx); err != nil {
		m.log.Warn("leave call", "err", err)
	}
	elapsed := m.Elapsed().Truncate(time.Second)

	if !m.state.UpdateFlow(snap.Generation, func(f *appstate.FlowState) {
		f.Conversation.Status = domain.ConversationEnded
		f.Step = appstate.StepComplete
	}) {
		return Summary{}, fmt.Errorf("flow.EndSession: %w", ErrStale)
	}
	m.resetCall()

	sum := Summary{
		SessionID:      snap.Flow.SessionID,
		ConversationID: snap.Flow.Conversation.ConversationID,
		Duration:       elapsed,
	}
	m.endRemote(ctx, sum.ConversationID, sum.SessionID, int(elapsed/time.Second))
	m.log.Info("session ended", "session_id", sum.SessionID, "duration", elapsed)
	return sum, nil
}

// endRemote tears down the conversation and records the duration. Both
// calls are best effort.
func (m *Machine) endRemote(ctx context.Context, conversationID, sessionID string, seconds int) {
	if conversationID != "" {
		if err := m.prov.EndConversation(ctx, conversationID); err != nil {
			m.log.Warn("end conversation", "conversation_id", conversationID, "err", err)
		}
	}
	if sessionID != "" && seconds > 0 {
		if _, err := m.ledger.UpdateSession(ctx, sessionID, domain.SessionUpdate{Duration: &seconds}); err != nil {
			m.log.Warn("update session duration", "session_id", sessionID, "err", err)
		}
	}
}

// ReturnHome discards the working flow and goes back to mood selection.
// A live call is left first. The remote records are not touched.
func (m *Machine) ReturnHome(ctx context.Context) {
	if m.state.Snapshot().Flow.Step == appstate.StepInConversation {
		if err := m.call.Leave(ctx); err != nil {
			m.log.Warn("leave call", "err", err)
		}
	}
	m.resetCall()
	m.state.ResetFlow(appstate.StepMoodSelect)
}

// teardown runs before logout clears the state.
func (m *Machine) teardown() {
	snap := m.state.Snapshot()
	if snap.Flow.Step != appstate.StepInConversation {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.teardownTimeout)
	defer cancel()
	if err := m.call.Leave(ctx); err != nil {
		m.log.Warn("leave call on logout", "err", err)
	}
	elapsed := int(m.Elapsed() / time.Second)
	m.resetCall()
	m.endRemote(ctx, snap.Flow.Conversation.ConversationID, snap.Flow.SessionID, elapsed)
}

// History lists the student's past check-ins, newest first.
func (m *Machine) History(ctx context.Context) ([]domain.CheckInSession, error) {
	student, err := m.student()
	if err != nil {
		return nil, fmt.Errorf("flow.History: %w", err)
	}
	sessions, err := m.ledger.ListSessions(ctx, LedgerStudentID(student.ID))
	if err != nil {
		return nil, fmt.Errorf("flow.History: %w", err)
	}
	return sessions, nil
}
