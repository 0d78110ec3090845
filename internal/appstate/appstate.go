// Package appstate is the process-wide application state container shared
// by the auth and session-flow machines.
//
// Each value has exactly one writer: the auth machine writes Auth, the flow
// machine writes Flow. Readers take immutable snapshots or subscribe to
// change notifications. Every write goes through a named transition.
package appstate

import (
	"sync"

	"github.com/naveenspark/tess/pkg/domain"
)

// AuthPhase is the auth machine state.
type AuthPhase int

const (
	AuthUninitialized AuthPhase = iota
	AuthRestoring
	AuthAuthenticated
	AuthUnauthenticated
)

func (p AuthPhase) String() string {
	switch p {
	case AuthUninitialized:
		return "uninitialized"
	case AuthRestoring:
		return "restoring"
	case AuthAuthenticated:
		return "authenticated"
	case AuthUnauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// Step is the session-flow position.
type Step int

const (
	StepGreeting Step = iota
	StepMoodSelect
	StepContextSelect
	StepSkillSelect
	StepReadyToStart
	StepInConversation
	StepComplete
)

func (s Step) String() string {
	switch s {
	case StepGreeting:
		return "greeting"
	case StepMoodSelect:
		return "mood"
	case StepContextSelect:
		return "context"
	case StepSkillSelect:
		return "skill"
	case StepReadyToStart:
		return "ready"
	case StepInConversation:
		return "conversation"
	case StepComplete:
		return "complete"
	}
	return "unknown"
}

// AuthState is the value owned by the auth machine.
type AuthState struct {
	Phase   AuthPhase
	Session domain.AuthSession
}

// FlowState is the value owned by the session-flow machine.
type FlowState struct {
	Step         Step
	Selection    domain.SelectionState
	SessionID    string
	Conversation domain.ConversationResource
	Starting     bool
	LastError    string
}

func idleFlow() FlowState {
	return FlowState{Step: StepGreeting, Conversation: domain.IdleConversation()}
}

// Snapshot is an immutable copy of the whole state.
type Snapshot struct {
	Auth       AuthState
	Flow       FlowState
	Generation uint64
}

// Store holds the state. The zero value is not usable; call New.
type Store struct {
	mu    sync.Mutex
	auth  AuthState
	flow  FlowState
	gen   uint64
	subs  map[int]func(Snapshot)
	subID int
}

// New returns a store with no session and an idle flow.
func New() *Store {
	return &Store{
		auth: AuthState{Session: domain.AuthSession{Role: domain.RoleNone}},
		flow: idleFlow(),
		subs: map[int]func(Snapshot){},
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{Auth: s.auth, Flow: s.flow, Generation: s.gen}
}

// Subscribe registers fn to be called after every change. The returned
// func removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.subID
	s.subID++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(snap Snapshot) {
	s.mu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// SetAuth replaces the auth state. Auth machine only.
func (s *Store) SetAuth(a AuthState) {
	s.mu.Lock()
	s.auth = a
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// ClearAuth resets auth to unauthenticated and tears down the flow in the
// same step, so no observer sees a logged-out user with a live flow.
func (s *Store) ClearAuth() {
	s.mu.Lock()
	s.auth = AuthState{Phase: AuthUnauthenticated, Session: domain.AuthSession{Role: domain.RoleNone}}
	s.flow = idleFlow()
	s.gen++
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// ResetFlow discards the working flow (selection, session id, conversation)
// and moves to step. Any response still in flight for the previous
// generation will be rejected by UpdateFlow. Returns the new generation.
func (s *Store) ResetFlow(step Step) uint64 {
	s.mu.Lock()
	s.flow = idleFlow()
	s.flow.Step = step
	s.gen++
	gen := s.gen
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	return gen
}

// UpdateFlow applies fn to the flow state if gen is still current. It
// reports false, leaving the state untouched, for a stale generation.
func (s *Store) UpdateFlow(gen uint64, fn func(*FlowState)) bool {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return false
	}
	fn(&s.flow)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	return true
}

// Generation returns the current flow generation.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}
