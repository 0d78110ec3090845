package transport

import (
	"context"
	"sync"
	"time"
)

// Fake is an in-memory Transport for tests and offline runs. Events are
// only produced by Emit.
type Fake struct {
	// JoinErr, when set, fails every Join and Reopen.
	JoinErr error
	// NoAudioControl makes the fake behave like a transport that cannot
	// reach the microphone.
	NoAudioControl bool

	mu      sync.Mutex
	calls   []string
	url     string
	opts    JoinOptions
	joined  bool
	audio   bool
	leaves  int
	reopens int
	events  chan Event
}

// NewFake returns an idle fake.
func NewFake() *Fake {
	return &Fake{events: make(chan Event, eventBuffer)}
}

func (f *Fake) Join(_ context.Context, url string, opts JoinOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "join")
	if f.JoinErr != nil {
		return f.JoinErr
	}
	f.url, f.opts, f.joined, f.audio = url, opts, true, !opts.StartAudioOff
	return nil
}

func (f *Fake) Reopen(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "reopen")
	if !f.joined {
		return ErrNotJoined
	}
	if f.JoinErr != nil {
		return f.JoinErr
	}
	f.reopens++
	return nil
}

func (f *Fake) Leave(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "leave")
	if f.joined {
		f.leaves++
	}
	f.joined = false
	return nil
}

func (f *Fake) AudioControl() bool { return !f.NoAudioControl }

func (f *Fake) SetLocalAudio(enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.joined {
		return ErrNotJoined
	}
	if f.NoAudioControl {
		return ErrUnsupported
	}
	f.calls = append(f.calls, "audio")
	f.audio = enabled
	return nil
}

func (f *Fake) AudioEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.joined && f.audio
}

func (f *Fake) Events() <-chan Event { return f.events }

// Emit queues evt on the event stream.
func (f *Fake) Emit(kind EventKind) {
	f.events <- Event{Kind: kind, At: time.Now()}
}

// Joined returns the last join URL and options, and whether a call is live.
func (f *Fake) Joined() (string, JoinOptions, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url, f.opts, f.joined
}

// Leaves counts Leave calls made while joined.
func (f *Fake) Leaves() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leaves
}

// Reopens counts successful Reopen calls.
func (f *Fake) Reopens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reopens
}

// Calls returns the method call log.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
