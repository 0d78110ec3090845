// Package transport is the live-call capability used during a check-in.
//
// A Transport joins the call at a URL and reports call events on a
// channel the flow machine consumes. The Browser transport hands the call
// to the system browser, which owns the microphone and the participant
// list; it reports only what it can see: opener failures.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/naveenspark/tess/internal/browser"
)

// EventKind names a call event.
type EventKind string

const (
	ParticipantJoined EventKind = "participant-joined"
	ParticipantLeft   EventKind = "participant-left"
	JoinedMeeting     EventKind = "joined-meeting"
	EventError        EventKind = "error"
)

// Event is one call event.
type Event struct {
	Kind        EventKind
	Participant string
	Err         error
	At          time.Time
}

// JoinOptions are the initial media settings for a join.
type JoinOptions struct {
	StartVideoOff bool
	StartAudioOff bool
}

// Transport is a live-call session.
type Transport interface {
	Join(ctx context.Context, url string, opts JoinOptions) error
	// Reopen brings the current call back to the front, for example after
	// the student closed the browser tab.
	Reopen(ctx context.Context) error
	Leave(ctx context.Context) error
	// AudioControl reports whether SetLocalAudio reaches the microphone.
	AudioControl() bool
	SetLocalAudio(enabled bool) error
	AudioEnabled() bool
	Events() <-chan Event
}

var (
	// ErrNotJoined is returned by Reopen and SetLocalAudio outside a call.
	ErrNotJoined = errors.New("transport: not in a call")
	// ErrUnsupported is returned for controls the transport cannot apply.
	ErrUnsupported = errors.New("transport: not supported")
)

const eventBuffer = 16

// Browser runs the call in the system browser.
type Browser struct {
	open func(string) error
	log  *slog.Logger
	now  func() time.Time

	events chan Event

	mu     sync.Mutex
	url    string
	joined bool
}

// NewBrowser returns a transport that opens join URLs with the default
// browser.
func NewBrowser(logger *slog.Logger) *Browser {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Browser{
		open:   browser.Open,
		log:    logger,
		now:    time.Now,
		events: make(chan Event, eventBuffer),
	}
}

// Join opens url. Joining the URL already in use is a no-op; use Reopen to
// open it again. No joined event is emitted because the browser does not
// report back.
func (b *Browser) Join(ctx context.Context, url string, opts JoinOptions) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transport.Join: %w", err)
	}
	if url == "" {
		return fmt.Errorf("transport.Join: empty url")
	}

	b.mu.Lock()
	if b.joined && b.url == url {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	if err := b.open(url); err != nil {
		b.emit(Event{Kind: EventError, Err: err})
		return fmt.Errorf("transport.Join: %w", err)
	}

	b.mu.Lock()
	b.url = url
	b.joined = true
	b.mu.Unlock()

	b.log.Info("call opened in browser", "url", url, "video_off", opts.StartVideoOff, "audio_off", opts.StartAudioOff)
	return nil
}

// Reopen opens the current call URL again.
func (b *Browser) Reopen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transport.Reopen: %w", err)
	}
	b.mu.Lock()
	url, joined := b.url, b.joined
	b.mu.Unlock()
	if !joined {
		return fmt.Errorf("transport.Reopen: %w", ErrNotJoined)
	}
	if err := b.open(url); err != nil {
		b.emit(Event{Kind: EventError, Err: err})
		return fmt.Errorf("transport.Reopen: %w", err)
	}
	b.log.Info("call reopened in browser", "url", url)
	return nil
}

// Leave ends local participation. Leaving when not joined is a no-op.
func (b *Browser) Leave(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.joined {
		return nil
	}
	b.joined = false
	b.url = ""
	b.log.Info("left call")
	return nil
}

// AudioControl is false: the microphone belongs to the browser page.
func (b *Browser) AudioControl() bool { return false }

// SetLocalAudio always fails; the student mutes from the call page.
func (b *Browser) SetLocalAudio(bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.joined {
		return ErrNotJoined
	}
	return ErrUnsupported
}

// AudioEnabled reports whether a call is open. The browser joins with the
// microphone on and the real state is not visible from here.
func (b *Browser) AudioEnabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.joined
}

// Events returns the event stream. It is never closed.
func (b *Browser) Events() <-chan Event { return b.events }

func (b *Browser) emit(evt Event) {
	if evt.At.IsZero() {
		evt.At = b.now()
	}
	select {
	case b.events <- evt:
	default:
		b.log.Warn("dropped call event", "kind", evt.Kind)
	}
}
