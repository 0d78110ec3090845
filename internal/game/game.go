// Package game implements the emotion/situation matching game.
//
// An Engine holds two decks built from the same pairs: emotions in their
// original order and situations shuffled independently, so a situation's
// position never gives away its pair. Tiles are identified by pair index.
package game

import (
	"errors"
	"math/rand/v2"

	"github.com/naveenspark/tess/pkg/domain"
)

// PointsPerMatch is added to the live score for every correct pair.
const PointsPerMatch = 10

// ErrNoPairs is returned by New for an empty deck.
var ErrNoPairs = errors.New("game: no pairs")

// ErrBadDuration is returned by New for a non-positive countdown.
var ErrBadDuration = errors.New("game: duration must be positive")

// Tile is one card on the board. ID is the pair index it belongs to.
type Tile struct {
	ID   int
	Text string
}

// Outcome is the result of a situation click.
type Outcome int

const (
	Ignored Outcome = iota // no evaluation happened
	Correct
	Incorrect
)

// Engine is the game state. It is not safe for concurrent use; the TUI
// drives it from a single goroutine.
type Engine struct {
	emotions   []Tile
	situations []Tile
	duration   int

	matched   map[int]bool
	pending   int
	score     int
	attempts  int
	timeLeft  int
	completed bool
}

// New builds a game from pairs with a countdown of duration seconds. rng
// shuffles the situation deck; nil uses the global source.
func New(pairs []domain.MatchPair, duration int, rng *rand.Rand) (*Engine, error) {
	if len(pairs) == 0 {
		return nil, ErrNoPairs
	}
	if duration <= 0 {
		return nil, ErrBadDuration
	}
	e := &Engine{
		emotions:   make([]Tile, len(pairs)),
		situations: make([]Tile, len(pairs)),
		duration:   duration,
	}
	for i, p := range pairs {
		e.emotions[i] = Tile{ID: i, Text: p.Emotion}
		e.situations[i] = Tile{ID: i, Text: p.Situation}
	}
	swap := func(i, j int) { e.situations[i], e.situations[j] = e.situations[j], e.situations[i] }
	if rng != nil {
		rng.Shuffle(len(e.situations), swap)
	} else {
		rand.Shuffle(len(e.situations), swap)
	}
	e.reset()
	return e, nil
}

// FromMiniGame builds an engine for a playable mini-game.
func FromMiniGame(g domain.MiniGame, rng *rand.Rand) (*Engine, error) {
	return New(g.Pairs, g.Duration, rng)
}

func (e *Engine) reset() {
	e.matched = make(map[int]bool, len(e.emotions))
	e.pending = -1
	e.score = 0
	e.attempts = 0
	e.timeLeft = e.duration
	e.completed = false
}

// Emotions returns the emotion deck in display order.
func (e *Engine) Emotions() []Tile { return append([]Tile(nil), e.emotions...) }

// Situations returns the shuffled situation deck in display order.
func (e *Engine) Situations() []Tile { return append([]Tile(nil), e.situations...) }

// SelectEmotion makes the emotion with pair id pending, replacing any
// previous pending emotion. It reports whether the selection changed.
func (e *Engine) SelectEmotion(id int) bool {
	if e.completed || !e.valid(id) || e.matched[id] {
		return false
	}
	e.pending = id
	return true
}

// SelectSituation evaluates the pending emotion against situation id.
// Every evaluation costs one attempt. With no pending emotion, or on a
// matched tile, nothing happens.
func (e *Engine) SelectSituation(id int) Outcome {
	if e.completed || e.pending < 0 || !e.valid(id) || e.matched[id] {
		return Ignored
	}
	e.attempts++
	emotion := e.pending
	e.pending = -1
	if emotion != id {
		return Incorrect
	}
	e.matched[id] = true
	e.score += PointsPerMatch
	if len(e.matched) == len(e.emotions) {
		e.completed = true
	}
	return Correct
}

// Tick advances the countdown by one second. It reports whether the game
// is over afterwards.
func (e *Engine) Tick() bool {
	if e.completed {
		return true
	}
	if e.timeLeft > 0 {
		e.timeLeft--
	}
	if e.timeLeft == 0 {
		e.completed = true
	}
	return e.completed
}

// Replay resets progress and the countdown. The situation shuffle is kept.
func (e *Engine) Replay() { e.reset() }

func (e *Engine) valid(id int) bool { return id >= 0 && id < len(e.emotions) }

// Pending returns the pending emotion id.
func (e *Engine) Pending() (int, bool) { return e.pending, e.pending >= 0 }

// IsMatched reports whether pair id has been matched.
func (e *Engine) IsMatched(id int) bool { return e.matched[id] }

// Matched returns the number of matched pairs.
func (e *Engine) Matched() int { return len(e.matched) }

// Total returns the number of pairs.
func (e *Engine) Total() int { return len(e.emotions) }

// Score returns the live score, before the attempt penalty.
func (e *Engine) Score() int { return e.score }

func (e *Engine) Attempts() int { return e.attempts }

func (e *Engine) TimeLeft() int { return e.timeLeft }

func (e *Engine) Duration() int { return e.duration }

func (e *Engine) Completed() bool { return e.completed }

// TimedOut reports whether the countdown ended the game before every pair
// was matched.
func (e *Engine) TimedOut() bool {
	return e.completed && len(e.matched) < len(e.emotions)
}

// FinalScore applies the wrong-attempt penalty to the live score.
func (e *Engine) FinalScore() int {
	return FinalScore(e.score, e.attempts)
}

// FinalScore returns max(0, score - (attempts - score/10) * 2).
func FinalScore(score, attempts int) int {
	wrong := attempts - score/PointsPerMatch
	return max(0, score-wrong*2)
}
