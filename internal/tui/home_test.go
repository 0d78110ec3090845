package tui

import (
	"strings"
	"testing"

	"github.com/naveenspark/tess/internal/appstate"
	"github.com/naveenspark/tess/pkg/domain"
)

func TestHomeMoodGridNavigation(t *testing.T) {
	f := newFixture(t, directory{})
	f.demoLogin()

	f.press("right", "right", "enter")
	sel := f.state.Snapshot().Flow.Selection
	if sel.Mood == nil || sel.Mood.Value != "scared" {
		t.Fatalf("mood = %+v, want scared", sel.Mood)
	}

	f.press("down")
	if f.app.home.cursor != 1 {
		t.Errorf("context cursor = %d, want 1", f.app.home.cursor)
	}
}

func TestHomeBackKeepsChoice(t *testing.T) {
	f := newFixture(t, directory{})
	f.demoLogin()

	f.press("right", "right", "enter")
	f.press("esc")
	if got := f.state.Snapshot().Flow.Step; got != appstate.StepMoodSelect {
		t.Fatalf("step = %s, want mood", got)
	}
	if f.app.home.cursor != 2 {
		t.Errorf("cursor = %d, want it on the chosen mood", f.app.home.cursor)
	}
	if !strings.Contains(f.app.View(), "✓ Scared") {
		t.Error("chosen mood not marked")
	}
}

func TestHomeSelectContextTag(t *testing.T) {
	f := newFixture(t, directory{})
	f.demoLogin()

	f.press("enter", "enter")
	sel := f.state.Snapshot().Flow.Selection
	if sel.ContextState != domain.ContextSet || sel.Context == nil {
		t.Fatalf("context = %+v (%d)", sel.Context, sel.ContextState)
	}
	if f.state.Snapshot().Flow.Step != appstate.StepSkillSelect {
		t.Errorf("step = %s, want skill", f.state.Snapshot().Flow.Step)
	}
}

func TestHomeSkipContext(t *testing.T) {
	f := newFixture(t, directory{})
	f.demoLogin()

	f.press("enter", "s")
	sel := f.state.Snapshot().Flow.Selection
	if sel.ContextState != domain.ContextSkipped {
		t.Errorf("context state = %d, want skipped", sel.ContextState)
	}
}

func TestHomeReadyCard(t *testing.T) {
	f := newFixture(t, directory{})
	f.demoLogin()

	f.press("enter", "s", "enter")
	view := f.app.View()
	for _, want := range []string{"Happy", "Deep Breathing", "start talking"} {
		if !strings.Contains(view, want) {
			t.Errorf("ready view missing %q", want)
		}
	}
}

func TestProgressMarksCurrentStep(t *testing.T) {
	p := progress(appstate.StepSkillSelect)
	if !strings.Contains(p, "● mood") || !strings.Contains(p, "◉ skill") || !strings.Contains(p, "○ ready") {
		t.Errorf("progress = %q", p)
	}
}
