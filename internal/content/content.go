// Package content holds the static check-in tables: moods, context tags,
// SEL skills and mini-games. The tables are compiled into the binary.
package content

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/naveenspark/tess/pkg/domain"
)

//go:embed content.yaml
var embedded []byte

// Catalog is the parsed set of content tables.
type Catalog struct {
	Moods       []domain.MoodOption `yaml:"moods"`
	ContextTags []domain.ContextTag `yaml:"context_tags"`
	Skills      []domain.SELSkill   `yaml:"skills"`
	Games       []domain.MiniGame   `yaml:"games"`
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded catalog, parsed once.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Parse(embedded)
	})
	return defaultCatalog, defaultErr
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("content.Parse: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("content.Parse: %w", err)
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Moods) == 0 {
		return fmt.Errorf("no moods defined")
	}
	if len(c.Skills) == 0 {
		return fmt.Errorf("no skills defined")
	}
	seen := map[string]bool{}
	for _, m := range c.Moods {
		if m.Value == "" || seen["mood:"+m.Value] {
			return fmt.Errorf("mood value %q is empty or duplicated", m.Value)
		}
		seen["mood:"+m.Value] = true
	}
	for _, t := range c.ContextTags {
		if t.ID == "" || seen["tag:"+t.ID] {
			return fmt.Errorf("context tag %q is empty or duplicated", t.ID)
		}
		seen["tag:"+t.ID] = true
	}
	for _, s := range c.Skills {
		if s.ID == "" || seen["skill:"+s.ID] {
			return fmt.Errorf("skill %q is empty or duplicated", s.ID)
		}
		seen["skill:"+s.ID] = true
	}
	for _, g := range c.Games {
		if g.ID == "" || seen["game:"+g.ID] {
			return fmt.Errorf("game %q is empty or duplicated", g.ID)
		}
		seen["game:"+g.ID] = true
		if g.Type == domain.GameMatching && len(g.Pairs) == 0 {
			return fmt.Errorf("matching game %q has no pairs", g.ID)
		}
		if g.Duration <= 0 {
			return fmt.Errorf("game %q has no duration", g.ID)
		}
	}
	return nil
}

// Mood looks up a mood by value.
func (c *Catalog) Mood(value string) (domain.MoodOption, bool) {
	for _, m := range c.Moods {
		if m.Value == value {
			return m, true
		}
	}
	return domain.MoodOption{}, false
}

// Skill looks up a skill by id.
func (c *Catalog) Skill(id string) (domain.SELSkill, bool) {
	for _, s := range c.Skills {
		if s.ID == id {
			return s, true
		}
	}
	return domain.SELSkill{}, false
}

// ContextTag looks up a context tag by id.
func (c *Catalog) ContextTag(id string) (domain.ContextTag, bool) {
	for _, t := range c.ContextTags {
		if t.ID == id {
			return t, true
		}
	}
	return domain.ContextTag{}, false
}

// PlayableGames returns the games the terminal client can run.
func (c *Catalog) PlayableGames() []domain.MiniGame {
	var out []domain.MiniGame
	for _, g := range c.Games {
		if g.Playable() {
			out = append(out, g)
		}
	}
	return out
}
