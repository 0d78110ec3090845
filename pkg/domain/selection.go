package domain

// MoodOption is a named emotional state chosen first in a check-in.
type MoodOption struct {
	Emoji       string `json:"emoji" yaml:"emoji"`
	Label       string `json:"label" yaml:"label"`
	Value       string `json:"value" yaml:"value"`
	Color       string `json:"color" yaml:"color"`
	Description string `json:"description" yaml:"description"`
}

// ContextTag is an optional situational label attached to a mood.
type ContextTag struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
	Emoji string `json:"emoji" yaml:"emoji"`
	Color string `json:"color" yaml:"color"`
}

// SkillCategory groups SEL skills.
type SkillCategory string

const (
	CategoryBreathing   SkillCategory = "breathing"
	CategoryMindfulness SkillCategory = "mindfulness"
	CategoryReframing   SkillCategory = "reframing"
	CategorySocial      SkillCategory = "social"
)

// SELSkill is a coping technique with step-by-step instructions.
type SELSkill struct {
	ID           string        `json:"id" yaml:"id"`
	Title        string        `json:"title" yaml:"title"`
	Description  string        `json:"description" yaml:"description"`
	Instructions []string      `json:"instructions" yaml:"instructions"`
	Category     SkillCategory `json:"category" yaml:"category"`
	Duration     int           `json:"duration" yaml:"duration"` // seconds
}

// ContextState distinguishes a context tag that was never chosen from one
// that was explicitly skipped.
type ContextState int

const (
	ContextUnset ContextState = iota
	ContextSkipped
	ContextSet
)

// SelectionState is the student's in-progress check-in choices.
type SelectionState struct {
	Mood         *MoodOption
	Context      *ContextTag
	ContextState ContextState
	Skill        *SELSkill
}

// Ready reports whether a check-in session can be created from s.
func (s SelectionState) Ready() bool {
	return s.Mood != nil && s.Skill != nil
}

// ContextTagID returns the chosen tag id, or "" when unset or skipped.
func (s SelectionState) ContextTagID() string {
	if s.ContextState == ContextSet && s.Context != nil {
		return s.Context.ID
	}
	return ""
}
