package domain

import "time"

// CheckInSession is the remote ledger record of one guided check-in.
type CheckInSession struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	MoodEmoji  string    `json:"mood_emoji"`
	MoodScore  int       `json:"mood_score"`
	SELSkill   string    `json:"sel_skill"`
	ContextTag string    `json:"context_tag,omitempty"`
	Transcript string    `json:"transcript"`
	Flags      []string  `json:"flags"`
	Duration   int       `json:"duration"` // seconds
	CreatedAt  time.Time `json:"created_at"`
}

// SessionUpdate carries the mutable fields of a CheckInSession.
// Nil fields are left untouched by the ledger.
type SessionUpdate struct {
	MoodScore  *int     `json:"mood_score,omitempty"`
	Transcript *string  `json:"transcript,omitempty"`
	Flags      []string `json:"flags,omitempty"`
	Duration   *int     `json:"duration,omitempty"`
}
