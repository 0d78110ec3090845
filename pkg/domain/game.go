package domain

// GameType is the kind of mini-game.
type GameType string

const (
	GameMatching GameType = "matching"
	GameScenario GameType = "scenario"
	GameQuiz     GameType = "quiz"
)

// MatchPair is one emotion glyph and the situation it belongs to.
type MatchPair struct {
	Emotion   string `json:"emotion" yaml:"emotion"`
	Situation string `json:"situation" yaml:"situation"`
}

// MiniGame is a short SEL practice game.
type MiniGame struct {
	ID          string      `json:"id" yaml:"id"`
	Title       string      `json:"title" yaml:"title"`
	Description string      `json:"description" yaml:"description"`
	Type        GameType    `json:"type" yaml:"type"`
	Duration    int         `json:"duration" yaml:"duration"` // seconds
	Difficulty  string      `json:"difficulty" yaml:"difficulty"`
	Pairs       []MatchPair `json:"pairs,omitempty" yaml:"pairs,omitempty"`
}

// Playable reports whether the terminal client can run the game.
func (g MiniGame) Playable() bool {
	return g.Type == GameMatching && len(g.Pairs) > 0
}
