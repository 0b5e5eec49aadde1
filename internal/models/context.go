package models

// Label is a classifier output such as a sentiment or emotion.
type Label struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Defaults substituted when a classifier is unavailable.
var (
	NeutralSentiment = Label{Label: "NEUTRAL", Score: 0.5}
	NeutralEmotion   = Label{Label: "neutral", Score: 0.5}
)

// ConversationContext is the per-request analysis of a message.
// It is built once by the analyzer and only read afterwards.
type ConversationContext struct {
	Message   string      `json:"message"`
	UserID    string      `json:"user_id"`
	Sentiment Label       `json:"sentiment"`
	Emotion   Label       `json:"emotion"`
	Embedding []float32   `json:"-"`
	Memories  []MemoryHit `json:"memories"`

	// Degraded names the analysis steps that fell back to their defaults.
	Degraded []string `json:"degraded,omitempty"`
}

// MemoryCount returns the number of retrieved memories.
func (c ConversationContext) MemoryCount() int {
	return len(c.Memories)
}
