package domain

// Question is one multiple-choice entry in the catalog. Immutable after load.
type Question struct {
	ID      int      `json:"id"`
	Text    string   `json:"text"`
	Choices []string `json:"choices"`
	Answer  int      `json:"answer"` // index into Choices
}

// Participant is the session's record of a joined player.
type Participant struct {
	ConnectionID string
	DisplayName  string
	Score        int
	Answers      map[int]int // question ID -> chosen choice index
}

// ChoiceView pairs a choice with its position, with correctness withheld.
type ChoiceView struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// PublicQuestion is the player-facing shape of a question.
type PublicQuestion struct {
	ID      int          `json:"id"`
	Text    string       `json:"text"`
	Choices []ChoiceView `json:"choices"`
}

// QuestionUpdate tells players which question is currently live.
type QuestionUpdate struct {
	Index    int             `json:"index"`
	Question *PublicQuestion `json:"question"`
}

// ParticipantView is the host-facing record of a player.
type ParticipantView struct {
	Name    string      `json:"name"`
	Score   int         `json:"score"`
	Answers map[int]int `json:"answers"`
}

// Snapshot captures the full session state for the host audience.
type Snapshot struct {
	Questions    []Question                 `json:"questions"`
	CurrentIndex int                        `json:"currentIndex"`
	Participants map[string]ParticipantView `json:"participants"`
}

// Sanitize strips the correct-answer index from a question.
func Sanitize(q Question) PublicQuestion {
	choices := make([]ChoiceView, 0, len(q.Choices))
	for i, text := range q.Choices {
		choices = append(choices, ChoiceView{Index: i, Text: text})
	}
	return PublicQuestion{ID: q.ID, Text: q.Text, Choices: choices}
}
