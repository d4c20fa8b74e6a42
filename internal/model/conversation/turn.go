package conversation

import "time"

// Sender attributes a turn to one side of the conversation.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Turn is one utterance in the transcript. Turns are append-only; once
// recorded they are never mutated or removed.
type Turn struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Sender         Sender    `json:"sender"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
}

// State is a snapshot of the live conversation flags. Listening and speaking
// are independent booleans; the engine enforces its exclusion policy at the
// operation level, not here.
type State struct {
	ConversationID string `json:"conversationId"`
	Username       string `json:"username"`
	Listening      bool   `json:"listening"`
	Speaking       bool   `json:"speaking"`
	TurnCount      int    `json:"turnCount"`
}
