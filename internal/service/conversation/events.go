package conversation

import model "github.com/kiskahq/kiska/internal/model/conversation"

// EventType discriminates the live feed payloads.
type EventType string

const (
	EventTurn  EventType = "turn"
	EventState EventType = "state"
)

// Event is pushed to subscribers whenever a turn is appended or the
// listening/speaking flags change.
type Event struct {
	Type  EventType    `json:"type"`
	Turn  *model.Turn  `json:"turn,omitempty"`
	State *model.State `json:"state,omitempty"`
}
