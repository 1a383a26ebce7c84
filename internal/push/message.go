package push

import (
	"encoding/json"
	"time"
)

// Message types pushed by the party service. UPDATE_QUEUE carries a queue
// array without per-entry status, so receivers must treat it purely as a
// refresh trigger, never as authoritative status.
const (
	TypeJoin           = "JOIN"
	TypeUpdateQueue    = "UPDATE_QUEUE"
	TypeMediaStarted   = "MEDIA_STARTED"
	TypeMediaCompleted = "MEDIA_COMPLETED"
	TypeMediaVetoed    = "MEDIA_VETOED"
	TypePartyEnded     = "PARTY_ENDED"
)

// QueueDelta is one element of an UPDATE_QUEUE payload: bid aggregates only,
// no status.
type QueueDelta struct {
	MediaID           string `json:"mediaId"`
	AggregateBidPence int64  `json:"aggregateBidPence"`
	BidCount          int    `json:"bidCount"`
}

// Message is the tagged union delivered over the websocket.
type Message struct {
	Type        string       `json:"type"`
	PartyID     string       `json:"partyId"`
	MediaID     string       `json:"mediaId,omitempty"`
	UserID      string       `json:"userId,omitempty"`
	Queue       []QueueDelta `json:"queue,omitempty"`
	PlayedAt    *time.Time   `json:"playedAt,omitempty"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
	VetoedAt    *time.Time   `json:"vetoedAt,omitempty"`
	VetoedBy    string       `json:"vetoedBy,omitempty"`
}

// Decode parses a raw frame. A frame with no recognizable type is malformed:
// one corrupt message must not take down a live session, so callers drop it
// and keep reading.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, err
	}
	switch m.Type {
	case TypeJoin, TypeUpdateQueue, TypeMediaStarted, TypeMediaCompleted,
		TypeMediaVetoed, TypePartyEnded:
		return m, nil
	}
	return Message{}, &MalformedError{Type: m.Type}
}

// MalformedError marks a frame the channel could decode as JSON but not as
// a known message.
type MalformedError struct {
	Type string
}

func (e *MalformedError) Error() string {
	if e.Type == "" {
		return "push: message has no type"
	}
	return "push: unknown message type " + e.Type
}
