// Package reconcile merges authoritative snapshots and asynchronous push
// events into one canonical party queue.
package reconcile

import (
	"log"

	"github.com/Mostlymisguided/Tuneable-sub000/internal/party"
	"github.com/Mostlymisguided/Tuneable-sub000/internal/push"
)

// Outcome classifies what an incoming message did to canonical state.
type Outcome int

const (
	// OutcomeApplied: the event changed canonical state.
	OutcomeApplied Outcome = iota
	// OutcomeBuffered: the referenced entry is unknown; the event waits for
	// a snapshot to introduce it.
	OutcomeBuffered
	// OutcomeDropped: the event was discarded (malformed, illegal against
	// current state, or arrived after the party ended).
	OutcomeDropped
	// OutcomeRefresh: the event is only a trigger; the caller should fetch
	// a fresh snapshot.
	OutcomeRefresh
	// OutcomeEnded: the party is over. Terminal.
	OutcomeEnded
)

// Engine owns the canonical queue for one party. It is not safe for
// concurrent use; the session loop is its single caller.
type Engine struct {
	partyID   string
	canonical *party.Party
	ended     bool

	// One slot per entry, last write wins. Events for entries a snapshot
	// has not introduced yet sit here until one does.
	buffered map[string]push.Message
}

func NewEngine(partyID string) *Engine {
	return &Engine{
		partyID:  partyID,
		buffered: make(map[string]push.Message),
	}
}

// Canonical returns the current canonical party, nil before the first
// snapshot. Callers must not mutate it; use Clone for hand-outs.
func (e *Engine) Canonical() *party.Party {
	return e.canonical
}

// Ended reports whether the party reached its terminal state.
func (e *Engine) Ended() bool {
	return e.ended
}

// ApplySnapshot replaces canonical state with an authoritative read, then
// replays any buffered events whose entries the snapshot introduced. A
// replayed event is discarded afterwards, applied or not: the snapshot
// supersedes it either way. Applying the same snapshot twice yields the
// same canonical queue.
func (e *Engine) ApplySnapshot(p *party.Party) Outcome {
	if e.ended {
		log.Printf("reconcile: dropping snapshot for ended party %s", e.partyID)
		return OutcomeDropped
	}
	if p == nil || p.ID != e.partyID {
		log.Printf("reconcile: dropping snapshot for wrong party %v", p)
		return OutcomeDropped
	}

	e.canonical = p.Clone()

	for mediaID, msg := range e.buffered {
		if e.canonical.Entry(mediaID) == nil {
			continue
		}
		delete(e.buffered, mediaID)
		if err := e.applyDelta(msg); err != nil {
			log.Printf("reconcile: buffered %s for %s superseded by snapshot: %v",
				msg.Type, mediaID, err)
		}
	}
	return OutcomeApplied
}

// ApplyEvent folds one push message into canonical state via the status
// transition rules. Events for the same entry apply in arrival order.
func (e *Engine) ApplyEvent(msg push.Message) Outcome {
	if e.ended {
		log.Printf("reconcile: dropping %s after party end", msg.Type)
		return OutcomeDropped
	}
	if msg.PartyID != e.partyID {
		return OutcomeDropped
	}

	switch msg.Type {
	case push.TypePartyEnded:
		e.ended = true
		e.buffered = make(map[string]push.Message)
		return OutcomeEnded

	case push.TypeJoin:
		if e.canonical != nil {
			e.canonical.Participants++
		}
		return OutcomeApplied

	case push.TypeUpdateQueue:
		// Carries no per-entry status, so it is never applied as state,
		// only treated as a signal to refetch.
		return OutcomeRefresh

	case push.TypeMediaStarted, push.TypeMediaCompleted, push.TypeMediaVetoed:
		if msg.MediaID == "" {
			log.Printf("reconcile: dropping %s without mediaId", msg.Type)
			return OutcomeDropped
		}
		if e.canonical == nil || e.canonical.Entry(msg.MediaID) == nil {
			e.buffered[msg.MediaID] = msg
			return OutcomeBuffered
		}
		if err := e.applyDelta(msg); err != nil {
			log.Printf("reconcile: dropping %s for %s: %v", msg.Type, msg.MediaID, err)
			return OutcomeDropped
		}
		return OutcomeApplied

	default:
		log.Printf("reconcile: dropping unknown event %q", msg.Type)
		return OutcomeDropped
	}
}

func (e *Engine) applyDelta(msg push.Message) error {
	switch msg.Type {
	case push.TypeMediaStarted:
		meta := party.Meta{}
		if msg.PlayedAt != nil {
			meta.At = *msg.PlayedAt
		}
		return party.Apply(e.canonical, msg.MediaID, party.ActionStart, meta)

	case push.TypeMediaCompleted:
		meta := party.Meta{}
		if msg.CompletedAt != nil {
			meta.At = *msg.CompletedAt
		}
		return party.Apply(e.canonical, msg.MediaID, party.ActionComplete, meta)

	case push.TypeMediaVetoed:
		meta := party.Meta{VetoedBy: msg.VetoedBy}
		if msg.VetoedAt != nil {
			meta.At = *msg.VetoedAt
		}
		return party.Apply(e.canonical, msg.MediaID, party.ActionVeto, meta)
	}
	return nil
}
