package party

import (
	"fmt"
	"time"
)

// Action is a requested status transition on one queue entry.
type Action string

const (
	ActionStart    Action = "start"    // queued -> playing
	ActionComplete Action = "complete" // playing -> played
	ActionVeto     Action = "veto"     // queued -> vetoed
	ActionRestore  Action = "restore"  // vetoed -> queued
)

// TransitionError reports an illegal status edge. Callers must surface it
// (refuse the UI action with the reason), never swallow it.
type TransitionError struct {
	MediaID string
	From    string
	Action  Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition: %s from %q", e.Action, e.From)
}

// Meta carries the server-supplied facts that accompany a transition.
type Meta struct {
	At       time.Time
	VetoedBy string
}

// Apply performs action on the entry for mediaID, mutating the party in
// place. Starting an entry demotes any other playing entry back to queued,
// so at most one entry per party is ever playing. A playing entry cannot be
// vetoed; it has to complete first.
func Apply(p *Party, mediaID string, action Action, meta Meta) error {
	e := p.Entry(mediaID)
	if e == nil {
		return fmt.Errorf("party %s has no entry for media %s", p.ID, mediaID)
	}

	switch action {
	case ActionStart:
		if e.Status != StatusQueued {
			return &TransitionError{MediaID: mediaID, From: e.Status, Action: action}
		}
		for i := range p.Queue {
			if p.Queue[i].Status == StatusPlaying {
				p.Queue[i].Status = StatusQueued
			}
		}
		e.Status = StatusPlaying
		if !meta.At.IsZero() {
			at := meta.At
			e.PlayedAt = &at
		}
		return nil

	case ActionComplete:
		if e.Status != StatusPlaying {
			return &TransitionError{MediaID: mediaID, From: e.Status, Action: action}
		}
		e.Status = StatusPlayed
		return nil

	case ActionVeto:
		if e.Status != StatusQueued {
			return &TransitionError{MediaID: mediaID, From: e.Status, Action: action}
		}
		e.Status = StatusVetoed
		e.VetoedBy = meta.VetoedBy
		if !meta.At.IsZero() {
			at := meta.At
			e.VetoedAt = &at
		}
		return nil

	case ActionRestore:
		if e.Status != StatusVetoed {
			return &TransitionError{MediaID: mediaID, From: e.Status, Action: action}
		}
		e.Status = StatusQueued
		e.VetoedAt = nil
		e.VetoedBy = ""
		return nil

	default:
		return fmt.Errorf("unknown action %q", action)
	}
}
