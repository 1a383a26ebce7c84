// Package playback owns the single "now playing" pointer. Every mounted
// view reads it; only the coordinator writes it, so two views can never
// race to set conflicting current items.
package playback

import (
	"context"
	"fmt"
	"log"

	"github.com/Mostlymisguided/Tuneable-sub000/internal/party"
)

// Player states.
const (
	StateEmpty   = "empty"
	StateLoaded  = "loaded"
	StatePlaying = "playing"
	StatePaused  = "paused"
)

// Pointer identifies the current item and where it sits in the displayed
// queue. Index is -1 when the current item is not in the display list (it is
// playing, or a search filter hides it). There is exactly one pointer per
// session.
type Pointer struct {
	MediaID  string
	Index    int
	Autoplay bool
}

// Skipper is the server side of skip operations. "Next" depends on ranking
// rules the client does not replicate, so skips never guess locally.
type Skipper interface {
	SkipNext(ctx context.Context, partyID string) error
	SkipPrevious(ctx context.Context, partyID string) error
}

// Coordinator drives the pointer state machine:
//
//	Empty -> Loaded -> Playing <-> Paused
//
// with Empty reachable from anywhere when the queued set drains or the
// party ends. Not safe for concurrent use; it lives on the session loop.
type Coordinator struct {
	partyID string
	api     Skipper
	reload  func(ctx context.Context) error

	state   string
	pointer Pointer

	// OnChange fires after every observable pointer/state change. Sync
	// calls with unchanged canonical state never fire it.
	OnChange func(state string, ptr Pointer)
}

// NewCoordinator wires the coordinator to the skip API and the session's
// full load pipeline (snapshot fetch + resync).
func NewCoordinator(partyID string, api Skipper, reload func(ctx context.Context) error) *Coordinator {
	return &Coordinator{
		partyID: partyID,
		api:     api,
		reload:  reload,
		state:   StateEmpty,
	}
}

func (c *Coordinator) State() string    { return c.state }
func (c *Coordinator) Pointer() Pointer { return c.pointer }

// SyncFromQueue realigns the pointer with canonical state. display is the
// projected list the user sees (filtered, possibly server-ranked); the
// pointer's index is kept in terms of it. The sync is idempotent: calling it
// again with the same inputs produces no observable effect, so redundant
// re-subscriptions cannot re-trigger autoplay.
func (c *Coordinator) SyncFromQueue(p *party.Party, display []party.QueueEntry) {
	if p == nil {
		c.clear()
		return
	}

	if playing := p.Playing(); playing != nil {
		if c.pointer.MediaID == playing.Media.ID &&
			(c.state == StatePlaying || c.state == StatePaused) {
			c.realign(display)
			return
		}
		c.set(playing.Media.ID, indexOf(display, playing.Media.ID), true, StatePlaying)
		return
	}

	queued := p.Queued()
	if len(queued) == 0 {
		c.clear()
		return
	}

	// Nothing playing but the queue has entries: keep the current item if it
	// is still queued, otherwise load the head of the displayed queue (the
	// canonical head when the filter hides everything) without autoplay.
	if c.state != StateEmpty && indexOf(queued, c.pointer.MediaID) >= 0 {
		c.realign(display)
		return
	}
	head := queued[0]
	if len(display) > 0 {
		head = display[0]
	}
	c.set(head.Media.ID, indexOf(display, head.Media.ID), false, StateLoaded)
}

// realign refreshes the display index of the current item without touching
// state or autoplay.
func (c *Coordinator) realign(display []party.QueueEntry) {
	if i := indexOf(display, c.pointer.MediaID); i != c.pointer.Index {
		c.pointer.Index = i
		c.notify()
	}
}

// SetCurrent points playback at a specific entry, e.g. a user tapping a
// row. Autoplay decides whether it starts as playing or merely loaded.
func (c *Coordinator) SetCurrent(entry *party.QueueEntry, index int, autoplay bool) {
	state := StateLoaded
	if autoplay {
		state = StatePlaying
	}
	c.set(entry.Media.ID, index, autoplay, state)
}

// PartyEnded forces the pointer empty from any state.
func (c *Coordinator) PartyEnded() {
	c.clear()
}

// Play moves Loaded or Paused to Playing.
func (c *Coordinator) Play() error {
	switch c.state {
	case StateLoaded, StatePaused:
		c.state = StatePlaying
		c.notify()
		return nil
	case StatePlaying:
		return nil
	default:
		return fmt.Errorf("playback: cannot play from %q", c.state)
	}
}

// Pause moves Playing to Paused.
func (c *Coordinator) Pause() error {
	switch c.state {
	case StatePlaying:
		c.state = StatePaused
		c.notify()
		return nil
	case StatePaused:
		return nil
	default:
		return fmt.Errorf("playback: cannot pause from %q", c.state)
	}
}

// SkipNext asks the server to advance, then re-runs the full load pipeline
// rather than guessing the next item.
func (c *Coordinator) SkipNext(ctx context.Context) error {
	if err := c.api.SkipNext(ctx, c.partyID); err != nil {
		return err
	}
	return c.reload(ctx)
}

// SkipPrevious mirrors SkipNext.
func (c *Coordinator) SkipPrevious(ctx context.Context) error {
	if err := c.api.SkipPrevious(ctx, c.partyID); err != nil {
		return err
	}
	return c.reload(ctx)
}

func (c *Coordinator) set(mediaID string, index int, autoplay bool, state string) {
	next := Pointer{MediaID: mediaID, Index: index, Autoplay: autoplay}
	if c.pointer == next && c.state == state {
		return
	}
	c.pointer = next
	c.state = state
	log.Printf("playback: %s %s (index %d, autoplay %t)", state, mediaID, index, autoplay)
	c.notify()
}

func (c *Coordinator) clear() {
	if c.state == StateEmpty && c.pointer == (Pointer{}) {
		return
	}
	c.state = StateEmpty
	c.pointer = Pointer{}
	c.notify()
}

func (c *Coordinator) notify() {
	if c.OnChange != nil {
		c.OnChange(c.state, c.pointer)
	}
}

func indexOf(entries []party.QueueEntry, mediaID string) int {
	for i := range entries {
		if entries[i].Media.ID == mediaID {
			return i
		}
	}
	return -1
}
