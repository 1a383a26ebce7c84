// Package session is the thin event-driven shell around the engine: one
// goroutine owns the canonical queue, and push messages, commands and
// snapshot results all funnel through its loop. Server round-trips always
// run on their own goroutines; the loop itself never blocks on the network.
package session

import (
	"context"
	"errors"
	"log"

	"github.com/Mostlymisguided/Tuneable-sub000/internal/bid"
	"github.com/Mostlymisguided/Tuneable-sub000/internal/party"
	"github.com/Mostlymisguided/Tuneable-sub000/internal/playback"
	"github.com/Mostlymisguided/Tuneable-sub000/internal/push"
	"github.com/Mostlymisguided/Tuneable-sub000/internal/reconcile"
	"github.com/Mostlymisguided/Tuneable-sub000/internal/view"
)

// ErrLeft is returned to callers whose operation was cut short because the
// session left the party.
var ErrLeft = errors.New("session: left party")

// ErrEnded is returned once the party has ended; nothing can be mutated
// afterwards.
var ErrEnded = errors.New("session: party has ended")

// API is the slice of the party service the session consumes.
type API interface {
	PartySnapshot(ctx context.Context, partyID string) (*party.Party, error)
	RankedMedia(ctx context.Context, partyID, window string) ([]party.QueueEntry, error)
	PlaceBid(ctx context.Context, partyID, mediaID string, amountPence int64) (int64, error)
	Veto(ctx context.Context, partyID, mediaID string) error
	Unveto(ctx context.Context, partyID, mediaID string) error
	SkipNext(ctx context.Context, partyID string) error
	SkipPrevious(ctx context.Context, partyID string) error
}

// Listeners are the UI-facing notification hooks. All fire on the session
// loop; implementations must not call back into the session synchronously.
type Listeners struct {
	// QueueChanged delivers the projected display list after any canonical
	// change.
	QueueChanged func(display []party.QueueEntry)
	// BalanceChanged delivers the server-reported wallet balance.
	BalanceChanged func(pence int64)
	// PlaybackChanged mirrors the coordinator's pointer.
	PlaybackChanged func(state string, ptr playback.Pointer)
	// Ended fires once when the party ends; the UI should navigate away.
	Ended func()
}

type snapshotResult struct {
	partyID string
	gen     uint64
	party   *party.Party
	err     error
}

// Session synchronizes one party. Create with New, start with Run, interact
// from any goroutine through the exported methods.
type Session struct {
	partyID   string
	api       API
	messages  <-chan push.Message
	listeners Listeners

	engine *reconcile.Engine
	ledger *bid.Ledger
	coord  *playback.Coordinator
	vs     view.State
	ranked []party.QueueEntry

	cmds      chan func()
	snapshots chan snapshotResult

	mounted bool
	gen     uint64
	waiters []chan error
}

// New assembles a session for one party. messages is typically
// (*push.Channel).Messages().
func New(partyID string, api API, messages <-chan push.Message, listeners Listeners) *Session {
	s := &Session{
		partyID:   partyID,
		api:       api,
		messages:  messages,
		listeners: listeners,
		engine:    reconcile.NewEngine(partyID),
		ledger:    bid.NewLedger(),
		cmds:      make(chan func()),
		snapshots: make(chan snapshotResult, 4),
		mounted:   true,
		vs:        view.State{Window: party.WindowAllTime},
	}
	s.coord = playback.NewCoordinator(partyID, api, func(ctx context.Context) error {
		s.enqueue(ctx, func() { s.startRefresh(ctx) })
		return nil
	})
	s.coord.OnChange = func(state string, ptr playback.Pointer) {
		if s.listeners.PlaybackChanged != nil {
			s.listeners.PlaybackChanged(state, ptr)
		}
	}
	return s
}

// Run processes events until ctx is cancelled. It performs the initial
// snapshot load before entering the loop.
func (s *Session) Run(ctx context.Context) {
	s.startRefresh(ctx)

	for {
		select {
		case <-ctx.Done():
			s.flushWaiters(ErrLeft)
			return

		case fn := <-s.cmds:
			fn()

		case res := <-s.snapshots:
			s.onSnapshot(ctx, res)

		case msg, ok := <-s.messages:
			if !ok {
				s.messages = nil
				continue
			}
			s.onMessage(ctx, msg)
		}
	}
}

// --- commands (run on caller goroutines, state touched only on the loop) ---

// PlaceBid submits a bid and blocks until the follow-up snapshot has been
// applied, so the caller reads its own write. Local rejections (below
// minimum, known shortfall) never reach the network; the server round-trip
// itself runs off the loop. The returned balance is the server's updated
// wallet balance.
func (s *Session) PlaceBid(ctx context.Context, mediaID string, amountPence int64) (int64, error) {
	var balance int64
	done := make(chan error, 1)

	err := s.do(ctx, func() {
		if err := s.refreshBlocker(); err != nil {
			done <- err
			return
		}
		canonical := s.engine.Canonical()
		if canonical == nil {
			done <- errors.New("session: no snapshot loaded yet")
			return
		}
		if err := s.ledger.Check(canonical, mediaID, amountPence); err != nil {
			done <- err
			return
		}
		go func() {
			updated, err := s.api.PlaceBid(ctx, s.partyID, mediaID, amountPence)
			s.enqueue(ctx, func() {
				if err := s.ledger.Settle(mediaID, amountPence, updated, err); err != nil {
					done <- err
					return
				}
				balance = updated
				if s.listeners.BalanceChanged != nil {
					s.listeners.BalanceChanged(updated)
				}
				if err := s.refreshBlocker(); err != nil {
					done <- err
					return
				}
				s.awaitRefresh(ctx, done)
			})
		}()
	})
	if err != nil {
		return 0, err
	}
	if err := s.wait(ctx, done); err != nil {
		return 0, err
	}
	return balance, nil
}

// Veto removes a queued entry (host only) and awaits the refresh.
func (s *Session) Veto(ctx context.Context, mediaID string) error {
	return s.mutate(ctx, func(ctx context.Context) error {
		return s.api.Veto(ctx, s.partyID, mediaID)
	})
}

// Unveto restores a vetoed entry (host only) and awaits the refresh.
func (s *Session) Unveto(ctx context.Context, mediaID string) error {
	return s.mutate(ctx, func(ctx context.Context) error {
		return s.api.Unveto(ctx, s.partyID, mediaID)
	})
}

// SkipNext advances playback (host only). Which entry plays next is the
// server's decision; the call blocks until the fresh snapshot lands and the
// coordinator has resynced from it.
func (s *Session) SkipNext(ctx context.Context) error {
	return s.mutate(ctx, func(ctx context.Context) error {
		return s.api.SkipNext(ctx, s.partyID)
	})
}

// SkipPrevious steps playback back (host only).
func (s *Session) SkipPrevious(ctx context.Context) error {
	return s.mutate(ctx, func(ctx context.Context) error {
		return s.api.SkipPrevious(ctx, s.partyID)
	})
}

// Refresh forces a snapshot reload (manual pull-to-refresh) and blocks
// until it lands.
func (s *Session) Refresh(ctx context.Context) error {
	done := make(chan error, 1)
	if err := s.do(ctx, func() { s.awaitRefresh(ctx, done) }); err != nil {
		return err
	}
	return s.wait(ctx, done)
}

// SetWindow switches the sort window. Windows other than all-time use the
// server-provided ranking; local caches cannot recompute those aggregates.
func (s *Session) SetWindow(ctx context.Context, window string) error {
	var ranked []party.QueueEntry
	var fetchErr error
	if window != party.WindowAllTime {
		ranked, fetchErr = s.api.RankedMedia(ctx, s.partyID, window)
		if fetchErr != nil {
			return fetchErr
		}
	}
	return s.do(ctx, func() {
		s.vs.Window = window
		s.ranked = ranked
		s.syncViews()
	})
}

// SetSearchTerms replaces the free-text/tag filter.
func (s *Session) SetSearchTerms(ctx context.Context, terms []string) error {
	return s.do(ctx, func() {
		s.vs.SearchTerms = append([]string(nil), terms...)
		s.syncViews()
	})
}

// Display returns the current projected queue for the main view.
func (s *Session) Display(ctx context.Context) ([]party.QueueEntry, error) {
	var out []party.QueueEntry
	err := s.do(ctx, func() {
		out = view.Project(s.engine.Canonical(), s.ranked, s.vs)
	})
	return out, err
}

// DisplayVetoed returns the projected vetoed view.
func (s *Session) DisplayVetoed(ctx context.Context) ([]party.QueueEntry, error) {
	var out []party.QueueEntry
	err := s.do(ctx, func() {
		out = view.ProjectVetoed(s.engine.Canonical(), s.vs)
	})
	return out, err
}

// Bids returns the local submission history.
func (s *Session) Bids(ctx context.Context) ([]bid.Record, error) {
	var out []bid.Record
	err := s.do(ctx, func() { out = s.ledger.Records() })
	return out, err
}

// Balance returns the last known wallet balance.
func (s *Session) Balance(ctx context.Context) (int64, bool, error) {
	var pence int64
	var known bool
	err := s.do(ctx, func() { pence, known = s.ledger.Balance() })
	return pence, known, err
}

// SetWalletBalance seeds the balance from the wallet service's initial read.
func (s *Session) SetWalletBalance(ctx context.Context, pence int64) error {
	return s.do(ctx, func() { s.ledger.SetBalance(pence) })
}

// Playback returns the coordinator's current state and pointer.
func (s *Session) Playback(ctx context.Context) (string, playback.Pointer, error) {
	var state string
	var ptr playback.Pointer
	err := s.do(ctx, func() { state, ptr = s.coord.State(), s.coord.Pointer() })
	return state, ptr, err
}

// Leave unmounts the session: in-flight snapshot responses are discarded
// from now on and blocked callers are released.
func (s *Session) Leave(ctx context.Context) error {
	return s.do(ctx, func() {
		s.mounted = false
		s.flushWaiters(ErrLeft)
	})
}

// --- loop internals ---

// mutate runs a server mutation off the loop, then registers the caller for
// the follow-up snapshot. The loop stays free to serve reads and push
// messages for the whole round-trip.
func (s *Session) mutate(ctx context.Context, op func(context.Context) error) error {
	done := make(chan error, 1)
	err := s.do(ctx, func() {
		if err := s.refreshBlocker(); err != nil {
			done <- err
			return
		}
		go func() {
			opErr := op(ctx)
			s.enqueue(ctx, func() {
				if opErr != nil {
					done <- opErr
					return
				}
				if err := s.refreshBlocker(); err != nil {
					done <- err
					return
				}
				s.awaitRefresh(ctx, done)
			})
		}()
	})
	if err != nil {
		return err
	}
	return s.wait(ctx, done)
}

func (s *Session) do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(ran) }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ran:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueue hands fn to the loop without waiting for it; fn runs with the
// loop's exclusive ownership of session state. Must not be called from the
// loop itself.
func (s *Session) enqueue(ctx context.Context, fn func()) {
	select {
	case s.cmds <- fn:
	case <-ctx.Done():
	}
}

// refreshBlocker reports why a follow-up snapshot would never settle: the
// party ended or the session left while the round-trip was in flight.
func (s *Session) refreshBlocker() error {
	if s.engine.Ended() {
		return ErrEnded
	}
	if !s.mounted {
		return ErrLeft
	}
	return nil
}

func (s *Session) wait(ctx context.Context, done chan error) error {
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startRefresh kicks off an asynchronous snapshot fetch. The result is
// tagged with the requested party id and a generation counter so stale
// responses can be recognized and dropped.
func (s *Session) startRefresh(ctx context.Context) {
	s.gen++
	gen := s.gen
	partyID := s.partyID
	go func() {
		p, err := s.api.PartySnapshot(ctx, partyID)
		select {
		case s.snapshots <- snapshotResult{partyID: partyID, gen: gen, party: p, err: err}:
		case <-ctx.Done():
		}
	}()
}

// awaitRefresh registers done to be resolved by the next snapshot result
// and starts the fetch.
func (s *Session) awaitRefresh(ctx context.Context, done chan error) {
	s.waiters = append(s.waiters, done)
	s.startRefresh(ctx)
}

func (s *Session) onSnapshot(ctx context.Context, res snapshotResult) {
	if !s.mounted || res.partyID != s.partyID {
		log.Printf("session: discarding stale snapshot for party %s", res.partyID)
		return
	}
	if res.gen != s.gen {
		// a newer fetch is in flight; its result will settle the waiters
		return
	}

	if res.err != nil {
		// canonical state stays as it was; the failure is retryable
		log.Printf("session: snapshot fetch failed: %v", res.err)
		s.flushWaiters(res.err)
		return
	}

	if s.engine.ApplySnapshot(res.party) != reconcile.OutcomeApplied {
		// the engine refused the snapshot; once the party has ended a late
		// in-flight response must not resurrect pre-end state
		err := errors.New("session: snapshot rejected")
		if s.engine.Ended() {
			err = ErrEnded
		}
		s.flushWaiters(err)
		return
	}
	s.syncViews()
	s.flushWaiters(nil)
}

func (s *Session) onMessage(ctx context.Context, msg push.Message) {
	switch s.engine.ApplyEvent(msg) {
	case reconcile.OutcomeApplied:
		s.syncViews()

	case reconcile.OutcomeRefresh:
		s.startRefresh(ctx)

	case reconcile.OutcomeEnded:
		s.coord.PartyEnded()
		s.flushWaiters(ErrEnded)
		if s.listeners.Ended != nil {
			s.listeners.Ended()
		}

	case reconcile.OutcomeBuffered, reconcile.OutcomeDropped:
		// nothing observable
	}
}

// syncViews recomputes the display list, realigns the playback pointer
// against it and notifies the queue listener.
func (s *Session) syncViews() {
	display := view.Project(s.engine.Canonical(), s.ranked, s.vs)
	s.coord.SyncFromQueue(s.engine.Canonical(), display)
	if s.listeners.QueueChanged != nil {
		s.listeners.QueueChanged(display)
	}
}

func (s *Session) flushWaiters(err error) {
	for _, w := range s.waiters {
		w <- err
	}
	s.waiters = nil
}
