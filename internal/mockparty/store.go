package mockparty

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Mostlymisguided/Tuneable-sub000/internal/party"
)

// DefaultBalancePence seeds wallets the first time a user shows up.
const DefaultBalancePence int64 = 1000

var (
	errPartyNotFound = errors.New("party not found")
	errPartyEnded    = errors.New("party has ended")
	errMediaNotFound = errors.New("media not found")
	errBelowMinimum  = errors.New("amount is below the party minimum")
)

type partyState struct {
	party          *party.Party
	bids           []party.Bid
	ended          bool
	playingSince   time.Time
	playingMediaID string
}

// Store holds every party the mock service serves, in memory. The real
// system keeps this behind the playlist and vote services; for local
// development one mutex is plenty.
type Store struct {
	mu      sync.Mutex
	parties map[string]*partyState
	wallets map[string]int64
}

func NewStore() *Store {
	return &Store{
		parties: make(map[string]*partyState),
		wallets: make(map[string]int64),
	}
}

// AddParty registers a party. Used by seeding and tests.
func (s *Store) AddParty(p *party.Party) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parties[p.ID] = &partyState{party: p}
}

func (s *Store) state(partyID string) (*partyState, error) {
	ps, ok := s.parties[partyID]
	if !ok {
		return nil, errPartyNotFound
	}
	return ps, nil
}

// Snapshot returns a deep copy of the party.
func (s *Store) Snapshot(partyID string) (*party.Party, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, err := s.state(partyID)
	if err != nil {
		return nil, err
	}
	if ps.ended {
		return nil, errPartyEnded
	}
	return ps.party.Clone(), nil
}

// Balance returns the user's wallet, seeding it on first sight.
func (s *Store) Balance(userID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balanceLocked(userID)
}

func (s *Store) balanceLocked(userID string) int64 {
	if _, ok := s.wallets[userID]; !ok {
		s.wallets[userID] = DefaultBalancePence
	}
	return s.wallets[userID]
}

// PlaceBid validates the amount and funds, appends the bid and recomputes
// the entry's aggregate as the sum over its bids, all under one lock so the
// checks and the debit cannot interleave. Returns the updated balance.
func (s *Store) PlaceBid(partyID, mediaID, userID string, amountPence int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ps, err := s.state(partyID)
	if err != nil {
		return 0, err
	}
	if ps.ended {
		return 0, errPartyEnded
	}
	if amountPence < ps.party.MinimumBidPence {
		return 0, errBelowMinimum
	}
	entry := ps.party.Entry(mediaID)
	if entry == nil {
		return 0, errMediaNotFound
	}

	balance := s.balanceLocked(userID)
	if amountPence > balance {
		return 0, &shortfallError{current: balance, required: amountPence}
	}

	ps.bids = append(ps.bids, party.Bid{
		ID:          uuid.NewString(),
		MediaID:     mediaID,
		UserID:      userID,
		AmountPence: amountPence,
		CreatedAt:   time.Now().UTC(),
	})

	// aggregate is always a sum over the append-only bid list
	var total int64
	var count int
	for _, b := range ps.bids {
		if b.MediaID == mediaID {
			total += b.AmountPence
			count++
		}
	}
	entry.AggregateBidPence = total
	entry.BidCount = count

	s.wallets[userID] = balance - amountPence
	return s.wallets[userID], nil
}

// Ranked returns the queued entries ordered by bid total within the window,
// highest first; ties keep canonical order.
func (s *Store) Ranked(partyID, window string, now time.Time) ([]party.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ps, err := s.state(partyID)
	if err != nil {
		return nil, err
	}
	if ps.ended {
		return nil, errPartyEnded
	}

	cutoff := windowCutoff(window, now)
	totals := make(map[string]int64)
	for _, b := range ps.bids {
		if b.CreatedAt.Before(cutoff) {
			continue
		}
		totals[b.MediaID] += b.AmountPence
	}

	queued := ps.party.Clone().Queued()
	// stable selection sort keeps canonical order between equals
	for i := 0; i < len(queued); i++ {
		best := i
		for j := i + 1; j < len(queued); j++ {
			if totals[queued[j].Media.ID] > totals[queued[best].Media.ID] {
				best = j
			}
		}
		if best != i {
			moved := queued[best]
			copy(queued[i+1:best+1], queued[i:best])
			queued[i] = moved
		}
	}
	return queued, nil
}

func windowCutoff(window string, now time.Time) time.Time {
	switch window {
	case party.WindowDay:
		return now.Add(-24 * time.Hour)
	case party.WindowWeek:
		return now.Add(-7 * 24 * time.Hour)
	case party.WindowMonth:
		return now.Add(-30 * 24 * time.Hour)
	default:
		return time.Time{}
	}
}

// Apply runs a status transition under the store lock, tracking playback
// bookkeeping for the autoplay ticker.
func (s *Store) Apply(partyID, mediaID string, action party.Action, meta party.Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ps, err := s.state(partyID)
	if err != nil {
		return err
	}
	if ps.ended {
		return errPartyEnded
	}
	if err := party.Apply(ps.party, mediaID, action, meta); err != nil {
		return err
	}
	if action == party.ActionStart {
		ps.playingMediaID = mediaID
		ps.playingSince = meta.At
	} else if ps.playingMediaID == mediaID {
		ps.playingMediaID = ""
	}
	return nil
}

// HostID reports the party host for authorization checks.
func (s *Store) HostID(partyID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, err := s.state(partyID)
	if err != nil {
		return "", err
	}
	return ps.party.HostID, nil
}

// NextUp picks the entry a skip should start: the queued entry with the
// highest all-time aggregate, canonical order breaking ties.
func (s *Store) NextUp(partyID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ps, err := s.state(partyID)
	if err != nil {
		return "", err
	}
	var bestID string
	var bestTotal int64 = -1
	for _, e := range ps.party.Queue {
		if e.Status != party.StatusQueued {
			continue
		}
		if e.AggregateBidPence > bestTotal {
			bestID = e.Media.ID
			bestTotal = e.AggregateBidPence
		}
	}
	if bestID == "" {
		return "", errMediaNotFound
	}
	return bestID, nil
}

// Playing returns the currently playing media id, if any.
func (s *Store) Playing(partyID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, err := s.state(partyID)
	if err != nil {
		return "", false
	}
	if p := ps.party.Playing(); p != nil {
		return p.Media.ID, true
	}
	return "", false
}

// LastPlayed returns the most recently completed media id, for
// skip-previous.
func (s *Store) LastPlayed(partyID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, err := s.state(partyID)
	if err != nil {
		return "", false
	}
	var bestID string
	var bestAt time.Time
	for _, e := range ps.party.Queue {
		if e.Status == party.StatusPlayed && e.PlayedAt != nil && e.PlayedAt.After(bestAt) {
			bestID = e.Media.ID
			bestAt = *e.PlayedAt
		}
	}
	return bestID, bestID != ""
}

// Requeue puts a played entry back in the queue. The server can do this
// (skip-previous); clients never transition out of played themselves.
func (s *Store) Requeue(partyID, mediaID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, err := s.state(partyID)
	if err != nil {
		return err
	}
	if ps.ended {
		return errPartyEnded
	}
	e := ps.party.Entry(mediaID)
	if e == nil {
		return errMediaNotFound
	}
	if e.Status != party.StatusPlayed {
		return errMediaNotFound
	}
	e.Status = party.StatusQueued
	e.PlayedAt = nil
	return nil
}

// End marks the party over. Everything after returns errPartyEnded.
func (s *Store) End(partyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, err := s.state(partyID)
	if err != nil {
		return err
	}
	ps.ended = true
	return nil
}

// Join bumps the participant count.
func (s *Store) Join(partyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ps, err := s.state(partyID); err == nil {
		ps.party.Participants++
	}
}

// Expired returns parties whose playing entry has outlasted its duration,
// for the autoplay ticker.
func (s *Store) Expired(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for id, ps := range s.parties {
		if ps.ended || ps.playingMediaID == "" || ps.playingSince.IsZero() {
			continue
		}
		e := ps.party.Entry(ps.playingMediaID)
		if e == nil || e.Media.DurationMs <= 0 {
			continue
		}
		if ps.playingSince.Add(time.Duration(e.Media.DurationMs) * time.Millisecond).Before(now) {
			out = append(out, id)
		}
	}
	return out
}

// shortfallError carries the exact funds gap for the 402 payload.
type shortfallError struct {
	current  int64
	required int64
}

func (e *shortfallError) Error() string { return "insufficient funds" }
