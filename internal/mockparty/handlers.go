package mockparty

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Mostlymisguided/Tuneable-sub000/internal/party"
	"github.com/Mostlymisguided/Tuneable-sub000/internal/push"
)

// handleSnapshot serves the authoritative full queue.
// GET /parties/{id}
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.Snapshot(chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleRanked serves the server-computed time-windowed leaderboard.
// GET /parties/{id}/ranked?window=week
func (s *Server) handleRanked(w http.ResponseWriter, r *http.Request) {
	window := r.URL.Query().Get("window")
	switch window {
	case party.WindowAllTime, party.WindowDay, party.WindowWeek, party.WindowMonth:
	default:
		writeError(w, http.StatusBadRequest, "unknown window")
		return
	}
	entries, err := s.store.Ranked(chi.URLParam(r, "id"), window, time.Now().UTC())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleBid places a bid, authoritative on funds.
// POST /parties/{id}/media/{mediaId}/bids
func (s *Server) handleBid(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	partyID := chi.URLParam(r, "id")
	mediaID := chi.URLParam(r, "mediaId")

	var body struct {
		AmountPence int64 `json:"amountPence"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.AmountPence <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	balance, err := s.store.PlaceBid(partyID, mediaID, userID, body.AmountPence)
	if err != nil {
		var short *shortfallError
		if errors.As(err, &short) {
			writeJSON(w, http.StatusPaymentRequired, map[string]any{
				"error":               "insufficient funds",
				"currentBalancePence": short.current,
				"requiredAmountPence": short.required,
			})
			return
		}
		writeStoreError(w, err)
		return
	}

	s.publish(r.Context(), push.Message{
		Type:    push.TypeUpdateQueue,
		PartyID: partyID,
		Queue:   s.queueDeltas(partyID),
	})

	writeJSON(w, http.StatusOK, map[string]int64{"updatedBalancePence": balance})
}

// handleVeto parks a queued entry (host only).
// POST /parties/{id}/media/{mediaId}/veto
func (s *Server) handleVeto(w http.ResponseWriter, r *http.Request) {
	partyID := chi.URLParam(r, "id")
	mediaID := chi.URLParam(r, "mediaId")
	userID := r.Header.Get("X-User-Id")

	if !s.requireHost(w, partyID, userID) {
		return
	}

	now := time.Now().UTC()
	if err := s.store.Apply(partyID, mediaID, party.ActionVeto, party.Meta{At: now, VetoedBy: userID}); err != nil {
		writeStoreError(w, err)
		return
	}

	s.publish(r.Context(), push.Message{
		Type:     push.TypeMediaVetoed,
		PartyID:  partyID,
		MediaID:  mediaID,
		VetoedAt: &now,
		VetoedBy: userID,
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleUnveto restores a vetoed entry (host only). There is no dedicated
// push type for a restore; the queue refresh trigger covers it.
// POST /parties/{id}/media/{mediaId}/unveto
func (s *Server) handleUnveto(w http.ResponseWriter, r *http.Request) {
	partyID := chi.URLParam(r, "id")
	mediaID := chi.URLParam(r, "mediaId")
	userID := r.Header.Get("X-User-Id")

	if !s.requireHost(w, partyID, userID) {
		return
	}

	if err := s.store.Apply(partyID, mediaID, party.ActionRestore, party.Meta{}); err != nil {
		writeStoreError(w, err)
		return
	}

	s.publish(r.Context(), push.Message{
		Type:    push.TypeUpdateQueue,
		PartyID: partyID,
		Queue:   s.queueDeltas(partyID),
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleSkipNext completes the playing entry and starts the top-bid queued
// entry (host only).
// POST /parties/{id}/skip-next
func (s *Server) handleSkipNext(w http.ResponseWriter, r *http.Request) {
	partyID := chi.URLParam(r, "id")
	userID := r.Header.Get("X-User-Id")

	if !s.requireHost(w, partyID, userID) {
		return
	}
	if err := s.advance(r, partyID); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// advance implements the shared complete-then-start step used by skips and
// the autoplay ticker.
func (s *Server) advance(r *http.Request, partyID string) error {
	ctx := s.ctx
	if r != nil {
		ctx = r.Context()
	}

	if playing, ok := s.store.Playing(partyID); ok {
		now := time.Now().UTC()
		if err := s.store.Apply(partyID, playing, party.ActionComplete, party.Meta{At: now}); err != nil {
			return err
		}
		s.publish(ctx, push.Message{
			Type:        push.TypeMediaCompleted,
			PartyID:     partyID,
			MediaID:     playing,
			CompletedAt: &now,
		})
	}

	next, err := s.store.NextUp(partyID)
	if err != nil {
		// nothing left to play; the queue simply drains
		return nil
	}
	now := time.Now().UTC()
	if err := s.store.Apply(partyID, next, party.ActionStart, party.Meta{At: now}); err != nil {
		return err
	}
	s.publish(ctx, push.Message{
		Type:     push.TypeMediaStarted,
		PartyID:  partyID,
		MediaID:  next,
		PlayedAt: &now,
	})
	return nil
}

// handleSkipPrevious requeues the most recently played entry and starts it
// (host only). Clients cannot express played->queued, so the push side is
// just a refresh trigger.
// POST /parties/{id}/skip-previous
func (s *Server) handleSkipPrevious(w http.ResponseWriter, r *http.Request) {
	partyID := chi.URLParam(r, "id")
	userID := r.Header.Get("X-User-Id")

	if !s.requireHost(w, partyID, userID) {
		return
	}

	last, ok := s.store.LastPlayed(partyID)
	if !ok {
		writeError(w, http.StatusConflict, "nothing was played before this")
		return
	}

	if playing, isPlaying := s.store.Playing(partyID); isPlaying {
		if err := s.store.Apply(partyID, playing, party.ActionComplete, party.Meta{}); err != nil {
			writeStoreError(w, err)
			return
		}
	}
	if err := s.store.Requeue(partyID, last); err != nil {
		writeStoreError(w, err)
		return
	}
	now := time.Now().UTC()
	if err := s.store.Apply(partyID, last, party.ActionStart, party.Meta{At: now}); err != nil {
		writeStoreError(w, err)
		return
	}

	s.publish(r.Context(), push.Message{
		Type:    push.TypeUpdateQueue,
		PartyID: partyID,
		Queue:   s.queueDeltas(partyID),
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleEnd terminates the party (host only).
// POST /parties/{id}/end
func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	partyID := chi.URLParam(r, "id")
	userID := r.Header.Get("X-User-Id")

	if !s.requireHost(w, partyID, userID) {
		return
	}
	if err := s.store.End(partyID); err != nil {
		writeStoreError(w, err)
		return
	}
	s.publish(r.Context(), push.Message{
		Type:    push.TypePartyEnded,
		PartyID: partyID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireHost(w http.ResponseWriter, partyID, userID string) bool {
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return false
	}
	host, err := s.store.HostID(partyID)
	if err != nil {
		writeStoreError(w, err)
		return false
	}
	if userID != host {
		writeError(w, http.StatusForbidden, "host only")
		return false
	}
	return true
}

// queueDeltas builds the status-less UPDATE_QUEUE payload.
func (s *Server) queueDeltas(partyID string) []push.QueueDelta {
	p, err := s.store.Snapshot(partyID)
	if err != nil {
		return nil
	}
	out := make([]push.QueueDelta, 0, len(p.Queue))
	for _, e := range p.Queue {
		out = append(out, push.QueueDelta{
			MediaID:           e.Media.ID,
			AggregateBidPence: e.AggregateBidPence,
			BidCount:          e.BidCount,
		})
	}
	return out
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBelowMinimum):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errPartyNotFound), errors.Is(err, errMediaNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errPartyEnded):
		writeError(w, http.StatusGone, err.Error())
	default:
		var te *party.TransitionError
		if errors.As(err, &te) {
			writeError(w, http.StatusConflict, te.Error())
			return
		}
		log.Printf("mock-party: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
