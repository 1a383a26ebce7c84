// Package bid records bid submissions and their outcomes. Ranking depends
// on cross-party server aggregation, so a submitted bid never mutates the
// local aggregate: confirmation triggers a snapshot refresh instead.
package bid

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Mostlymisguided/Tuneable-sub000/internal/httpapi"
	"github.com/Mostlymisguided/Tuneable-sub000/internal/party"
)

// Submission statuses.
const (
	StatusConfirmed = "confirmed"
	StatusRejected  = "rejected"
)

// Record is one bid submission. Records are append-only.
type Record struct {
	ID          string
	MediaID     string
	AmountPence int64
	Status      string
	CreatedAt   time.Time
}

// TooLowError rejects a bid below the party minimum. Raised locally, before
// any network call.
type TooLowError struct {
	AmountPence  int64
	MinimumPence int64
}

func (e *TooLowError) Error() string {
	return fmt.Sprintf("bid of %dp is below the party minimum of %dp",
		e.AmountPence, e.MinimumPence)
}

// Ledger tracks this client's bids for one party, plus the wallet balance
// the server last reported. The server round-trip happens between Check and
// Settle, outside the ledger. Not safe for concurrent use; it lives on the
// session loop.
type Ledger struct {
	records      []Record
	balancePence int64
	balanceKnown bool
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Balance returns the last server-reported wallet balance. ok is false
// until the server has reported one.
func (l *Ledger) Balance() (pence int64, ok bool) {
	return l.balancePence, l.balanceKnown
}

// SetBalance records a balance learned outside a bid (initial wallet load).
func (l *Ledger) SetBalance(pence int64) {
	l.balancePence = pence
	l.balanceKnown = true
}

// Records returns the submission history, oldest first.
func (l *Ledger) Records() []Record {
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Check applies the local rejection rules before a bid goes anywhere: the
// entry must exist, the amount must meet the party minimum, and a known
// balance must cover it. Amounts below the minimum never reach the network;
// an unknown balance defers to the server, which stays authoritative on
// funds either way.
func (l *Ledger) Check(p *party.Party, mediaID string, amountPence int64) error {
	if p.Entry(mediaID) == nil {
		return fmt.Errorf("party %s has no entry for media %s", p.ID, mediaID)
	}
	if amountPence < p.MinimumBidPence {
		return &TooLowError{AmountPence: amountPence, MinimumPence: p.MinimumBidPence}
	}
	if l.balanceKnown && amountPence > l.balancePence {
		return &httpapi.InsufficientFundsError{
			CurrentBalancePence: l.balancePence,
			RequiredAmountPence: amountPence,
		}
	}
	return nil
}

// Settle folds the server's answer to a submitted bid into the ledger. A
// confirmed bid adopts the updated balance; a server-side shortfall adopts
// the authoritative balance and records the rejection; transient and
// validation failures leave everything untouched. Aggregates are never
// mutated here: the caller refreshes the queue via snapshot.
func (l *Ledger) Settle(mediaID string, amountPence, updatedBalance int64, err error) error {
	if err != nil {
		var funds *httpapi.InsufficientFundsError
		if errors.As(err, &funds) {
			l.SetBalance(funds.CurrentBalancePence)
			l.append(mediaID, amountPence, StatusRejected)
		}
		return err
	}
	l.SetBalance(updatedBalance)
	l.append(mediaID, amountPence, StatusConfirmed)
	return nil
}

func (l *Ledger) append(mediaID string, amountPence int64, status string) {
	l.records = append(l.records, Record{
		ID:          uuid.NewString(),
		MediaID:     mediaID,
		AmountPence: amountPence,
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	})
}
