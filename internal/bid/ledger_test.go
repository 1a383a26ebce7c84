package bid

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mostlymisguided/Tuneable-sub000/internal/httpapi"
	"github.com/Mostlymisguided/Tuneable-sub000/internal/party"
)

func bidParty() *party.Party {
	return &party.Party{
		ID:              "p1",
		MinimumBidPence: 33,
		Queue: []party.QueueEntry{
			{Media: party.MediaItem{ID: "mA", Title: "Track A"}, Status: party.StatusQueued},
		},
	}
}

func TestCheck(t *testing.T) {
	t.Run("valid bid passes", func(t *testing.T) {
		l := NewLedger()
		l.SetBalance(1000)
		assert.NoError(t, l.Check(bidParty(), "mA", 50))
	})

	t.Run("below minimum rejected", func(t *testing.T) {
		l := NewLedger()

		err := l.Check(bidParty(), "mA", 20)
		var low *TooLowError
		require.True(t, errors.As(err, &low))
		assert.Equal(t, int64(33), low.MinimumPence)
		assert.Empty(t, l.Records())
	})

	t.Run("known shortfall rejected locally", func(t *testing.T) {
		l := NewLedger()
		l.SetBalance(40)

		err := l.Check(bidParty(), "mA", 50)
		var funds *httpapi.InsufficientFundsError
		require.True(t, errors.As(err, &funds))
		assert.Equal(t, int64(40), funds.CurrentBalancePence)
		assert.Equal(t, int64(50), funds.RequiredAmountPence)
	})

	t.Run("unknown balance defers to the server", func(t *testing.T) {
		l := NewLedger()
		assert.NoError(t, l.Check(bidParty(), "mA", 5000))
	})

	t.Run("unknown entry rejected", func(t *testing.T) {
		l := NewLedger()
		assert.Error(t, l.Check(bidParty(), "nope", 50))
	})
}

func TestSettle(t *testing.T) {
	t.Run("confirmed bid adopts balance and records it", func(t *testing.T) {
		l := NewLedger()
		l.SetBalance(1000)

		require.NoError(t, l.Settle("mA", 50, 950, nil))

		balance, ok := l.Balance()
		assert.True(t, ok)
		assert.Equal(t, int64(950), balance)

		recs := l.Records()
		require.Len(t, recs, 1)
		assert.Equal(t, StatusConfirmed, recs[0].Status)
		assert.Equal(t, int64(50), recs[0].AmountPence)
	})

	t.Run("server shortfall adopts authoritative balance", func(t *testing.T) {
		l := NewLedger()

		err := l.Settle("mA", 50, 0,
			&httpapi.InsufficientFundsError{CurrentBalancePence: 20, RequiredAmountPence: 50})
		var funds *httpapi.InsufficientFundsError
		require.True(t, errors.As(err, &funds))

		balance, ok := l.Balance()
		assert.True(t, ok)
		assert.Equal(t, int64(20), balance)

		recs := l.Records()
		require.Len(t, recs, 1)
		assert.Equal(t, StatusRejected, recs[0].Status)
	})

	t.Run("transient failure leaves prior state untouched", func(t *testing.T) {
		l := NewLedger()
		l.SetBalance(1000)

		err := l.Settle("mA", 50, 0,
			&httpapi.TransientError{Op: "POST", Err: errors.New("timeout")})
		assert.True(t, httpapi.IsTransient(err))
		assert.Empty(t, l.Records())

		balance, _ := l.Balance()
		assert.Equal(t, int64(1000), balance)
	})
}
