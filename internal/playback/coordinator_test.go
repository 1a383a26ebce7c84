package playback

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Mostlymisguided/Tuneable-sub000/internal/party"
)

type MockSkipper struct {
	mock.Mock
}

func (m *MockSkipper) SkipNext(ctx context.Context, partyID string) error {
	return m.Called(ctx, partyID).Error(0)
}

func (m *MockSkipper) SkipPrevious(ctx context.Context, partyID string) error {
	return m.Called(ctx, partyID).Error(0)
}

func playbackParty(playing string, queued ...string) *party.Party {
	p := &party.Party{ID: "p1"}
	if playing != "" {
		p.Queue = append(p.Queue, party.QueueEntry{
			Media: party.MediaItem{ID: playing}, Status: party.StatusPlaying,
		})
	}
	for _, id := range queued {
		p.Queue = append(p.Queue, party.QueueEntry{
			Media: party.MediaItem{ID: id}, Status: party.StatusQueued,
		})
	}
	return p
}

func newTestCoordinator() (*Coordinator, *int) {
	changes := 0
	c := NewCoordinator("p1", nil, func(ctx context.Context) error { return nil })
	c.OnChange = func(string, Pointer) { changes++ }
	return c, &changes
}

func sync(c *Coordinator, p *party.Party) {
	var display []party.QueueEntry
	if p != nil {
		display = p.Queued()
	}
	c.SyncFromQueue(p, display)
}

func TestSyncFromQueue(t *testing.T) {
	t.Run("playing entry wins with autoplay", func(t *testing.T) {
		c, _ := newTestCoordinator()
		sync(c, playbackParty("m1", "m2", "m3"))

		assert.Equal(t, StatePlaying, c.State())
		assert.Equal(t, "m1", c.Pointer().MediaID)
		assert.True(t, c.Pointer().Autoplay)
	})

	t.Run("idempotent for unchanged canonical state", func(t *testing.T) {
		c, changes := newTestCoordinator()
		p := playbackParty("m1", "m2")

		sync(c, p)
		require.Equal(t, 1, *changes)

		sync(c, p)
		sync(c, p.Clone())
		assert.Equal(t, 1, *changes, "resync with same state must not re-trigger autoplay")
	})

	t.Run("nothing playing loads queue head without autoplay", func(t *testing.T) {
		c, _ := newTestCoordinator()
		sync(c, playbackParty("", "m2", "m3"))

		assert.Equal(t, StateLoaded, c.State())
		assert.Equal(t, "m2", c.Pointer().MediaID)
		assert.Equal(t, 0, c.Pointer().Index)
		assert.False(t, c.Pointer().Autoplay)
	})

	t.Run("index follows the display list", func(t *testing.T) {
		c, _ := newTestCoordinator()
		p := playbackParty("", "m2", "m3")

		// a filter hides m2: the displayed head is m3 at index 0
		c.SyncFromQueue(p, p.Queued()[1:])
		assert.Equal(t, StateLoaded, c.State())
		assert.Equal(t, "m3", c.Pointer().MediaID)
		assert.Equal(t, 0, c.Pointer().Index)
	})

	t.Run("current item hidden by the filter keeps playing at index -1", func(t *testing.T) {
		c, _ := newTestCoordinator()
		p := playbackParty("", "m2", "m3")

		sync(c, p)
		require.Equal(t, "m2", c.Pointer().MediaID)

		// m2 is still queued but no longer displayed
		c.SyncFromQueue(p, p.Queued()[1:])
		assert.Equal(t, "m2", c.Pointer().MediaID, "current item survives the filter")
		assert.Equal(t, -1, c.Pointer().Index)

		c.SyncFromQueue(p, p.Queued())
		assert.Equal(t, 0, c.Pointer().Index, "index realigns when the filter lifts")
	})

	t.Run("empty queued set empties the pointer", func(t *testing.T) {
		c, _ := newTestCoordinator()
		sync(c, playbackParty("", "m2"))
		require.Equal(t, StateLoaded, c.State())

		sync(c, playbackParty(""))
		assert.Equal(t, StateEmpty, c.State())
		assert.Equal(t, Pointer{}, c.Pointer())
	})

	t.Run("paused survives resync with same current item", func(t *testing.T) {
		c, _ := newTestCoordinator()
		p := playbackParty("m1", "m2")
		sync(c, p)
		require.NoError(t, c.Pause())

		sync(c, p)
		assert.Equal(t, StatePaused, c.State())
	})

	t.Run("nil party empties the pointer", func(t *testing.T) {
		c, _ := newTestCoordinator()
		sync(c, playbackParty("m1"))
		sync(c, nil)
		assert.Equal(t, StateEmpty, c.State())
	})
}

func TestPlayPause(t *testing.T) {
	c, _ := newTestCoordinator()

	assert.Error(t, c.Play(), "cannot play from empty")
	assert.Error(t, c.Pause(), "cannot pause from empty")

	sync(c, playbackParty("", "m1"))
	require.Equal(t, StateLoaded, c.State())

	require.NoError(t, c.Play())
	assert.Equal(t, StatePlaying, c.State())

	require.NoError(t, c.Pause())
	assert.Equal(t, StatePaused, c.State())

	require.NoError(t, c.Play())
	assert.Equal(t, StatePlaying, c.State())
}

func TestPartyEnded(t *testing.T) {
	c, _ := newTestCoordinator()
	sync(c, playbackParty("m1", "m2"))
	require.Equal(t, StatePlaying, c.State())

	c.PartyEnded()
	assert.Equal(t, StateEmpty, c.State())
	assert.Equal(t, Pointer{}, c.Pointer())
}

func TestSkips(t *testing.T) {
	ctx := context.Background()

	t.Run("skip next mutates then reloads", func(t *testing.T) {
		api := new(MockSkipper)
		api.On("SkipNext", ctx, "p1").Return(nil)

		reloaded := false
		c := NewCoordinator("p1", api, func(ctx context.Context) error {
			reloaded = true
			return nil
		})

		require.NoError(t, c.SkipNext(ctx))
		assert.True(t, reloaded, "skip must re-run the full load pipeline")
		api.AssertExpectations(t)
	})

	t.Run("failed skip does not reload", func(t *testing.T) {
		api := new(MockSkipper)
		api.On("SkipPrevious", ctx, "p1").Return(errors.New("boom"))

		reloaded := false
		c := NewCoordinator("p1", api, func(ctx context.Context) error {
			reloaded = true
			return nil
		})

		assert.Error(t, c.SkipPrevious(ctx))
		assert.False(t, reloaded)
	})
}
