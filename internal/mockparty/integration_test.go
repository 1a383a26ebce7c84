package mockparty

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mostlymisguided/Tuneable-sub000/internal/httpapi"
	"github.com/Mostlymisguided/Tuneable-sub000/internal/party"
	"github.com/Mostlymisguided/Tuneable-sub000/internal/push"
	"github.com/Mostlymisguided/Tuneable-sub000/internal/session"
)

// Full pipeline: REST client + websocket push channel + session loop against
// the in-process service.
func TestEngineAgainstMockService(t *testing.T) {
	_, ts := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := httpapi.NewClient(ts.URL, "guest")
	hostAPI := httpapi.NewClient(ts.URL, "demo-host")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?partyId=demo-party&userId=guest"
	channel := push.NewChannel(wsURL)
	go channel.Run(ctx)

	ended := make(chan struct{})
	s := session.New("demo-party", api, channel.Messages(), session.Listeners{
		Ended: func() { close(ended) },
	})
	go s.Run(ctx)
	require.NoError(t, s.Refresh(ctx))

	// read-your-write: bid, then the settled display shows the aggregate
	balance, err := s.PlaceBid(ctx, "demo-m2", 50)
	require.NoError(t, err)
	assert.Equal(t, DefaultBalancePence-50, balance)

	display, err := s.Display(ctx)
	require.NoError(t, err)
	require.Len(t, display, 3)
	var m2 *party.QueueEntry
	for i := range display {
		if display[i].Media.ID == "demo-m2" {
			m2 = &display[i]
		}
	}
	require.NotNil(t, m2)
	assert.Equal(t, int64(50), m2.AggregateBidPence)

	// a bid below minimum never reaches the server
	_, err = s.PlaceBid(ctx, "demo-m2", 10)
	assert.Error(t, err)

	// host starts playback elsewhere; the push event reaches this session
	require.NoError(t, hostAPI.SkipNext(ctx, "demo-party"))
	assert.Eventually(t, func() bool {
		state, ptr, err := s.Playback(ctx)
		return err == nil && state == "playing" && ptr.MediaID == "demo-m2"
	}, 3*time.Second, 10*time.Millisecond, "top-bid entry starts playing via push")

	// host ends the party; the session reaches its terminal state
	require.NoError(t, endParty(ts.URL))
	select {
	case <-ended:
	case <-time.After(3 * time.Second):
		t.Fatal("party end never reached the session")
	}

	_, err = s.PlaceBid(ctx, "demo-m1", 50)
	assert.ErrorIs(t, err, session.ErrEnded)
}

func endParty(baseURL string) error {
	req, err := http.NewRequest(http.MethodPost, baseURL+"/parties/demo-party/end", nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-User-Id", "demo-host")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}
