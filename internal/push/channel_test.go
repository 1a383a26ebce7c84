package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsServer serves frames from the frames channel to every connection it
// accepts, one connection at a time.
func wsServer(t *testing.T, frames chan []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for frame := range frames {
			if frame == nil {
				return // drop the connection
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestChannel_DeliversInOrder(t *testing.T) {
	frames := make(chan []byte, 8)
	server := wsServer(t, frames)
	defer server.Close()

	ch := NewChannel(wsURL(server))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	frames <- []byte(`{"type":"JOIN","partyId":"p1","userId":"u1"}`)
	frames <- []byte(`{"type":"MEDIA_STARTED","partyId":"p1","mediaId":"m1"}`)

	msg := <-ch.Messages()
	assert.Equal(t, TypeJoin, msg.Type)

	msg = <-ch.Messages()
	assert.Equal(t, TypeMediaStarted, msg.Type)
	assert.Equal(t, "m1", msg.MediaID)
}

func TestChannel_MalformedFrameDoesNotBreakTheStream(t *testing.T) {
	frames := make(chan []byte, 8)
	server := wsServer(t, frames)
	defer server.Close()

	ch := NewChannel(wsURL(server))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	frames <- []byte(`{not json`)
	frames <- []byte(`{"type":"NO_SUCH_TYPE","partyId":"p1"}`)
	frames <- []byte(`{"type":"MEDIA_VETOED","partyId":"p1","mediaId":"m2","vetoedBy":"host"}`)

	select {
	case msg := <-ch.Messages():
		assert.Equal(t, TypeMediaVetoed, msg.Type)
		assert.Equal(t, "host", msg.VetoedBy)
	case <-time.After(2 * time.Second):
		t.Fatal("message after malformed frames never arrived")
	}
}

func TestChannel_Reconnects(t *testing.T) {
	frames := make(chan []byte, 8)
	server := wsServer(t, frames)
	defer server.Close()

	ch := NewChannel(wsURL(server))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	frames <- []byte(`{"type":"JOIN","partyId":"p1"}`)
	require.Equal(t, TypeJoin, (<-ch.Messages()).Type)

	// kill the connection; the channel should dial again and keep going
	frames <- nil
	frames <- []byte(`{"type":"PARTY_ENDED","partyId":"p1"}`)

	select {
	case msg := <-ch.Messages():
		assert.Equal(t, TypePartyEnded, msg.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("no message after reconnect")
	}
}

func TestChannel_ClosesOnContextCancel(t *testing.T) {
	frames := make(chan []byte)
	server := wsServer(t, frames)
	defer server.Close()

	ch := NewChannel(wsURL(server))
	ctx, cancel := context.WithCancel(context.Background())
	go ch.Run(ctx)

	cancel()

	select {
	case _, ok := <-ch.Messages():
		assert.False(t, ok, "messages channel should close")
	case <-time.After(2 * time.Second):
		t.Fatal("messages channel never closed")
	}
}

func TestDecode(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		m, err := Decode([]byte(`{"type":"UPDATE_QUEUE","partyId":"p1","queue":[{"mediaId":"m1","aggregateBidPence":50,"bidCount":1}]}`))
		require.NoError(t, err)
		assert.Equal(t, TypeUpdateQueue, m.Type)
		require.Len(t, m.Queue, 1)
		assert.Equal(t, int64(50), m.Queue[0].AggregateBidPence)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := Decode([]byte(`{"type":"WAT"}`))
		var me *MalformedError
		assert.ErrorAs(t, err, &me)
	})

	t.Run("missing type", func(t *testing.T) {
		_, err := Decode([]byte(`{"partyId":"p1"}`))
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := Decode([]byte(`}{`))
		assert.Error(t, err)
	})
}
