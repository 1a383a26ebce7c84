package push

import (
	"context"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Channel maintains a websocket to the party service and delivers decoded
// messages in received order on Messages(). It reconnects with capped
// backoff until the context given to Run is cancelled. The channel itself
// never times out an idle connection; liveness is the server's problem.
type Channel struct {
	url      string
	dialer   *websocket.Dialer
	messages chan Message
}

// NewChannel prepares a channel for the given websocket URL. Run must be
// called for messages to flow.
func NewChannel(url string) *Channel {
	return &Channel{
		url:      url,
		dialer:   websocket.DefaultDialer,
		messages: make(chan Message, 64),
	}
}

// Messages is the stream of decoded push messages.
func (c *Channel) Messages() <-chan Message {
	return c.messages
}

// Run connects and reads until ctx is cancelled, reconnecting on any
// transport error. Malformed frames are logged and skipped; the connection
// keeps delivering subsequent messages.
func (c *Channel) Run(ctx context.Context) {
	defer close(c.messages)

	backoff := initialBackoff
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			log.Printf("push: dial %s: %v", c.url, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = initialBackoff

		if !c.readLoop(ctx, conn) {
			return
		}
	}
}

// readLoop reads frames until the connection drops. Returns false when ctx
// is done and the caller should stop reconnecting.
func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) bool {
	defer conn.Close()

	// Unblock ReadMessage when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			log.Printf("push: read: %v", err)
			return true
		}

		msg, err := Decode(data)
		if err != nil {
			log.Printf("push: dropping malformed frame: %v", err)
			continue
		}

		select {
		case c.messages <- msg:
		case <-ctx.Done():
			return false
		}
	}
}
