package mockparty

import (
	"context"
	"log"
	"time"
)

// StartTicker runs the autoplay worker: when a playing entry outlasts its
// duration the party advances to the next queued entry, exactly as if the
// host had skipped.
func (s *Server) StartTicker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				for _, partyID := range s.store.Expired(time.Now().UTC()) {
					log.Printf("mock-party: ticker advancing party %s", partyID)
					if err := s.advance(nil, partyID); err != nil {
						log.Printf("mock-party: ticker advance %s: %v", partyID, err)
					}
				}
			}
		}
	}()
}
