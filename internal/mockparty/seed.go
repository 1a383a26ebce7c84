package mockparty

import (
	"github.com/Mostlymisguided/Tuneable-sub000/internal/party"
)

// Seed loads a demo party so the service is usable straight after boot.
func Seed(store *Store) {
	store.AddParty(&party.Party{
		ID:              "demo-party",
		HostID:          "demo-host",
		Type:            "public",
		MinimumBidPence: 33,
		Queue: []party.QueueEntry{
			{
				Media: party.MediaItem{
					ID:         "demo-m1",
					Title:      "Rock Anthem",
					Artists:    []string{"The Boulders"},
					Category:   "rock",
					Tags:       []string{"Chill-Vibes", "anthem"},
					DurationMs: 214000,
				},
				Status: party.StatusQueued,
			},
			{
				Media: party.MediaItem{
					ID:         "demo-m2",
					Title:      "Banger One",
					Artists:    []string{"DJ Boom"},
					Category:   "dance",
					Tags:       []string{"party_starter"},
					DurationMs: 187000,
				},
				Status: party.StatusQueued,
			},
			{
				Media: party.MediaItem{
					ID:         "demo-m3",
					Title:      "Lofi Cooldown",
					Artists:    []string{"Beat Maker"},
					Category:   "lofi",
					Tags:       []string{"chill.out"},
					DurationMs: 243000,
				},
				Status: party.StatusQueued,
			},
		},
	})
}
