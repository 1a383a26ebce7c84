package party

import (
	"time"
)

// Entry statuses. An entry moves queued -> playing -> played; the host can
// park a queued entry as vetoed and bring it back later.
const (
	StatusQueued  = "queued"
	StatusPlaying = "playing"
	StatusPlayed  = "played"
	StatusVetoed  = "vetoed"
)

// Sort windows for the ranked ("leaderboard") views. Anything other than
// WindowAllTime is computed server-side; clients cannot rebuild windowed
// aggregates from what they hold locally.
const (
	WindowAllTime = "all-time"
	WindowDay     = "day"
	WindowWeek    = "week"
	WindowMonth   = "month"
)

// MediaItem is the immutable catalog record an entry points at. The engine
// only ever reads it.
type MediaItem struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Artists     []string `json:"artists"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	DurationMs  int      `json:"durationMs"`
	CoverArtURL string   `json:"coverArtUrl,omitempty"`
	SourceURL   string   `json:"sourceUrl,omitempty"`
}

// QueueEntry is the party-scoped state of one media item: its lifecycle
// status plus the bid aggregate. There is exactly one entry per
// (party, media) pair.
type QueueEntry struct {
	Media             MediaItem  `json:"media"`
	Status            string     `json:"status"`
	AggregateBidPence int64      `json:"aggregateBidPence"`
	BidCount          int        `json:"bidCount"`
	PlayedAt          *time.Time `json:"playedAt,omitempty"`
	VetoedAt          *time.Time `json:"vetoedAt,omitempty"`
	VetoedBy          string     `json:"vetoedBy,omitempty"`
}

// Bid is append-only: bids are never edited or removed, and an entry's
// aggregate is always the sum over its bids, never maintained by subtraction.
type Bid struct {
	ID          string    `json:"id"`
	MediaID     string    `json:"mediaId"`
	UserID      string    `json:"userId"`
	AmountPence int64     `json:"amountPence"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Party is the root aggregate. The engine mutates its queue but never
// creates or destroys the party itself.
type Party struct {
	ID              string       `json:"id"`
	HostID          string       `json:"hostId"`
	Type            string       `json:"type,omitempty"`
	MinimumBidPence int64        `json:"minimumBidPence"`
	Participants    int          `json:"participants,omitempty"`
	Queue           []QueueEntry `json:"queue"`
}

// Entry returns the queue entry for mediaID, or nil if the party has none.
func (p *Party) Entry(mediaID string) *QueueEntry {
	for i := range p.Queue {
		if p.Queue[i].Media.ID == mediaID {
			return &p.Queue[i]
		}
	}
	return nil
}

// Playing returns the entry currently marked playing, or nil.
func (p *Party) Playing() *QueueEntry {
	for i := range p.Queue {
		if p.Queue[i].Status == StatusPlaying {
			return &p.Queue[i]
		}
	}
	return nil
}

// Queued returns the queued entries in canonical order.
func (p *Party) Queued() []QueueEntry {
	var out []QueueEntry
	for _, e := range p.Queue {
		if e.Status == StatusQueued {
			out = append(out, e)
		}
	}
	return out
}

// Vetoed returns the vetoed entries in canonical order.
func (p *Party) Vetoed() []QueueEntry {
	var out []QueueEntry
	for _, e := range p.Queue {
		if e.Status == StatusVetoed {
			out = append(out, e)
		}
	}
	return out
}

// Clone deep-copies the party so one view's snapshot cannot alias another's.
func (p *Party) Clone() *Party {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Queue = make([]QueueEntry, len(p.Queue))
	copy(cp.Queue, p.Queue)
	for i := range cp.Queue {
		if t := cp.Queue[i].PlayedAt; t != nil {
			tt := *t
			cp.Queue[i].PlayedAt = &tt
		}
		if t := cp.Queue[i].VetoedAt; t != nil {
			tt := *t
			cp.Queue[i].VetoedAt = &tt
		}
	}
	return &cp
}
