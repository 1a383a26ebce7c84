// Package httpapi is the REST client for the party service: snapshots,
// ranked views, bids and the host-only queue mutations.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Mostlymisguided/Tuneable-sub000/internal/party"
)

// Client talks to one party service. UserID is forwarded on every request;
// the gateway in front of the service translates it into an auth context.
type Client struct {
	BaseURL string
	UserID  string
	HTTP    *http.Client
}

func NewClient(baseURL, userID string) *Client {
	return &Client{
		BaseURL: baseURL,
		UserID:  userID,
		HTTP:    http.DefaultClient,
	}
}

// PartySnapshot fetches the full authoritative queue for a party.
func (c *Client) PartySnapshot(ctx context.Context, partyID string) (*party.Party, error) {
	var p party.Party
	path := fmt.Sprintf("/parties/%s", url.PathEscape(partyID))
	if err := c.do(ctx, http.MethodGet, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// RankedMedia fetches the server-computed time-windowed ranking. Local
// caches cannot recompute window-scoped aggregates, so this is the only
// source for non-all-time orderings.
func (c *Client) RankedMedia(ctx context.Context, partyID, window string) ([]party.QueueEntry, error) {
	var res struct {
		Entries []party.QueueEntry `json:"entries"`
	}
	path := fmt.Sprintf("/parties/%s/ranked?window=%s",
		url.PathEscape(partyID), url.QueryEscape(window))
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return res.Entries, nil
}

// PlaceBid submits a bid and returns the caller's updated wallet balance.
// The server is authoritative on funds; a 402 comes back as
// *InsufficientFundsError with the exact shortfall.
func (c *Client) PlaceBid(ctx context.Context, partyID, mediaID string, amountPence int64) (int64, error) {
	body := map[string]any{"amountPence": amountPence}
	var res struct {
		UpdatedBalancePence int64 `json:"updatedBalancePence"`
	}
	path := fmt.Sprintf("/parties/%s/media/%s/bids",
		url.PathEscape(partyID), url.PathEscape(mediaID))
	if err := c.do(ctx, http.MethodPost, path, body, &res); err != nil {
		return 0, err
	}
	return res.UpdatedBalancePence, nil
}

// Veto removes a queued item from the active queue (host only).
func (c *Client) Veto(ctx context.Context, partyID, mediaID string) error {
	path := fmt.Sprintf("/parties/%s/media/%s/veto",
		url.PathEscape(partyID), url.PathEscape(mediaID))
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// Unveto puts a vetoed item back in the queue (host only).
func (c *Client) Unveto(ctx context.Context, partyID, mediaID string) error {
	path := fmt.Sprintf("/parties/%s/media/%s/unveto",
		url.PathEscape(partyID), url.PathEscape(mediaID))
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// SkipNext asks the server to advance playback (host only). Which entry
// plays next depends on ranking rules the client does not replicate.
func (c *Client) SkipNext(ctx context.Context, partyID string) error {
	return c.do(ctx, http.MethodPost,
		fmt.Sprintf("/parties/%s/skip-next", url.PathEscape(partyID)), nil, nil)
}

// SkipPrevious asks the server to step playback back (host only).
func (c *Client) SkipPrevious(ctx context.Context, partyID string) error {
	return c.do(ctx, http.MethodPost,
		fmt.Sprintf("/parties/%s/skip-previous", url.PathEscape(partyID)), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-User-Id", c.UserID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &TransientError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &TransientError{Op: method + " " + path, Err: err}
		}
		return nil

	case resp.StatusCode == http.StatusPaymentRequired:
		var funds InsufficientFundsError
		if err := json.NewDecoder(resp.Body).Decode(&funds); err != nil {
			return &TransientError{Op: method + " " + path, Err: err}
		}
		return &funds

	case resp.StatusCode == http.StatusGone:
		return ErrPartyEnded

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = fmt.Sprintf("%s %s failed: %d", method, path, resp.StatusCode)
		}
		return &ValidationError{Msg: e.Error}

	default:
		return &TransientError{
			Op:  method + " " + path,
			Err: fmt.Errorf("server returned %d", resp.StatusCode),
		}
	}
}
