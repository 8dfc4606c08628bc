// Package fetch implements the remote inventory source behind the
// snapshot service: one authenticated GET per call, no retries. Failures
// propagate to the snapshot layer untouched.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"maptrack/internal/snapshot"
)

// DefaultTimeout bounds a single inventory request.
const DefaultTimeout = 15 * time.Second

// Client fetches the current item collection for a subject.
type Client struct {
	base   string
	league string
	http   *http.Client
}

// NewClient creates an inventory client against the given API base URL.
func NewClient(base, league string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		base:   base,
		league: league,
		http:   &http.Client{Timeout: timeout},
	}
}

type inventoryResponse struct {
	Items []snapshot.ItemRecord `json:"items"`
}

// FetchInventory implements snapshot.Fetcher. The credential travels as a
// session cookie, the way the upstream trade API expects it.
func (c *Client) FetchInventory(ctx context.Context, subjectID, credential string) ([]snapshot.ItemRecord, error) {
	if credential == "" {
		return nil, errors.New("fetch: missing credential")
	}

	q := url.Values{}
	q.Set("league", c.league)
	q.Set("accountName", subjectID)
	q.Set("tabIndex", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "maptrack/fetch")
	req.AddCookie(&http.Cookie{Name: "POESESSID", Value: credential})

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: inventory endpoint returned %s", resp.Status)
	}

	var out inventoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("fetch: decode inventory: %w", err)
	}
	return out.Items, nil
}
