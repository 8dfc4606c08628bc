package valuation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"maptrack/internal/snapshot"
)

// DefaultTimeout bounds a single pricing request.
const DefaultTimeout = 10 * time.Second

// Client resolves item values against a remote pricing endpoint.
type Client struct {
	endpoint string
	league   string
	http     *http.Client
	logger   *slog.Logger
}

// NewClient creates a pricing client. An empty timeout falls back to
// DefaultTimeout.
func NewClient(endpoint, league string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint: endpoint,
		league:   league,
		http:     &http.Client{Timeout: timeout},
		logger:   logger.With("component", "valuation"),
	}
}

type priceRequest struct {
	League string       `json:"league"`
	Items  []priceQuery `json:"items"`
}

type priceQuery struct {
	Name      string `json:"name"`
	BaseType  string `json:"baseType,omitempty"`
	StackSize int    `json:"stackSize,omitempty"`
}

type priceResponse struct {
	Prices []priceEntry `json:"prices"`
}

// priceEntry mirrors one resolved item. Null values mean the vendor could
// not resolve the item; they normalize to zero, not to an error.
type priceEntry struct {
	Chaos    *float64 `json:"chaos"`
	Exalted  *float64 `json:"exalted"`
	Category string   `json:"category,omitempty"`
}

// Value resolves unit values for the given items and returns totals plus
// the top-3 ranking. Items the vendor cannot resolve carry zero values.
func (c *Client) Value(ctx context.Context, items []snapshot.ItemRecord) (*Result, error) {
	if len(items) == 0 {
		return Finalize(nil), nil
	}

	req := priceRequest{League: c.league, Items: make([]priceQuery, len(items))}
	for i, it := range items {
		req.Items[i] = priceQuery{
			Name:      it.DisplayName(),
			BaseType:  it.BaseType,
			StackSize: it.StackSize,
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "maptrack/valuation")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("valuation endpoint non-200: " + resp.Status)
	}

	var out priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	values := make([]ItemValue, len(items))
	for i, it := range items {
		iv := ItemValue{Item: it}
		if i < len(out.Prices) {
			p := out.Prices[i]
			if p.Chaos != nil {
				iv.ChaosEach = *p.Chaos
			}
			if p.Exalted != nil {
				iv.ExaltedEach = *p.Exalted
			}
			if p.Category != "" {
				iv.Category = Category(p.Category)
			}
		}
		if iv.Category == "" {
			iv.Category = Categorize(it.Name, it.BaseType)
		}
		values[i] = iv
	}
	res := Finalize(values)
	c.logger.Debug("valuated items",
		"items", len(items),
		"total_exalted", res.TotalExalted,
		"total_chaos", res.TotalChaos,
	)
	return res, nil
}
