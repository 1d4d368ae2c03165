package api

import (
	"context"

	"github.com/etnz/loandash"
)

// FetchPortfolio returns the masters document. token may be empty against a
// public deployment.
func (c *Client) FetchPortfolio(ctx context.Context, token string) (*loandash.Snapshot, error) {
	var s *loandash.Snapshot
	if err := c.getJSON(ctx, "fetch_portfolio", "/api/masters", token, &s); err != nil {
		return nil, err
	}
	return s, nil
}

// Health is the backend's root document.
type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// Health checks that the backend is up.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	err := c.getJSON(ctx, "health", "/", "", &h)
	return h, err
}
