// Package signals reads crowd signals (hourly popularity, current weather)
// from the upstream feed.
package signals

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"croffers/internal/adapters/remote"
	"croffers/internal/domain"
)

type Client struct{ rc *remote.Client }

func New(base, key string, rps int) (*Client, error) {
	rc, err := remote.New("signals", base, key, rps)
	if err != nil {
		return nil, err
	}
	return &Client{rc: rc}, nil
}

// GetPopularity returns the hourly samples. The feed answers either with a
// bare array or with an envelope ({"hours": [...]}, {"data": [...]}).
func (c *Client) GetPopularity(ctx context.Context, destinationID string) ([]map[string]any, error) {
	id := url.PathEscape(destinationID)
	candidates := []string{
		fmt.Sprintf("/destinations/%s/popularity", id), // preferred
		fmt.Sprintf("/places/%s/popular-times", id),    // legacy
	}
	var raw any
	if err := c.rc.GetFirst(ctx, candidates, &raw); err != nil {
		return nil, translate(err)
	}
	return unwrapSamples(raw), nil
}

func (c *Client) GetWeather(ctx context.Context, destinationID string) (map[string]any, error) {
	id := url.PathEscape(destinationID)
	candidates := []string{
		fmt.Sprintf("/destinations/%s/weather", id),
		fmt.Sprintf("/weather/current?destination=%s", url.QueryEscape(destinationID)),
	}
	var out map[string]any
	if err := c.rc.GetFirst(ctx, candidates, &out); err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func unwrapSamples(raw any) []map[string]any {
	var arr []any
	switch v := raw.(type) {
	case []any:
		arr = v
	case map[string]any:
		for _, k := range []string{"hours", "data", "popular_times", "items"} {
			if a, ok := v[k].([]any); ok {
				arr = a
				break
			}
		}
	}
	out := make([]map[string]any, 0, len(arr))
	for _, it := range arr {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func translate(err error) error {
	switch {
	case errors.Is(err, remote.ErrNotFound):
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	case errors.Is(err, remote.ErrUnauthorized):
		return fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	case errors.Is(err, remote.ErrForbidden):
		return fmt.Errorf("%w: %v", domain.ErrForbidden, err)
	}
	return err
}
