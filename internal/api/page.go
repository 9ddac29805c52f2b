package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// page is the paginated list envelope.
type page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// decodeList accepts either a bare JSON array or a paginated envelope and
// returns the items plus the next-page link, if any.
func decodeList[T any](data []byte) ([]T, string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, "", nil
	}

	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, "", fmt.Errorf("decoding list: %w", err)
		}
		return items, "", nil
	}

	var p page[T]
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, "", fmt.Errorf("decoding page: %w", err)
	}
	next := ""
	if p.Next != nil {
		next = *p.Next
	}
	return p.Results, next, nil
}

// listAll fetches u and every following page.
func listAll[T any](ctx context.Context, c *Client, u *url.URL) ([]T, error) {
	all := make([]T, 0)
	seen := map[string]bool{u.String(): true}

	for {
		var raw json.RawMessage
		if err := c.do(ctx, http.MethodGet, u, nil, &raw); err != nil {
			return nil, err
		}
		items, next, err := decodeList[T](raw)
		if err != nil {
			return nil, fmt.Errorf("GET %s: %w", u.Path, err)
		}
		all = append(all, items...)
		if next == "" {
			return all, nil
		}

		u, err = c.resolve(next)
		if err != nil {
			return nil, err
		}
		if seen[u.String()] {
			return nil, fmt.Errorf("pagination loop at %s", u)
		}
		seen[u.String()] = true
	}
}
