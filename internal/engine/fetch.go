package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/weftui/weft/internal/ir"
)

// Fetcher performs the network side of fetch steps. The core owns the
// continuation semantics only; transport is injected by the host.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (ir.Value, error)
}

// HTTPFetcher is the production Fetcher: GET the URL, decode the JSON
// body into a value.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher creates a fetcher with a sane default timeout.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: 30 * time.Second}}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (ir.Value, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: read body: %w", url, err)
	}
	if !json.Valid(body) {
		// Non-JSON responses surface as a plain string value.
		return ir.String(body), nil
	}
	v, err := ir.UnmarshalValue(body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: decode body: %w", url, err)
	}
	return v, nil
}

// FuncFetcher adapts a function to the Fetcher interface, handy in tests
// and the scenario harness.
type FuncFetcher func(ctx context.Context, url string) (ir.Value, error)

// Fetch implements Fetcher.
func (f FuncFetcher) Fetch(ctx context.Context, url string) (ir.Value, error) {
	return f(ctx, url)
}
