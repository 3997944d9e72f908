// Package polymarket is the REST client layer for the Polymarket Gamma API,
// the upstream source of raw market and event records.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/apemarkets/curator/internal/domain"
)

// GammaClient is the REST client for the Polymarket Gamma API.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string) *GammaClient {
	return &GammaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchActive returns up to limit open, non-archived, active markets together
// with the raw response body for archival. Records already ingested may be
// returned again; the caller is responsible for idempotency.
func (g *GammaClient) FetchActive(ctx context.Context, limit int) ([]RawMarket, []byte, error) {
	if limit <= 0 {
		limit = 200
	}
	params := url.Values{}
	params.Set("closed", "false")
	params.Set("archived", "false")
	params.Set("active", "true")
	params.Set("limit", strconv.Itoa(limit))

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, nil, fmt.Errorf("polymarket/gamma: fetch active markets: %w", err)
	}

	var markets []RawMarket
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}

	return markets, body, nil
}

// GetMarket returns a single raw market by its id.
func (g *GammaClient) GetMarket(ctx context.Context, id string) (RawMarket, error) {
	body, err := g.doGet(ctx, "/markets/"+url.PathEscape(id))
	if err != nil {
		return RawMarket{}, fmt.Errorf("polymarket/gamma: get market %s: %w", id, err)
	}

	var market RawMarket
	if err := json.Unmarshal(body, &market); err != nil {
		return RawMarket{}, fmt.Errorf("polymarket/gamma: decode market: %w", err)
	}
	return market, nil
}

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", domain.ErrTransient, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 256))
	}

	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
