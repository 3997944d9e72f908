// Package imagegen calls the banner image generation service for markets
// whose source images are absent or unusable.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/apemarkets/curator/internal/domain"
)

// Client talks to the image generation service over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func New(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		logger:     logger.With(slog.String("component", "imagegen")),
	}
}

type generateRequest struct {
	MarketID string   `json:"market_id"`
	Question string   `json:"question"`
	Category string   `json:"category,omitempty"`
	Options  []string `json:"options,omitempty"`
}

type generateResponse struct {
	ImageURL string `json:"image_url"`
	Error    string `json:"error,omitempty"`
}

// Generate requests a banner image for a market and returns its URL.
func (c *Client) Generate(ctx context.Context, m domain.Market) (string, error) {
	req := generateRequest{
		MarketID: m.ID,
		Question: m.Question,
	}
	if m.Category != nil {
		req.Category = *m.Category
	}
	for _, opt := range m.Options {
		req.Options = append(req.Options, opt.DisplayName)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("imagegen: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("imagegen: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("imagegen: generate for %s: %w", m.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", fmt.Errorf("imagegen: service returned %d: %w", resp.StatusCode, domain.ErrTransient)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("imagegen: service returned status %d", resp.StatusCode)
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("imagegen: decode response: %w", err)
	}
	if genResp.Error != "" {
		return "", fmt.Errorf("imagegen: %s", genResp.Error)
	}
	if genResp.ImageURL == "" {
		return "", fmt.Errorf("imagegen: service returned no image url")
	}

	c.logger.Info("generated banner image",
		slog.String("market_id", m.ID),
		slog.String("image_url", genResp.ImageURL))
	return genResp.ImageURL, nil
}
