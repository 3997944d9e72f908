// Package slack posts curated markets into review channels and reads the
// emoji reactions reviewers leave on them.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/apemarkets/curator/internal/domain"
)

const apiBase = "https://slack.com/api"

var approveReactions = map[string]bool{
	"white_check_mark": true,
	"+1":               true,
	"thumbsup":         true,
}

var rejectReactions = map[string]bool{
	"x":          true,
	"-1":         true,
	"thumbsdown": true,
}

// Client implements surface.Surface on the Slack Web API. Stage one messages
// go to the review channel, stage two messages to the image channel.
type Client struct {
	httpClient    *http.Client
	token         string
	reviewChannel string
	imageChannel  string
	botUserID     string
	logger        *slog.Logger
}

type Config struct {
	Token         string
	ReviewChannel string
	ImageChannel  string
	BotUserID     string
	Timeout       time.Duration
}

func New(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		token:         cfg.Token,
		reviewChannel: cfg.ReviewChannel,
		imageChannel:  cfg.ImageChannel,
		botUserID:     cfg.BotUserID,
		logger:        logger.With(slog.String("component", "slack")),
	}
}

type postMessageRequest struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

type postMessageResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Channel string `json:"channel"`
	TS      string `json:"ts"`
}

// Post publishes the review message for a market and returns the handle the
// decision poller will watch.
func (c *Client) Post(ctx context.Context, m domain.Market, stage domain.Stage) (domain.ApprovalHandle, error) {
	channel := c.reviewChannel
	if stage == domain.StageImage {
		channel = c.imageChannel
	}

	body, err := json.Marshal(postMessageRequest{
		Channel: channel,
		Text:    formatMessage(m, stage),
	})
	if err != nil {
		return domain.ApprovalHandle{}, fmt.Errorf("slack: marshal message: %w", err)
	}

	var resp postMessageResponse
	if err := c.call(ctx, http.MethodPost, "chat.postMessage", bytes.NewReader(body), "application/json; charset=utf-8", &resp); err != nil {
		return domain.ApprovalHandle{}, err
	}
	if !resp.OK {
		return domain.ApprovalHandle{}, fmt.Errorf("slack: chat.postMessage: %s", resp.Error)
	}

	c.logger.Info("posted review message",
		slog.String("market_id", m.ID),
		slog.Int("stage", int(stage)),
		slog.String("channel", resp.Channel),
		slog.String("ts", resp.TS))

	return domain.ApprovalHandle{
		Channel:   resp.Channel,
		MessageTS: resp.TS,
		PostedAt:  time.Now().UTC(),
	}, nil
}

type reactionsGetResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message struct {
		Reactions []struct {
			Name  string   `json:"name"`
			Users []string `json:"users"`
		} `json:"reactions"`
	} `json:"message"`
}

// PollDecisions reads the reactions on a posted message and maps each
// reviewer reaction to a decision signal. The bot's own reactions are
// ignored.
func (c *Client) PollDecisions(ctx context.Context, handle domain.ApprovalHandle) ([]domain.SurfaceDecision, error) {
	params := url.Values{}
	params.Set("channel", handle.Channel)
	params.Set("timestamp", handle.MessageTS)
	params.Set("full", "true")

	var resp reactionsGetResponse
	if err := c.call(ctx, http.MethodGet, "reactions.get?"+params.Encode(), nil, "", &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		if resp.Error == "message_not_found" {
			return nil, fmt.Errorf("slack: reactions.get: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("slack: reactions.get: %s", resp.Error)
	}

	now := time.Now().UTC()
	var out []domain.SurfaceDecision
	for _, r := range resp.Message.Reactions {
		decision, ok := mapReaction(r.Name)
		if !ok {
			continue
		}
		for _, user := range r.Users {
			if user == c.botUserID {
				continue
			}
			out = append(out, domain.SurfaceDecision{
				Decision:  decision,
				Actor:     user,
				Timestamp: now,
			})
		}
	}
	return out, nil
}

func mapReaction(name string) (domain.Decision, bool) {
	switch {
	case approveReactions[name]:
		return domain.DecisionApprove, true
	case rejectReactions[name]:
		return domain.DecisionReject, true
	default:
		return "", false
	}
}

func (c *Client) call(ctx context.Context, method, endpoint string, body *bytes.Reader, contentType string, out any) error {
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, apiBase+"/"+endpoint, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, apiBase+"/"+endpoint, nil)
	}
	if err != nil {
		return fmt.Errorf("slack: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fmt.Errorf("slack: %s returned %d: %w", endpoint, resp.StatusCode, domain.ErrTransient)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack: %s returned status %d", endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("slack: decode %s response: %w", endpoint, err)
	}
	return nil
}
