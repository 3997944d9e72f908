// Package categorize assigns one category label to a canonical market using
// an OpenAI-compatible chat-completions API. Categorization is best-effort:
// after bounded retries the fallback label is assigned and the pipeline moves
// on, so a flaky model endpoint can never stall a market.
package categorize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// FallbackLabel is assigned when categorization fails or returns a label
// outside the closed set.
const FallbackLabel = "news"

// Labels is the closed set of category labels the model may assign.
var Labels = []string{"politics", "crypto", "sports", "business", "culture", "news", "tech"}

var labelSet = func() map[string]bool {
	s := make(map[string]bool, len(Labels))
	for _, l := range Labels {
		s[l] = true
	}
	return s
}()

const systemPrompt = `You are a market categorizer for a prediction market platform.
Given the question of a prediction market, assign exactly one category from the following list:
- politics: elections, governance, political figures, policy decisions
- crypto: cryptocurrencies, blockchain, tokens, digital assets
- sports: sports teams, players, tournaments, athletic events
- business: companies, stock prices, earnings, economic trends
- culture: entertainment, celebrities, movies, music, cultural events
- news: current events that fit no other category
- tech: technology companies, products, innovations

Respond with a JSON object: {"category": "<label>"} using the label exactly as listed.`

// Config holds categorizer settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
	BaseBackoff time.Duration
}

// Categorizer wraps an OpenAI-compatible chat-completions client.
type Categorizer struct {
	api         *openai.Client
	model       string
	timeout     time.Duration
	maxAttempts int
	baseBackoff time.Duration
	logger      *slog.Logger
}

// New creates a Categorizer from config.
func New(cfg Config, logger *slog.Logger) (*Categorizer, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("categorize: API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := cfg.BaseBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	openaiCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		openaiCfg.BaseURL = cfg.BaseURL
	}

	return &Categorizer{
		api:         openai.NewClientWithConfig(openaiCfg),
		model:       model,
		timeout:     timeout,
		maxAttempts: attempts,
		baseBackoff: backoff,
		logger:      logger.With(slog.String("component", "categorizer")),
	}, nil
}

// Categorize returns one label from the closed set for the given question.
// On exhausted retries it returns FallbackLabel and a nil error: failure to
// categorize is never fatal to the pipeline. Re-invoking on an
// already-categorized market is safe; the result simply overwrites the label.
func (c *Categorizer) Categorize(ctx context.Context, question string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			wait := c.baseBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return FallbackLabel, ctx.Err()
			case <-time.After(wait):
			}
		}

		label, err := c.complete(ctx, "Question: "+question)
		if err == nil {
			return label, nil
		}
		lastErr = err
		c.logger.Warn("categorization attempt failed",
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}

	c.logger.Error("categorization exhausted retries, using fallback",
		slog.String("question", question),
		slog.String("fallback", FallbackLabel),
		slog.String("error", lastErr.Error()),
	)
	return FallbackLabel, nil
}

// CategorizeBatch labels many questions with a single completion call,
// falling back to per-question calls when the batched response cannot be
// parsed. The returned slice is index-aligned with questions.
func (c *Categorizer) CategorizeBatch(ctx context.Context, questions []string) ([]string, error) {
	if len(questions) == 0 {
		return nil, nil
	}

	labels, err := c.completeBatch(ctx, questions)
	if err == nil {
		return labels, nil
	}
	c.logger.Warn("batch categorization failed, falling back to per-question calls",
		slog.Int("count", len(questions)),
		slog.String("error", err.Error()),
	)

	labels = make([]string, len(questions))
	for i, q := range questions {
		label, err := c.Categorize(ctx, q)
		if err != nil {
			return nil, err
		}
		labels[i] = label
	}
	return labels, nil
}

func (c *Categorizer) complete(ctx context.Context, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("categorize: empty response")
	}
	return parseLabel(resp.Choices[0].Message.Content)
}

func (c *Categorizer) completeBatch(ctx context.Context, questions []string) ([]string, error) {
	var b strings.Builder
	b.WriteString("Categorize each numbered question. Respond with a JSON object ")
	b.WriteString(`{"categories": ["<label for 1>", "<label for 2>", ...]} in order.` + "\n")
	for i, q := range questions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: b.String()},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("categorize: empty response")
	}
	return parseBatchLabels(resp.Choices[0].Message.Content, len(questions))
}

// parseBatchLabels decodes a batched model response into n normalized
// labels, index-aligned with the submitted questions.
func parseBatchLabels(content string, n int) ([]string, error) {
	var parsed struct {
		Categories []string `json:"categories"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("categorize: decode batch response: %w", err)
	}
	if len(parsed.Categories) != n {
		return nil, fmt.Errorf("categorize: got %d labels for %d questions", len(parsed.Categories), n)
	}

	labels := make([]string, n)
	for i, raw := range parsed.Categories {
		labels[i] = normalizeLabel(raw)
	}
	return labels, nil
}

// parseLabel extracts and validates the category from a model response.
func parseLabel(content string) (string, error) {
	var parsed struct {
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return "", fmt.Errorf("categorize: decode response %q: %w", content, err)
	}
	return normalizeLabel(parsed.Category), nil
}

// normalizeLabel lower-cases and validates a label, substituting the fallback
// for anything outside the closed set.
func normalizeLabel(raw string) string {
	label := strings.ToLower(strings.TrimSpace(raw))
	if !labelSet[label] {
		return FallbackLabel
	}
	return label
}
