package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/triage-ai/netwarden/internal/alert"
	"github.com/triage-ai/netwarden/internal/metrics"
	"go.uber.org/zap"
)

const (
	defaultEndpoint  = "https://api.anthropic.com/v1/messages"
	defaultModel     = "claude-3-5-haiku-latest"
	defaultMaxTokens = 1024
	apiVersion       = "2023-06-01"
	requestTimeout   = 60 * time.Second

	// FallbackSummary is shown when the classifier's reply carried no
	// parseable JSON. The user must never see an empty result.
	FallbackSummary = "Automatic analysis returned an unstructured answer"

	// NoCredentialSummary is shown when classification was skipped outright.
	NoCredentialSummary = "Automatic analysis unavailable: no API credential configured"

	// ExhaustedSummary is shown when every credential slot failed.
	ExhaustedSummary = "Automatic analysis failed"
)

// Config holds the client's tunables. Zero values take the defaults above.
type Config struct {
	Endpoint  string
	Model     string
	MaxTokens int
	Prompt    PromptConfig
}

// Client asks the text-generation endpoint to judge a connection alert,
// failing over across the credential pool and parsing the answer
// tolerantly. Classify always returns a displayable result.
type Client struct {
	cfg    Config
	pool   *Pool
	http   *http.Client
	logger *zap.Logger
}

// New creates a classification client.
func New(cfg Config, pool *Pool, logger *zap.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &Client{
		cfg:    cfg,
		pool:   pool,
		http:   &http.Client{Timeout: requestTimeout},
		logger: logger,
	}
}

// Classify runs one classification for the alert. Failure never escapes as
// an error: an empty pool, transport failures, and unparseable answers all
// terminate in a result the presentation layer can show.
func (c *Client) Classify(ctx context.Context, a alert.ConnectionAlert) alert.AnalysisResult {
	result := alert.NewAnalysisResult(a.ID)

	slots, err := c.pool.Snapshot(ctx)
	if err != nil {
		// Not a transport error — classification is simply skipped.
		result.Summary = NoCredentialSummary
		result.Details = "Set the API key environment variable or add a credential slot to enable classification."
		return result
	}

	prompt := BuildPrompt(a, c.cfg.Prompt)

	var lastErr error
	for _, slot := range slots {
		metrics.ClassifyAttempts.Inc()

		text, err := c.attempt(ctx, slot, prompt)
		if err != nil {
			lastErr = err
			metrics.ClassifyFailovers.Inc()
			c.logger.Warn("credential slot failed, advancing",
				zap.Int("slot_index", slot.Index),
				zap.String("source", slot.Source.String()),
				zap.Error(err),
			)
			continue
		}
		return ParseResponseText(a.ID, text)
	}

	metrics.ClassifyFailures.Inc()
	result.Summary = ExhaustedSummary
	if lastErr != nil {
		result.Details = lastErr.Error()
	}
	return result
}

// apiRequest is the messages-endpoint request body.
type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// apiResponse is the success envelope; only the text blocks matter.
type apiResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// attempt issues exactly one request under one credential and returns the
// response text. Any transport failure, non-success status, or malformed
// envelope is an error — the caller advances to the next slot.
func (c *Client) attempt(ctx context.Context, slot Slot, prompt string) (string, error) {
	body, err := json.Marshal(apiRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		Messages:  []apiMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("attempt: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("attempt: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", slot.Secret)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("attempt: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("attempt: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("attempt: status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", fmt.Errorf("attempt: malformed envelope: %w", err)
	}
	if len(envelope.Content) == 0 || envelope.Content[0].Text == "" {
		return "", errors.New("attempt: empty response content")
	}

	var text strings.Builder
	for _, block := range envelope.Content {
		text.WriteString(block.Text)
	}
	return text.String(), nil
}

// responsePayload is the JSON shape the prompt mandates. Pointer fields
// distinguish "absent" from zero so defaults apply per field.
type responsePayload struct {
	Recommendation string   `json:"recommendation"`
	Confidence     *float64 `json:"confidence"`
	KnownService   *string  `json:"known_service"`
	Summary        string   `json:"summary"`
	Details        string   `json:"details"`
	Risks          []string `json:"risks"`
}

// ParseResponseText extracts the JSON object embedded in free-form reply
// text: the span from the first '{' to the last '}' is parsed, recognized
// fields are mapped with defaults, and anything unparseable degrades to a
// raw-text result rather than an error.
func ParseResponseText(alertID, text string) alert.AnalysisResult {
	result := alert.NewAnalysisResult(alertID)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		result.Summary = FallbackSummary
		result.Details = text
		return result
	}

	var payload responsePayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		result.Summary = FallbackSummary
		result.Details = text
		return result
	}

	result.Recommendation = alert.ParseRecommendation(payload.Recommendation)
	if payload.Confidence != nil {
		result.Confidence = clamp01(*payload.Confidence)
	} else {
		result.Confidence = 0.5
	}
	if payload.KnownService != nil {
		result.KnownService = *payload.KnownService
	}
	result.Summary = payload.Summary
	result.Details = payload.Details
	result.Risks = payload.Risks
	return result
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
