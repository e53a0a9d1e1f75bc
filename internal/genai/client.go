// Package genai calls the generative-language service and recovers
// structured JSON from its free-text responses. Every caller treats a
// failure here as a signal to fall back to deterministic output, so the
// package never panics and never blocks beyond the configured timeout.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sagecare/deprescribe/internal/shared/config"
	"github.com/sagecare/deprescribe/internal/shared/metrics"
)

// Client talks to the generative-language HTTP service.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *zap.Logger
}

// NewClient creates a generation client from configuration.
func NewClient(cfg config.GenAIConfig, log *zap.Logger) *Client {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}
	return &Client{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
		log:     log,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// generateResponse covers the response shapes the service has been observed
// to return: a top-level text field, a candidates list, or a bare string.
type generateResponse struct {
	Text       string `json:"text"`
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate sends one prompt and returns the recovered JSON payload from the
// response text. Rate limiting, transport errors, non-200 statuses and
// unrecoverable response text all surface as errors; the caller decides the
// fallback.
func (c *Client) Generate(ctx context.Context, prompt string) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("generation rate limit: %w", err)
	}

	start := time.Now()
	text, err := c.generateText(ctx, prompt)
	if err != nil {
		metrics.RecordGeneration("error", time.Since(start))
		return nil, err
	}

	payload, err := Recover(text)
	if err != nil {
		metrics.RecordGeneration("unparseable", time.Since(start))
		c.log.Warn("model response not recoverable as JSON", zap.Error(err))
		return nil, err
	}

	metrics.RecordGeneration("ok", time.Since(start))
	return payload, nil
}

// Health checks service reachability.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("generation service unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("generation service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) generateText(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshal generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read generation response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generation service returned status %d", resp.StatusCode)
	}
	return extractText(raw), nil
}

// extractText pulls the response text out of whichever shape the service
// used. A body that fits none of the known shapes is returned verbatim;
// recovery downstream decides whether anything usable is in it.
func extractText(raw []byte) string {
	var r generateResponse
	if err := json.Unmarshal(raw, &r); err == nil {
		if r.Text != "" {
			return r.Text
		}
		for _, cand := range r.Candidates {
			for _, part := range cand.Content.Parts {
				if part.Text != "" {
					return part.Text
				}
			}
		}
	}
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}
	return string(raw)
}
