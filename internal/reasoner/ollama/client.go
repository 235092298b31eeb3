// Package ollama is the HTTP client for an Ollama-compatible reasoning
// backend.
package ollama

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sawpanic/signalrun/internal/net/ratelimit"
)

// DefaultBaseURL is the standard local Ollama endpoint.
const DefaultBaseURL = "http://127.0.0.1:11434"

// Client calls the Ollama generate API with JSON-formatted output. It
// implements reasoner.Reasoner.
type Client struct {
	http    *resty.Client
	model   string
	limiter *ratelimit.Limiter
}

// New creates a client for the given base URL and model. An empty baseURL
// falls back to the local default.
func New(baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(1).
		SetRetryWaitTime(500 * time.Millisecond)

	return &Client{
		http:    http,
		model:   model,
		limiter: ratelimit.NewLimiter(2, 2),
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Infer sends the payload and returns the raw model response text. The
// caller's context carries the timeout; resty aborts the request when it
// expires.
func (c *Client) Infer(ctx context.Context, payload string) (string, error) {
	if err := c.limiter.Wait(ctx, "reasoner"); err != nil {
		return "", fmt.Errorf("reasoner rate limit: %w", err)
	}

	var out generateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(generateRequest{Model: c.model, Prompt: payload, Stream: false, Format: "json"}).
		SetResult(&out).
		Post("/api/generate")
	if err != nil {
		return "", fmt.Errorf("reasoner request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("reasoner returned %s", resp.Status())
	}
	return out.Response, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Ready checks that the backend responds and has the configured model
// loaded.
func (c *Client) Ready(ctx context.Context) error {
	var tags tagsResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&tags).Get("/api/tags")
	if err != nil {
		return fmt.Errorf("reasoner unreachable: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("reasoner returned %s", resp.Status())
	}
	for _, m := range tags.Models {
		if m.Name == c.model {
			return nil
		}
	}
	return fmt.Errorf("model %q not loaded on reasoner backend", c.model)
}
