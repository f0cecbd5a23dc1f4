// Package ollama calls a local Ollama server for structured extraction.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/vgrishin/docextract/internal/core/domain"
	"github.com/vgrishin/docextract/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

type Options struct {
	Model             string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	Burst             int
	Executor          *resilience.Executor
}

// New validates the provider configuration up front. A missing base URL or
// model is fatal: attempts would fail identically, so the pipeline must not
// cycle them.
func New(baseURL string, opts Options) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("ollama base url not configured: %w", domain.ErrFatalConfig)
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("ollama model not configured: %w", domain.ErrFatalConfig)
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 120 * time.Second
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Client{
		baseURL:    baseURL,
		model:      opts.Model,
		httpClient: &http.Client{Timeout: opts.RequestTimeout},
		limiter:    limiter,
		executor:   opts.Executor,
	}, nil
}

// ExtractStructured runs one deterministic JSON-mode generation and returns
// the raw response body. Schema validation happens in the caller.
func (c *Client) ExtractStructured(ctx context.Context, prompt string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
		"options": map[string]any{
			"temperature": 0,
		},
	}

	var response struct {
		Response string `json:"response"`
	}
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/api/generate", reqBody, &response, "extract")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "llm.extract", call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("llm extract", err)
	}
	return extractJSONObject(strings.TrimSpace(response.Response)), nil
}

// extractJSONObject strips prose the model sometimes emits around the object.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
