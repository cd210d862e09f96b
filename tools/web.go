package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/oliver-os/conductor/config"
	"github.com/oliver-os/conductor/core"
)

// ============================================================================
// WEB BACKEND
// ============================================================================

// WebBackend serves the fetch_url tool. Outbound requests are rate limited
// and retried on 429 and 5xx responses with exponential backoff.
type WebBackend struct {
	client     *http.Client
	limiter    *rate.Limiter
	maxBytes   int64
	maxRetries int
}

type fetchURLArgs struct {
	URL string `json:"url" jsonschema:"required,description=HTTP or HTTPS URL to fetch"`
}

// NewWebBackend creates a web backend from configuration.
func NewWebBackend(cfg config.ToolConfig) *WebBackend {
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 2
	}
	return &WebBackend{
		client: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		maxBytes:   cfg.MaxResponseBytes,
		maxRetries: cfg.MaxRetries,
	}
}

// Name implements Backend.
func (b *WebBackend) Name() string { return "web" }

// Tools implements Backend.
func (b *WebBackend) Tools() []Definition {
	return []Definition{
		{
			Name:        "fetch_url",
			Description: "Fetch a URL over HTTP and return the response body",
			InputSchema: schemaFor(&fetchURLArgs{}),
		},
	}
}

// Execute implements Backend.
func (b *WebBackend) Execute(ctx context.Context, tool string, args map[string]any) (ToolResult, error) {
	if tool != "fetch_url" {
		return ToolResult{}, core.NewNotFoundError("tool", tool)
	}
	var in fetchURLArgs
	if err := decodeArgs(tool, schemaFor(&fetchURLArgs{}), args, &in); err != nil {
		return ToolResult{}, err
	}
	parsed, err := url.Parse(in.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return ToolResult{}, core.NewValidationError("tools", "url",
			fmt.Sprintf("invalid URL: %s", in.URL))
	}

	var lastErr error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return ToolResult{}, ctx.Err()
			case <-time.After(delay):
			}
		}
		if err := b.limiter.Wait(ctx); err != nil {
			return ToolResult{}, err
		}

		result, retryable, err := b.fetch(ctx, in.URL)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return ToolResult{}, fmt.Errorf("failed to fetch %s: %w", in.URL, lastErr)
}

func (b *WebBackend) fetch(ctx context.Context, rawURL string) (ToolResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return ToolResult{}, false, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return ToolResult{}, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return ToolResult{}, true, fmt.Errorf("server returned %s", resp.Status)
	}
	if resp.StatusCode >= 400 {
		return ToolResult{}, false, fmt.Errorf("server returned %s", resp.Status)
	}

	reader := io.Reader(resp.Body)
	if b.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, b.maxBytes)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return ToolResult{}, true, err
	}
	return ToolResult{
		Success: true,
		Content: string(body),
		Metadata: map[string]any{
			"url":          rawURL,
			"status":       resp.StatusCode,
			"content_type": resp.Header.Get("Content-Type"),
			"bytes":        len(body),
		},
	}, false, nil
}

// HealthCheck implements Backend.
func (b *WebBackend) HealthCheck(ctx context.Context) error {
	return nil
}
