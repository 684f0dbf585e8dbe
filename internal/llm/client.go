// Package llm calls an Ollama-style text-generation endpoint with bounded
// concurrency, timeout retries, and fail-fast on unreachable backends.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Timeouts are retried with backoff; connection failures are not, since
// backoff cannot fix an unreachable backend.
var (
	ErrModelTimeout     = errors.New("model call timed out")
	ErrModelUnavailable = errors.New("model backend unreachable")
)

// Client is a text-generation client. All calls funnel through Gate when set.
type Client struct {
	BaseURL      string
	Model        string
	Temperature  float64
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	HTTPClient *http.Client
	Gate       *Gate
	Log        *slog.Logger
}

// GenerateParams are per-call generation options.
type GenerateParams struct {
	MaxTokens     int
	ContextWindow int
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
	NumCtx      int     `json:"num_ctx,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Generate sends a prompt and returns the raw response text. The gate is
// held across the whole retry sequence so a retrying call cannot amplify
// load on the backend. There is no cancellation of an in-flight call beyond
// the configured timeout.
func (c *Client) Generate(ctx context.Context, prompt string, params GenerateParams) (string, error) {
	if c.BaseURL == "" || c.Model == "" {
		return "", fmt.Errorf("llm: base URL and model required")
	}

	if c.Gate != nil {
		if err := c.Gate.Acquire(ctx); err != nil {
			return "", err
		}
		defer c.Gate.Release()
	}

	payload, err := json.Marshal(generateRequest{
		Model:  c.Model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: c.Temperature,
			NumPredict:  params.MaxTokens,
			NumCtx:      params.ContextWindow,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	attempts := c.MaxRetries + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := c.backoffBase() * time.Duration(1<<uint(attempt))
			c.log().Warn("model call retrying",
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
				slog.Any("err", lastErr),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, err := c.call(ctx, payload)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		lastErr = err
		if errors.Is(err, ErrModelUnavailable) {
			return "", err
		}
	}

	return "", fmt.Errorf("model call failed after %d attempts: %w", attempts, lastErr)
}

func (c *Client) call(ctx context.Context, payload []byte) (string, error) {
	callCtx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.BaseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("model endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("model error: %s", parsed.Error)
	}
	if parsed.Response == "" {
		return "", errors.New("empty response from model")
	}
	return parsed.Response, nil
}

// classify maps transport errors onto the retry taxonomy.
func classify(err error) error {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrModelTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrModelTimeout, err)
	}
	return err
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) backoffBase() time.Duration {
	if c.RetryBackoff > 0 {
		return c.RetryBackoff
	}
	return time.Second
}

func (c *Client) log() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
