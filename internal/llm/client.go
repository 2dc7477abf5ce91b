// Package llm provides the multi-vendor chat-completion client used by the
// director. Two protocol dialects (OpenAI-compatible and Claude-native) are
// normalized behind one Generate call, over either a direct connection to
// the vendor or a trusted proxy that fans out on the caller's behalf.
package llm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"director/internal/logging"
)

// maxResponseSize caps response bodies to keep a misbehaving endpoint from
// exhausting memory.
const maxResponseSize = 10 * 1024 * 1024

// Client performs chat-completion calls. It is safe for concurrent use; all
// per-call state travels in GenerateConfig.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a client. Request timeouts are context-driven, so the
// underlying http.Client carries none of its own.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Generate sends the message list and returns the completion text. When
// cfg.Stream is set and onDelta is non-nil, incremental deltas are forwarded
// as they arrive and the accumulated text is returned at the end.
//
// The call is bound to a context derived from ctx plus the configured
// ceiling timeout, whichever fires first. A superseded or timed-out call
// surfaces context.Canceled/DeadlineExceeded, distinguishable from other
// failures via IsCancellation.
func (c *Client) Generate(ctx context.Context, messages []Message, cfg GenerateConfig, onDelta DeltaFunc) (string, error) {
	if err := validateConfig(cfg); err != nil {
		return "", err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	startTime := time.Now()
	logging.VendorDebug("Generate: transport=%s vendor=%s model=%s messages=%d stream=%v",
		cfg.Transport, cfg.Vendor, cfg.Model, len(messages), cfg.Stream)

	var (
		text string
		err  error
	)
	switch cfg.Transport {
	case TransportProxy:
		text, err = c.generateProxy(ctx, messages, cfg, onDelta)
	case TransportDirect:
		switch cfg.Vendor {
		case VendorOpenAI:
			text, err = c.generateOpenAI(ctx, messages, cfg, onDelta)
		case VendorClaude:
			text, err = c.generateClaude(ctx, messages, cfg, onDelta)
		}
	}

	if err != nil {
		if IsCancellation(err) {
			logging.Vendor("Generate: cancelled after %v", time.Since(startTime))
		} else {
			logging.VendorError("Generate: failed after %v: %v", time.Since(startTime), err)
		}
		return "", err
	}

	logging.Vendor("Generate: completed in %v response_len=%d", time.Since(startTime), len(text))
	return strings.TrimSpace(text), nil
}

// TestConnection performs a minimal fixed-prompt call over the configured
// path and returns a short summary. It never mutates any engine state, which
// also makes it a convenient fixture for exercising the adapters.
func (c *Client) TestConnection(ctx context.Context, cfg GenerateConfig) (string, error) {
	cfg.Stream = false
	cfg.MaxTokens = 32
	text, err := c.Generate(ctx, []Message{NewUserMessage(`Reply with the single word "ok".`)}, cfg, nil)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s responded (%d chars)", cfg.Transport, cfg.Vendor, len(text)), nil
}

// validateConfig rejects unusable configurations before any network call.
func validateConfig(cfg GenerateConfig) error {
	switch cfg.Transport {
	case TransportProxy, TransportDirect:
	default:
		return fmt.Errorf("%w: unsupported transport %q", ErrNotConfigured, cfg.Transport)
	}
	switch cfg.Vendor {
	case VendorOpenAI, VendorClaude:
	default:
		return fmt.Errorf("%w: unsupported vendor %q", ErrNotConfigured, cfg.Vendor)
	}
	if cfg.Model == "" {
		return fmt.Errorf("%w: model required", ErrNotConfigured)
	}
	if cfg.Transport == TransportProxy && cfg.Endpoint == "" {
		return fmt.Errorf("%w: proxy endpoint required", ErrNotConfigured)
	}
	if cfg.Transport == TransportDirect && cfg.APIKey == "" {
		return fmt.Errorf("%w: API key required for direct transport", ErrNotConfigured)
	}
	return nil
}

// do sends the request and returns the response, converting non-success
// statuses into TransportError with the body attached.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		resp.Body.Close()
		return nil, &TransportError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return resp, nil
}

// readBody reads a bounded response body.
func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// sseSentinel is the literal end-of-stream line used by OpenAI-style APIs.
const sseSentinel = "[DONE]"

// scanSSE reads newline-delimited "data: {json}" frames and hands each
// payload to handle. Streaming ends at the sentinel, when handle reports
// done, or at stream close, whichever comes first. Frames that are not data
// frames are ignored.
func scanSSE(ctx context.Context, body io.Reader, handle func(data string) (done bool, err error)) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == sseSentinel {
			return nil
		}
		done, err := handle(data)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("stream read error: %w", err)
	}
	return nil
}
