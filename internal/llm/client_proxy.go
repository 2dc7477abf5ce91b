package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// generateProxy sends the request to the trusted proxy, which fans out to
// the real vendor on the caller's behalf.
func (c *Client) generateProxy(ctx context.Context, messages []Message, cfg GenerateConfig, onDelta DeltaFunc) (string, error) {
	reqBody := proxyRequest{
		Vendor:      cfg.Vendor,
		Messages:    messages,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Stream:      cfg.Stream && onDelta != nil,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}

	if reqBody.Stream {
		return c.streamProxy(ctx, resp, cfg.Vendor, onDelta)
	}

	body, err := readBody(resp)
	if err != nil {
		return "", err
	}
	return parseProxyResponse(body)
}

// parseProxyResponse decodes a proxy reply by shape rather than by a
// declared type. Proxies differ in how much they unwrap the upstream body,
// so decoding is attempted in a fixed order: bare JSON string, then
// OpenAI-style choices, then Claude-style content blocks.
func parseProxyResponse(body []byte) (string, error) {
	var bare string
	if err := json.Unmarshal(body, &bare); err == nil {
		if bare == "" {
			return "", fmt.Errorf("%w: empty response string", ErrMalformedResponse)
		}
		return bare, nil
	}

	var openai openAIResponse
	if err := json.Unmarshal(body, &openai); err == nil && len(openai.Choices) > 0 {
		choice := openai.Choices[0]
		if choice.Message.Content != "" {
			return choice.Message.Content, nil
		}
		if choice.Text != "" {
			return choice.Text, nil
		}
	}

	var claude claudeResponse
	if err := json.Unmarshal(body, &claude); err == nil && len(claude.Content) > 0 {
		var full strings.Builder
		for _, block := range claude.Content {
			if block.Type == "text" {
				full.WriteString(block.Text)
			}
		}
		if full.Len() > 0 {
			return full.String(), nil
		}
	}

	return "", fmt.Errorf("%w: unrecognized proxy response shape", ErrMalformedResponse)
}

// streamProxy consumes the proxied SSE stream. The proxy forwards the
// upstream vendor's frames untouched, so delta extraction follows the
// vendor dialect.
func (c *Client) streamProxy(ctx context.Context, resp *http.Response, vendor Vendor, onDelta DeltaFunc) (string, error) {
	if vendor == VendorClaude {
		return c.streamClaude(ctx, resp, onDelta)
	}
	return c.streamOpenAI(ctx, resp, onDelta)
}
