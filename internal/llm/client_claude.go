package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"director/internal/logging"
)

// placeholderUserText opens a Claude conversation whose first real message
// is assistant-authored; the messages API requires the user role to speak
// first.
const placeholderUserText = "[Start a new chat]"

// generateClaude calls the Claude-native messages endpoint directly.
func (c *Client) generateClaude(ctx context.Context, messages []Message, cfg GenerateConfig, onDelta DeltaFunc) (string, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultClaudeEndpoint
	}
	url := strings.TrimSuffix(endpoint, "/") + "/messages"

	system, normalized := normalizeClaude(messages)

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096 // required field in the messages API
	}

	reqBody := claudeRequest{
		Model:       cfg.Model,
		MaxTokens:   maxTokens,
		Messages:    normalized,
		System:      system,
		Temperature: cfg.Temperature,
		Stream:      cfg.Stream && onDelta != nil,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}

	if reqBody.Stream {
		return c.streamClaude(ctx, resp, onDelta)
	}

	body, err := readBody(resp)
	if err != nil {
		return "", err
	}
	return parseClaudeResponse(body)
}

// normalizeClaude reshapes an arbitrary message list into what the messages
// API accepts: system content extracted to the top-level field, adjacent
// same-role messages merged, and a placeholder user message prepended when
// the conversation would otherwise open with the assistant.
func normalizeClaude(messages []Message) (system string, out []Message) {
	var systemParts []string
	for _, m := range messages {
		if m.Role == RoleSystem {
			if m.Content != "" {
				systemParts = append(systemParts, m.Content)
			}
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Content = out[n-1].Content + "\n\n" + m.Content
			continue
		}
		out = append(out, m)
	}
	if len(out) > 0 && out[0].Role == RoleAssistant {
		out = append([]Message{NewUserMessage(placeholderUserText)}, out...)
	}
	return strings.Join(systemParts, "\n\n"), out
}

// parseClaudeResponse concatenates the text content blocks of a
// non-streaming messages API body.
func parseClaudeResponse(body []byte) (string, error) {
	var parsed claudeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("API error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	var full strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			full.WriteString(block.Text)
		}
	}
	if full.Len() == 0 {
		return "", fmt.Errorf("%w: no text content", ErrMalformedResponse)
	}
	return full.String(), nil
}

// claudeStreamEvent covers the streaming event payloads the director cares
// about; everything else is ignored by type.
type claudeStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// streamClaude consumes Claude-native SSE events. Text arrives in
// content_block_delta events; message_stop ends the stream.
func (c *Client) streamClaude(ctx context.Context, resp *http.Response, onDelta DeltaFunc) (string, error) {
	defer resp.Body.Close()

	var full strings.Builder
	err := scanSSE(ctx, resp.Body, func(data string) (bool, error) {
		var event claudeStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			logging.VendorDebug("streamClaude: skipping unparseable frame: %v", err)
			return false, nil
		}
		switch event.Type {
		case "content_block_delta":
			if event.Delta.Text != "" {
				full.WriteString(event.Delta.Text)
				onDelta(event.Delta.Text)
			}
		case "message_stop":
			return true, nil
		case "error":
			if event.Error != nil {
				return true, fmt.Errorf("API error (%s): %s", event.Error.Type, event.Error.Message)
			}
		}
		return false, nil
	})
	if err != nil {
		return "", err
	}
	return full.String(), nil
}
