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

// generateOpenAI calls an OpenAI-compatible chat completions endpoint
// directly.
func (c *Client) generateOpenAI(ctx context.Context, messages []Message, cfg GenerateConfig, onDelta DeltaFunc) (string, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultOpenAIEndpoint
	}
	url := strings.TrimSuffix(endpoint, "/") + "/chat/completions"

	reqBody := openAIRequest{
		Model:       cfg.Model,
		Messages:    messages,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
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
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}

	if reqBody.Stream {
		return c.streamOpenAI(ctx, resp, onDelta)
	}

	body, err := readBody(resp)
	if err != nil {
		return "", err
	}
	return parseOpenAIResponse(body)
}

// parseOpenAIResponse extracts completion text from a non-streaming
// OpenAI-compatible body. Some compatible servers put the text in
// choices[0].text instead of choices[0].message.content.
func parseOpenAIResponse(body []byte) (string, error) {
	var parsed openAIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}
	choice := parsed.Choices[0]
	if choice.Message.Content != "" {
		return choice.Message.Content, nil
	}
	if choice.Text != "" {
		return choice.Text, nil
	}
	return "", fmt.Errorf("%w: empty choice content", ErrMalformedResponse)
}

// streamOpenAI consumes OpenAI-style SSE deltas, forwarding each text chunk
// to onDelta and returning the accumulated completion. Unparseable frames
// are skipped so one bad event never kills the stream.
func (c *Client) streamOpenAI(ctx context.Context, resp *http.Response, onDelta DeltaFunc) (string, error) {
	defer resp.Body.Close()

	var full strings.Builder
	err := scanSSE(ctx, resp.Body, func(data string) (bool, error) {
		var chunk openAIResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			logging.VendorDebug("streamOpenAI: skipping unparseable frame: %v", err)
			return false, nil
		}
		if len(chunk.Choices) == 0 {
			return false, nil
		}
		choice := chunk.Choices[0]
		if choice.Delta != nil && choice.Delta.Content != "" {
			full.WriteString(choice.Delta.Content)
			onDelta(choice.Delta.Content)
		}
		return choice.FinishReason != "", nil
	})
	if err != nil {
		return "", err
	}
	return full.String(), nil
}
