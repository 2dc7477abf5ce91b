package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func directOpenAIConfig(endpoint string) GenerateConfig {
	return GenerateConfig{
		Transport: TransportDirect,
		Vendor:    VendorOpenAI,
		Model:     "gpt-4o-mini",
		Endpoint:  endpoint,
		APIKey:    "test-key",
	}
}

func directClaudeConfig(endpoint string) GenerateConfig {
	return GenerateConfig{
		Transport: TransportDirect,
		Vendor:    VendorClaude,
		Model:     "claude-sonnet-4-20250514",
		Endpoint:  endpoint,
		APIKey:    "test-key",
	}
}

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  GenerateConfig
	}{
		{"empty", GenerateConfig{}},
		{"bad transport", GenerateConfig{Transport: "carrier-pigeon", Vendor: VendorOpenAI, Model: "m"}},
		{"bad vendor", GenerateConfig{Transport: TransportDirect, Vendor: "gemini", Model: "m", APIKey: "k"}},
		{"missing model", GenerateConfig{Transport: TransportDirect, Vendor: VendorOpenAI, APIKey: "k"}},
		{"proxy without endpoint", GenerateConfig{Transport: TransportProxy, Vendor: VendorOpenAI, Model: "m"}},
		{"direct without key", GenerateConfig{Transport: TransportDirect, Vendor: VendorClaude, Model: "m", Endpoint: "https://example.com"}},
	}

	client := NewClient()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := client.Generate(context.Background(), []Message{NewUserMessage("hi")}, tc.cfg, nil)
			if !errors.Is(err, ErrNotConfigured) {
				t.Errorf("expected ErrNotConfigured, got %v", err)
			}
		})
	}
}

func TestGenerateOpenAIDirect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", got)
		}
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Model != "gpt-4o-mini" {
			t.Errorf("unexpected model: %s", req.Model)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"  hello there  "}}]}`)
	}))
	defer server.Close()

	client := NewClient()
	text, err := client.Generate(context.Background(), []Message{NewUserMessage("hi")}, directOpenAIConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "hello there" {
		t.Errorf("expected trimmed content, got %q", text)
	}
}

func TestGenerateOpenAIDirectTextFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"text":"legacy completion"}]}`)
	}))
	defer server.Close()

	client := NewClient()
	text, err := client.Generate(context.Background(), []Message{NewUserMessage("hi")}, directOpenAIConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "legacy completion" {
		t.Errorf("expected text field fallback, got %q", text)
	}
}

func TestGenerateOpenAIStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if !req.Stream {
			t.Error("expected streaming request")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: not-json-should-be-skipped\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"!\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	cfg := directOpenAIConfig(server.URL)
	cfg.Stream = true

	var deltas []string
	client := NewClient()
	text, err := client.Generate(context.Background(), []Message{NewUserMessage("hi")}, cfg, func(d string) {
		deltas = append(deltas, d)
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "Hello!" {
		t.Errorf("expected accumulated text Hello!, got %q", text)
	}
	if len(deltas) != 3 {
		t.Errorf("expected 3 deltas, got %d: %v", len(deltas), deltas)
	}
}

func TestGenerateClaudeDirect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("unexpected api key header: %s", got)
		}
		if got := r.Header.Get("anthropic-version"); got != "2023-06-01" {
			t.Errorf("unexpected version header: %s", got)
		}
		var req claudeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.System != "be brief" {
			t.Errorf("system content not extracted: %q", req.System)
		}
		for _, m := range req.Messages {
			if m.Role == RoleSystem {
				t.Error("system role must not appear in messages")
			}
		}
		fmt.Fprint(w, `{"content":[{"type":"text","text":"first "},{"type":"text","text":"second"}]}`)
	}))
	defer server.Close()

	client := NewClient()
	messages := []Message{
		NewSystemMessage("be brief"),
		NewUserMessage("hi"),
	}
	text, err := client.Generate(context.Background(), messages, directClaudeConfig(server.URL), nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "first second" {
		t.Errorf("expected concatenated content blocks, got %q", text)
	}
}

func TestGenerateClaudeStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\n")
		fmt.Fprint(w, "data: {\"type\":\"message_start\"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi \"}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"you\"}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"message_stop\"}\n\n")
	}))
	defer server.Close()

	cfg := directClaudeConfig(server.URL)
	cfg.Stream = true

	var deltas []string
	client := NewClient()
	text, err := client.Generate(context.Background(), []Message{NewUserMessage("hi")}, cfg, func(d string) {
		deltas = append(deltas, d)
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "Hi you" {
		t.Errorf("expected accumulated text, got %q", text)
	}
	if len(deltas) != 2 {
		t.Errorf("expected 2 deltas, got %d", len(deltas))
	}
}

func TestNormalizeClaude(t *testing.T) {
	t.Run("merges adjacent same-role messages", func(t *testing.T) {
		system, out := normalizeClaude([]Message{
			NewUserMessage("one"),
			NewUserMessage("two"),
			NewAssistantMessage("reply"),
			NewAssistantMessage("more"),
			NewUserMessage("three"),
		})
		if system != "" {
			t.Errorf("unexpected system: %q", system)
		}
		if len(out) != 3 {
			t.Fatalf("expected 3 merged messages, got %d", len(out))
		}
		if out[0].Content != "one\n\ntwo" {
			t.Errorf("bad merge: %q", out[0].Content)
		}
		if out[1].Content != "reply\n\nmore" {
			t.Errorf("bad merge: %q", out[1].Content)
		}
	})

	t.Run("prepends placeholder when assistant speaks first", func(t *testing.T) {
		_, out := normalizeClaude([]Message{
			NewSystemMessage("sys"),
			NewAssistantMessage("opening line"),
		})
		if len(out) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(out))
		}
		if out[0].Role != RoleUser {
			t.Errorf("expected leading user message, got %s", out[0].Role)
		}
	})

	t.Run("joins multiple system messages", func(t *testing.T) {
		system, out := normalizeClaude([]Message{
			NewSystemMessage("a"),
			NewUserMessage("hi"),
			NewSystemMessage("b"),
		})
		if system != "a\n\nb" {
			t.Errorf("bad system join: %q", system)
		}
		if len(out) != 1 {
			t.Fatalf("expected 1 message, got %d", len(out))
		}
	})

	t.Run("never leaves adjacent same roles", func(t *testing.T) {
		inputs := [][]Message{
			{NewUserMessage("a"), NewUserMessage("b"), NewUserMessage("c")},
			{NewAssistantMessage("a"), NewUserMessage("b"), NewUserMessage("c"), NewAssistantMessage("d")},
			{NewSystemMessage("s"), NewAssistantMessage("a"), NewAssistantMessage("b")},
		}
		for _, in := range inputs {
			_, out := normalizeClaude(in)
			if len(out) > 0 && out[0].Role != RoleUser {
				t.Errorf("conversation must start with user, got %s", out[0].Role)
			}
			for i := 1; i < len(out); i++ {
				if out[i].Role == out[i-1].Role {
					t.Errorf("adjacent same roles at %d: %v", i, out)
				}
			}
		}
	})
}

func TestGenerateTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key"}}`)
	}))
	defer server.Close()

	client := NewClient()
	_, err := client.Generate(context.Background(), []Message{NewUserMessage("hi")}, directOpenAIConfig(server.URL), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
	if te.Status != http.StatusUnauthorized {
		t.Errorf("unexpected status: %d", te.Status)
	}
	if Classify(err) != CategoryAuth {
		t.Errorf("expected auth classification, got %s", Classify(err))
	}
}

func TestGenerateCancellation(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	client := NewClient()
	_, err := client.Generate(ctx, []Message{NewUserMessage("hi")}, directOpenAIConfig(server.URL), nil)
	if !IsCancellation(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if Classify(err) != CategoryCancelled {
		t.Errorf("expected cancelled classification, got %s", Classify(err))
	}
}

func TestGenerateTimeoutCeiling(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	cfg := directOpenAIConfig(server.URL)
	cfg.Timeout = 50 * time.Millisecond

	client := NewClient()
	start := time.Now()
	_, err := client.Generate(context.Background(), []Message{NewUserMessage("hi")}, cfg, nil)
	if !IsCancellation(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout ceiling not applied, took %v", elapsed)
	}
	if Classify(err) != CategoryTimeout {
		t.Errorf("expected timeout classification, got %s", Classify(err))
	}
}

func TestGenerateMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer server.Close()

	client := NewClient()
	_, err := client.Generate(context.Background(), []Message{NewUserMessage("hi")}, directOpenAIConfig(server.URL), nil)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestTestConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer server.Close()

	client := NewClient()
	summary, err := client.TestConnection(context.Background(), directOpenAIConfig(server.URL))
	if err != nil {
		t.Fatalf("TestConnection failed: %v", err)
	}
	if !strings.Contains(summary, "direct/openai") {
		t.Errorf("unexpected summary: %q", summary)
	}
}

func TestTransportErrorClassify(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   Category
	}{
		{401, "", CategoryAuth},
		{403, "", CategoryAuth},
		{429, "", CategoryRateLimit},
		{408, "", CategoryTimeout},
		{504, "", CategoryTimeout},
		{500, "", CategoryServer},
		{503, "overloaded", CategoryServer},
		{400, "invalid api key provided", CategoryAuth},
		{400, "you have exceeded your quota", CategoryRateLimit},
		{400, "upstream timed out", CategoryTimeout},
		{400, "something odd", CategoryUnknown},
	}
	for _, tc := range cases {
		te := &TransportError{Status: tc.status, Body: tc.body}
		if got := te.Classify(); got != tc.want {
			t.Errorf("Classify(%d, %q) = %s, want %s", tc.status, tc.body, got, tc.want)
		}
	}
}
