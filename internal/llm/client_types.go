package llm

import "time"

// Role values used in chat messages. Ordering of messages is significant;
// role-adjacency rules are vendor-specific and handled by the adapters.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Transport selects how requests reach the vendor.
type Transport string

const (
	// TransportProxy routes calls through a trusted intermediary that fans
	// out to the real vendor.
	TransportProxy Transport = "proxy"

	// TransportDirect calls the vendor endpoint itself.
	TransportDirect Transport = "direct"
)

// Vendor selects the chat-completion protocol dialect.
type Vendor string

const (
	VendorOpenAI Vendor = "openai"
	VendorClaude Vendor = "claude"
)

// Default vendor endpoints for the direct transport.
const (
	DefaultOpenAIEndpoint = "https://api.openai.com/v1"
	DefaultClaudeEndpoint = "https://api.anthropic.com/v1"

	// anthropicVersion is the versioned protocol header required by the
	// Claude messages API.
	anthropicVersion = "2023-06-01"

	// DefaultTimeout is the per-call ceiling applied when the caller's
	// context carries no deadline of its own.
	DefaultTimeout = 120 * time.Second
)

// GenerateConfig selects transport, vendor, and generation parameters for a
// single call. Timeout is per-call configuration, not global.
type GenerateConfig struct {
	Transport   Transport
	Vendor      Vendor
	Model       string
	Temperature float64
	MaxTokens   int
	Endpoint    string // vendor endpoint (direct) or proxy base URL (proxy)
	APIKey      string
	Stream      bool
	Timeout     time.Duration
}

// DeltaFunc receives incremental text deltas during streaming generation.
type DeltaFunc func(delta string)

// openAIRequest is the OpenAI-compatible chat completions request body.
type openAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// openAIResponse is the OpenAI-compatible response, covering both the
// non-streaming message shape and streaming deltas.
type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		Delta *struct {
			Role    string `json:"role,omitempty"`
			Content string `json:"content,omitempty"`
		} `json:"delta,omitempty"`
		Text         string `json:"text,omitempty"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// claudeRequest is the Claude-native messages request body. System-role
// content travels in the top-level System field, never in Messages.
type claudeRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// claudeResponse is the Claude-native response.
type claudeResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// proxyRequest is the wire shape sent to the trusted proxy. The proxy fans
// out to the real vendor, so vendor, model, and generation parameters are
// still required.
type proxyRequest struct {
	Vendor             Vendor    `json:"vendor"`
	Messages           []Message `json:"messages"`
	Model              string    `json:"model"`
	Temperature        float64   `json:"temperature,omitempty"`
	MaxTokens          int       `json:"maxTokens,omitempty"`
	Stream             bool      `json:"stream,omitempty"`
	EndpointOverride   string    `json:"endpointOverride,omitempty"`
	CredentialOverride string    `json:"credentialOverride,omitempty"`
}
