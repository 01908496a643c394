package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ProviderType identifies one of the supported upstream LLM providers.
type ProviderType string

const (
	ProviderOpenAI     ProviderType = "openai"
	ProviderAnthropic  ProviderType = "anthropic"
	ProviderGoogle     ProviderType = "google"
	ProviderOllama     ProviderType = "ollama"
	ProviderOpenRouter ProviderType = "openrouter"
)

// ParseProviderType converts a string into a ProviderType, case-insensitively.
func ParseProviderType(value string) (ProviderType, error) {
	switch ProviderType(strings.ToLower(strings.TrimSpace(value))) {
	case ProviderOpenAI:
		return ProviderOpenAI, nil
	case ProviderAnthropic:
		return ProviderAnthropic, nil
	case ProviderGoogle:
		return ProviderGoogle, nil
	case ProviderOllama:
		return ProviderOllama, nil
	case ProviderOpenRouter:
		return ProviderOpenRouter, nil
	default:
		return "", fmt.Errorf("unknown provider %q", value)
	}
}

// String returns the wire representation of the provider type.
func (p ProviderType) String() string {
	return string(p)
}

// Validation sentinels. Stream clients return these (wrapped) before any
// network call is made, so callers can map them to a bad-request response.
var (
	ErrMissingAPIKey = errors.New("API key is not set")
	ErrMissingModel  = errors.New("model is not set")
)

// MessageRole represents the role of a message; compatible with string.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message represents a single message in a conversation as sent upstream.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content,omitempty"`
}

// SamplingConfig carries the optional sampling parameters of a request.
// Nil fields are omitted on the wire so each provider applies its own
// defaults.
type SamplingConfig struct {
	Temperature *float32 `json:"temperature,omitempty"` // Sampling temperature. Higher => more random.
	TopP        *float32 `json:"top_p,omitempty"`       // Nucleus sampling cutoff.
	TopK        *int     `json:"top_k,omitempty"`       // Top-k sampling cutoff (Anthropic, Google, Ollama).
	MaxTokens   *int     `json:"max_tokens,omitempty"`  // Response token cap.
}

// Attachment is an inline binary payload accompanying a request, typically a
// reference image for image-generation models.
type Attachment struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// Request is the normalized chat request handed to a stream client. The
// orchestrator resolves persona/prompt enrichment and provider settings
// before building one; stream clients translate it into their wire format.
type Request struct {
	Model        string          `json:"model"`
	Messages     []Message       `json:"messages"`
	SystemPrompt string          `json:"system_prompt,omitempty"`
	Sampling     *SamplingConfig `json:"sampling,omitempty"`
	Attachments  []Attachment    `json:"attachments,omitempty"`
}

// ClientSettings carries the per-user, per-provider connection settings a
// stream client is constructed with. Empty fields fall back to the
// provider's environment defaults.
type ClientSettings struct {
	APIKey  string
	BaseURL string
}

// StreamClient is the contract every provider implementation satisfies.
//
// Stream validates the request (model, credentials) synchronously and
// returns a [ChunkStream] whose network I/O happens lazily as the chunk
// sequence is consumed. Pre-stream validation failures are returned as a
// normal error wrapping [ErrMissingAPIKey] or [ErrMissingModel]; transport
// and protocol failures surface through the chunk iterator's error side.
type StreamClient interface {
	Stream(ctx context.Context, request Request) (*ChunkStream, error)
}
