package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/leofalp/conduit/providers/llm"
)

// FinishReason is the terminal status tag on an assistant message.
type FinishReason string

const (
	FinishComplete  FinishReason = "complete"
	FinishCancelled FinishReason = "cancelled"
	FinishError     FinishReason = "error"
)

// MessageImage is an image attached to a persisted message. Images saved to
// the file store carry a FileID; provider-hosted images keep only the
// external URL.
type MessageImage struct {
	FileID string `json:"fileId,omitempty"`
	URL    string `json:"url"`
}

// Message is one persisted turn half. Fields are fixed at creation except
// Content (built incrementally while streaming) and FinishReason (set once
// the stream ends). An assistant message's ParentID is the triggering user
// message.
type Message struct {
	ID             uuid.UUID        `json:"id"`
	Seq            int64            `json:"seq"` // store-assigned surrogate id
	ConversationID int64            `json:"conversationId,omitempty"`
	ParentID       *uuid.UUID       `json:"parentId,omitempty"`
	Role           llm.MessageRole  `json:"role"`
	Content        string           `json:"content"`
	Provider       llm.ProviderType `json:"provider,omitempty"`
	Model          string           `json:"model,omitempty"`
	FinishReason   FinishReason     `json:"finishReason,omitempty"`
	TokenCount     int              `json:"tokenCount,omitempty"`
	Error          string           `json:"error,omitempty"`
	Images         []MessageImage   `json:"images,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// Conversation aggregates the ordered messages of one chat thread. Message
// ordering is creation-time; the list is append-only.
type Conversation struct {
	ID        int64            `json:"id"`
	OwnerID   string           `json:"ownerId"`
	Title     string           `json:"title"`
	Provider  llm.ProviderType `json:"provider"`
	Messages  []Message        `json:"messages,omitempty"`
	Pinned    bool             `json:"pinned"`
	Hidden    bool             `json:"hidden"`
	Tags      []string         `json:"tags,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// UsageMetric is the persisted cost record of one completed turn.
type UsageMetric struct {
	ID               int64            `json:"id"`
	ConversationID   int64            `json:"conversationId,omitempty"`
	MessageID        uuid.UUID        `json:"messageId"`
	UserID           string           `json:"userId"`
	Provider         llm.ProviderType `json:"provider"`
	Model            string           `json:"model"`
	PromptTokens     int              `json:"promptTokens"`
	CompletionTokens int              `json:"completionTokens"`
	Cost             float64          `json:"cost"`
	Estimated        bool             `json:"estimated,omitempty"`
	DurationMs       int64            `json:"durationMs"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// AttachmentUpload is an inline binary attachment on the inbound request.
type AttachmentUpload struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Base64Data  string `json:"base64Data"`
}

// TurnRequest is the inbound request for one chat turn. It is constructed
// per HTTP call, enriched in place by persona/prompt resolution, and never
// persisted itself.
type TurnRequest struct {
	UserID         string `json:"-"`
	ConversationID *int64 `json:"conversationId,omitempty"`
	Message        string `json:"message"`
	Provider       string `json:"provider"`
	Model          string `json:"model,omitempty"`
	Stream         bool   `json:"stream"`
	Temporary      bool   `json:"isTemporary,omitempty"`

	Temperature *float32 `json:"temperature,omitempty"`
	TopP        *float32 `json:"topP,omitempty"`
	TopK        *int     `json:"topK,omitempty"`
	MaxTokens   *int     `json:"maxTokens,omitempty"`

	SystemPrompt    string             `json:"systemPrompt,omitempty"`
	Attachments     []AttachmentUpload `json:"attachments,omitempty"`
	PersonaID       string             `json:"personaId,omitempty"`
	PromptID        string             `json:"promptId,omitempty"`
	PromptVariables map[string]string  `json:"promptVariables,omitempty"`

	// Optional per-call pacing overrides; zero values select the
	// process-wide defaults.
	PaceChunkSize  int `json:"paceChunkSize,omitempty"`
	PaceIntervalMs int `json:"paceIntervalMs,omitempty"`
}

// sampling collects the request's explicitly-set sampling parameters, or
// nil when none are set.
func (request TurnRequest) sampling() *llm.SamplingConfig {
	if request.Temperature == nil && request.TopP == nil && request.TopK == nil && request.MaxTokens == nil {
		return nil
	}
	return &llm.SamplingConfig{
		Temperature: request.Temperature,
		TopP:        request.TopP,
		TopK:        request.TopK,
		MaxTokens:   request.MaxTokens,
	}
}

// titleLimit caps the auto-derived conversation title length.
const titleLimit = 80

// deriveTitle builds a conversation title from the first user message.
func deriveTitle(message string) string {
	runes := []rune(message)
	if len(runes) <= titleLimit {
		return message
	}
	return string(runes[:titleLimit]) + "…"
}
