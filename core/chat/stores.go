package chat

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/leofalp/conduit/core/prompt"
	"github.com/leofalp/conduit/providers/llm"
)

// ErrConversationNotFound is returned by ConversationStore implementations
// when the requested conversation does not exist.
var ErrConversationNotFound = errors.New("conversation not found")

// ConversationStore persists conversations, their messages, and usage
// metrics. One turn mutates one conversation at a time; implementations
// need no cross-turn locking beyond their storage defaults.
type ConversationStore interface {
	// Conversation loads a conversation with its messages in creation
	// order, or ErrConversationNotFound.
	Conversation(ctx context.Context, id int64) (*Conversation, error)

	// Conversations lists a user's conversations without message bodies.
	Conversations(ctx context.Context, userID string) ([]Conversation, error)

	// CreateConversation persists a new conversation and assigns its ID.
	CreateConversation(ctx context.Context, conversation *Conversation) error

	// AppendMessage appends a message to a conversation and assigns its
	// store surrogate Seq.
	AppendMessage(ctx context.Context, conversationID int64, message *Message) error

	// SaveMetric persists a usage metric record and assigns its ID.
	SaveMetric(ctx context.Context, metric *UsageMetric) error
}

// StoredFile is the stable handle of a persisted binary.
type StoredFile struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// FileStore persists binary payloads (attachments, generated images) and
// returns a stable reference.
type FileStore interface {
	Save(ctx context.Context, fileName, contentType string, data []byte) (StoredFile, error)
}

// PersonaStore resolves stored personas for request enrichment.
type PersonaStore interface {
	Persona(ctx context.Context, id string) (*prompt.Persona, error)
}

// PromptStore resolves stored prompt templates for request enrichment.
type PromptStore interface {
	Template(ctx context.Context, id string) (*prompt.Template, error)
}

// ProviderSettings are the per-user connection settings for one provider.
type ProviderSettings struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// SettingsResolver maps a user and provider to connection settings.
type SettingsResolver interface {
	Resolve(ctx context.Context, userID string, provider llm.ProviderType) (ProviderSettings, error)
}

// Notification is the payload of a turn-completion notification.
type Notification struct {
	Kind           string    `json:"kind"`
	ConversationID int64     `json:"conversationId,omitempty"`
	MessageID      uuid.UUID `json:"messageId"`
}

// NotificationSink delivers fire-and-forget per-user events. Delivery is
// best-effort: the orchestrator logs and swallows errors, and never retries.
type NotificationSink interface {
	Notify(ctx context.Context, userID string, notification Notification) error
}

// ClientFactory builds a provider stream client from resolved settings.
// Satisfied by registry.Factory.
type ClientFactory interface {
	Client(provider llm.ProviderType, settings llm.ClientSettings) (llm.StreamClient, error)
}

// PricingLookup converts usage reports to dollar costs. Satisfied by
// pricing.Lookup.
type PricingLookup interface {
	TurnCost(ctx context.Context, provider llm.ProviderType, model string, usage llm.Usage) float64
}
