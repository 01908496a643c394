// Package memory provides in-process stores backed by maps. They serve
// development and tests, and stand in when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/leofalp/conduit/core/chat"
	"github.com/leofalp/conduit/core/prompt"
)

// ConversationStore keeps conversations, messages, and metrics in memory.
// Safe for concurrent use.
type ConversationStore struct {
	mu            sync.RWMutex
	nextID        int64
	nextSeq       int64
	nextMetricID  int64
	conversations map[int64]*chat.Conversation
	metrics       []chat.UsageMetric
}

// NewConversationStore creates an empty in-memory conversation store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		conversations: make(map[int64]*chat.Conversation),
	}
}

func (s *ConversationStore) Conversation(_ context.Context, id int64) (*chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conversation, ok := s.conversations[id]
	if !ok {
		return nil, chat.ErrConversationNotFound
	}

	clone := *conversation
	clone.Messages = append([]chat.Message(nil), conversation.Messages...)
	return &clone, nil
}

func (s *ConversationStore) Conversations(_ context.Context, userID string) ([]chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []chat.Conversation
	for _, conversation := range s.conversations {
		if conversation.OwnerID != userID || conversation.Hidden {
			continue
		}
		clone := *conversation
		clone.Messages = nil
		out = append(out, clone)
	}

	// Newest first, matching the list endpoints.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *ConversationStore) CreateConversation(_ context.Context, conversation *chat.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	conversation.ID = s.nextID

	clone := *conversation
	clone.Messages = append([]chat.Message(nil), conversation.Messages...)
	s.conversations[clone.ID] = &clone
	return nil
}

func (s *ConversationStore) AppendMessage(_ context.Context, conversationID int64, message *chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conversation, ok := s.conversations[conversationID]
	if !ok {
		return chat.ErrConversationNotFound
	}

	s.nextSeq++
	message.Seq = s.nextSeq
	message.ConversationID = conversationID
	conversation.Messages = append(conversation.Messages, *message)
	return nil
}

func (s *ConversationStore) SaveMetric(_ context.Context, metric *chat.UsageMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextMetricID++
	metric.ID = s.nextMetricID
	s.metrics = append(s.metrics, *metric)
	return nil
}

// Metrics returns a snapshot of the saved metrics, oldest first.
func (s *ConversationStore) Metrics() []chat.UsageMetric {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]chat.UsageMetric(nil), s.metrics...)
}

// PersonaStore serves personas from a fixed set.
type PersonaStore struct {
	mu       sync.RWMutex
	personas map[string]prompt.Persona
}

// NewPersonaStore creates a persona store seeded with the given personas.
func NewPersonaStore(personas ...prompt.Persona) *PersonaStore {
	store := &PersonaStore{personas: make(map[string]prompt.Persona, len(personas))}
	for _, persona := range personas {
		store.personas[persona.ID] = persona
	}
	return store
}

// Put adds or replaces a persona.
func (s *PersonaStore) Put(persona prompt.Persona) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.personas[persona.ID] = persona
}

func (s *PersonaStore) Persona(_ context.Context, id string) (*prompt.Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	persona, ok := s.personas[id]
	if !ok {
		return nil, fmt.Errorf("persona %q does not exist", id)
	}
	return &persona, nil
}

// PromptStore serves prompt templates from a fixed set.
type PromptStore struct {
	mu        sync.RWMutex
	templates map[string]prompt.Template
}

// NewPromptStore creates a template store seeded with the given templates.
func NewPromptStore(templates ...prompt.Template) *PromptStore {
	store := &PromptStore{templates: make(map[string]prompt.Template, len(templates))}
	for _, template := range templates {
		store.templates[template.ID] = template
	}
	return store
}

// Put adds or replaces a template.
func (s *PromptStore) Put(template prompt.Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[template.ID] = template
}

func (s *PromptStore) Template(_ context.Context, id string) (*prompt.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	template, ok := s.templates[id]
	if !ok {
		return nil, fmt.Errorf("prompt template %q does not exist", id)
	}
	return &template, nil
}
