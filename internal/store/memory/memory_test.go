package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/leofalp/conduit/core/chat"
	"github.com/leofalp/conduit/core/prompt"
	"github.com/leofalp/conduit/providers/llm"
)

func TestConversationStoreRoundTrip(t *testing.T) {
	store := NewConversationStore()
	ctx := context.Background()

	conversation := &chat.Conversation{OwnerID: "alice", Title: "first"}
	if err := store.CreateConversation(ctx, conversation); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if conversation.ID == 0 {
		t.Fatal("expected an assigned id")
	}

	message := &chat.Message{ID: uuid.New(), Role: llm.RoleUser, Content: "hello"}
	if err := store.AppendMessage(ctx, conversation.ID, message); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if message.Seq == 0 {
		t.Error("expected an assigned seq")
	}
	if message.ConversationID != conversation.ID {
		t.Error("expected the conversation id stamped onto the message")
	}

	loaded, err := store.Conversation(ctx, conversation.ID)
	if err != nil {
		t.Fatalf("Conversation: %v", err)
	}
	if len(loaded.Messages) != 1 || loaded.Messages[0].Content != "hello" {
		t.Errorf("unexpected messages: %+v", loaded.Messages)
	}

	// The returned value is a copy; mutating it must not leak back.
	loaded.Messages[0].Content = "mutated"
	reloaded, _ := store.Conversation(ctx, conversation.ID)
	if reloaded.Messages[0].Content != "hello" {
		t.Error("store returned a shared reference")
	}
}

func TestConversationStoreNotFound(t *testing.T) {
	store := NewConversationStore()

	if _, err := store.Conversation(context.Background(), 42); !errors.Is(err, chat.ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound, got %v", err)
	}
	if err := store.AppendMessage(context.Background(), 42, &chat.Message{ID: uuid.New()}); !errors.Is(err, chat.ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestConversationsListScopedAndOrdered(t *testing.T) {
	store := NewConversationStore()
	ctx := context.Background()

	for _, seed := range []chat.Conversation{
		{OwnerID: "alice", Title: "oldest"},
		{OwnerID: "alice", Title: "hidden", Hidden: true},
		{OwnerID: "bob", Title: "other"},
		{OwnerID: "alice", Title: "newest"},
	} {
		conversation := seed
		if err := store.CreateConversation(ctx, &conversation); err != nil {
			t.Fatalf("CreateConversation: %v", err)
		}
	}

	listed, err := store.Conversations(ctx, "alice")
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 visible conversations, got %d", len(listed))
	}
	if listed[0].Title != "newest" || listed[1].Title != "oldest" {
		t.Errorf("expected newest first, got %q then %q", listed[0].Title, listed[1].Title)
	}
	for _, conversation := range listed {
		if conversation.Messages != nil {
			t.Error("list must omit message bodies")
		}
	}
}

func TestSaveMetricAssignsID(t *testing.T) {
	store := NewConversationStore()

	metric := &chat.UsageMetric{UserID: "alice", Model: "m", PromptTokens: 3}
	if err := store.SaveMetric(context.Background(), metric); err != nil {
		t.Fatalf("SaveMetric: %v", err)
	}
	if metric.ID == 0 {
		t.Error("expected an assigned metric id")
	}

	metrics := store.Metrics()
	if len(metrics) != 1 || metrics[0].PromptTokens != 3 {
		t.Errorf("unexpected metrics snapshot: %+v", metrics)
	}
}

func TestPersonaAndPromptStores(t *testing.T) {
	personas := NewPersonaStore(prompt.Persona{ID: "p1", Instructions: "be brief"})

	persona, err := personas.Persona(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Persona: %v", err)
	}
	if persona.Instructions != "be brief" {
		t.Errorf("unexpected persona: %+v", persona)
	}
	if _, err := personas.Persona(context.Background(), "missing"); err == nil {
		t.Error("expected an error for an unknown persona")
	}

	prompts := NewPromptStore()
	prompts.Put(prompt.Template{ID: "t1", Body: "hello {{user_input}}"})

	template, err := prompts.Template(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Template: %v", err)
	}
	if template.Body == "" {
		t.Error("expected the stored template body")
	}
	if _, err := prompts.Template(context.Background(), "missing"); err == nil {
		t.Error("expected an error for an unknown template")
	}
}
