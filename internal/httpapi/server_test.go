package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leofalp/conduit/core/chat"
	"github.com/leofalp/conduit/core/pricing"
	"github.com/leofalp/conduit/core/tokenizer"
	"github.com/leofalp/conduit/internal/store/memory"
	"github.com/leofalp/conduit/providers/llm"
)

// scriptedClient yields a fixed chunk script; panicAfter > 0 makes the
// iterator panic after that many chunks to exercise the recovery path.
type scriptedClient struct {
	chunks     []llm.Chunk
	panicAfter int
}

func (c *scriptedClient) Stream(ctx context.Context, _ llm.Request) (*llm.ChunkStream, error) {
	usage := llm.NewUsagePromise()
	iterator := func(yield func(llm.Chunk, error) bool) {
		defer usage.Resolve(llm.Usage{PromptTokens: 5, CompletionTokens: 2})
		for i, chunk := range c.chunks {
			if c.panicAfter > 0 && i >= c.panicAfter {
				panic("stream corrupted")
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
	return llm.NewChunkStream(iterator, usage), nil
}

type singleClientFactory struct {
	client llm.StreamClient
}

func (f singleClientFactory) Client(llm.ProviderType, llm.ClientSettings) (llm.StreamClient, error) {
	return f.client, nil
}

type staticSettings struct{}

func (staticSettings) Resolve(context.Context, string, llm.ProviderType) (chat.ProviderSettings, error) {
	return chat.ProviderSettings{APIKey: "key", DefaultModel: "gpt-4o-mini"}, nil
}

// newTestServer wires the full router around a scripted provider client.
func newTestServer(client llm.StreamClient) (*Server, *memory.ConversationStore) {
	store := memory.NewConversationStore()
	orchestrator := chat.NewOrchestrator(chat.Dependencies{
		Conversations: store,
		Settings:      staticSettings{},
		Clients:       singleClientFactory{client: client},
		Pricing:       pricing.NewLookup(),
		Tokenizer:     tokenizer.New(),
	})
	server := NewServer(orchestrator, store, Options{
		Addr:           ":0",
		AllowedOrigins: []string{"*"},
	})
	return server, store
}

func postChat(t *testing.T, server *Server, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	if user != "" {
		request.Header.Set(userIDHeader, user)
	}
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, request)
	return recorder
}

// TestChatStream_SSEFraming verifies the wire format of one persisted
// turn: event-stream headers, the conversation id as a JSON string, text
// deltas, and the terminal message frame.
func TestChatStream_SSEFraming(t *testing.T) {
	server, _ := newTestServer(&scriptedClient{chunks: []llm.Chunk{{Text: "Hello"}, {Text: " world"}}})

	recorder := postChat(t, server, "alice", `{"message":"hi","provider":"openai"}`)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if got := recorder.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", got)
	}
	if got := recorder.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("expected no-cache, got %q", got)
	}
	if !recorder.Flushed {
		t.Error("expected the response to be flushed")
	}

	body := recorder.Body.String()
	if !strings.Contains(body, "event: conversation_id\ndata: \"1\"\n\n") {
		t.Errorf("missing conversation_id frame with string payload:\n%s", body)
	}
	if !strings.Contains(body, "event: content\ndata: \"Hello\"\n\n") {
		t.Errorf("missing content frame:\n%s", body)
	}
	if !strings.Contains(body, "event: final_message\ndata: {") {
		t.Errorf("missing final_message frame:\n%s", body)
	}
	if !strings.Contains(body, `"finishReason":"complete"`) {
		t.Errorf("final message missing finish reason:\n%s", body)
	}
	if !strings.Contains(body, "event: metrics\ndata: {") {
		t.Errorf("missing metrics frame:\n%s", body)
	}

	// conversation_id strictly precedes the first content frame.
	if strings.Index(body, "event: conversation_id") > strings.Index(body, "event: content") {
		t.Errorf("conversation_id not first:\n%s", body)
	}
}

// TestChatStream_ValidationIs400 verifies that validation failures are
// reported as JSON before any SSE frame.
func TestChatStream_ValidationIs400(t *testing.T) {
	server, _ := newTestServer(&scriptedClient{})

	cases := []struct {
		name string
		body string
	}{
		{"missing provider", `{"message":"hi"}`},
		{"unknown provider", `{"message":"hi","provider":"skynet"}`},
		{"missing message", `{"provider":"openai"}`},
		{"malformed json", `{"message":`},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			recorder := postChat(t, server, "", testCase.body)
			if recorder.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", recorder.Code, recorder.Body.String())
			}
			if got := recorder.Header().Get("Content-Type"); got != "application/json" {
				t.Errorf("expected application/json, got %q", got)
			}
			var payload map[string]string
			if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
				t.Fatalf("error body is not JSON: %v", err)
			}
			if payload["error"] == "" {
				t.Error("expected an error message")
			}
		})
	}
}

// TestChatStream_PanicBecomesErrorFrame verifies the mid-stream last
// resort: a panic after frames have gone out ends the stream with a
// terminal error frame instead of a broken connection.
func TestChatStream_PanicBecomesErrorFrame(t *testing.T) {
	server, _ := newTestServer(&scriptedClient{
		chunks:     []llm.Chunk{{Text: "partial"}, {Text: "never"}},
		panicAfter: 1,
	})

	recorder := postChat(t, server, "alice", `{"message":"hi","provider":"openai"}`)

	body := recorder.Body.String()
	if !strings.Contains(body, "event: content\ndata: \"partial\"\n\n") {
		t.Errorf("expected the pre-panic frame delivered:\n%s", body)
	}
	if !strings.Contains(body, "event: error\ndata: {") {
		t.Errorf("expected a terminal error frame:\n%s", body)
	}
	if !strings.Contains(body, chat.CodeGenerationFailed) {
		t.Errorf("expected error code in terminal frame:\n%s", body)
	}
}

// TestConversationEndpoints exercises list and get through the router,
// including ownership scoping.
func TestConversationEndpoints(t *testing.T) {
	server, _ := newTestServer(&scriptedClient{chunks: []llm.Chunk{{Text: "answer"}}})

	// Seed one conversation through a chat turn.
	if recorder := postChat(t, server, "alice", `{"message":"hi","provider":"openai"}`); recorder.Code != http.StatusOK {
		t.Fatalf("seeding turn failed: %d %s", recorder.Code, recorder.Body.String())
	}

	get := func(user, path string) *httptest.ResponseRecorder {
		request := httptest.NewRequest(http.MethodGet, path, nil)
		if user != "" {
			request.Header.Set(userIDHeader, user)
		}
		recorder := httptest.NewRecorder()
		server.Handler().ServeHTTP(recorder, request)
		return recorder
	}

	// Owner sees the conversation in the list.
	recorder := get("alice", "/api/conversations")
	if recorder.Code != http.StatusOK {
		t.Fatalf("list failed: %d", recorder.Code)
	}
	var listed []chat.Conversation
	if err := json.Unmarshal(recorder.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(listed) != 1 || listed[0].Title != "hi" {
		t.Fatalf("unexpected list: %+v", listed)
	}
	if len(listed[0].Messages) != 0 {
		t.Error("list must not include message bodies")
	}

	// Another user's list is empty, not an error.
	recorder = get("bob", "/api/conversations")
	if recorder.Code != http.StatusOK || strings.TrimSpace(recorder.Body.String()) != "[]" {
		t.Errorf("expected empty JSON array for other user, got %d %q", recorder.Code, recorder.Body.String())
	}

	// Owner gets the full conversation.
	recorder = get("alice", "/api/conversations/1")
	if recorder.Code != http.StatusOK {
		t.Fatalf("get failed: %d", recorder.Code)
	}
	var conversation chat.Conversation
	if err := json.Unmarshal(recorder.Body.Bytes(), &conversation); err != nil {
		t.Fatalf("decoding conversation: %v", err)
	}
	if len(conversation.Messages) != 2 {
		t.Errorf("expected user + assistant messages, got %d", len(conversation.Messages))
	}

	// Other users and unknown ids both read as 404.
	if recorder = get("bob", "/api/conversations/1"); recorder.Code != http.StatusNotFound {
		t.Errorf("expected 404 for foreign conversation, got %d", recorder.Code)
	}
	if recorder = get("alice", "/api/conversations/999"); recorder.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown conversation, got %d", recorder.Code)
	}
	if recorder = get("alice", "/api/conversations/abc"); recorder.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed id, got %d", recorder.Code)
	}
}

// TestHealthz verifies the liveness endpoint.
func TestHealthz(t *testing.T) {
	server, _ := newTestServer(&scriptedClient{})

	request := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "ok") {
		t.Errorf("unexpected body: %s", recorder.Body.String())
	}
}
