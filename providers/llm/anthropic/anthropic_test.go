package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/leofalp/conduit/providers/llm"
)

// writeSSE writes an SSE data line to the response writer and flushes.
func writeSSE(writer http.ResponseWriter, data string) {
	fmt.Fprintf(writer, "data: %s\n\n", data)
	if flusher, ok := writer.(http.Flusher); ok {
		flusher.Flush()
	}
}

// TestStream_ContentAndUsage verifies text delta extraction and that
// message_stop resolves the usage promise.
func TestStream_ContentAndUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if key := request.Header.Get("x-api-key"); key != "test-key" {
			t.Errorf("expected x-api-key header, got %q", key)
		}
		if version := request.Header.Get("anthropic-version"); version != "2023-06-01" {
			t.Errorf("expected anthropic-version header, got %q", version)
		}

		writer.Header().Set("Content-Type", "text/event-stream")
		writer.WriteHeader(http.StatusOK)

		writeSSE(writer, `{"type":"message_start","message":{"id":"msg_1"}}`)
		writeSSE(writer, `{"type":"content_block_delta","delta":{"type":"text_delta","text":"Hello"}}`)
		writeSSE(writer, `{"type":"content_block_delta","delta":{"type":"text_delta","text":" world"}}`)
		writeSSE(writer, `{"type":"message_stop","usage":{"input_tokens":9,"output_tokens":3}}`)
	}))
	defer server.Close()

	client := New().WithBaseURL(server.URL).WithAPIKey("test-key")

	stream, err := client.Stream(context.Background(), llm.Request{
		Model:    "claude-sonnet-4-20250514",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}

	text, _, err := stream.Collect()
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if text != "Hello world" {
		t.Errorf("expected 'Hello world', got %q", text)
	}

	usage := stream.Usage().Await(context.Background())
	if usage.PromptTokens != 9 || usage.CompletionTokens != 3 {
		t.Errorf("expected usage {9 3}, got {%d %d}", usage.PromptTokens, usage.CompletionTokens)
	}
}

// TestStream_PlaceholderUserMessage verifies that a message list not
// starting with a user turn gets a synthetic leading user message, and
// that system-role messages never travel in the messages array.
func TestStream_PlaceholderUserMessage(t *testing.T) {
	var captured wireRequest
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if err := json.NewDecoder(request.Body).Decode(&captured); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		writer.Header().Set("Content-Type", "text/event-stream")
		writer.WriteHeader(http.StatusOK)
		writeSSE(writer, `{"type":"message_stop","usage":{"input_tokens":1,"output_tokens":1}}`)
	}))
	defer server.Close()

	client := New().WithBaseURL(server.URL).WithAPIKey("test-key")

	stream, err := client.Stream(context.Background(), llm.Request{
		Model:        "claude-sonnet-4-20250514",
		SystemPrompt: "Be helpful.",
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "legacy system message"},
			{Role: llm.RoleAssistant, Content: "Previously..."},
			{Role: llm.RoleUser, Content: "Continue"},
		},
	})
	if err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}
	_, _, _ = stream.Collect()

	if captured.System != "Be helpful." {
		t.Errorf("expected system field 'Be helpful.', got %q", captured.System)
	}
	if len(captured.Messages) != 3 {
		t.Fatalf("expected 3 messages (placeholder + 2), got %d", len(captured.Messages))
	}
	if captured.Messages[0].Role != "user" || captured.Messages[0].Content != "..." {
		t.Errorf("expected synthetic leading user message, got %+v", captured.Messages[0])
	}
	for _, message := range captured.Messages {
		if message.Role == "system" {
			t.Error("system-role message must not appear in the messages array")
		}
	}
	if captured.MaxTokens != defaultMaxTokens {
		t.Errorf("expected default max_tokens %d, got %d", defaultMaxTokens, captured.MaxTokens)
	}
}

// TestStream_MissingAPIKey verifies the synchronous credential check.
func TestStream_MissingAPIKey(t *testing.T) {
	client := &Client{baseURL: defaultBaseURL, client: &http.Client{}}

	_, err := client.Stream(context.Background(), llm.Request{Model: "claude-sonnet-4-20250514"})
	if !errors.Is(err, llm.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

// TestStream_ErrorEvent verifies that an error event surfaces as a stream
// error after any prior deltas.
func TestStream_ErrorEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "text/event-stream")
		writer.WriteHeader(http.StatusOK)
		writeSSE(writer, `{"type":"content_block_delta","delta":{"type":"text_delta","text":"part"}}`)
		writeSSE(writer, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
	}))
	defer server.Close()

	client := New().WithBaseURL(server.URL).WithAPIKey("test-key")

	stream, err := client.Stream(context.Background(), llm.Request{Model: "claude-sonnet-4-20250514"})
	if err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}

	text, _, err := stream.Collect()
	if text != "part" {
		t.Errorf("expected partial text 'part', got %q", text)
	}
	if err == nil {
		t.Fatal("expected a stream error")
	}
}
