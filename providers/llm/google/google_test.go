package google

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

// writeElement writes one element of the streamed JSON array, matching
// Gemini's line-per-element response shape.
func writeElement(writer http.ResponseWriter, prefix, element string) {
	fmt.Fprintf(writer, "%s%s\n", prefix, element)
	if flusher, ok := writer.(http.Flusher); ok {
		flusher.Flush()
	}
}

// TestStream_ContentAndUsage verifies line-by-line array parsing, text
// extraction from the first candidate, and usage from the final element.
func TestStream_ContentAndUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if key := request.Header.Get("x-goog-api-key"); key != "test-key" {
			t.Errorf("expected x-goog-api-key header, got %q", key)
		}
		writer.WriteHeader(http.StatusOK)

		writeElement(writer, "[", `{"candidates":[{"content":{"parts":[{"text":"Hello"}],"role":"model"}}]}`)
		writeElement(writer, ",", `{"candidates":[{"content":{"parts":[{"text":" world"}],"role":"model"}}]}`)
		writeElement(writer, ",", `{"candidates":[{"content":{"parts":[{"text":"!"}],"role":"model"},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":7,"candidatesTokenCount":3}}`)
		fmt.Fprint(writer, "]\n")
	}))
	defer server.Close()

	client := New().WithBaseURL(server.URL).WithAPIKey("test-key")

	stream, err := client.Stream(context.Background(), llm.Request{
		Model:    "gemini-2.0-flash",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}

	text, _, err := stream.Collect()
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if text != "Hello world!" {
		t.Errorf("expected 'Hello world!', got %q", text)
	}

	usage := stream.Usage().Await(context.Background())
	if usage.PromptTokens != 7 || usage.CompletionTokens != 3 {
		t.Errorf("expected usage {7 3}, got {%d %d}", usage.PromptTokens, usage.CompletionTokens)
	}
}

// TestStream_UsageFromFinalElement verifies that intermediate elements
// carrying a partial usageMetadata (prompt count only) do not win over the
// final element's complete counts.
func TestStream_UsageFromFinalElement(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusOK)

		writeElement(writer, "[", `{"candidates":[{"content":{"parts":[{"text":"Hello"}],"role":"model"}}],"usageMetadata":{"promptTokenCount":7}}`)
		writeElement(writer, ",", `{"candidates":[{"content":{"parts":[{"text":" there"}],"role":"model"},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":7,"candidatesTokenCount":9}}`)
		fmt.Fprint(writer, "]\n")
	}))
	defer server.Close()

	client := New().WithBaseURL(server.URL).WithAPIKey("test-key")

	stream, err := client.Stream(context.Background(), llm.Request{
		Model:    "gemini-2.0-flash",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}

	text, _, err := stream.Collect()
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if text != "Hello there" {
		t.Errorf("expected 'Hello there', got %q", text)
	}

	usage := stream.Usage().Await(context.Background())
	if usage.PromptTokens != 7 || usage.CompletionTokens != 9 {
		t.Errorf("expected usage {7 9}, got {%d %d}", usage.PromptTokens, usage.CompletionTokens)
	}
}

// TestStream_RoleMapping verifies assistant messages map to the "model"
// role and the system prompt travels in systemInstruction.
func TestStream_RoleMapping(t *testing.T) {
	var captured wireRequest
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if err := json.NewDecoder(request.Body).Decode(&captured); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		writer.WriteHeader(http.StatusOK)
		fmt.Fprint(writer, "[{\"usageMetadata\":{\"promptTokenCount\":1,\"candidatesTokenCount\":0}}]\n")
	}))
	defer server.Close()

	client := New().WithBaseURL(server.URL).WithAPIKey("test-key")

	stream, err := client.Stream(context.Background(), llm.Request{
		Model:        "gemini-2.0-flash",
		SystemPrompt: "Be brief.",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "Hi"},
			{Role: llm.RoleAssistant, Content: "Hello"},
			{Role: llm.RoleUser, Content: "More"},
		},
	})
	if err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}
	_, _, _ = stream.Collect()

	if captured.SystemInstruction == nil || captured.SystemInstruction.Parts[0].Text != "Be brief." {
		t.Errorf("expected systemInstruction 'Be brief.', got %+v", captured.SystemInstruction)
	}
	if len(captured.Contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(captured.Contents))
	}
	if captured.Contents[1].Role != "model" {
		t.Errorf("expected assistant message mapped to 'model', got %q", captured.Contents[1].Role)
	}
}

// TestStream_MissingAPIKey verifies the synchronous credential check.
func TestStream_MissingAPIKey(t *testing.T) {
	client := &Client{baseURL: defaultBaseURL, client: &http.Client{}}

	_, err := client.Stream(context.Background(), llm.Request{Model: "gemini-2.0-flash"})
	if !errors.Is(err, llm.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}
