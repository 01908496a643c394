package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
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

// TestStream_ContentAndEstimatedUsage verifies delta streaming and that
// usage resolves to a character-count estimate flagged as such.
func TestStream_ContentAndEstimatedUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if auth := request.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("expected bearer auth, got %q", auth)
		}
		writer.Header().Set("Content-Type", "text/event-stream")
		writer.WriteHeader(http.StatusOK)

		writeSSE(writer, `{"choices":[{"delta":{"content":"Hello"}}]}`)
		writeSSE(writer, `{"choices":[{"delta":{"content":" world"}}]}`)
		writeSSE(writer, `{"choices":[{"delta":{},"finish_reason":"stop"}]}`)
		writeSSE(writer, `[DONE]`)
	}))
	defer server.Close()

	client := New().WithBaseURL(server.URL).WithAPIKey("test-key")

	stream, err := client.Stream(context.Background(), llm.Request{
		Model:    "gpt-4o-mini",
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
	if !usage.Estimated {
		t.Error("expected usage to be flagged as estimated")
	}
	if usage.CompletionTokens == 0 {
		t.Error("expected a non-zero completion token estimate")
	}
}

// TestStream_ImageModelDivert verifies that image models bypass chat SSE
// and produce one synthetic chunk with a markdown link and an image ref.
func TestStream_ImageModelDivert(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if !strings.HasSuffix(request.URL.Path, "/images/generations") {
			t.Errorf("expected images/generations path, got %s", request.URL.Path)
		}
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusOK)
		fmt.Fprint(writer, `{"data":[{"url":"https://img.example/cat.png"}]}`)
	}))
	defer server.Close()

	client := New().WithBaseURL(server.URL).WithAPIKey("test-key")

	stream, err := client.Stream(context.Background(), llm.Request{
		Model:    "gpt-image-1",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Draw a cat"}},
	})
	if err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}

	text, images, err := stream.Collect()
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if text != "![Generated image](https://img.example/cat.png)" {
		t.Errorf("unexpected synthetic text %q", text)
	}
	if len(images) != 1 || images[0].URL != "https://img.example/cat.png" {
		t.Errorf("unexpected images %+v", images)
	}
}

// TestStream_Base64ImageBecomesDataURL verifies that a b64_json response is
// wrapped into a data URL.
func TestStream_Base64ImageBecomesDataURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusOK)
		fmt.Fprint(writer, `{"data":[{"b64_json":"aGVsbG8="}]}`)
	}))
	defer server.Close()

	client := New().WithBaseURL(server.URL).WithAPIKey("test-key")

	stream, err := client.Stream(context.Background(), llm.Request{
		Model:    "dall-e-3",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Draw"}},
	})
	if err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}

	_, images, err := stream.Collect()
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if len(images) != 1 || images[0].URL != "data:image/png;base64,aGVsbG8=" {
		t.Errorf("unexpected images %+v", images)
	}
}

// TestStream_MissingCredentials verifies both synchronous validation paths.
func TestStream_MissingCredentials(t *testing.T) {
	client := &Client{baseURL: defaultBaseURL, client: &http.Client{}}
	if _, err := client.Stream(context.Background(), llm.Request{Model: "gpt-4o-mini"}); !errors.Is(err, llm.ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}

	client = client.WithAPIKey("test-key")
	if _, err := client.Stream(context.Background(), llm.Request{}); !errors.Is(err, llm.ErrMissingModel) {
		t.Errorf("expected ErrMissingModel, got %v", err)
	}
}

// TestEstimateUsage verifies the character-based token heuristic.
func TestEstimateUsage(t *testing.T) {
	usage := estimateUsage(100, 10)
	if usage.PromptTokens != 30 {
		t.Errorf("expected 30 prompt tokens for 100 chars, got %d", usage.PromptTokens)
	}
	if usage.CompletionTokens != 3 {
		t.Errorf("expected 3 completion tokens for 10 chars, got %d", usage.CompletionTokens)
	}
	if !usage.Estimated {
		t.Error("expected Estimated flag")
	}
}
