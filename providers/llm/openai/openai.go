package openai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/leofalp/conduit/internal/utils"
	"github.com/leofalp/conduit/providers/llm"
)

const (
	defaultBaseURL          = "https://api.openai.com/v1"
	chatCompletionsEndpoint = "/chat/completions"
)

// Client implements llm.StreamClient against the OpenAI API.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// New creates an OpenAI client, reading OPENAI_API_KEY and
// OPENAI_API_BASE_URL from the environment as defaults.
func New() *Client {
	baseURL := os.Getenv("OPENAI_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		apiKey:  os.Getenv("OPENAI_API_KEY"),
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// WithAPIKey sets the API key used for authenticating requests.
func (c *Client) WithAPIKey(apiKey string) *Client {
	if apiKey != "" {
		c.apiKey = apiKey
	}
	return c
}

// WithBaseURL overrides the default base URL for API requests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	if baseURL != "" {
		c.baseURL = baseURL
	}
	return c
}

// WithHttpClient sets the HTTP client used for outbound requests.
func (c *Client) WithHttpClient(httpClient *http.Client) *Client {
	c.client = httpClient
	return c
}

// isImageModel reports whether the model name belongs to OpenAI's
// image-generation family rather than chat.
func isImageModel(model string) bool {
	model = strings.ToLower(model)
	return strings.HasPrefix(model, "dall-e") || strings.HasPrefix(model, "gpt-image")
}

// Stream implements llm.StreamClient. Credentials and model are validated
// synchronously; the HTTP request happens lazily inside the iterator.
// Image-generation models divert to the images sub-flow.
func (c *Client) Stream(ctx context.Context, request llm.Request) (*llm.ChunkStream, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("openai: %w", llm.ErrMissingAPIKey)
	}
	if request.Model == "" {
		return nil, fmt.Errorf("openai: %w", llm.ErrMissingModel)
	}

	if isImageModel(request.Model) {
		return c.streamImageGeneration(ctx, request), nil
	}

	return c.streamChat(ctx, request), nil
}

// streamChat drives the /chat/completions SSE endpoint. Token usage is
// estimated from character counts once the stream completes.
func (c *Client) streamChat(ctx context.Context, request llm.Request) *llm.ChunkStream {
	body := requestToWire(request)
	usage := llm.NewUsagePromise()
	streamURL := c.baseURL + chatCompletionsEndpoint

	promptChars := promptCharacterCount(request)

	iteratorFunc := func(yield func(llm.Chunk, error) bool) {
		completionChars := 0

		// Resolve with the estimate for whatever was produced, even on
		// early break or failure, so partial turns still get priced.
		defer func() {
			usage.Resolve(estimateUsage(promptChars, completionChars))
		}()

		httpResponse, err := utils.DoPostStream(ctx, c.client, streamURL, c.apiKey, body)
		if err != nil {
			yield(llm.Chunk{}, err)
			return
		}
		defer utils.CloseWithLog(httpResponse.Body)

		sseScanner := utils.NewSSEScanner(httpResponse.Body)

		for {
			if ctx.Err() != nil {
				yield(llm.Chunk{}, ctx.Err())
				return
			}

			payload, sseErr := sseScanner.Next()
			if sseErr == io.EOF {
				return
			}
			if sseErr != nil {
				yield(llm.Chunk{}, fmt.Errorf("openai SSE read error: %w", sseErr))
				return
			}

			chunk, parseErr := utils.LenientUnmarshal[streamChunk](payload)
			if parseErr != nil {
				slog.Warn("skipping malformed openai stream chunk",
					"error", parseErr.Error(),
					"payload", utils.TruncateStringDefault(payload))
				continue
			}

			if chunk.Error != nil {
				yield(llm.Chunk{}, fmt.Errorf("openai stream error: %s", chunk.Error.Message))
				return
			}

			for _, choice := range chunk.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				completionChars += len(choice.Delta.Content)
				if !yield(llm.Chunk{Text: choice.Delta.Content}, nil) {
					return
				}
			}
		}
	}

	return llm.NewChunkStream(iteratorFunc, usage)
}

// promptCharacterCount totals the characters sent upstream: system prompt
// plus every message body. Feeds the usage estimate.
func promptCharacterCount(request llm.Request) int {
	total := len(request.SystemPrompt)
	for _, message := range request.Messages {
		total += len(message.Content)
	}
	return total
}
