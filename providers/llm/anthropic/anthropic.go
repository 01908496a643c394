package anthropic

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/leofalp/conduit/internal/utils"
	"github.com/leofalp/conduit/providers/llm"
)

const (
	defaultBaseURL   = "https://api.anthropic.com/v1"
	messagesEndpoint = "/messages"
	apiVersion       = "2023-06-01"

	// defaultMaxTokens is applied when the request carries no token cap;
	// Anthropic rejects requests without max_tokens.
	defaultMaxTokens = 4096
)

// Client implements llm.StreamClient against Anthropic's Messages API.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// New creates an Anthropic client, reading ANTHROPIC_API_KEY and
// ANTHROPIC_API_BASE_URL from the environment as defaults.
func New() *Client {
	baseURL := os.Getenv("ANTHROPIC_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		apiKey:  os.Getenv("ANTHROPIC_API_KEY"),
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

// buildHeaders returns Anthropic's auth and versioning headers. The API
// authenticates via x-api-key, not a Bearer token, so DoPostStream is
// called with an empty apiKey and these headers instead.
func (c *Client) buildHeaders() []utils.HeaderOption {
	return []utils.HeaderOption{
		{Key: "x-api-key", Value: c.apiKey},
		{Key: "anthropic-version", Value: apiVersion},
	}
}

// Stream implements llm.StreamClient. Credentials and model are validated
// synchronously; the HTTP request happens lazily inside the iterator.
func (c *Client) Stream(ctx context.Context, request llm.Request) (*llm.ChunkStream, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("anthropic: %w", llm.ErrMissingAPIKey)
	}
	if request.Model == "" {
		return nil, fmt.Errorf("anthropic: %w", llm.ErrMissingModel)
	}

	body := requestToWire(request)
	usage := llm.NewUsagePromise()
	streamURL := c.baseURL + messagesEndpoint

	iteratorFunc := func(yield func(llm.Chunk, error) bool) {
		defer usage.Resolve(llm.Usage{})

		httpResponse, err := utils.DoPostStream(ctx, c.client, streamURL, "", body, c.buildHeaders()...)
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
				yield(llm.Chunk{}, fmt.Errorf("anthropic SSE read error: %w", sseErr))
				return
			}

			event, parseErr := utils.LenientUnmarshal[streamEvent](payload)
			if parseErr != nil {
				slog.Warn("skipping malformed anthropic stream event",
					"error", parseErr.Error(),
					"payload", utils.TruncateStringDefault(payload))
				continue
			}

			switch event.Type {
			case "content_block_delta":
				if event.Delta != nil && event.Delta.Text != "" {
					if !yield(llm.Chunk{Text: event.Delta.Text}, nil) {
						return
					}
				}

			case "message_stop":
				if event.Usage != nil {
					usage.Resolve(llm.Usage{
						PromptTokens:     event.Usage.InputTokens,
						CompletionTokens: event.Usage.OutputTokens,
					})
				}
				return

			case "error":
				message := "unknown error"
				if event.Error != nil {
					message = event.Error.Message
				}
				yield(llm.Chunk{}, fmt.Errorf("anthropic stream error: %s", message))
				return

			default:
				// message_start, content_block_start/stop, message_delta
				// and ping events carry nothing we surface.
			}
		}
	}

	return llm.NewChunkStream(iteratorFunc, usage), nil
}
