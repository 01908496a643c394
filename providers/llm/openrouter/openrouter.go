package openrouter

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
	defaultBaseURL          = "https://openrouter.ai/api/v1"
	chatCompletionsEndpoint = "/chat/completions"
)

// Client implements llm.StreamClient against the OpenRouter API.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// New creates an OpenRouter client, reading OPENROUTER_API_KEY and
// OPENROUTER_API_BASE_URL from the environment as defaults.
func New() *Client {
	baseURL := os.Getenv("OPENROUTER_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		apiKey:  os.Getenv("OPENROUTER_API_KEY"),
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

// Stream implements llm.StreamClient. Credentials and model are validated
// synchronously; the HTTP request happens lazily inside the iterator. The
// stream ends on the [DONE] sentinel (handled by the SSE scanner).
func (c *Client) Stream(ctx context.Context, request llm.Request) (*llm.ChunkStream, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("openrouter: %w", llm.ErrMissingAPIKey)
	}
	if request.Model == "" {
		return nil, fmt.Errorf("openrouter: %w", llm.ErrMissingModel)
	}

	body := requestToWire(request)
	usage := llm.NewUsagePromise()
	streamURL := c.baseURL + chatCompletionsEndpoint

	iteratorFunc := func(yield func(llm.Chunk, error) bool) {
		defer usage.Resolve(llm.Usage{})

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
				// [DONE] sentinel or natural end of stream.
				return
			}
			if sseErr != nil {
				yield(llm.Chunk{}, fmt.Errorf("openrouter SSE read error: %w", sseErr))
				return
			}

			chunk, parseErr := utils.LenientUnmarshal[streamChunk](payload)
			if parseErr != nil {
				slog.Warn("skipping malformed openrouter stream chunk",
					"error", parseErr.Error(),
					"payload", utils.TruncateStringDefault(payload))
				continue
			}

			if chunk.Error != nil {
				yield(llm.Chunk{}, fmt.Errorf("openrouter stream error: %s", chunk.Error.Message))
				return
			}

			// Usage may arrive on its own frame or alongside the final
			// choice. The provider-reported cost is authoritative, even
			// when it is zero (free models).
			if chunk.Usage != nil {
				usage.Resolve(llm.Usage{
					PromptTokens:     chunk.Usage.PromptTokens,
					CompletionTokens: chunk.Usage.CompletionTokens,
					Cost:             chunk.Usage.Cost,
					CostReported:     true,
				})
			}

			for _, choice := range chunk.Choices {
				out := llm.Chunk{Text: choice.Delta.Content}
				for _, image := range choice.Delta.Images {
					if image.ImageURL.URL != "" {
						out.Images = append(out.Images, llm.ImageRef{URL: image.ImageURL.URL})
					}
				}

				if out.Text == "" && len(out.Images) == 0 {
					continue
				}
				if !yield(out, nil) {
					return
				}
			}
		}
	}

	return llm.NewChunkStream(iteratorFunc, usage), nil
}
