package google

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

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client implements llm.StreamClient against the Gemini API.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// New creates a Google client, reading GEMINI_API_KEY and
// GEMINI_API_BASE_URL from the environment as defaults.
func New() *Client {
	baseURL := os.Getenv("GEMINI_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		apiKey:  os.Getenv("GEMINI_API_KEY"),
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
// synchronously; the HTTP request happens lazily inside the iterator.
func (c *Client) Stream(ctx context.Context, request llm.Request) (*llm.ChunkStream, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("google: %w", llm.ErrMissingAPIKey)
	}
	if request.Model == "" {
		return nil, fmt.Errorf("google: %w", llm.ErrMissingModel)
	}

	body := requestToWire(request)
	usage := llm.NewUsagePromise()
	streamURL := fmt.Sprintf("%s/models/%s:streamGenerateContent", c.baseURL, request.Model)

	iteratorFunc := func(yield func(llm.Chunk, error) bool) {
		// usageMetadata may appear on intermediate elements carrying only
		// the prompt count; the final element has the complete counts. Keep
		// the latest and settle once the stream ends.
		var latestUsage llm.Usage
		defer func() { usage.Resolve(latestUsage) }()

		// Gemini authenticates via x-goog-api-key; pass an empty apiKey so
		// DoPostStream does not inject a Bearer token.
		httpResponse, err := utils.DoPostStream(
			ctx, c.client, streamURL, "", body,
			utils.HeaderOption{Key: "x-goog-api-key", Value: c.apiKey},
		)
		if err != nil {
			yield(llm.Chunk{}, err)
			return
		}
		defer utils.CloseWithLog(httpResponse.Body)

		lineScanner := utils.NewLineScanner(httpResponse.Body)

		for {
			if ctx.Err() != nil {
				yield(llm.Chunk{}, ctx.Err())
				return
			}

			payload, scanErr := lineScanner.Next()
			if scanErr == io.EOF {
				return
			}
			if scanErr != nil {
				yield(llm.Chunk{}, fmt.Errorf("google stream read error: %w", scanErr))
				return
			}

			element, parseErr := utils.LenientUnmarshal[generateContentResponse](payload)
			if parseErr != nil {
				slog.Warn("skipping malformed google stream element",
					"error", parseErr.Error(),
					"payload", utils.TruncateStringDefault(payload))
				continue
			}

			if element.Error != nil {
				yield(llm.Chunk{}, fmt.Errorf("google stream error: %s", element.Error.Message))
				return
			}

			if text := element.firstCandidateText(); text != "" {
				if !yield(llm.Chunk{Text: text}, nil) {
					return
				}
			}

			if element.UsageMetadata != nil {
				latestUsage = llm.Usage{
					PromptTokens:     element.UsageMetadata.PromptTokenCount,
					CompletionTokens: element.UsageMetadata.CandidatesTokenCount,
				}
			}
		}
	}

	return llm.NewChunkStream(iteratorFunc, usage), nil
}
