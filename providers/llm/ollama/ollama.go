package ollama

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
	defaultBaseURL = "http://localhost:11434"
	chatEndpoint   = "/api/chat"
)

// Client implements llm.StreamClient against the Ollama chat API.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates an Ollama client. The base URL defaults to the local daemon
// and can be overridden via OLLAMA_BASE_URL or [Client.WithBaseURL].
func New() *Client {
	baseURL := os.Getenv("OLLAMA_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// WithBaseURL overrides the base URL of the Ollama instance.
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

// chatRequest is the Ollama /api/chat request body.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *chatOptions  `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatOptions maps the normalized sampling parameters onto Ollama's
// model options. NumPredict is Ollama's name for the response token cap.
type chatOptions struct {
	Temperature *float32 `json:"temperature,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
}

// streamLine is one NDJSON line of the Ollama streaming response. Token
// counts are only populated on the final line where Done is true.
type streamLine struct {
	Message *struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool   `json:"done"`
	Error           string `json:"error,omitempty"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
}

// Stream implements llm.StreamClient. Ollama is self-hosted and needs no
// API key; only the model is validated up front. The HTTP request is made
// lazily on first pull from the chunk iterator.
func (c *Client) Stream(ctx context.Context, request llm.Request) (*llm.ChunkStream, error) {
	if request.Model == "" {
		return nil, fmt.Errorf("ollama: %w", llm.ErrMissingModel)
	}

	body := chatRequest{
		Model:    request.Model,
		Messages: buildMessages(request),
		Stream:   true,
	}

	if sampling := request.Sampling; sampling != nil {
		body.Options = &chatOptions{
			Temperature: sampling.Temperature,
			TopP:        sampling.TopP,
			TopK:        sampling.TopK,
			NumPredict:  sampling.MaxTokens,
		}
	}

	usage := llm.NewUsagePromise()
	streamURL := c.baseURL + chatEndpoint

	iteratorFunc := func(yield func(llm.Chunk, error) bool) {
		// The promise must resolve even when the stream ends without a
		// done line (connection drop, early break by the consumer).
		defer usage.Resolve(llm.Usage{})

		httpResponse, err := utils.DoPostStream(ctx, c.client, streamURL, "", body)
		if err != nil {
			yield(llm.Chunk{}, err)
			return
		}
		defer utils.CloseWithLog(httpResponse.Body)

		lineScanner := utils.NewLineScanner(httpResponse.Body)

		for {
			// Respect context cancellation between line reads.
			if ctx.Err() != nil {
				yield(llm.Chunk{}, ctx.Err())
				return
			}

			payload, scanErr := lineScanner.Next()
			if scanErr == io.EOF {
				return
			}
			if scanErr != nil {
				yield(llm.Chunk{}, fmt.Errorf("ollama stream read error: %w", scanErr))
				return
			}

			line, parseErr := utils.LenientUnmarshal[streamLine](payload)
			if parseErr != nil {
				// Malformed lines are skipped, not fatal to the stream.
				slog.Warn("skipping malformed ollama stream line",
					"error", parseErr.Error(),
					"payload", utils.TruncateStringDefault(payload))
				continue
			}

			if line.Error != "" {
				yield(llm.Chunk{}, fmt.Errorf("ollama stream error: %s", line.Error))
				return
			}

			if line.Message != nil && line.Message.Content != "" {
				if !yield(llm.Chunk{Text: line.Message.Content}, nil) {
					return
				}
			}

			// The done line carries the token counts and ends the stream.
			if line.Done {
				usage.Resolve(llm.Usage{
					PromptTokens:     line.PromptEvalCount,
					CompletionTokens: line.EvalCount,
				})
				return
			}
		}
	}

	return llm.NewChunkStream(iteratorFunc, usage), nil
}

// buildMessages converts the normalized messages to Ollama's format,
// prepending the system prompt as a leading system message.
func buildMessages(request llm.Request) []chatMessage {
	messages := make([]chatMessage, 0, len(request.Messages)+1)

	if request.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: request.SystemPrompt})
	}

	for _, message := range request.Messages {
		messages = append(messages, chatMessage{
			Role:    string(message.Role),
			Content: message.Content,
		})
	}

	return messages
}
