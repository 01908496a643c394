package openrouter

import "github.com/leofalp/conduit/providers/llm"

/*
	OPENROUTER CHAT COMPLETIONS - REQUEST TYPES
*/

// wireRequest is the OpenAI-compatible request body with OpenRouter's usage
// accounting extension enabled so the terminal frame reports cost.
type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature *float32      `json:"temperature,omitempty"`
	TopP        *float32      `json:"top_p,omitempty"`
	TopK        *int          `json:"top_k,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Usage       *usageInclude `json:"usage,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type usageInclude struct {
	Include bool `json:"include"`
}

// requestToWire converts the normalized request, prepending the system
// prompt as a leading system message.
func requestToWire(request llm.Request) wireRequest {
	messages := make([]wireMessage, 0, len(request.Messages)+1)
	if request.SystemPrompt != "" {
		messages = append(messages, wireMessage{Role: "system", Content: request.SystemPrompt})
	}
	for _, message := range request.Messages {
		messages = append(messages, wireMessage{Role: string(message.Role), Content: message.Content})
	}

	wire := wireRequest{
		Model:    request.Model,
		Messages: messages,
		Stream:   true,
		Usage:    &usageInclude{Include: true},
	}

	if sampling := request.Sampling; sampling != nil {
		wire.Temperature = sampling.Temperature
		wire.TopP = sampling.TopP
		wire.TopK = sampling.TopK
		wire.MaxTokens = sampling.MaxTokens
	}

	return wire
}

/*
	OPENROUTER CHAT COMPLETIONS - STREAMING RESPONSE TYPES
*/

// streamChunk is one SSE data payload. Choices carry deltas; Usage appears
// on the terminal accounting frame with an explicit cost in USD.
type streamChunk struct {
	Choices []streamChoice `json:"choices"`
	Usage   *streamUsage   `json:"usage,omitempty"`
	Error   *streamError   `json:"error,omitempty"`
}

type streamChoice struct {
	Delta        streamDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

// streamDelta carries a text fragment and/or OpenRouter's vendor extension
// for image-generating models: delta.images entries with an image_url.
type streamDelta struct {
	Content string       `json:"content,omitempty"`
	Images  []imageDelta `json:"images,omitempty"`
}

type imageDelta struct {
	Type     string `json:"type"`
	Index    int    `json:"index"`
	ImageURL struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

type streamUsage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	Cost             float64 `json:"cost"`
}

type streamError struct {
	Code    any    `json:"code"`
	Message string `json:"message"`
}
