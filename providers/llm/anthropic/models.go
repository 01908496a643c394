package anthropic

import "github.com/leofalp/conduit/providers/llm"

/*
	ANTHROPIC MESSAGES API - REQUEST TYPES
*/

// wireRequest is the request body for Anthropic's Messages API.
type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	System      string        `json:"system,omitempty"`
	MaxTokens   int           `json:"max_tokens"` // Required by Anthropic on every request
	Temperature *float32      `json:"temperature,omitempty"`
	TopP        *float32      `json:"top_p,omitempty"`
	TopK        *int          `json:"top_k,omitempty"`
	Stream      bool          `json:"stream"`
}

type wireMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// placeholderUserContent is inserted as a synthetic first message when the
// prepared message list does not start with a user turn, which the API
// requires. This can happen after context-window truncation trims the
// original leading user message.
const placeholderUserContent = "..."

// requestToWire converts the normalized request into Anthropic's format.
// System instructions travel in the dedicated system field, never as a
// message; a placeholder user message is prepended when needed.
func requestToWire(request llm.Request) wireRequest {
	messages := make([]wireMessage, 0, len(request.Messages)+1)

	for _, message := range request.Messages {
		if message.Role == llm.RoleSystem {
			continue
		}
		messages = append(messages, wireMessage{
			Role:    string(message.Role),
			Content: message.Content,
		})
	}

	if len(messages) == 0 || messages[0].Role != string(llm.RoleUser) {
		messages = append([]wireMessage{{Role: string(llm.RoleUser), Content: placeholderUserContent}}, messages...)
	}

	wire := wireRequest{
		Model:     request.Model,
		Messages:  messages,
		System:    request.SystemPrompt,
		MaxTokens: defaultMaxTokens,
		Stream:    true,
	}

	if sampling := request.Sampling; sampling != nil {
		wire.Temperature = sampling.Temperature
		wire.TopP = sampling.TopP
		wire.TopK = sampling.TopK
		if sampling.MaxTokens != nil && *sampling.MaxTokens > 0 {
			wire.MaxTokens = *sampling.MaxTokens
		}
	}

	return wire
}

/*
	ANTHROPIC MESSAGES API - STREAMING EVENT TYPES
*/

// streamEvent is a discriminated union over Anthropic's SSE event types.
// Only the fields relevant to the event's Type are populated.
type streamEvent struct {
	Type  string       `json:"type"`
	Delta *eventDelta  `json:"delta,omitempty"` // content_block_delta
	Usage *eventUsage  `json:"usage,omitempty"` // message_stop
	Error *errorDetail `json:"error,omitempty"` // error
}

type eventDelta struct {
	Type string `json:"type"` // "text_delta"
	Text string `json:"text,omitempty"`
}

type eventUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type errorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
