package openai

import "github.com/leofalp/conduit/providers/llm"

/*
	OPENAI CHAT COMPLETIONS - REQUEST TYPES
*/

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature *float32      `json:"temperature,omitempty"`
	TopP        *float32      `json:"top_p,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// requestToWire converts the normalized request, prepending the system
// prompt as a leading system message. TopK has no chat-completions
// equivalent and is dropped.
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
	}

	if sampling := request.Sampling; sampling != nil {
		wire.Temperature = sampling.Temperature
		wire.TopP = sampling.TopP
		wire.MaxTokens = sampling.MaxTokens
	}

	return wire
}

/*
	OPENAI CHAT COMPLETIONS - STREAMING RESPONSE TYPES
*/

type streamChunk struct {
	Choices []streamChoice `json:"choices"`
	Error   *apiError      `json:"error,omitempty"`
}

type streamChoice struct {
	Delta        streamDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

type streamDelta struct {
	Content string `json:"content,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

/*
	OPENAI IMAGES API - TYPES
*/

// imageGenerationRequest is the /images/generations request body.
type imageGenerationRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
}

// imageResponse is shared by /images/generations and /images/edits.
// Depending on the model, images come back as hosted URLs or inline
// base64 payloads.
type imageResponse struct {
	Data []imageDatum `json:"data"`
}

type imageDatum struct {
	URL     string `json:"url,omitempty"`
	B64JSON string `json:"b64_json,omitempty"`
}
