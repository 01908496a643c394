package google

import "github.com/leofalp/conduit/providers/llm"

/*
	GEMINI GENERATECONTENT API - REQUEST TYPES
*/

type wireRequest struct {
	Contents          []wireContent     `json:"contents"`
	SystemInstruction *wireContent      `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"` // "user" or "model"
	Parts []wirePart `json:"parts"`
}

type wirePart struct {
	Text string `json:"text,omitempty"`
}

type generationConfig struct {
	Temperature     *float32 `json:"temperature,omitempty"`
	TopP            *float32 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

// requestToWire converts the normalized request into Gemini's format.
// Gemini has no "assistant" role; assistant messages map to "model".
func requestToWire(request llm.Request) wireRequest {
	contents := make([]wireContent, 0, len(request.Messages))
	for _, message := range request.Messages {
		role := "user"
		if message.Role == llm.RoleAssistant {
			role = "model"
		}
		contents = append(contents, wireContent{
			Role:  role,
			Parts: []wirePart{{Text: message.Content}},
		})
	}

	wire := wireRequest{Contents: contents}

	if request.SystemPrompt != "" {
		wire.SystemInstruction = &wireContent{
			Parts: []wirePart{{Text: request.SystemPrompt}},
		}
	}

	if sampling := request.Sampling; sampling != nil {
		wire.GenerationConfig = &generationConfig{
			Temperature:     sampling.Temperature,
			TopP:            sampling.TopP,
			TopK:            sampling.TopK,
			MaxOutputTokens: sampling.MaxTokens,
		}
	}

	return wire
}

/*
	GEMINI GENERATECONTENT API - STREAMING RESPONSE TYPES
*/

// generateContentResponse is one element of the streamed JSON array.
type generateContentResponse struct {
	Candidates    []candidate    `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata,omitempty"`
	Error         *apiError      `json:"error,omitempty"`
}

type candidate struct {
	Content      *wireContent `json:"content,omitempty"`
	FinishReason string       `json:"finishReason,omitempty"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// firstCandidateText extracts the text delta of the first candidate's first
// part, the path every streamed element carries its content in.
func (r *generateContentResponse) firstCandidateText() string {
	if len(r.Candidates) == 0 || r.Candidates[0].Content == nil {
		return ""
	}
	parts := r.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return ""
	}
	return parts[0].Text
}
