package chat

import "strconv"

// EventType identifies the kind of payload carried by an Event. The string
// values are the SSE event names on the wire.
type EventType string

const (
	// EventConversationID announces the id of a newly created
	// conversation. Emitted at most once, always first.
	EventConversationID EventType = "conversation_id"
	// EventContent carries a paced text delta.
	EventContent EventType = "content"
	// EventImage carries one newly produced image reference (streaming
	// mode only).
	EventImage EventType = "image"
	// EventMetrics carries the persisted usage metric of a completed turn.
	EventMetrics EventType = "metrics"
	// EventFinalMessage carries the persisted (or ephemeral) assistant
	// message. Exactly one terminates every turn.
	EventFinalMessage EventType = "final_message"
	// EventError reports a turn failure; a final message still follows.
	EventError EventType = "error"
)

// ImagePayload is the wire payload of an image event.
type ImagePayload struct {
	Type  string `json:"type"` // always "image_url"
	URL   string `json:"url"`
	Index int    `json:"index"`
}

// ErrorPayload is the wire payload of an error event.
type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	Retryable bool   `json:"retryable"`
}

// Error codes surfaced on error events.
const (
	// CodeGenerationFailed is a provider transport or protocol failure.
	CodeGenerationFailed = "chat_generation_failed"
	// CodeEmptyCompletion marks the upstream contract violation of a
	// stream that produced no text and no images without being cancelled.
	CodeEmptyCompletion = "chat_empty_completion"
)

// Event is the tagged union emitted by the orchestrator for one turn.
// Exactly one payload field matching Type is populated.
type Event struct {
	Type           EventType     `json:"type"`
	ConversationID int64         `json:"conversation_id,omitempty"`
	Content        string        `json:"content,omitempty"`
	Image          *ImagePayload `json:"image,omitempty"`
	Metrics        *UsageMetric  `json:"metrics,omitempty"`
	Message        *Message      `json:"message,omitempty"`
	Error          *ErrorPayload `json:"error,omitempty"`
}

// WirePayload returns the value serialized as the SSE data line for this
// event. Conversation ids and content deltas go out as JSON strings.
func (e Event) WirePayload() any {
	switch e.Type {
	case EventConversationID:
		return strconv.FormatInt(e.ConversationID, 10)
	case EventContent:
		return e.Content
	case EventImage:
		return e.Image
	case EventMetrics:
		return e.Metrics
	case EventFinalMessage:
		return e.Message
	default:
		return e.Error
	}
}

// NewErrorEvent builds an error event. Exported for the transport layer's
// last-resort failure frame; the orchestrator emits its own.
func NewErrorEvent(code, message, detail string, retryable bool) Event {
	return errorEvent(code, message, detail, retryable)
}

func conversationIDEvent(id int64) Event {
	return Event{Type: EventConversationID, ConversationID: id}
}

func contentEvent(text string) Event {
	return Event{Type: EventContent, Content: text}
}

func imageEvent(url string, index int) Event {
	return Event{Type: EventImage, Image: &ImagePayload{Type: "image_url", URL: url, Index: index}}
}

func metricsEvent(metric *UsageMetric) Event {
	return Event{Type: EventMetrics, Metrics: metric}
}

func finalMessageEvent(message *Message) Event {
	return Event{Type: EventFinalMessage, Message: message}
}

func errorEvent(code, message, detail string, retryable bool) Event {
	return Event{Type: EventError, Error: &ErrorPayload{
		Code:      code,
		Message:   message,
		Detail:    detail,
		Retryable: retryable,
	}}
}
