// Package anthropic implements [llm.StreamClient] for Anthropic's Messages
// API. Anthropic streams typed SSE events:
//
//	message_start → content_block_start → content_block_delta(s) →
//	content_block_stop → message_delta → message_stop
//
// Text arrives in content_block_delta events; token usage is read from the
// terminating message_stop event. Two API quirks are handled here: the
// first message must have the user role (a synthetic placeholder is
// inserted when it does not), and max_tokens is mandatory on every request
// (defaulted to 4096 when the caller leaves it unset).
package anthropic
