// Package google implements [llm.StreamClient] for the Gemini
// generateContent API. Unlike the SSE providers, streamGenerateContent
// returns one JSON array streamed incrementally; the response is consumed
// line by line, with array punctuation stripped so each line parses as a
// generateContentResponse element. The internal assistant role maps to
// Gemini's "model" role, and usage arrives on the final element's
// usageMetadata.
package google
