// Package llm defines the normalized model shared by all provider stream
// clients: the outbound request shape, the incremental content chunk, and
// the deferred usage report.
//
// Each supported provider (OpenAI, Anthropic, Google, Ollama, OpenRouter)
// implements [StreamClient] in its own subpackage, translating the
// normalized [Request] into its wire format and folding its streaming
// protocol back into a [ChunkStream]. Provider selection happens in the
// registry subpackage.
package llm
