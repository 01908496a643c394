// Package openrouter implements [llm.StreamClient] for OpenRouter's
// OpenAI-compatible chat completions API. OpenRouter extends the standard
// SSE format with delta.images entries for image-generating models and may
// attach a provider-computed cost to the terminal usage frame, which is
// passed through as-is instead of being re-priced locally.
package openrouter
