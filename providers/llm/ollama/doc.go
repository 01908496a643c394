// Package ollama implements [llm.StreamClient] for a self-hosted Ollama
// instance. Ollama streams newline-delimited JSON (one object per line)
// rather than SSE; the final line carries done=true together with the
// prompt/completion token counts.
package ollama
