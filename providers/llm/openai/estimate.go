package openai

import (
	"math"

	"github.com/leofalp/conduit/providers/llm"
)

// tokensPerChar is the heuristic ratio used to estimate token counts from
// character counts. English text averages roughly 4 characters per token,
// so 0.3 tokens per character slightly over-counts, which keeps cost
// estimates conservative.
const tokensPerChar = 0.3

// estimateTokens converts a character count into an estimated token count,
// rounding up so short non-empty strings never estimate to zero.
func estimateTokens(chars int) int {
	if chars <= 0 {
		return 0
	}
	return int(math.Ceil(float64(chars) * tokensPerChar))
}

// estimateUsage builds an estimated Usage from prompt and completion
// character counts. The Estimated flag tells consumers the figures are
// heuristic, not provider-reported.
func estimateUsage(promptChars, completionChars int) llm.Usage {
	return llm.Usage{
		PromptTokens:     estimateTokens(promptChars),
		CompletionTokens: estimateTokens(completionChars),
		Estimated:        true,
	}
}
