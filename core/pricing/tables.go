package pricing

import "github.com/leofalp/conduit/providers/llm"

// providerPricing holds the static price tables, keyed by provider then
// model name. Prices are USD per million tokens, standard tier.
//
// Sources: provider pricing pages as of mid-2026. Dated model variants
// resolve through prefix matching, so only family names need entries.
// Ollama is self-hosted and intentionally absent: its cost is zero.
var providerPricing = map[llm.ProviderType]map[string]ModelCost{
	llm.ProviderOpenAI:     openAIPricing,
	llm.ProviderAnthropic:  anthropicPricing,
	llm.ProviderGoogle:     googlePricing,
	llm.ProviderOpenRouter: openRouterPricing,
}

var openAIPricing = map[string]ModelCost{
	"gpt-4o":       {InputCostPerMillion: 2.50, OutputCostPerMillion: 10.00},
	"gpt-4o-mini":  {InputCostPerMillion: 0.15, OutputCostPerMillion: 0.60},
	"gpt-4.1":      {InputCostPerMillion: 2.00, OutputCostPerMillion: 8.00},
	"gpt-4.1-mini": {InputCostPerMillion: 0.40, OutputCostPerMillion: 1.60},
	"gpt-4.1-nano": {InputCostPerMillion: 0.10, OutputCostPerMillion: 0.40},
	"gpt-5":        {InputCostPerMillion: 1.25, OutputCostPerMillion: 10.00},
	"gpt-5-mini":   {InputCostPerMillion: 0.25, OutputCostPerMillion: 2.00},
	"o3":           {InputCostPerMillion: 2.00, OutputCostPerMillion: 8.00},
	"o4-mini":      {InputCostPerMillion: 1.10, OutputCostPerMillion: 4.40},

	// Image models are priced per image by OpenAI; the per-token figures
	// here only cover the text prompt side of the estimate.
	"dall-e-3":    {InputCostPerMillion: 0, OutputCostPerMillion: 0},
	"gpt-image-1": {InputCostPerMillion: 5.00, OutputCostPerMillion: 0},
}

var anthropicPricing = map[string]ModelCost{
	"claude-opus-4":     {InputCostPerMillion: 15.00, OutputCostPerMillion: 75.00},
	"claude-sonnet-4":   {InputCostPerMillion: 3.00, OutputCostPerMillion: 15.00},
	"claude-3-7-sonnet": {InputCostPerMillion: 3.00, OutputCostPerMillion: 15.00},
	"claude-3-5-sonnet": {InputCostPerMillion: 3.00, OutputCostPerMillion: 15.00},
	"claude-3-5-haiku":  {InputCostPerMillion: 0.80, OutputCostPerMillion: 4.00},
	"claude-3-haiku":    {InputCostPerMillion: 0.25, OutputCostPerMillion: 1.25},
}

var googlePricing = map[string]ModelCost{
	"gemini-2.5-pro":        {InputCostPerMillion: 1.25, OutputCostPerMillion: 10.00},
	"gemini-2.5-flash":      {InputCostPerMillion: 0.30, OutputCostPerMillion: 2.50},
	"gemini-2.5-flash-lite": {InputCostPerMillion: 0.10, OutputCostPerMillion: 0.40},
	"gemini-2.0-flash":      {InputCostPerMillion: 0.10, OutputCostPerMillion: 0.40},
	"gemini-1.5-pro":        {InputCostPerMillion: 1.25, OutputCostPerMillion: 5.00},
	"gemini-1.5-flash":      {InputCostPerMillion: 0.075, OutputCostPerMillion: 0.30},
}

// OpenRouter normally reports its own cost on the terminal usage frame;
// this table is a fallback for streams that end without one. Entries use
// OpenRouter's vendor-prefixed model ids.
var openRouterPricing = map[string]ModelCost{
	"openai/gpt-4o":             {InputCostPerMillion: 2.50, OutputCostPerMillion: 10.00},
	"anthropic/claude-sonnet-4": {InputCostPerMillion: 3.00, OutputCostPerMillion: 15.00},
	"google/gemini-2.5-flash":   {InputCostPerMillion: 0.30, OutputCostPerMillion: 2.50},
	"meta-llama/llama-3.3-70b":  {InputCostPerMillion: 0.30, OutputCostPerMillion: 0.40},
	"mistralai/mistral-large":   {InputCostPerMillion: 2.00, OutputCostPerMillion: 6.00},
}
