// Package tokenizer provides best-effort token estimation and
// context-window truncation. No provider tokenizer is bit-exact here; the
// estimates exist to keep prepared message lists inside a model's context
// window and to size usage fallbacks, not for billing-grade accuracy.
package tokenizer

import (
	"strings"
	"sync"

	"github.com/leofalp/conduit/providers/llm"
)

// profile describes the estimation parameters of one model family.
type profile struct {
	tokensPerChar float64
	contextWindow int
}

// familyProfiles maps model-name prefixes to estimation profiles. The
// longest matching prefix wins; unknown models use defaultProfile.
var familyProfiles = map[string]profile{
	"gpt":      {tokensPerChar: 0.30, contextWindow: 128_000},
	"o3":       {tokensPerChar: 0.30, contextWindow: 200_000},
	"o4":       {tokensPerChar: 0.30, contextWindow: 200_000},
	"claude":   {tokensPerChar: 0.28, contextWindow: 200_000},
	"gemini":   {tokensPerChar: 0.25, contextWindow: 1_000_000},
	"llama":    {tokensPerChar: 0.30, contextWindow: 8_192},
	"mistral":  {tokensPerChar: 0.30, contextWindow: 32_000},
	"qwen":     {tokensPerChar: 0.30, contextWindow: 32_000},
	"deepseek": {tokensPerChar: 0.30, contextWindow: 64_000},
}

var defaultProfile = profile{tokensPerChar: 0.30, contextWindow: 32_000}

// perMessageOverhead approximates the wrapping tokens every chat message
// costs beyond its content (role markers, separators).
const perMessageOverhead = 4

// Service estimates token counts per model. Profile resolution is cached
// per model name, populated at most once per key; the Service is safe for
// concurrent use and intended to be process-wide.
type Service struct {
	profiles sync.Map // model name -> profile
}

// New creates a tokenizer Service.
func New() *Service {
	return &Service{}
}

// profileFor resolves and caches the estimation profile for a model name.
func (s *Service) profileFor(model string) profile {
	if cached, ok := s.profiles.Load(model); ok {
		return cached.(profile)
	}

	resolved := defaultProfile
	bestLen := 0
	lowered := strings.ToLower(model)
	// OpenRouter ids carry a vendor prefix ("anthropic/claude-...").
	if _, family, found := strings.Cut(lowered, "/"); found {
		lowered = family
	}
	for prefix, candidate := range familyProfiles {
		if strings.HasPrefix(lowered, prefix) && len(prefix) > bestLen {
			bestLen = len(prefix)
			resolved = candidate
		}
	}

	actual, _ := s.profiles.LoadOrStore(model, resolved)
	return actual.(profile)
}

// EstimateTokens estimates the token count of a text for the given model.
func (s *Service) EstimateTokens(model, text string) int {
	if text == "" {
		return 0
	}
	estimate := int(float64(len(text)) * s.profileFor(model).tokensPerChar)
	if estimate == 0 {
		estimate = 1
	}
	return estimate
}

// EstimateMessages estimates the total token count of a message list,
// including per-message wrapping overhead.
func (s *Service) EstimateMessages(model string, messages []llm.Message) int {
	total := 0
	for _, message := range messages {
		total += s.EstimateTokens(model, message.Content) + perMessageOverhead
	}
	return total
}

// ContextWindow returns the estimated context window of the model.
func (s *Service) ContextWindow(model string) int {
	return s.profileFor(model).contextWindow
}

// TruncateToWindow drops the oldest messages until the estimated total fits
// the model's context window minus reserveTokens (the budget kept for the
// system prompt and the response). The most recent message is always kept,
// even when it alone exceeds the window; the provider will reject it with a
// clearer error than anything we could synthesize here.
func (s *Service) TruncateToWindow(model string, messages []llm.Message, reserveTokens int) []llm.Message {
	if len(messages) == 0 {
		return messages
	}

	budget := s.ContextWindow(model) - reserveTokens
	if budget <= 0 {
		return messages[len(messages)-1:]
	}

	total := s.EstimateMessages(model, messages)
	start := 0
	for start < len(messages)-1 && total > budget {
		total -= s.EstimateTokens(model, messages[start].Content) + perMessageOverhead
		start++
	}

	return messages[start:]
}
