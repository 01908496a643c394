package pricing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/leofalp/conduit/providers/llm"
)

// ModelCost represents the pricing structure for a language model.
// Costs are expressed in USD per million tokens.
type ModelCost struct {
	InputCostPerMillion  float64 `json:"input_cost_per_million"`
	OutputCostPerMillion float64 `json:"output_cost_per_million"`
}

// CalculateInputCost calculates the cost for the given number of input tokens.
func (mc ModelCost) CalculateInputCost(tokens int) float64 {
	return (float64(tokens) / 1_000_000.0) * mc.InputCostPerMillion
}

// CalculateOutputCost calculates the cost for the given number of output tokens.
func (mc ModelCost) CalculateOutputCost(tokens int) float64 {
	return (float64(tokens) / 1_000_000.0) * mc.OutputCostPerMillion
}

// CalculateTotalCost calculates the combined cost of a prompt/completion pair.
func (mc ModelCost) CalculateTotalCost(promptTokens, completionTokens int) float64 {
	return mc.CalculateInputCost(promptTokens) + mc.CalculateOutputCost(completionTokens)
}

// String returns a formatted representation of the model costs.
func (mc ModelCost) String() string {
	return fmt.Sprintf("Input: $%.6f/M, Output: $%.6f/M", mc.InputCostPerMillion, mc.OutputCostPerMillion)
}

// Source resolves pricing dynamically for models absent from the static
// tables, typically by querying the provider's model catalog.
type Source interface {
	ModelCost(ctx context.Context, provider llm.ProviderType, model string) (ModelCost, error)
}

// Lookup resolves model pricing with a concurrent get-or-create cache.
// Static tables are consulted first (exact match, then longest known
// prefix, so dated model variants inherit their family's price). Misses
// fall through to the optional dynamic Source, resolved at most once per
// provider/model key via singleflight; concurrent turns for the same model
// share a single resolution.
//
// A Lookup is safe for concurrent use and intended to be process-wide,
// constructor-injected into the orchestrator.
type Lookup struct {
	source Source

	mu    sync.RWMutex
	cache map[string]ModelCost
	group singleflight.Group
}

// NewLookup creates a Lookup backed by the static tables only.
func NewLookup() *Lookup {
	return &Lookup{cache: make(map[string]ModelCost)}
}

// WithSource attaches a dynamic pricing source consulted on static-table
// misses.
func (lookup *Lookup) WithSource(source Source) *Lookup {
	lookup.source = source
	return lookup
}

// TurnCost converts a usage report into a dollar cost. A provider-reported
// cost is used as-is; otherwise the token counts are priced via ModelCost.
// Unknown models cost zero rather than failing the turn.
func (lookup *Lookup) TurnCost(ctx context.Context, provider llm.ProviderType, model string, usage llm.Usage) float64 {
	if usage.CostReported {
		return usage.Cost
	}

	modelCost, err := lookup.ModelCost(ctx, provider, model)
	if err != nil {
		return 0
	}

	return modelCost.CalculateTotalCost(usage.PromptTokens, usage.CompletionTokens)
}

// ModelCost resolves the pricing for a provider/model pair.
func (lookup *Lookup) ModelCost(ctx context.Context, provider llm.ProviderType, model string) (ModelCost, error) {
	key := string(provider) + "/" + model

	lookup.mu.RLock()
	cached, ok := lookup.cache[key]
	lookup.mu.RUnlock()
	if ok {
		return cached, nil
	}

	if modelCost, ok := staticModelCost(provider, model); ok {
		lookup.store(key, modelCost)
		return modelCost, nil
	}

	if lookup.source == nil {
		return ModelCost{}, fmt.Errorf("no pricing known for model %q of provider %q", model, provider)
	}

	// Collapse concurrent misses for the same key into one source call.
	result, err, _ := lookup.group.Do(key, func() (any, error) {
		modelCost, err := lookup.source.ModelCost(ctx, provider, model)
		if err != nil {
			return ModelCost{}, err
		}
		lookup.store(key, modelCost)
		return modelCost, nil
	})
	if err != nil {
		return ModelCost{}, fmt.Errorf("dynamic pricing for %s: %w", key, err)
	}

	return result.(ModelCost), nil
}

func (lookup *Lookup) store(key string, modelCost ModelCost) {
	lookup.mu.Lock()
	lookup.cache[key] = modelCost
	lookup.mu.Unlock()
}

// staticModelCost consults the per-provider static tables, matching the
// exact model name first and falling back to the longest table entry that
// prefixes the requested name.
func staticModelCost(provider llm.ProviderType, model string) (ModelCost, bool) {
	table, ok := providerPricing[provider]
	if !ok {
		return ModelCost{}, false
	}

	if modelCost, ok := table[model]; ok {
		return modelCost, true
	}

	bestLen := 0
	var best ModelCost
	for name, modelCost := range table {
		if strings.HasPrefix(model, name) && len(name) > bestLen {
			bestLen = len(name)
			best = modelCost
		}
	}

	return best, bestLen > 0
}
