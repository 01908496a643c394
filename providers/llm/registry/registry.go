// Package registry selects a provider stream client by provider type. It is
// the single place that knows about every concrete implementation; the rest
// of the system depends only on [llm.StreamClient].
package registry

import (
	"fmt"
	"net/http"

	"github.com/leofalp/conduit/providers/llm"
	"github.com/leofalp/conduit/providers/llm/anthropic"
	"github.com/leofalp/conduit/providers/llm/google"
	"github.com/leofalp/conduit/providers/llm/ollama"
	"github.com/leofalp/conduit/providers/llm/openai"
	"github.com/leofalp/conduit/providers/llm/openrouter"
)

// Factory builds provider stream clients. A shared HTTP client is reused
// across all constructed clients so connection pools are not fragmented
// per turn.
type Factory struct {
	httpClient *http.Client
}

// New creates a Factory with a default HTTP client.
func New() *Factory {
	return &Factory{httpClient: &http.Client{}}
}

// WithHttpClient sets the HTTP client handed to every constructed provider.
func (f *Factory) WithHttpClient(httpClient *http.Client) *Factory {
	f.httpClient = httpClient
	return f
}

// Client constructs the stream client for the given provider, applying the
// resolved per-user settings. Unknown providers are an error.
func (f *Factory) Client(provider llm.ProviderType, settings llm.ClientSettings) (llm.StreamClient, error) {
	switch provider {
	case llm.ProviderOpenAI:
		return openai.New().
			WithAPIKey(settings.APIKey).
			WithBaseURL(settings.BaseURL).
			WithHttpClient(f.httpClient), nil

	case llm.ProviderAnthropic:
		return anthropic.New().
			WithAPIKey(settings.APIKey).
			WithBaseURL(settings.BaseURL).
			WithHttpClient(f.httpClient), nil

	case llm.ProviderGoogle:
		return google.New().
			WithAPIKey(settings.APIKey).
			WithBaseURL(settings.BaseURL).
			WithHttpClient(f.httpClient), nil

	case llm.ProviderOllama:
		return ollama.New().
			WithBaseURL(settings.BaseURL).
			WithHttpClient(f.httpClient), nil

	case llm.ProviderOpenRouter:
		return openrouter.New().
			WithAPIKey(settings.APIKey).
			WithBaseURL(settings.BaseURL).
			WithHttpClient(f.httpClient), nil

	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
}
