// Package pricing maps provider models to per-token prices and turns usage
// reports into dollar costs.
//
// Static price tables cover the well-known models of each provider; a
// [Source] can be plugged in for dynamic pricing, resolved at most once per
// provider/model key through a process-wide cache. Usage reports that carry
// a provider-computed cost (OpenRouter) bypass pricing entirely.
package pricing
