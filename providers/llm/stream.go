package llm

import (
	"context"
	"iter"
	"sync"
)

// ImageRef is an image produced by a provider, referenced by URL. The URL
// may be an external https:// location or an inline data: URL.
type ImageRef struct {
	URL string `json:"url"`
}

// Chunk is the transient unit of provider output: an optional text delta
// and/or a batch of image references delivered in the same wire event.
// Chunks are consumed immediately and never persisted.
type Chunk struct {
	Text   string     `json:"text,omitempty"`
	Images []ImageRef `json:"images,omitempty"`
}

// Usage carries the token counts and cost information reported (or
// estimated) by a provider once its content stream completes.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`

	// Cost is the provider-reported cost in USD. Only set when the wire
	// carries an explicit cost figure (OpenRouter); CostReported
	// distinguishes a reported zero from an absent value. When false the
	// caller prices the token counts itself.
	Cost         float64 `json:"cost,omitempty"`
	CostReported bool    `json:"cost_reported,omitempty"`

	// Estimated marks token counts derived heuristically rather than
	// reported by the provider.
	Estimated bool `json:"estimated,omitempty"`
}

// UsagePromise is a single-assignment future for a [Usage] value, resolved
// by the stream client once the content stream ends. The consumer awaits it
// only after fully draining the chunk stream. If the provider never reports
// a terminal usage frame the promise resolves to the zero Usage.
type UsagePromise struct {
	once  sync.Once
	done  chan struct{}
	usage Usage
}

// NewUsagePromise creates an unresolved UsagePromise.
func NewUsagePromise() *UsagePromise {
	return &UsagePromise{done: make(chan struct{})}
}

// Resolve fulfils the promise with the given usage. Only the first call has
// any effect; later calls are ignored.
func (promise *UsagePromise) Resolve(usage Usage) {
	promise.once.Do(func() {
		promise.usage = usage
		close(promise.done)
	})
}

// Await blocks until the promise resolves or the context ends, returning the
// resolved usage. On context cancellation it returns the zero Usage, so a
// provider that never resolves cannot wedge the caller.
func (promise *UsagePromise) Await(ctx context.Context) Usage {
	select {
	case <-promise.done:
		return promise.usage
	case <-ctx.Done():
		return Usage{}
	}
}

// ChunkStream pairs a lazy chunk iterator with the deferred usage report for
// one provider call.
//
// Important: callers must consume the stream by iterating Iter(), including
// breaking out of the loop early. The underlying provider holds an open HTTP
// response body that is only released when the iterator completes or is
// abandoned via a loop break. Constructing a ChunkStream and never iterating
// it will leak that connection.
type ChunkStream struct {
	iterator iter.Seq2[Chunk, error]
	usage    *UsagePromise
}

// NewChunkStream creates a ChunkStream from a raw chunk iterator and its
// usage promise. The iterator is expected to yield Chunk values (with nil
// error) for normal deltas and a non-nil error for a mid-stream failure,
// after which it must stop.
func NewChunkStream(iterator iter.Seq2[Chunk, error], usage *UsagePromise) *ChunkStream {
	return &ChunkStream{iterator: iterator, usage: usage}
}

// Iter returns the underlying iterator for use with range-over-func loops.
//
// Example:
//
//	for chunk, err := range stream.Iter() {
//	    if err != nil { handle error }
//	    fmt.Print(chunk.Text)
//	}
func (stream *ChunkStream) Iter() iter.Seq2[Chunk, error] {
	return stream.iterator
}

// Usage returns the deferred usage report. Await it only after the chunk
// iterator has been drained.
func (stream *ChunkStream) Usage() *UsagePromise {
	return stream.usage
}

// Collect drains the entire stream and returns the concatenated text, the
// collected images, and the first mid-stream error if one occurred. It is a
// convenience for non-streaming callers and tests.
func (stream *ChunkStream) Collect() (string, []ImageRef, error) {
	var text string
	var images []ImageRef

	for chunk, err := range stream.iterator {
		if err != nil {
			return text, images, err
		}
		text += chunk.Text
		images = append(images, chunk.Images...)
	}

	return text, images, nil
}
