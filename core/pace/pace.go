// Package pace implements smooth streaming: re-chunking and re-timing of
// provider text output. Upstream providers emit text in bursty,
// variably-sized network chunks; passing those through directly produces
// jarring client-side rendering. The pacer decouples arrival cadence from
// emission cadence, emitting small fixed-size chunks separated by adaptive
// delays that approximate natural reading pauses.
package pace

import (
	"context"
	"iter"
	"strings"
	"time"

	"github.com/leofalp/conduit/providers/llm"
)

// Config controls the pacer's emission behavior. The zero value selects the
// process-wide defaults; calls may override per turn.
type Config struct {
	// TargetChunkSize is the number of characters per emitted chunk.
	TargetChunkSize int

	// Interval is the baseline delay applied after each flush.
	Interval time.Duration

	// MaxFlushInterval bounds how stale buffered text may get: when this
	// much wall-clock time has passed since the last flush, whatever is
	// buffered is emitted even if below TargetChunkSize.
	MaxFlushInterval time.Duration
}

const (
	defaultTargetChunkSize  = 5
	defaultInterval         = 30 * time.Millisecond
	defaultMaxFlushInterval = 250 * time.Millisecond
)

// Delay multipliers approximating reading pauses: sentence-ending
// punctuation earns the longest pause, clause punctuation a shorter one.
const (
	sentenceDelayFactor = 3.0
	clauseDelayFactor   = 1.5
)

const (
	sentencePunctuation = ".!?\n"
	clausePunctuation   = ",;:"
)

func (config Config) withDefaults() Config {
	if config.TargetChunkSize <= 0 {
		config.TargetChunkSize = defaultTargetChunkSize
	}
	if config.Interval <= 0 {
		config.Interval = defaultInterval
	}
	if config.MaxFlushInterval <= 0 {
		config.MaxFlushInterval = defaultMaxFlushInterval
	}
	return config
}

// delayAfter computes the adaptive post-flush delay for the emitted text.
func (config Config) delayAfter(flushed string) time.Duration {
	switch {
	case strings.ContainsAny(flushed, sentencePunctuation):
		return time.Duration(float64(config.Interval) * sentenceDelayFactor)
	case strings.ContainsAny(flushed, clausePunctuation):
		return time.Duration(float64(config.Interval) * clauseDelayFactor)
	default:
		return config.Interval
	}
}

// Stream re-chunks and re-times the text of the upstream chunk sequence.
//
// Incoming characters are pushed into a FIFO buffer as chunks arrive; the
// emitter drains the buffer into TargetChunkSize chunks, applying the
// adaptive delay after each flush. Buffered text older than
// MaxFlushInterval is flushed short. When the upstream completes, the
// remaining buffer drains in smaller trailing chunks with shortened delays.
//
// Image chunks are not paced: any buffered text is flushed first to
// preserve ordering, then the image chunk is forwarded as-is.
//
// The delays are cooperative suspension points on the caller's goroutine;
// cancelling ctx aborts the stream with ctx.Err() through the iterator.
// Mid-stream upstream errors propagate unchanged.
func Stream(ctx context.Context, upstream iter.Seq2[llm.Chunk, error], config Config) iter.Seq2[llm.Chunk, error] {
	config = config.withDefaults()

	return func(yield func(llm.Chunk, error) bool) {
		// FIFO character buffer; runes so multi-byte characters are never
		// split across chunks.
		var buffer []rune
		lastFlush := time.Now()

		// flush emits the first size runes of the buffer and sleeps for
		// the adaptive delay. Returns false when iteration must stop.
		flush := func(size int, delayFactor float64) bool {
			if size > len(buffer) {
				size = len(buffer)
			}
			if size == 0 {
				return true
			}

			text := string(buffer[:size])
			buffer = buffer[size:]
			lastFlush = time.Now()

			if !yield(llm.Chunk{Text: text}, nil) {
				return false
			}

			delay := time.Duration(float64(config.delayAfter(text)) * delayFactor)
			select {
			case <-ctx.Done():
				yield(llm.Chunk{}, ctx.Err())
				return false
			case <-time.After(delay):
				return true
			}
		}

		for chunk, err := range upstream {
			if err != nil {
				yield(llm.Chunk{}, err)
				return
			}

			if len(chunk.Images) > 0 {
				// Drain buffered text ahead of the image to keep ordering,
				// then forward the image chunk untouched.
				if len(buffer) > 0 {
					text := string(buffer)
					buffer = buffer[:0]
					if !yield(llm.Chunk{Text: text}, nil) {
						return
					}
				}
				if !yield(llm.Chunk{Images: chunk.Images}, nil) {
					return
				}
				lastFlush = time.Now()
			}

			if chunk.Text != "" {
				buffer = append(buffer, []rune(chunk.Text)...)
			}

			// Emit full chunks while the buffer holds enough characters.
			for len(buffer) >= config.TargetChunkSize {
				if !flush(config.TargetChunkSize, 1) {
					return
				}
			}

			// Stale partial buffer: flush short rather than sitting on it.
			if len(buffer) > 0 && time.Since(lastFlush) > config.MaxFlushInterval {
				if !flush(len(buffer), 1) {
					return
				}
			}
		}

		// Upstream finished: drain the tail in smaller chunks with
		// shortened delays so the ending does not drag.
		trailingSize := config.TargetChunkSize / 2
		if trailingSize < 1 {
			trailingSize = 1
		}
		for len(buffer) > 0 {
			if !flush(trailingSize, 0.5) {
				return
			}
		}
	}
}
