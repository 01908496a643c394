package utils

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// maxStreamLineSize is the maximum size of a single stream line (1 MB).
// The default bufio.Scanner limit is 64 KiB, which is too small for large
// events such as data-URL image payloads or long completions. If a line
// exceeds this limit the scanner returns a wrapped bufio.ErrTooLong via the
// Next() error path.
const maxStreamLineSize = 1 * 1024 * 1024

// SSEScanner reads Server-Sent Events from an io.Reader.
// It handles multi-line data fields, skips comments and empty lines,
// and detects the [DONE] sentinel used by OpenAI-compatible APIs.
type SSEScanner struct {
	scanner *bufio.Scanner
}

// NewSSEScanner creates an SSEScanner that reads SSE events from the given
// reader. The scanner supports individual lines up to maxStreamLineSize.
func NewSSEScanner(reader io.Reader) *SSEScanner {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLineSize)
	return &SSEScanner{scanner: scanner}
}

// Next returns the next SSE data payload as a string.
// It skips empty lines and comment lines (starting with ':').
// Returns io.EOF when no more events are available, and also when the
// [DONE] sentinel is encountered (the OpenAI convention for end-of-stream).
//
// Multi-line data fields (multiple consecutive "data:" lines) are joined
// with newlines into a single payload string.
func (sseScanner *SSEScanner) Next() (string, error) {
	var dataLines []string

	for sseScanner.scanner.Scan() {
		line := sseScanner.scanner.Text()

		// Empty line signals end of an event; flush accumulated data lines.
		if line == "" {
			if len(dataLines) > 0 {
				return strings.Join(dataLines, "\n"), nil
			}
			continue
		}

		// Skip SSE comments.
		if strings.HasPrefix(line, ":") {
			continue
		}

		if strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

			if data == "[DONE]" {
				return "", io.EOF
			}

			dataLines = append(dataLines, data)
			continue
		}

		// Ignore other SSE fields (event:, id:, retry:) for now.
	}

	if err := sseScanner.scanner.Err(); err != nil {
		return "", fmt.Errorf("SSE scanner error: %w", err)
	}

	// If we have remaining data lines when the stream ends, return them.
	if len(dataLines) > 0 {
		return strings.Join(dataLines, "\n"), nil
	}

	return "", io.EOF
}

// LineScanner reads newline-delimited payloads from an io.Reader. It serves
// the two non-SSE streaming shapes we consume: NDJSON (Ollama, one JSON
// object per line) and streamed JSON arrays (Google, one array element per
// line with array punctuation interleaved).
type LineScanner struct {
	scanner *bufio.Scanner
}

// NewLineScanner creates a LineScanner over the given reader with the same
// line-size limit as the SSE scanner.
func NewLineScanner(reader io.Reader) *LineScanner {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLineSize)
	return &LineScanner{scanner: scanner}
}

// Next returns the next non-empty line with surrounding whitespace and JSON
// array punctuation (leading '[' or ',', trailing ']') stripped, so each
// returned payload is a candidate JSON value. Returns io.EOF once the
// underlying reader is exhausted.
func (lineScanner *LineScanner) Next() (string, error) {
	for lineScanner.scanner.Scan() {
		line := strings.TrimSpace(lineScanner.scanner.Text())
		if line == "" {
			continue
		}

		// Streamed JSON arrays interleave element separators with elements:
		// "[{...}", ",{...}" and a bare closing "]" on the final line.
		line = strings.TrimPrefix(line, "[")
		line = strings.TrimPrefix(line, ",")
		line = strings.TrimSuffix(line, "]")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		return line, nil
	}

	if err := lineScanner.scanner.Err(); err != nil {
		return "", fmt.Errorf("line scanner error: %w", err)
	}

	return "", io.EOF
}
