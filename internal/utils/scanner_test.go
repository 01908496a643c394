package utils

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestSSEScannerReadsDataLines(t *testing.T) {
	input := "data: {\"a\":1}\n\n" +
		": heartbeat comment\n" +
		"event: message\n" +
		"data: {\"b\":2}\n\n" +
		"data: [DONE]\n\n"

	scanner := NewSSEScanner(strings.NewReader(input))

	first, err := scanner.Next()
	if err != nil {
		t.Fatalf("first event: %v", err)
	}
	if first != `{"a":1}` {
		t.Errorf("unexpected first payload: %q", first)
	}

	second, err := scanner.Next()
	if err != nil {
		t.Fatalf("second event: %v", err)
	}
	if second != `{"b":2}` {
		t.Errorf("unexpected second payload: %q", second)
	}

	if _, err := scanner.Next(); err != io.EOF {
		t.Errorf("expected EOF at the [DONE] sentinel, got %v", err)
	}
}

func TestSSEScannerJoinsMultiLineData(t *testing.T) {
	input := "data: line one\ndata: line two\n\n"

	scanner := NewSSEScanner(strings.NewReader(input))

	payload, err := scanner.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if payload != "line one\nline two" {
		t.Errorf("multi-line data not joined: %q", payload)
	}
}

func TestSSEScannerFlushesTrailingDataWithoutBlankLine(t *testing.T) {
	scanner := NewSSEScanner(strings.NewReader("data: tail"))

	payload, err := scanner.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if payload != "tail" {
		t.Errorf("trailing data lost: %q", payload)
	}

	if _, err := scanner.Next(); err != io.EOF {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestSSEScannerRejectsOversizedLine(t *testing.T) {
	line := "data: " + strings.Repeat("x", maxStreamLineSize+1) + "\n\n"
	scanner := NewSSEScanner(strings.NewReader(line))

	_, err := scanner.Next()
	if err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("expected a scanner error for an oversized line, got %v", err)
	}
}

func TestLineScannerStripsArrayPunctuation(t *testing.T) {
	input := "[{\"n\":1}\n,{\"n\":2}\n]\n"
	scanner := NewLineScanner(strings.NewReader(input))

	for _, want := range []string{`{"n":1}`, `{"n":2}`} {
		got, err := scanner.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}

	// The bare closing bracket reduces to nothing and is skipped.
	if _, err := scanner.Next(); err != io.EOF {
		t.Errorf("expected EOF after the closing bracket, got %v", err)
	}
}

func TestLineScannerSkipsBlankLines(t *testing.T) {
	scanner := NewLineScanner(strings.NewReader("\n\n  {\"ok\":true}  \n\n"))

	got, err := scanner.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got != `{"ok":true}` {
		t.Errorf("whitespace not trimmed: %q", got)
	}
}
