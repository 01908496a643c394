package utils

import (
	"strings"
	"testing"
)

type samplePayload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestLenientUnmarshalStrictFirst(t *testing.T) {
	payload, err := LenientUnmarshal[samplePayload](`{"name":"a","count":3}`)
	if err != nil {
		t.Fatalf("LenientUnmarshal: %v", err)
	}
	if payload.Name != "a" || payload.Count != 3 {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestLenientUnmarshalRepairsTruncatedJSON(t *testing.T) {
	// A line cut off mid-object, as seen after a dropped connection.
	payload, err := LenientUnmarshal[samplePayload](`{"name":"a","count":3`)
	if err != nil {
		t.Fatalf("expected repair to salvage the payload: %v", err)
	}
	if payload.Name != "a" {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestLenientUnmarshalGivesUpOnGarbage(t *testing.T) {
	if _, err := LenientUnmarshal[samplePayload]("<html>not json</html>"); err == nil {
		t.Fatal("expected an error for unrepairable input")
	}
}

func TestTruncateString(t *testing.T) {
	if got := TruncateString("short", 10); got != "short" {
		t.Errorf("short strings must pass through, got %q", got)
	}

	long := strings.Repeat("a", 600)
	got := TruncateStringDefault(long)
	if len(got) >= len(long) {
		t.Errorf("expected truncation, got %d chars", len(got))
	}
	if !strings.Contains(got, "total: 600 chars") {
		t.Errorf("expected original length recorded, got %q", got)
	}
}
