package prompt

import (
	"strings"
	"testing"

	"github.com/leofalp/conduit/internal/utils"
	"github.com/leofalp/conduit/providers/llm"
)

// TestRender_Substitution verifies placeholder substitution with tolerated
// inner whitespace.
func TestRender_Substitution(t *testing.T) {
	template := Template{
		ID:   "report",
		Body: "Hello {{name}}, your {{ thing }} is ready",
	}

	rendered, err := Render(template, map[string]string{"name": "Sam", "thing": "report"})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if rendered != "Hello Sam, your report is ready" {
		t.Errorf("unexpected render output %q", rendered)
	}
}

// TestRender_UnresolvedLeftVerbatim verifies that placeholders without a
// matching variable stay in the output untouched.
func TestRender_UnresolvedLeftVerbatim(t *testing.T) {
	template := Template{Body: "Hi {{name}}, see {{unknown}}"}

	rendered, err := Render(template, map[string]string{"name": "Ada"})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if !strings.Contains(rendered, "{{unknown}}") {
		t.Errorf("expected unresolved placeholder kept verbatim, got %q", rendered)
	}
}

// TestRender_RequiredMissing verifies that a required variable that is
// missing or blank fails the render.
func TestRender_RequiredMissing(t *testing.T) {
	template := Template{
		Body:      "{{topic}}",
		Variables: []Variable{{Name: "topic", Required: true}},
	}

	if _, err := Render(template, nil); err == nil {
		t.Error("expected an error for a missing required variable")
	}
	if _, err := Render(template, map[string]string{"topic": "   "}); err == nil {
		t.Error("expected an error for a blank required variable")
	}
}

// TestMergeSampling_RequestWins verifies per-field precedence: explicit
// request values always beat persona defaults.
func TestMergeSampling_RequestWins(t *testing.T) {
	request := &llm.SamplingConfig{Temperature: utils.Ptr(float32(0.2))}
	defaults := &llm.SamplingConfig{
		Temperature: utils.Ptr(float32(0.9)),
		TopP:        utils.Ptr(float32(0.5)),
	}

	merged := MergeSampling(request, defaults)
	if merged.Temperature == nil || *merged.Temperature != 0.2 {
		t.Errorf("expected request temperature 0.2 to win, got %v", merged.Temperature)
	}
	if merged.TopP == nil || *merged.TopP != 0.5 {
		t.Errorf("expected persona topP 0.5 to fill the gap, got %v", merged.TopP)
	}
}

// TestMergeSampling_NilSides verifies nil handling on both sides.
func TestMergeSampling_NilSides(t *testing.T) {
	if merged := MergeSampling(nil, nil); merged != nil {
		t.Errorf("expected nil when neither side sets anything, got %+v", merged)
	}

	defaults := &llm.SamplingConfig{TopK: utils.Ptr(40)}
	merged := MergeSampling(nil, defaults)
	if merged == nil || merged.TopK == nil || *merged.TopK != 40 {
		t.Errorf("expected persona defaults to pass through, got %+v", merged)
	}
	if merged == defaults {
		t.Error("merge must copy, not alias, the persona defaults")
	}
}

// TestMergeSystemPrompt verifies the persona-first blank-line join.
func TestMergeSystemPrompt(t *testing.T) {
	if got := MergeSystemPrompt("Be kind.", "Answer in French."); got != "Be kind.\n\nAnswer in French." {
		t.Errorf("unexpected merge %q", got)
	}
	if got := MergeSystemPrompt("", "Just this."); got != "Just this." {
		t.Errorf("unexpected merge %q", got)
	}
	if got := MergeSystemPrompt("Only persona.", ""); got != "Only persona." {
		t.Errorf("unexpected merge %q", got)
	}
}
