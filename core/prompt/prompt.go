// Package prompt implements the request-enrichment rules applied before a
// turn is dispatched: persona merging (stored instructions and default
// sampling parameters) and prompt-template rendering with {{variable}}
// substitution.
package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/leofalp/conduit/providers/llm"
)

// UserInputVariable is the auto-injected template variable carrying the raw
// user message. User-supplied variables of the same name take precedence.
const UserInputVariable = "user_input"

// Persona is a stored system-prompt and default-parameter bundle a user can
// select to shape a turn.
type Persona struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Instructions string              `json:"instructions"`
	Defaults     *llm.SamplingConfig `json:"defaults,omitempty"`
}

// Variable declares one placeholder of a prompt template.
type Variable struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// Template is a stored prompt template with declared variables.
type Template struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Body      string     `json:"body"`
	Variables []Variable `json:"variables,omitempty"`
}

// placeholderPattern matches {{name}} placeholders, tolerating inner
// whitespace. The capture group is the variable name.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Render substitutes the template's placeholders from the given variables.
// Placeholders without a matching variable are left verbatim in the output.
// Returns an error when a variable declared required is missing or blank.
func Render(template Template, variables map[string]string) (string, error) {
	for _, declared := range template.Variables {
		if !declared.Required {
			continue
		}
		if strings.TrimSpace(variables[declared.Name]) == "" {
			return "", fmt.Errorf("required prompt variable %q is missing or blank", declared.Name)
		}
	}

	rendered := placeholderPattern.ReplaceAllStringFunc(template.Body, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := variables[name]; ok {
			return value
		}
		return match
	})

	return rendered, nil
}

// MergeSampling overlays persona defaults under explicitly-set request
// parameters. The request always wins; persona values only fill fields the
// request left nil. Returns nil when neither side sets anything.
func MergeSampling(request, defaults *llm.SamplingConfig) *llm.SamplingConfig {
	if defaults == nil {
		return request
	}
	if request == nil {
		merged := *defaults
		return &merged
	}

	merged := *request
	if merged.Temperature == nil {
		merged.Temperature = defaults.Temperature
	}
	if merged.TopP == nil {
		merged.TopP = defaults.TopP
	}
	if merged.TopK == nil {
		merged.TopK = defaults.TopK
	}
	if merged.MaxTokens == nil {
		merged.MaxTokens = defaults.MaxTokens
	}
	return &merged
}

// MergeSystemPrompt combines persona instructions with a user-supplied
// system prompt: persona instructions first, then the user prompt, joined
// by a blank line. Either side may be empty.
func MergeSystemPrompt(personaInstructions, userSystemPrompt string) string {
	switch {
	case personaInstructions == "":
		return userSystemPrompt
	case userSystemPrompt == "":
		return personaInstructions
	default:
		return personaInstructions + "\n\n" + userSystemPrompt
	}
}
