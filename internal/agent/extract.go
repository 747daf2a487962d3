package agent

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/stackmesh/shopagent/pkg/models"
)

// Identifier cues in priority order. The labeled forms win over the
// bare-number fallback so "order 3 for customer id 42" resolves to 42.
var identifierPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)customer\s+id\s+(\d+)`),
	regexp.MustCompile(`(?i)customer\s+id:\s*(\d+)`),
	regexp.MustCompile(`(?i)\bid\s+(\d+)`),
	regexp.MustCompile(`(?i)\bid:\s*(\d+)`),
}

var bareNumber = regexp.MustCompile(`\d+`)

// Extractor recovers an implied tool invocation from model free text
// when the model declines structured calling. It is intentionally
// lossy: only tools whose schema takes a single identifier-shaped
// required parameter are eligible, and ties resolve to the first
// registered match. Callers treat the result as a best-effort guess,
// not an inference contract.
type Extractor struct {
	candidates []extractCandidate
}

type extractCandidate struct {
	name  string
	param string
}

// NewExtractor inspects the tool catalog and keeps the tools eligible
// for heuristic recovery.
func NewExtractor(descriptors []models.ToolDescriptor) *Extractor {
	e := &Extractor{}
	for _, d := range descriptors {
		required := requiredParams(d.Schema)
		if len(required) != 1 {
			continue
		}
		if !strings.Contains(strings.ToLower(required[0]), "id") {
			continue
		}
		e.candidates = append(e.candidates, extractCandidate{name: d.Name, param: required[0]})
	}
	return e
}

// Extract scans text for a tool-name mention plus an identifier and
// returns the implied call, or nil when nothing matches. A mention is
// the literal tool name, case-insensitive, which also covers "use
// <name>" and "using <name>" phrasings.
func (e *Extractor) Extract(text string) *models.ToolCall {
	lower := strings.ToLower(text)
	for _, c := range e.candidates {
		if !strings.Contains(lower, strings.ToLower(c.name)) {
			continue
		}
		id, ok := findIdentifier(text)
		if !ok {
			return nil
		}
		return &models.ToolCall{
			Name:   c.name,
			Params: map[string]any{c.param: id},
		}
	}
	return nil
}

func findIdentifier(text string) (string, bool) {
	for _, pat := range identifierPatterns {
		if m := pat.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	if m := bareNumber.FindString(text); m != "" {
		return m, true
	}
	return "", false
}

// requiredParams pulls the required-field list out of a tool's input
// schema. A schema that fails to parse yields nil, which simply makes
// the tool ineligible here.
func requiredParams(schema json.RawMessage) []string {
	if len(schema) == 0 {
		return nil
	}
	var decoded struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(schema, &decoded); err != nil {
		return nil
	}
	return decoded.Required
}
