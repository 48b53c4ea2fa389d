package llmskill

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var codeFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

var trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)

// ExtractJSON pulls a JSON object out of LLM output that may be wrapped in
// markdown code fences or padded with prose: strip code fences, locate the
// first '{' and last '}', strip trailing commas, then strict-parse.
func ExtractJSON(text string) (map[string]any, error) {
	candidate := text
	if m := codeFencePattern.FindStringSubmatch(text); m != nil {
		candidate = m[1]
	}

	start := strings.IndexByte(candidate, '{')
	end := strings.LastIndexByte(candidate, '}')
	if start < 0 || end < start {
		return nil, fmt.Errorf("llmskill: no JSON object found in response")
	}
	candidate = trailingCommaPattern.ReplaceAllString(candidate[start:end+1], "$1")

	var data map[string]any
	if err := json.Unmarshal([]byte(candidate), &data); err != nil {
		return nil, fmt.Errorf("llmskill: parsing extracted JSON: %w", err)
	}
	return data, nil
}
