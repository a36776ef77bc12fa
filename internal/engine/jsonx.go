package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// DecodeStrict extracts the JSON object from a raw model response and decodes
// it into target. Models wrap output in markdown fences or prose more often
// than not, so extraction runs first; if the extracted text still fails to
// parse, one repair pass with the jsonrepair library is attempted before the
// response is declared unparseable. Unknown fields are rejected so a
// drifted engine contract fails loudly instead of half-populating the target.
func DecodeStrict(raw string, target any) error {
	candidate := ExtractJSON(raw)
	if candidate == "" {
		return fmt.Errorf("no JSON object found in response")
	}

	if err := decodeDisallowUnknown(candidate, target); err == nil {
		return nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(candidate)
	if repairErr != nil {
		return fmt.Errorf("response is not valid JSON and repair failed: %v", repairErr)
	}
	if err := decodeDisallowUnknown(repaired, target); err != nil {
		return fmt.Errorf("repaired response still failed to decode: %v", err)
	}
	return nil
}

func decodeDisallowUnknown(s string, target any) error {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}

// ExtractJSON pulls the first JSON object or array out of a model response,
// stripping markdown code fences and surrounding prose.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Prefer a fenced block when one exists.
	if idx := strings.Index(s, "```"); idx != -1 {
		rest := s[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		rest = strings.TrimPrefix(rest, "JSON")
		if end := strings.Index(rest, "```"); end != -1 {
			s = strings.TrimSpace(rest[:end])
		} else {
			s = strings.TrimSpace(rest)
		}
	}

	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return ""
	}
	open := s[start]
	closing := byte('}')
	if open == '[' {
		closing = ']'
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	// Unbalanced: return the tail and let the repair pass complete it.
	return s[start:]
}
