package genai

import (
	"encoding/json"
	"regexp"
	"strings"
)

// fencePattern matches a whole response wrapped in a markdown code fence,
// with or without a json language tag. Anchored so a fence appearing in the
// middle of prose is not mistaken for a wrapper.
var fencePattern = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// StripFences removes a markdown code fence wrapping the whole text.
// Text without a wrapping fence is returned unchanged apart from trimming.
func StripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

// ExtractJSON locates the first parseable JSON object or array embedded in
// free text. Every opening brace or bracket is a candidate start: the span
// to its matching close is located by a depth-counted scan, and the first
// span that parses as JSON wins. A candidate that never closes, or whose
// span does not parse, is abandoned in favor of the next opening position.
// Returns "" when no candidate parses.
func ExtractJSON(text string) string {
	for start := 0; start < len(text); start++ {
		open := text[start]
		if open != '{' && open != '[' {
			continue
		}
		closing := byte('}')
		if open == '[' {
			closing = ']'
		}
		span := balancedSpan(text, start, open, closing)
		if span != "" && json.Valid([]byte(span)) {
			return span
		}
	}
	return ""
}

// balancedSpan scans forward from start counting bracket depth for one
// bracket type. Brackets inside string literals are ignored. Returns the
// substring through the matching close, or "" when the span never closes.
func balancedSpan(text string, start int, open, closing byte) string {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
