package genai

import (
	"encoding/json"
	"fmt"
)

// excerptLimit caps how much raw model output a recovery error carries.
const excerptLimit = 500

// StructuredResponseError reports that no parseable JSON payload could be
// recovered from a model response. Excerpt holds the beginning of the raw
// text for diagnosis.
type StructuredResponseError struct {
	Excerpt string
}

func (e *StructuredResponseError) Error() string {
	return fmt.Sprintf("no parseable JSON in model response: %q", e.Excerpt)
}

// Recover extracts a JSON payload from raw model output. The stages run in
// order: parse as-is, strip a wrapping markdown fence, then scan for the
// first balanced object or array embedded in surrounding prose. Each stage
// must yield syntactically valid JSON to win.
func Recover(raw string) (json.RawMessage, error) {
	candidates := []string{raw}
	if stripped := StripFences(raw); stripped != raw {
		candidates = append(candidates, stripped)
	}
	for _, c := range candidates {
		if valid(c) {
			return json.RawMessage(c), nil
		}
		// ExtractJSON only returns spans that already parse.
		if span := ExtractJSON(c); span != "" {
			return json.RawMessage(span), nil
		}
	}
	return nil, &StructuredResponseError{Excerpt: excerpt(raw)}
}

func valid(s string) bool {
	return len(s) > 0 && json.Valid([]byte(s))
}

func excerpt(raw string) string {
	if len(raw) > excerptLimit {
		return raw[:excerptLimit]
	}
	return raw
}
