package genai

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestRecoverFencedJSON(t *testing.T) {
	raw := "```json\n{\"duration_weeks\": 8, \"steps\": []}\n```"
	payload, err := Recover(raw)
	if err != nil {
		t.Fatalf("Recover returned error: %v", err)
	}
	var out struct {
		DurationWeeks int `json:"duration_weeks"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		t.Fatalf("recovered payload does not parse: %v", err)
	}
	if out.DurationWeeks != 8 {
		t.Errorf("duration_weeks = %d, want 8", out.DurationWeeks)
	}
}

func TestRecoverFenceWithoutLanguageTag(t *testing.T) {
	payload, err := Recover("```\n[1, 2, 3]\n```")
	if err != nil {
		t.Fatalf("Recover returned error: %v", err)
	}
	if string(payload) != "[1, 2, 3]" {
		t.Errorf("payload = %q", payload)
	}
}

func TestRecoverEmbeddedJSON(t *testing.T) {
	raw := `Here is the tapering schedule you asked for:
{"steps": [{"week": 1, "percentage": 75}], "note": "brackets like ] in strings are fine"}
Let me know if you need anything else.`
	payload, err := Recover(raw)
	if err != nil {
		t.Fatalf("Recover returned error: %v", err)
	}
	var out struct {
		Steps []struct {
			Week       int `json:"week"`
			Percentage int `json:"percentage"`
		} `json:"steps"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		t.Fatalf("recovered payload does not parse: %v", err)
	}
	if len(out.Steps) != 1 || out.Steps[0].Week != 1 {
		t.Errorf("steps = %+v", out.Steps)
	}
}

func TestRecoverPlainJSONPassthrough(t *testing.T) {
	payload, err := Recover(`  {"ok": true}  `)
	if err != nil {
		t.Fatalf("Recover returned error: %v", err)
	}
	var out map[string]bool
	if err := json.Unmarshal(payload, &out); err != nil || !out["ok"] {
		t.Errorf("payload = %q, err = %v", payload, err)
	}
}

func TestRecoverNonJSONFails(t *testing.T) {
	long := strings.Repeat("The patient should reduce the dose gradually. ", 20)
	_, err := Recover(long)
	if err == nil {
		t.Fatal("Recover succeeded on prose with no JSON")
	}
	var sre *StructuredResponseError
	if !errors.As(err, &sre) {
		t.Fatalf("error type = %T, want *StructuredResponseError", err)
	}
	if len(sre.Excerpt) > 500 {
		t.Errorf("excerpt length %d exceeds 500", len(sre.Excerpt))
	}
	if !strings.HasPrefix(long, sre.Excerpt) {
		t.Error("excerpt is not a prefix of the raw response")
	}
}

func TestRecoverUnbalancedBrackets(t *testing.T) {
	if _, err := Recover(`prefix {"steps": [1, 2`); err == nil {
		t.Fatal("Recover succeeded on unbalanced JSON")
	}
}

func TestRecoverSkipsEarlierUnparseableCandidates(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"balanced non-JSON bracket span before the payload", `[oops] {"a":1}`},
		{"unclosed brace before the payload", `{broken {"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := Recover(tt.raw)
			if err != nil {
				t.Fatalf("Recover(%q) returned error: %v", tt.raw, err)
			}
			var out map[string]int
			if err := json.Unmarshal(payload, &out); err != nil || out["a"] != 1 {
				t.Errorf("payload = %q, err = %v, want the embedded object", payload, err)
			}
		})
	}
}

func TestExtractJSONIgnoresBracketsInStrings(t *testing.T) {
	raw := `before {"text": "a } inside a string", "n": 1} after`
	got := ExtractJSON(raw)
	want := `{"text": "a } inside a string", "n": 1}`
	if got != want {
		t.Errorf("ExtractJSON = %q, want %q", got, want)
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json tag", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"no tag", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"no fence", `{"a":1}`, `{"a":1}`},
		{"inner fence untouched", "prose ```json\n{}\n``` prose", "prose ```json\n{}\n``` prose"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFences(tt.in); got != tt.want {
				t.Errorf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractTextShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"text field", `{"text": "hello"}`, "hello"},
		{"candidates", `{"candidates": [{"content": {"parts": [{"text": "from parts"}]}}]}`, "from parts"},
		{"bare string", `"just a string"`, "just a string"},
		{"unknown shape passthrough", `not even json`, "not even json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractText([]byte(tt.raw)); got != tt.want {
				t.Errorf("extractText = %q, want %q", got, tt.want)
			}
		})
	}
}
