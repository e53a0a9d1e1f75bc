package taper

import (
	"testing"

	"github.com/sagecare/deprescribe/internal/patient"
)

func TestAdjustDuration(t *testing.T) {
	tests := []struct {
		name       string
		baseWeeks  int
		duration   patient.DurationCategory
		multiplier float64
		expected   int
	}{
		{"long-term at severe frailty doubles", 8, patient.DurationLongTerm, 0.5, 16},
		{"long-term floor raises a short protocol", 4, patient.DurationLongTerm, 1.0, 8},
		{"short-term halves with floor", 12, patient.DurationShortTerm, 1.0, 6},
		{"short-term floor", 6, patient.DurationShortTerm, 1.0, 4},
		{"unknown duration passes through", 6, patient.DurationUnknown, 1.0, 6},
		{"fit patient compresses", 8, patient.DurationUnknown, 1.25, 6},
		{"never below one week", 1, patient.DurationUnknown, 1.25, 1},
		{"non-positive multiplier treated as neutral", 8, patient.DurationUnknown, 0, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AdjustDuration(tt.baseWeeks, tt.duration, tt.multiplier)
			if got != tt.expected {
				t.Errorf("AdjustDuration(%d, %s, %.2f) = %d, want %d",
					tt.baseWeeks, tt.duration, tt.multiplier, got, tt.expected)
			}
		})
	}
}
