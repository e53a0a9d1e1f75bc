package taper

import (
	"math"

	"github.com/sagecare/deprescribe/internal/patient"
)

// Duration-category floors applied before the frailty multiplier.
const (
	longTermFloorWeeks  = 8
	shortTermFloorWeeks = 4
)

// AdjustDuration turns a protocol's base duration into the patient-specific
// taper length. Long-term use is floored at 8 weeks; short-term use is
// halved and floored at 4. The frailty speed multiplier then stretches (<1)
// or compresses (>1) the result. Never returns less than one week.
func AdjustDuration(baseWeeks int, duration patient.DurationCategory, multiplier float64) int {
	weeks := baseWeeks
	switch duration {
	case patient.DurationLongTerm:
		if weeks < longTermFloorWeeks {
			weeks = longTermFloorWeeks
		}
	case patient.DurationShortTerm:
		weeks = weeks / 2
		if weeks < shortTermFloorWeeks {
			weeks = shortTermFloorWeeks
		}
	}
	if multiplier <= 0 {
		multiplier = 1
	}
	adjusted := int(math.Round(float64(weeks) / multiplier))
	if adjusted < 1 {
		adjusted = 1
	}
	return adjusted
}
