package taper

import "fmt"

// minSynthesizedSteps keeps even very short tapers from dropping the dose in
// fewer than four reductions.
const minSynthesizedSteps = 4

// Synthesize produces a deterministic week-indexed step schedule for one
// taper duration. Steps are evenly spaced with an equal integer percentage
// reduction each time; a terminal zero-dose step closes the schedule at the
// final week. Monitoring intensity alternates between active review and
// self-monitoring.
func Synthesize(durationWeeks int, monitoringFrequency string) []Step {
	if durationWeeks < 1 {
		durationWeeks = 1
	}
	numSteps := durationWeeks / 2
	if numSteps < minSynthesizedSteps {
		numSteps = minSynthesizedSteps
	}
	reduction := 100 / numSteps
	interval := durationWeeks / numSteps

	steps := make([]Step, 0, numSteps+1)
	for i := 0; i < numSteps; i++ {
		// Step 0 holds the full dose; each later step drops one reduction.
		remaining := 100 - i*reduction
		if remaining < 0 {
			remaining = 0
		}
		instruction := fmt.Sprintf("Reduce to %d%% of the original dose", remaining)
		if remaining == 100 {
			instruction = "Continue the current dose while the taper begins"
		}
		steps = append(steps, Step{
			Week:        i*interval + 1,
			DosePercent: remaining,
			Instruction: instruction,
			Monitoring:  monitoringFor(i, monitoringFrequency),
		})
	}
	if steps[len(steps)-1].DosePercent > 0 {
		steps = append(steps, Step{
			Week:        durationWeeks,
			DosePercent: 0,
			Instruction: "Stop the medication completely",
			Monitoring:  "Final review with prescriber",
		})
	}
	return steps
}

func monitoringFor(i int, frequency string) string {
	if i%2 == 0 {
		if frequency == "" {
			return "Clinical review"
		}
		return fmt.Sprintf("Clinical review (%s)", frequency)
	}
	return "Self-monitor and report new or worsening symptoms"
}
