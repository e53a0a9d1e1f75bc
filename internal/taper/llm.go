package taper

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sagecare/deprescribe/internal/shared/metrics"
)

// Generator produces structured JSON from a clinical prompt. Implemented by
// the genai client; tests substitute stubs.
type Generator interface {
	Generate(ctx context.Context, prompt string) (json.RawMessage, error)
}

// flexWeek tolerates the week formats generated schedules have shipped
// with: integers, floats, and range strings like "1-2" (the range start
// wins).
type flexWeek int

func (w *flexWeek) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return fmt.Errorf("week is null")
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*w = flexWeek(int(n))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("week is neither number nor string: %s", data)
	}
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '-'); i > 0 {
		s = s[:i]
	}
	n2, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("unparseable week %q", s)
	}
	*w = flexWeek(int(n2))
	return nil
}

// generatedSchedule is the shape requested from the generator for a
// detailed taper schedule. RequiresTaper is a pointer so an explicit false
// (tapering not indicated) is distinguishable from an omitted field.
type generatedSchedule struct {
	RequiresTaper      *bool           `json:"requires_taper"`
	DurationWeeks      int             `json:"duration_weeks"`
	Strategy           string          `json:"strategy"`
	Steps              []generatedStep `json:"steps"`
	Monitoring         string          `json:"monitoring"`
	WithdrawalSymptoms []string        `json:"withdrawal_symptoms"`
	Rationale          string          `json:"rationale"`
}

type generatedStep struct {
	Week        flexWeek `json:"week"`
	Percentage  float64  `json:"percentage"`
	Instruction string   `json:"instruction"`
}

// DrugInfo is background information about a medication used to enrich
// recommendations.
type DrugInfo struct {
	Medication         string   `json:"medication"`
	DrugClass          string   `json:"drug_class"`
	WithdrawalRisk     string   `json:"withdrawal_risk"`
	WithdrawalSymptoms []string `json:"withdrawal_symptoms"`
	Monitoring         string   `json:"monitoring"`
	Rationale          string   `json:"rationale"`
}

// schedulePrompt asks for a taper schedule in the exact JSON shape
// generatedSchedule decodes. Screening context lines ground the plan in the
// criteria that flagged the medication.
func schedulePrompt(medication, drugClass string, durationWeeks int, screeningContext []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Design a %d-week tapering schedule for an older adult stopping %s", durationWeeks, medication)
	if drugClass != "" {
		fmt.Fprintf(&b, " (%s)", drugClass)
	}
	b.WriteString(".\n")
	if len(screeningContext) > 0 {
		b.WriteString("Screening flags: " + strings.Join(screeningContext, "; ") + ".\n")
	}
	b.WriteString("Respond with JSON only, no commentary, in this shape:\n")
	b.WriteString(`{"requires_taper": <bool>, "duration_weeks": <int>, "strategy": "<name>", "steps": [{"week": <int>, "percentage": <0-100 dose remaining>, "instruction": "<text>"}], "monitoring": "<frequency>", "withdrawal_symptoms": ["<symptom>"], "rationale": "<one sentence>"}`)
	return b.String()
}

// drugInfoPrompt asks for background information, citing the screening
// context so the answer addresses why the medication was flagged.
func drugInfoPrompt(medication string, screeningContext []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize deprescribing considerations for %s in an older adult.\n", medication)
	if len(screeningContext) > 0 {
		b.WriteString("Screening flags: " + strings.Join(screeningContext, "; ") + ".\n")
	}
	b.WriteString("Respond with JSON only, no commentary, in this shape:\n")
	b.WriteString(`{"medication": "<name>", "drug_class": "<class>", "withdrawal_risk": "<low|moderate|high>", "withdrawal_symptoms": ["<symptom>"], "monitoring": "<guidance>", "rationale": "<one sentence>"}`)
	return b.String()
}

// decodeSchedule parses a recovered payload into a usable schedule,
// defaulting missing required fields and dropping steps that fail
// validation. Defaults and drops are counted and logged, never fatal.
func decodeSchedule(payload json.RawMessage, medication string, fallbackWeeks int, log *zap.Logger) (generatedSchedule, error) {
	var s generatedSchedule
	if err := json.Unmarshal(payload, &s); err != nil {
		return s, fmt.Errorf("generated schedule does not match expected shape: %w", err)
	}
	if s.DurationWeeks < 1 {
		s.DurationWeeks = fallbackWeeks
		metrics.RecordDefaultedField()
		log.Debug("defaulted duration_weeks in generated schedule", zap.String("medication", medication))
	}
	if s.Strategy == "" {
		s.Strategy = "Gradual dose reduction"
		metrics.RecordDefaultedField()
	}
	if s.Monitoring == "" {
		s.Monitoring = "Weekly"
		metrics.RecordDefaultedField()
	}
	return s, nil
}

// scheduleSteps validates generated steps into the plan's step list.
// Invalid steps (week below 1, dose outside 0-100, weeks moving backwards)
// are dropped; the first surviving step is normalized to week 1 and a
// terminal zero-dose step is enforced at the final week.
func scheduleSteps(s generatedSchedule, medication string, log *zap.Logger) []Step {
	var steps []Step
	lastWeek := 0
	for _, gs := range s.Steps {
		week := int(gs.Week)
		pct := int(gs.Percentage)
		if week < 1 || pct < 0 || pct > 100 || week < lastWeek {
			metrics.RecordDroppedStep()
			log.Debug("dropped invalid generated step",
				zap.String("medication", medication),
				zap.Int("week", week), zap.Int("percentage", pct))
			continue
		}
		instruction := gs.Instruction
		if instruction == "" {
			instruction = fmt.Sprintf("Reduce to %d%% of the original dose", pct)
		}
		steps = append(steps, Step{
			Week:        week,
			DosePercent: pct,
			Instruction: instruction,
			Monitoring:  monitoringFor(len(steps), s.Monitoring),
		})
		lastWeek = week
	}
	if len(steps) == 0 {
		return nil
	}
	if steps[0].Week != 1 {
		metrics.RecordDefaultedField()
		log.Debug("normalized first generated step to week 1",
			zap.String("medication", medication), zap.Int("week", steps[0].Week))
		steps[0].Week = 1
	}
	if last := steps[len(steps)-1]; last.DosePercent > 0 {
		week := s.DurationWeeks
		if week < last.Week {
			week = last.Week
		}
		steps = append(steps, Step{
			Week:        week,
			DosePercent: 0,
			Instruction: "Stop the medication completely",
			Monitoring:  "Final review with prescriber",
		})
	}
	return steps
}

// decodeDrugInfo parses recovered drug information, defaulting required
// fields the generator omitted.
func decodeDrugInfo(payload json.RawMessage, medication, drugClass string, log *zap.Logger) (DrugInfo, error) {
	var d DrugInfo
	if err := json.Unmarshal(payload, &d); err != nil {
		return d, fmt.Errorf("generated drug info does not match expected shape: %w", err)
	}
	if d.Medication == "" {
		d.Medication = medication
		metrics.RecordDefaultedField()
	}
	if d.DrugClass == "" {
		d.DrugClass = drugClass
		metrics.RecordDefaultedField()
	}
	if d.WithdrawalRisk == "" {
		d.WithdrawalRisk = "moderate"
		metrics.RecordDefaultedField()
		log.Debug("defaulted withdrawal_risk in generated drug info", zap.String("medication", medication))
	}
	if d.Monitoring == "" {
		d.Monitoring = "Review at each dose change"
		metrics.RecordDefaultedField()
	}
	return d, nil
}
