// Package taper builds dose-reduction plans. A five-state selection ladder
// chooses how each plan is produced: a known protocol from the reference
// tables, clinical criteria with generated detail, no taper needed, safe
// immediate discontinuation, or an emergency conservative plan when
// everything else fails.
package taper

// Selection states, in ladder order.
const (
	StateKnownProtocol       = "known_protocol"
	StateClinicalCriteria    = "clinical_criteria"
	StateNoTaper             = "no_taper"
	StateSafeDiscontinuation = "safe_discontinuation"
	StateEmergency           = "emergency"
)

// maxWithdrawalSymptoms caps how many symptoms a plan lists for patient
// education.
const maxWithdrawalSymptoms = 3

// Step is one dose reduction. DosePercent is the share of the original dose
// remaining after the step, so a completed taper ends at 0.
type Step struct {
	Week        int    `json:"week"`
	DosePercent int    `json:"dose_percent"`
	Instruction string `json:"instruction"`
	Monitoring  string `json:"monitoring"`
}

// Plan is a complete tapering plan for one medication.
type Plan struct {
	Medication          string   `json:"medication"`
	DrugClass           string   `json:"drug_class,omitempty"`
	State               string   `json:"state"`
	RequiresTaper       bool     `json:"requires_taper"`
	BaseDurationWeeks   int      `json:"base_duration_weeks"`
	DurationWeeks       int      `json:"duration_weeks"`
	SpeedMultiplier     float64  `json:"speed_multiplier"`
	StrategyName        string   `json:"strategy_name"`
	StepLogic           string   `json:"step_logic,omitempty"`
	Steps               []Step   `json:"steps"`
	MonitoringFrequency string   `json:"monitoring_frequency,omitempty"`
	WithdrawalSymptoms  []string `json:"withdrawal_symptoms,omitempty"`
	PauseCriteria       string   `json:"pause_criteria,omitempty"`
	Education           []string `json:"education,omitempty"`
	Rationale           string   `json:"rationale,omitempty"`
}

// truncateSymptoms keeps the first few withdrawal symptoms for patient
// education; long lists overwhelm rather than inform.
func truncateSymptoms(symptoms []string) []string {
	if len(symptoms) <= maxWithdrawalSymptoms {
		return symptoms
	}
	return symptoms[:maxWithdrawalSymptoms]
}
