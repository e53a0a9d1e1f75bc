// Package analysis orchestrates a full medication review: it runs the
// screening modules, feeds their findings through the risk cascade, selects
// tapering plans and assembles the clinical response.
package analysis

import (
	"time"

	"github.com/sagecare/deprescribe/internal/patient"
	"github.com/sagecare/deprescribe/internal/risk"
	"github.com/sagecare/deprescribe/internal/rules"
	"github.com/sagecare/deprescribe/internal/taper"
)

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	Patient patient.Patient `json:"patient"`
}

// PatientSummary echoes the analyzed profile back with derived values.
type PatientSummary struct {
	Age            int     `json:"age"`
	Gender         string  `json:"gender"`
	EffectiveCFS   int     `json:"effective_cfs"`
	FrailtyLabel   string  `json:"frailty_label"`
	TaperSpeed     float64 `json:"taper_speed_multiplier"`
	LifeExpectancy string  `json:"life_expectancy"`
	MedicationN    int     `json:"medication_count"`
	HerbN          int     `json:"herb_count"`
}

// PrioritySummary orders medications for review, most urgent first.
type PrioritySummary struct {
	Red           int      `json:"red"`
	Yellow        int      `json:"yellow"`
	Green         int      `json:"green"`
	PriorityOrder []string `json:"priority_order"`
}

// MonitoringItem is one entry of the aggregate monitoring plan.
type MonitoringItem struct {
	Medication string `json:"medication"`
	Guidance   string `json:"guidance"`
	Frequency  string `json:"frequency,omitempty"`
}

// AnalyzeResponse is the full review result.
type AnalyzeResponse struct {
	RequestID        string                  `json:"request_id"`
	Timestamp        time.Time               `json:"timestamp"`
	Patient          PatientSummary          `json:"patient"`
	Assessments      []risk.Assessment       `json:"assessments"`
	Priority         PrioritySummary         `json:"priority"`
	ACB              rules.ACBResult         `json:"anticholinergic_burden"`
	HerbFindings     []rules.HerbFinding     `json:"herb_findings,omitempty"`
	StartSuggestions []rules.StartSuggestion `json:"start_suggestions,omitempty"`
	TaperingPlans    []taper.Plan            `json:"tapering_plans,omitempty"`
	MonitoringPlan   []MonitoringItem        `json:"monitoring_plan,omitempty"`
	Recommendations  []string                `json:"recommendations"`
	SafetyAlerts     []string                `json:"safety_alerts,omitempty"`
	ProcessingTimeMs int                     `json:"processing_time_ms"`
}

// TaperPlanRequest is the body of POST /taper-plan: one medication with
// enough patient context to adjust the plan.
type TaperPlanRequest struct {
	Medication patient.Medication `json:"medication"`
	CFSScore   *int               `json:"cfs_score,omitempty"`
	IsFrail    bool               `json:"is_frail"`
}

// TaperPlanResponse wraps one selected plan.
type TaperPlanResponse struct {
	RequestID string     `json:"request_id"`
	Timestamp time.Time  `json:"timestamp"`
	Plan      taper.Plan `json:"plan"`
}

// InteractionsRequest is the body of POST /interactions.
type InteractionsRequest struct {
	Medications []patient.Medication    `json:"medications"`
	Herbs       []patient.HerbalProduct `json:"herbs"`
}

// InteractionsResponse lists herb-drug interactions for the combination.
type InteractionsResponse struct {
	RequestID string              `json:"request_id"`
	Timestamp time.Time           `json:"timestamp"`
	Findings  []rules.HerbFinding `json:"findings"`
}
