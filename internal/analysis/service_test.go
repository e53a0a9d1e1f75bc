package analysis

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/sagecare/deprescribe/internal/patient"
	"github.com/sagecare/deprescribe/internal/refdata"
	"github.com/sagecare/deprescribe/internal/risk"
	"github.com/sagecare/deprescribe/internal/shared/errors"
	"github.com/sagecare/deprescribe/internal/taper"
)

func testService(t *testing.T) *Service {
	t.Helper()
	b, err := refdata.LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded reference data: %v", err)
	}
	log := zap.NewNop()
	return NewService(b, taper.NewPlanner(b, nil, log), log)
}

func frailPatient() *patient.Patient {
	cfs := 7
	return &patient.Patient{
		Age:            82,
		Gender:         patient.GenderFemale,
		CFSScore:       &cfs,
		LifeExpectancy: patient.LifeExpectancy1To2Years,
		Comorbidities:  []string{"Hypertension", "Osteoporosis"},
		Medications: []patient.Medication{
			{GenericName: "lorazepam", Dose: "1 mg", Frequency: "nightly", Duration: patient.DurationLongTerm},
			{GenericName: "atorvastatin", Dose: "20 mg", Frequency: "daily", Duration: patient.DurationLongTerm},
			{GenericName: "amlodipine", Dose: "5 mg", Frequency: "daily", Duration: patient.DurationLongTerm},
		},
		Herbs: []patient.HerbalProduct{
			{GenericName: "ashwagandha", Dose: "500 mg", Frequency: "nightly", Duration: patient.DurationLongTerm},
		},
	}
}

func TestAnalyzeFullReview(t *testing.T) {
	s := testService(t)
	resp, err := s.Analyze(context.Background(), frailPatient())
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	if resp.RequestID == "" {
		t.Error("response must carry a request ID")
	}
	if len(resp.Assessments) != 3 {
		t.Fatalf("got %d assessments, want 3", len(resp.Assessments))
	}

	byName := map[string]risk.Assessment{}
	for _, a := range resp.Assessments {
		byName[a.MedicationName] = a
	}

	// Lorazepam: Beers + STOPP base RED, plus frailty and herb signals.
	if got := byName["lorazepam"].FinalRisk; got != risk.Red {
		t.Errorf("lorazepam final risk = %v, want RED", got)
	}
	// Statin with 18 months remaining escalates through time to benefit.
	if got := byName["atorvastatin"].FinalRisk; got != risk.Red {
		t.Errorf("atorvastatin final risk = %v, want RED", got)
	}
	// Amlodipine has no findings anywhere.
	if got := byName["amlodipine"].FinalRisk; got != risk.Green {
		t.Errorf("amlodipine final risk = %v, want GREEN", got)
	}

	if resp.Priority.Red != 2 || resp.Priority.Green != 1 {
		t.Errorf("priority counts = %+v", resp.Priority)
	}
	if resp.Priority.PriorityOrder[len(resp.Priority.PriorityOrder)-1] != "amlodipine" {
		t.Errorf("priority order = %v, want amlodipine last", resp.Priority.PriorityOrder)
	}

	// Both RED medications need plans; amlodipine does not.
	if len(resp.TaperingPlans) != 2 {
		t.Fatalf("got %d tapering plans, want 2", len(resp.TaperingPlans))
	}
	for _, plan := range resp.TaperingPlans {
		if plan.Medication == "lorazepam" && plan.State != taper.StateKnownProtocol {
			t.Errorf("lorazepam plan state = %q, want %q", plan.State, taper.StateKnownProtocol)
		}
	}

	if len(resp.HerbFindings) == 0 {
		t.Error("ashwagandha with lorazepam must produce herb findings")
	}
	if len(resp.Recommendations) == 0 {
		t.Error("review with RED findings must produce recommendations")
	}
	if len(resp.StartSuggestions) == 0 {
		t.Error("osteoporosis without bone therapy must produce START suggestions")
	}
	if resp.Patient.EffectiveCFS != 7 || resp.Patient.TaperSpeed != 0.5 {
		t.Errorf("patient summary = %+v", resp.Patient)
	}
}

func TestAnalyzeDeterministicPriorities(t *testing.T) {
	s := testService(t)
	first, err := s.Analyze(context.Background(), frailPatient())
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	second, err := s.Analyze(context.Background(), frailPatient())
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if strings.Join(first.Priority.PriorityOrder, ",") != strings.Join(second.Priority.PriorityOrder, ",") {
		t.Errorf("priority order not stable: %v vs %v", first.Priority.PriorityOrder, second.Priority.PriorityOrder)
	}
	for i := range first.Assessments {
		if first.Assessments[i].FinalRisk != second.Assessments[i].FinalRisk {
			t.Errorf("assessment %d differs between runs", i)
		}
	}
}

func TestAnalyzeValidation(t *testing.T) {
	s := testService(t)
	_, err := s.Analyze(context.Background(), &patient.Patient{Age: 70, Gender: patient.GenderMale})
	if err == nil {
		t.Fatal("profile without medications must fail validation")
	}
	appErr, ok := err.(*errors.AppError)
	if !ok {
		t.Fatalf("error type = %T, want *errors.AppError", err)
	}
	if appErr.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %q, want VALIDATION_ERROR", appErr.Code)
	}
	if _, found := appErr.Details["medications"]; !found {
		t.Errorf("details = %v, want a medications entry", appErr.Details)
	}
}

func TestAnalyzeCleanProfile(t *testing.T) {
	s := testService(t)
	p := &patient.Patient{
		Age:            68,
		Gender:         patient.GenderMale,
		LifeExpectancy: patient.LifeExpectancyOver10Years,
		Medications: []patient.Medication{
			{GenericName: "amlodipine", Dose: "5 mg", Frequency: "daily", Duration: patient.DurationLongTerm},
		},
	}
	resp, err := s.Analyze(context.Background(), p)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if resp.Priority.Green != 1 || resp.Priority.Red != 0 {
		t.Errorf("priority = %+v, want one GREEN", resp.Priority)
	}
	if len(resp.TaperingPlans) != 0 {
		t.Errorf("clean profile produced %d tapering plans, want 0", len(resp.TaperingPlans))
	}
	if len(resp.SafetyAlerts) != 0 {
		t.Errorf("clean profile produced safety alerts: %v", resp.SafetyAlerts)
	}
	if len(resp.Recommendations) != 1 {
		t.Errorf("clean profile recommendations = %v, want the continue-therapy default", resp.Recommendations)
	}
}

func TestTaperPlanEndpointValidation(t *testing.T) {
	s := testService(t)
	if _, err := s.TaperPlan(context.Background(), &TaperPlanRequest{}); err == nil {
		t.Error("taper plan without a medication must fail")
	}

	resp, err := s.TaperPlan(context.Background(), &TaperPlanRequest{
		Medication: patient.Medication{GenericName: "lorazepam", Duration: patient.DurationLongTerm},
		IsFrail:    true,
	})
	if err != nil {
		t.Fatalf("TaperPlan returned error: %v", err)
	}
	if resp.Plan.State != taper.StateKnownProtocol {
		t.Errorf("state = %q, want %q", resp.Plan.State, taper.StateKnownProtocol)
	}
	// IsFrail without an explicit score substitutes CFS 5 (multiplier 0.75):
	// 8 weeks stretches to 11.
	if resp.Plan.DurationWeeks != 11 {
		t.Errorf("duration = %d weeks, want 11", resp.Plan.DurationWeeks)
	}
}

func TestInteractionsEndpoint(t *testing.T) {
	s := testService(t)
	if _, err := s.Interactions(context.Background(), &InteractionsRequest{}); err == nil {
		t.Error("empty interactions request must fail")
	}

	resp, err := s.Interactions(context.Background(), &InteractionsRequest{
		Medications: []patient.Medication{{GenericName: "warfarin", Duration: patient.DurationLongTerm}},
		Herbs:       []patient.HerbalProduct{{GenericName: "ginkgo", Duration: patient.DurationLongTerm}},
	})
	if err != nil {
		t.Fatalf("Interactions returned error: %v", err)
	}
	if len(resp.Findings) != 1 || resp.Findings[0].Severity != "Major" {
		t.Errorf("findings = %+v, want one Major interaction", resp.Findings)
	}
}
