package taper

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/sagecare/deprescribe/internal/genai"
	"github.com/sagecare/deprescribe/internal/patient"
	"github.com/sagecare/deprescribe/internal/refdata"
)

// stubGenerator returns a fixed payload or error and records the prompts it
// was asked.
type stubGenerator struct {
	payload string
	err     error
	prompts []string
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (json.RawMessage, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.payload), nil
}

// panicGenerator simulates a faulty generator implementation.
type panicGenerator struct{}

func (panicGenerator) Generate(ctx context.Context, prompt string) (json.RawMessage, error) {
	panic("generator fault")
}

func testPlanner(t *testing.T, gen Generator) *Planner {
	t.Helper()
	b, err := refdata.LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded reference data: %v", err)
	}
	return NewPlanner(b, gen, zap.NewNop())
}

func TestPlanKnownProtocol(t *testing.T) {
	p := testPlanner(t, nil)
	med := patient.Medication{GenericName: "lorazepam", Dose: "1 mg", Frequency: "nightly", Duration: patient.DurationLongTerm}

	plan := p.Plan(context.Background(), med, 7)

	if plan.State != StateKnownProtocol {
		t.Fatalf("state = %q, want %q", plan.State, StateKnownProtocol)
	}
	if !plan.RequiresTaper {
		t.Error("known protocol plan must require tapering")
	}
	// Base 8 weeks, long-term floor keeps 8, CFS 7 multiplier 0.5 doubles.
	if plan.DurationWeeks != 16 {
		t.Errorf("adjusted duration = %d weeks, want 16", plan.DurationWeeks)
	}
	if len(plan.WithdrawalSymptoms) > 3 {
		t.Errorf("plan lists %d withdrawal symptoms, want at most 3", len(plan.WithdrawalSymptoms))
	}
	if last := plan.Steps[len(plan.Steps)-1]; last.DosePercent != 0 {
		t.Errorf("final step dose = %d%%, want 0%%", last.DosePercent)
	}
	if plan.PauseCriteria == "" {
		t.Error("known protocol plan must carry pause criteria")
	}
}

func TestPlanKnownProtocolUsesGeneratedSchedule(t *testing.T) {
	gen := &stubGenerator{payload: `{
		"requires_taper": true,
		"duration_weeks": 10,
		"strategy": "Diazepam substitution taper",
		"steps": [
			{"week": 1, "percentage": 100, "instruction": "Switch to the equivalent diazepam dose"},
			{"week": 4, "percentage": 50},
			{"week": 10, "percentage": 0, "instruction": "Stop"}
		],
		"monitoring": "Weekly",
		"rationale": "substitution smooths interdose withdrawal"
	}`}
	p := testPlanner(t, gen)
	med := patient.Medication{GenericName: "lorazepam", Dose: "1 mg", Frequency: "nightly", Duration: patient.DurationLongTerm}

	plan := p.Plan(context.Background(), med, 3)

	if plan.State != StateKnownProtocol {
		t.Fatalf("state = %q, want %q", plan.State, StateKnownProtocol)
	}
	if plan.StrategyName != "Diazepam substitution taper" {
		t.Errorf("strategy = %q, want the generated strategy", plan.StrategyName)
	}
	if plan.DurationWeeks != 10 {
		t.Errorf("duration = %d, want the generated 10 weeks", plan.DurationWeeks)
	}
	// The reference protocol still supplies the pause criteria.
	if plan.PauseCriteria == "" {
		t.Error("generated detail must not discard the protocol's pause criteria")
	}
	if len(gen.prompts) != 1 || !strings.Contains(gen.prompts[0], "Gradual benzodiazepine withdrawal") {
		t.Errorf("prompt must carry the protocol context, got %q", gen.prompts)
	}
}

func TestPlanKnownProtocolSynthesizesOnGenerationFailure(t *testing.T) {
	p := testPlanner(t, &stubGenerator{err: errors.New("service down")})
	med := patient.Medication{GenericName: "omeprazole", Dose: "20 mg", Frequency: "daily", Duration: patient.DurationLongTerm}

	plan := p.Plan(context.Background(), med, 3)

	if plan.State != StateKnownProtocol {
		t.Fatalf("state = %q, want %q", plan.State, StateKnownProtocol)
	}
	if len(plan.Steps) == 0 {
		t.Fatal("fallback must carry a synthesized schedule")
	}
	if first := plan.Steps[0]; first.Week != 1 || first.DosePercent != 100 {
		t.Errorf("first step = %+v, want week 1 at 100%%", first)
	}
	if last := plan.Steps[len(plan.Steps)-1]; last.DosePercent != 0 {
		t.Errorf("final step dose = %d%%, want 0%%", last.DosePercent)
	}
}

func TestPlanBeersMatchSelectsClinicalCriteria(t *testing.T) {
	// In the Beers table but not the protocol table, so the second state
	// must fire even without a generator.
	p := testPlanner(t, nil)
	med := patient.Medication{GenericName: "diphenhydramine", Dose: "25 mg", Frequency: "nightly", Duration: patient.DurationLongTerm}

	plan := p.Plan(context.Background(), med, 3)

	if plan.State != StateClinicalCriteria {
		t.Fatalf("state = %q, want %q", plan.State, StateClinicalCriteria)
	}
	// The matched Beers text names an anticholinergic, which selects the
	// slow 8-week fallback.
	if plan.BaseDurationWeeks != 8 {
		t.Errorf("base duration = %d, want 8 for an anticholinergic", plan.BaseDurationWeeks)
	}
	if len(plan.Steps) == 0 {
		t.Fatal("fallback plan must carry a synthesized schedule")
	}
}

func TestPlanClinicalCriteriaGenerated(t *testing.T) {
	gen := &stubGenerator{payload: `{
		"requires_taper": true,
		"duration_weeks": 6,
		"strategy": "Stepped reduction with bladder diary",
		"steps": [
			{"week": 1, "percentage": 75, "instruction": "Take three quarters of the usual dose"},
			{"week": "3-4", "percentage": 50},
			{"week": 5, "percentage": 25},
			{"week": 6, "percentage": 0, "instruction": "Stop"}
		],
		"monitoring": "Weekly",
		"withdrawal_symptoms": ["urinary urgency", "confusion rebound", "insomnia", "irritability"],
		"rationale": "gradual reduction limits rebound symptoms"
	}`}
	p := testPlanner(t, gen)
	med := patient.Medication{GenericName: "oxybutynin", Dose: "5 mg", Frequency: "daily", Duration: patient.DurationLongTerm}

	plan := p.Plan(context.Background(), med, 3)

	if plan.State != StateClinicalCriteria {
		t.Fatalf("state = %q, want %q", plan.State, StateClinicalCriteria)
	}
	if plan.StrategyName != "Stepped reduction with bladder diary" {
		t.Errorf("strategy = %q", plan.StrategyName)
	}
	if len(plan.Steps) != 4 {
		t.Fatalf("got %d steps, want 4", len(plan.Steps))
	}
	// The range week "3-4" coerces to its start.
	if plan.Steps[1].Week != 3 {
		t.Errorf("second step week = %d, want 3", plan.Steps[1].Week)
	}
	if len(plan.WithdrawalSymptoms) != 3 {
		t.Errorf("symptoms = %v, want the first 3 of 4", plan.WithdrawalSymptoms)
	}
	// The matched criteria rationale grounds the generation prompt.
	if len(gen.prompts) != 1 || !strings.Contains(gen.prompts[0], "worsens cognition") {
		t.Errorf("prompt must carry the matched Beers rationale, got %q", gen.prompts)
	}
}

func TestPlanGeneratorDeclaredNoTaper(t *testing.T) {
	gen := &stubGenerator{payload: `{
		"requires_taper": false,
		"rationale": "immediate-release nifedipine can be stopped once an alternative is started"
	}`}
	p := testPlanner(t, gen)
	med := patient.Medication{GenericName: "nifedipine", Dose: "10 mg", Frequency: "three times daily", Duration: patient.DurationLongTerm}

	plan := p.Plan(context.Background(), med, 3)

	if plan.State != StateNoTaper {
		t.Fatalf("state = %q, want %q", plan.State, StateNoTaper)
	}
	if plan.RequiresTaper {
		t.Error("no-taper plan must not require tapering")
	}
	if plan.DurationWeeks != 0 {
		t.Errorf("duration = %d, want 0", plan.DurationWeeks)
	}
	if len(plan.Steps) != 1 || plan.Steps[0].DosePercent != 0 {
		t.Errorf("steps = %+v, want a single discontinuation step", plan.Steps)
	}
}

func TestPlanClinicalCriteriaFallbackOnError(t *testing.T) {
	p := testPlanner(t, &stubGenerator{err: errors.New("service down")})
	med := patient.Medication{GenericName: "quetiapine", Dose: "25 mg", Frequency: "nightly", Duration: patient.DurationLongTerm}

	plan := p.Plan(context.Background(), med, 3)

	if plan.State != StateClinicalCriteria {
		t.Fatalf("state = %q, want %q", plan.State, StateClinicalCriteria)
	}
	// The matched STOPP category names antipsychotics, selecting the slow
	// 8-week fallback.
	if plan.BaseDurationWeeks != 8 {
		t.Errorf("base duration = %d, want 8 for a withdrawal-prone class", plan.BaseDurationWeeks)
	}
	if len(plan.Steps) == 0 {
		t.Fatal("fallback plan must carry a synthesized schedule")
	}
	if last := plan.Steps[len(plan.Steps)-1]; last.DosePercent != 0 {
		t.Errorf("final step dose = %d%%, want 0%%", last.DosePercent)
	}
}

func TestPlanClinicalCriteriaQuickFallback(t *testing.T) {
	p := testPlanner(t, nil)
	med := patient.Medication{GenericName: "ibuprofen", Dose: "400 mg", Frequency: "daily", Duration: patient.DurationLongTerm}

	plan := p.Plan(context.Background(), med, 3)

	if plan.State != StateClinicalCriteria {
		t.Fatalf("state = %q, want %q", plan.State, StateClinicalCriteria)
	}
	if plan.BaseDurationWeeks != 2 {
		t.Errorf("base duration = %d, want 2 for a low-withdrawal-risk class", plan.BaseDurationWeeks)
	}
}

func TestPlanSafeDiscontinuation(t *testing.T) {
	p := testPlanner(t, nil)
	for _, med := range []patient.Medication{
		{GenericName: "vitamin e", Dose: "400 IU", Frequency: "daily", Duration: patient.DurationLongTerm},
		{GenericName: "amoxicillin", Dose: "500 mg", Frequency: "three times daily", Duration: patient.DurationShortTerm},
	} {
		plan := p.Plan(context.Background(), med, 3)

		if plan.State != StateSafeDiscontinuation {
			t.Fatalf("%s: state = %q, want %q", med.GenericName, plan.State, StateSafeDiscontinuation)
		}
		if len(plan.Steps) != 2 {
			t.Fatalf("%s: got %d steps, want 2", med.GenericName, len(plan.Steps))
		}
		if plan.Steps[0].Week != 1 || plan.Steps[0].DosePercent != 100 {
			t.Errorf("%s: first step = %+v, want week 1 at 100%%", med.GenericName, plan.Steps[0])
		}
		if plan.Steps[1].Week != 2 || plan.Steps[1].DosePercent != 0 {
			t.Errorf("%s: second step = %+v, want week 2 at 0%%", med.GenericName, plan.Steps[1])
		}
	}
}

func TestPlanEmergencyOnPanic(t *testing.T) {
	p := testPlanner(t, panicGenerator{})
	med := patient.Medication{GenericName: "diphenhydramine", Dose: "25 mg", Frequency: "nightly", Duration: patient.DurationLongTerm}

	plan := p.Plan(context.Background(), med, 3)

	if plan.State != StateEmergency {
		t.Fatalf("state = %q, want %q", plan.State, StateEmergency)
	}
	if !plan.RequiresTaper {
		t.Error("emergency plan must require tapering")
	}
	if plan.DurationWeeks != 4 {
		t.Errorf("duration = %d, want 4", plan.DurationWeeks)
	}
	if len(plan.Steps) != 1 || plan.Steps[0].DosePercent != 100 {
		t.Errorf("steps = %+v, want a single maintain-current-dose step", plan.Steps)
	}
}

func TestPlanRejectsUnusableGeneratedSchedule(t *testing.T) {
	// Every generated step is invalid, so the clinical-criteria state must
	// fall back to the synthesized schedule.
	gen := &stubGenerator{payload: `{
		"requires_taper": true,
		"duration_weeks": 4,
		"strategy": "Broken",
		"steps": [
			{"week": 0, "percentage": 75},
			{"week": 2, "percentage": 140}
		],
		"monitoring": "Weekly"
	}`}
	p := testPlanner(t, gen)
	med := patient.Medication{GenericName: "ibuprofen", Dose: "400 mg", Frequency: "daily", Duration: patient.DurationLongTerm}

	plan := p.Plan(context.Background(), med, 3)

	if plan.State != StateClinicalCriteria {
		t.Fatalf("state = %q, want %q", plan.State, StateClinicalCriteria)
	}
	if plan.StrategyName != "Conservative stepwise reduction" {
		t.Errorf("strategy = %q, want the deterministic fallback", plan.StrategyName)
	}
	if len(plan.Steps) == 0 {
		t.Fatal("fallback plan must carry steps")
	}
}

func TestDrugInformationFallback(t *testing.T) {
	p := testPlanner(t, nil)
	med := patient.Medication{GenericName: "lorazepam", Duration: patient.DurationLongTerm}

	info := p.DrugInformation(context.Background(), med, []string{"Beers Criteria matched"})
	if info.Medication != "lorazepam" {
		t.Errorf("medication = %q", info.Medication)
	}
	if info.DrugClass != "Benzodiazepine" {
		t.Errorf("drug class = %q, want Benzodiazepine", info.DrugClass)
	}
	if info.WithdrawalRisk != "high" {
		t.Errorf("withdrawal risk = %q, want high", info.WithdrawalRisk)
	}
}

func TestDrugInformationGenerated(t *testing.T) {
	gen := &stubGenerator{payload: "```json\n" + `{
		"medication": "omeprazole",
		"drug_class": "Proton Pump Inhibitor",
		"withdrawal_risk": "moderate",
		"withdrawal_symptoms": ["rebound acid hypersecretion"],
		"monitoring": "Review reflux symptoms after 2 weeks",
		"rationale": "long-term PPI use beyond 8 weeks rarely indicated"
	}` + "\n```"}
	// The fenced payload exercises the recovery path end to end through a
	// generator that returns raw JSON after its own recovery step.
	p := testPlanner(t, &recoveringStub{inner: gen})
	med := patient.Medication{GenericName: "omeprazole", Duration: patient.DurationLongTerm}

	info := p.DrugInformation(context.Background(), med, nil)
	if info.DrugClass != "Proton Pump Inhibitor" {
		t.Errorf("drug class = %q", info.DrugClass)
	}
	if info.WithdrawalRisk != "moderate" {
		t.Errorf("withdrawal risk = %q", info.WithdrawalRisk)
	}
}

// recoveringStub mimics the production generator contract: the payload it
// hands back is already valid JSON.
type recoveringStub struct {
	inner *stubGenerator
}

func (r *recoveringStub) Generate(ctx context.Context, prompt string) (json.RawMessage, error) {
	raw, err := r.inner.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return genai.Recover(string(raw))
}
