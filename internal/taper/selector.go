package taper

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sagecare/deprescribe/internal/patient"
	"github.com/sagecare/deprescribe/internal/refdata"
	"github.com/sagecare/deprescribe/internal/shared/metrics"
)

// withdrawalProneClasses drive the conservative fallback duration when no
// protocol or generated schedule is available. Matched as lower-case
// substrings of the drug class and of the matched screening-criteria text.
var withdrawalProneClasses = []string{
	"benzodiazepine", "anticholinergic", "antidepressant",
	"antipsychotic", "opioid", "sedative",
}

// Conservative fallback durations for the clinical-criteria state.
const (
	slowFallbackWeeks  = 8
	quickFallbackWeeks = 2
)

// Planner selects and builds tapering plans. The generator is optional;
// without one every state uses its deterministic schedule.
type Planner struct {
	bundle *refdata.Bundle
	gen    Generator
	log    *zap.Logger
}

// NewPlanner creates a Planner. gen may be nil.
func NewPlanner(bundle *refdata.Bundle, gen Generator, log *zap.Logger) *Planner {
	return &Planner{bundle: bundle, gen: gen, log: log}
}

// screening holds the Beers/STOPP matches that route a medication into the
// clinical-criteria state. The rationales become generation context; the
// matched criteria text also feeds the withdrawal-risk fallback decision.
type screening struct {
	rationales []string
	matched    []string
}

func (s screening) hit() bool { return len(s.rationales) > 0 }

// Plan builds the tapering plan for one medication. The selection ladder
// runs in order: known protocol, clinical criteria for a Beers/STOPP match
// (which may itself determine that no taper is needed), safe
// discontinuation for everything else. Any panic along the way is converted
// into the emergency plan, so Plan always returns a usable result.
func (p *Planner) Plan(ctx context.Context, med patient.Medication, cfs int) (plan Plan) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("taper plan selection panicked; issuing emergency plan",
				zap.String("medication", med.GenericName), zap.Any("panic", r))
			plan = p.emergencyPlan(med)
			metrics.RecordTaperPlan(plan.State)
		}
	}()

	frailty := p.bundle.Frailty(cfs)
	scr := p.screen(med)

	switch {
	case p.bundle.FindTaperRule(med.GenericName) != nil:
		plan = p.knownProtocolPlan(ctx, med, frailty)
	case scr.hit():
		plan = p.clinicalCriteriaPlan(ctx, med, frailty, scr)
	default:
		plan = p.safeDiscontinuationPlan(med)
	}
	metrics.RecordTaperPlan(plan.State)
	return plan
}

// screen collects the Beers and STOPP entries matching the medication name.
func (p *Planner) screen(med patient.Medication) screening {
	var s screening
	for _, e := range p.bundle.FindBeers(med.GenericName) {
		s.rationales = append(s.rationales, "Beers Criteria: "+e.Rationale)
		s.matched = append(s.matched, e.CategoryOrDisease, e.Rationale)
	}
	for _, c := range p.bundle.FindStoppByDrug(med.GenericName) {
		s.rationales = append(s.rationales, "STOPP "+c.RuleID+": "+c.Rationale)
		s.matched = append(s.matched, c.DrugMedication, c.Rationale)
	}
	return s
}

// knownProtocolPlan builds a plan from a reference tapering protocol,
// adjusted for use duration and frailty. When a generator is configured it
// is asked for a detailed schedule grounded in the protocol; the
// deterministic synthesis covers generation failure.
func (p *Planner) knownProtocolPlan(ctx context.Context, med patient.Medication, frailty refdata.FrailtyLevel) Plan {
	rule := p.bundle.FindTaperRule(med.GenericName)
	adjusted := AdjustDuration(rule.BaseDurationWeeks, med.Duration, frailty.TaperSpeedMultiplier)
	symptoms := splitSymptoms(rule.WithdrawalSymptoms)

	plan := Plan{
		Medication:          med.GenericName,
		DrugClass:           rule.DrugClass,
		State:               StateKnownProtocol,
		RequiresTaper:       true,
		BaseDurationWeeks:   rule.BaseDurationWeeks,
		DurationWeeks:       adjusted,
		SpeedMultiplier:     frailty.TaperSpeedMultiplier,
		StrategyName:        rule.StrategyName,
		StepLogic:           rule.StepLogic,
		MonitoringFrequency: rule.MonitoringFrequency,
		WithdrawalSymptoms:  truncateSymptoms(symptoms),
		PauseCriteria:       rule.PauseCriteria,
		Education:           educationPoints(med.GenericName, symptoms, rule.PauseCriteria),
		Rationale:           fmt.Sprintf("established %s protocol, %s", rule.DrugClass, frailty.ClinicalGuidance),
	}

	if p.gen != nil {
		protocolContext := []string{
			"Established protocol: " + rule.StrategyName,
			"Step logic: " + rule.StepLogic,
		}
		if generated, ok := p.generatedPlanDetail(ctx, med, rule.DrugClass, adjusted, protocolContext); ok {
			if steps := scheduleSteps(generated, med.GenericName, p.log); len(steps) > 0 {
				plan.StrategyName = generated.Strategy
				plan.DurationWeeks = generated.DurationWeeks
				plan.Steps = steps
				plan.MonitoringFrequency = generated.Monitoring
				if len(generated.WithdrawalSymptoms) > 0 {
					plan.WithdrawalSymptoms = truncateSymptoms(generated.WithdrawalSymptoms)
				}
				if generated.Rationale != "" {
					plan.Rationale = generated.Rationale
				}
				return plan
			}
		}
	}

	plan.Steps = Synthesize(adjusted, rule.MonitoringFrequency)
	return plan
}

// clinicalCriteriaPlan covers medications flagged by Beers or STOPP without
// an established protocol. The generator is asked for a plan grounded in
// the matched criteria; it may determine that no taper is needed at all.
// Generation failure falls back to a conservative synthesized schedule, so
// this state never fails outright.
func (p *Planner) clinicalCriteriaPlan(ctx context.Context, med patient.Medication, frailty refdata.FrailtyLevel, scr screening) Plan {
	base := quickFallbackWeeks
	if p.withdrawalProne(med, scr) {
		base = slowFallbackWeeks
	}
	adjusted := AdjustDuration(base, med.Duration, frailty.TaperSpeedMultiplier)
	class := p.drugClass(med)

	plan := Plan{
		Medication:        med.GenericName,
		DrugClass:         class,
		State:             StateClinicalCriteria,
		RequiresTaper:     true,
		BaseDurationWeeks: base,
		DurationWeeks:     adjusted,
		SpeedMultiplier:   frailty.TaperSpeedMultiplier,
	}

	if p.gen != nil {
		if generated, ok := p.generatedPlanDetail(ctx, med, class, adjusted, scr.rationales); ok {
			if generated.RequiresTaper != nil && !*generated.RequiresTaper {
				return p.noTaperPlan(med, generated.Rationale)
			}
			plan.StrategyName = generated.Strategy
			plan.DurationWeeks = generated.DurationWeeks
			plan.Steps = scheduleSteps(generated, med.GenericName, p.log)
			plan.MonitoringFrequency = generated.Monitoring
			plan.WithdrawalSymptoms = truncateSymptoms(generated.WithdrawalSymptoms)
			plan.Rationale = generated.Rationale
			if len(plan.Steps) > 0 {
				plan.Education = educationPoints(med.GenericName, generated.WithdrawalSymptoms, "")
				return plan
			}
			// Generated detail validated away to nothing; fall through.
		}
	}

	plan.StrategyName = "Conservative stepwise reduction"
	plan.DurationWeeks = adjusted
	plan.MonitoringFrequency = "Weekly"
	plan.Steps = Synthesize(adjusted, "Weekly")
	plan.Rationale = "no established protocol; conservative duration chosen from the matched criteria's withdrawal risk"
	plan.Education = educationPoints(med.GenericName, nil, "")
	return plan
}

// generatedPlanDetail runs one generation round trip for a schedule.
func (p *Planner) generatedPlanDetail(ctx context.Context, med patient.Medication, class string, weeks int, screeningContext []string) (generatedSchedule, bool) {
	payload, err := p.gen.Generate(ctx, schedulePrompt(med.GenericName, class, weeks, screeningContext))
	if err != nil {
		p.log.Warn("schedule generation failed; using deterministic fallback",
			zap.String("medication", med.GenericName), zap.Error(err))
		return generatedSchedule{}, false
	}
	s, err := decodeSchedule(payload, med.GenericName, weeks, p.log)
	if err != nil {
		p.log.Warn("generated schedule rejected; using deterministic fallback",
			zap.String("medication", med.GenericName), zap.Error(err))
		return generatedSchedule{}, false
	}
	return s, true
}

// noTaperPlan records that the medication can simply be stopped. Reached
// when the clinical-criteria path determines tapering is not required.
func (p *Planner) noTaperPlan(med patient.Medication, rationale string) Plan {
	if rationale == "" {
		rationale = "tapering not indicated for this medication"
	}
	return Plan{
		Medication:    med.GenericName,
		DrugClass:     p.drugClass(med),
		State:         StateNoTaper,
		RequiresTaper: false,
		DurationWeeks: 0,
		StrategyName:  "Direct discontinuation",
		Steps: []Step{
			{Week: 1, DosePercent: 0, Instruction: fmt.Sprintf("%s can be discontinued without dose reduction", med.GenericName), Monitoring: "Confirm with the prescriber"},
		},
		Rationale: rationale,
		Education: []string{fmt.Sprintf("%s can be stopped without a taper; contact the prescriber if symptoms return", med.GenericName)},
	}
}

// safeDiscontinuationPlan stops a medication matching neither the protocol
// table nor Beers/STOPP over two weeks with one observation interval.
func (p *Planner) safeDiscontinuationPlan(med patient.Medication) Plan {
	return Plan{
		Medication:        med.GenericName,
		DrugClass:         p.drugClass(med),
		State:             StateSafeDiscontinuation,
		RequiresTaper:     true,
		BaseDurationWeeks: 2,
		DurationWeeks:     2,
		SpeedMultiplier:   1,
		StrategyName:      "Safe discontinuation",
		Steps: []Step{
			{Week: 1, DosePercent: 100, Instruction: "Continue the current dose while arranging follow-up", Monitoring: "Baseline symptom check"},
			{Week: 2, DosePercent: 0, Instruction: "Stop the medication completely", Monitoring: "Final review with prescriber"},
		},
		MonitoringFrequency: "Weekly",
		Rationale:           "no screening criteria matched; low withdrawal risk, brief observed stop",
		Education:           educationPoints(med.GenericName, nil, ""),
	}
}

// emergencyPlan is the infallible last resort: maintain the current dose
// pending clinician review, built from constants only.
func (p *Planner) emergencyPlan(med patient.Medication) Plan {
	return Plan{
		Medication:        med.GenericName,
		State:             StateEmergency,
		RequiresTaper:     true,
		BaseDurationWeeks: 4,
		DurationWeeks:     4,
		SpeedMultiplier:   1,
		StrategyName:      "Maintain and consult",
		Steps: []Step{
			{Week: 1, DosePercent: 100, Instruction: "Maintain the current dose and consult the clinician before any change", Monitoring: "Weekly clinical review"},
		},
		MonitoringFrequency: "Weekly",
		Rationale:           "plan selection failed; conservative default issued for manual review",
		Education:           []string{"This plan is a conservative default. Confirm it with the prescriber before starting."},
	}
}

// withdrawalProne reports whether the medication's class or its matched
// screening-criteria text names a high-withdrawal-risk class.
func (p *Planner) withdrawalProne(med patient.Medication, scr screening) bool {
	texts := append([]string{p.drugClass(med)}, scr.matched...)
	for _, text := range texts {
		lowered := strings.ToLower(text)
		for _, frag := range withdrawalProneClasses {
			if strings.Contains(lowered, frag) {
				return true
			}
		}
	}
	return false
}

// drugClass resolves the medication's class, preferring the caller-supplied
// class over the reference tables.
func (p *Planner) drugClass(med patient.Medication) string {
	if med.DrugClass != "" {
		return med.DrugClass
	}
	if r := p.bundle.FindTaperRule(med.GenericName); r != nil {
		return r.DrugClass
	}
	name := strings.ToLower(med.GenericName)
	for _, e := range p.bundle.TTB {
		if strings.ToLower(e.DrugName) == name {
			return e.DrugClass
		}
	}
	return ""
}

// DrugInformation fetches generated background information about one
// medication. Without a generator, or when generation fails, a minimal
// deterministic record is returned.
func (p *Planner) DrugInformation(ctx context.Context, med patient.Medication, screeningContext []string) DrugInfo {
	class := p.drugClass(med)
	fallback := DrugInfo{
		Medication:     med.GenericName,
		DrugClass:      class,
		WithdrawalRisk: withdrawalRiskLabel(p.withdrawalProne(med, p.screen(med))),
		Monitoring:     "Review at each dose change",
		Rationale:      "generated background unavailable; classification from reference tables only",
	}
	if p.gen == nil {
		return fallback
	}
	payload, err := p.gen.Generate(ctx, drugInfoPrompt(med.GenericName, screeningContext))
	if err != nil {
		p.log.Warn("drug info generation failed", zap.String("medication", med.GenericName), zap.Error(err))
		return fallback
	}
	info, err := decodeDrugInfo(payload, med.GenericName, class, p.log)
	if err != nil {
		p.log.Warn("generated drug info rejected", zap.String("medication", med.GenericName), zap.Error(err))
		return fallback
	}
	return info
}

func withdrawalRiskLabel(prone bool) string {
	if prone {
		return "high"
	}
	return "low"
}

func splitSymptoms(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// educationPoints assembles patient-facing guidance for a plan.
func educationPoints(medication string, symptoms []string, pauseCriteria string) []string {
	points := []string{
		fmt.Sprintf("Never stop %s abruptly; follow the weekly steps in this plan", medication),
		"Keep a daily symptom diary and bring it to each review",
	}
	if len(symptoms) > 0 {
		points = append(points, "Watch for: "+strings.Join(truncateSymptoms(symptoms), ", "))
	}
	if pauseCriteria != "" {
		points = append(points, "Pause the taper and contact the prescriber if: "+pauseCriteria)
	}
	return points
}
