package analysis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sagecare/deprescribe/internal/patient"
	"github.com/sagecare/deprescribe/internal/refdata"
	"github.com/sagecare/deprescribe/internal/risk"
	"github.com/sagecare/deprescribe/internal/rules"
	"github.com/sagecare/deprescribe/internal/shared/errors"
	"github.com/sagecare/deprescribe/internal/shared/metrics"
	"github.com/sagecare/deprescribe/internal/taper"
)

// Service runs the full medication review pipeline.
type Service struct {
	bundle  *refdata.Bundle
	planner *taper.Planner
	log     *zap.Logger
}

// NewService creates the analysis service.
func NewService(bundle *refdata.Bundle, planner *taper.Planner, log *zap.Logger) *Service {
	return &Service{bundle: bundle, planner: planner, log: log}
}

// moduleFindings collects every screening module's output for one request.
// Each module runs failure-isolated: a panic inside one module is logged
// and leaves that module's findings empty instead of failing the review.
type moduleFindings struct {
	acb     rules.ACBResult
	beers   []rules.BeersMatch
	stopp   []rules.StoppMatch
	start   []rules.StartSuggestion
	gender  []rules.GenderFinding
	ttb     []rules.TTBFinding
	herbs   []rules.HerbFinding
	skipped []string
}

// Analyze performs the complete review of one patient profile.
func (s *Service) Analyze(ctx context.Context, p *patient.Patient) (*AnalyzeResponse, error) {
	start := time.Now()
	if problems := p.Validate(); problems != nil {
		return nil, errors.Validation("invalid patient profile", problems)
	}

	requestID := uuid.NewString()
	log := s.log.With(zap.String("request_id", requestID))

	findings := s.runModules(p, log)
	cfs := p.EffectiveCFS()
	frailty := s.bundle.Frailty(cfs)

	assessments := make([]risk.Assessment, 0, len(p.Medications))
	for _, m := range p.Medications {
		a := risk.Assess(s.cascadeInput(p, m, cfs, frailty, findings))
		metrics.RecordAssessment(a.FinalRisk.String())
		for _, mod := range a.EscalatedBy {
			metrics.RecordEscalation(mod)
		}
		assessments = append(assessments, a)
	}

	plans := s.taperingPlans(ctx, p, assessments, cfs, log)

	resp := &AnalyzeResponse{
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Patient: PatientSummary{
			Age:            p.Age,
			Gender:         string(p.Gender),
			EffectiveCFS:   cfs,
			FrailtyLabel:   frailty.ClinicalLabel,
			TaperSpeed:     frailty.TaperSpeedMultiplier,
			LifeExpectancy: string(p.LifeExpectancy),
			MedicationN:    len(p.Medications),
			HerbN:          len(p.Herbs),
		},
		Assessments:      assessments,
		Priority:         prioritySummary(assessments),
		ACB:              findings.acb,
		HerbFindings:     findings.herbs,
		StartSuggestions: findings.start,
		TaperingPlans:    plans,
		MonitoringPlan:   monitoringPlan(findings, plans, frailty),
		Recommendations:  s.recommendations(ctx, p, assessments, findings, log),
		SafetyAlerts:     safetyAlerts(assessments, findings),
		ProcessingTimeMs: int(time.Since(start).Milliseconds()),
	}

	log.Info("analysis complete",
		zap.Int("medications", len(p.Medications)),
		zap.Int("red", resp.Priority.Red),
		zap.Int("yellow", resp.Priority.Yellow),
		zap.Strings("skipped_modules", findings.skipped),
		zap.Int("processing_ms", resp.ProcessingTimeMs))
	return resp, nil
}

// TaperPlan builds a plan for one medication outside a full review.
func (s *Service) TaperPlan(ctx context.Context, req *TaperPlanRequest) (*TaperPlanResponse, error) {
	if req.Medication.GenericName == "" {
		return nil, errors.Validation("invalid taper plan request", map[string]string{"medication.generic_name": "required"})
	}
	pseudo := patient.Patient{CFSScore: req.CFSScore, IsFrail: req.IsFrail}
	plan := s.planner.Plan(ctx, req.Medication, pseudo.EffectiveCFS())
	return &TaperPlanResponse{
		RequestID: uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Plan:      plan,
	}, nil
}

// Interactions screens a medication-herb combination without a full review.
func (s *Service) Interactions(ctx context.Context, req *InteractionsRequest) (*InteractionsResponse, error) {
	if len(req.Medications) == 0 || len(req.Herbs) == 0 {
		return nil, errors.Validation("invalid interactions request", map[string]string{
			"medications": "at least one medication and one herb are required",
		})
	}
	p := &patient.Patient{Medications: req.Medications, Herbs: req.Herbs}
	return &InteractionsResponse{
		RequestID: uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Findings:  rules.AssessHerbs(s.bundle, p),
	}, nil
}

// runModules executes every screening module, isolating failures.
func (s *Service) runModules(p *patient.Patient, log *zap.Logger) moduleFindings {
	var f moduleFindings
	run := func(name string, fn func()) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("screening module panicked; findings skipped",
					zap.String("module", name), zap.Any("panic", r))
				f.skipped = append(f.skipped, name)
			}
		}()
		fn()
	}
	run("acb", func() { f.acb = rules.AssessACB(s.bundle, p.Medications) })
	run("beers", func() { f.beers = rules.AssessBeers(s.bundle, p) })
	run("stopp", func() { f.stopp = rules.AssessStopp(s.bundle, p) })
	run("start", func() { f.start = rules.AssessStart(s.bundle, p) })
	run("gender", func() { f.gender = rules.AssessGender(s.bundle, p) })
	run("time_to_benefit", func() { f.ttb = rules.AssessTTB(s.bundle, p) })
	run("herb_interaction", func() { f.herbs = rules.AssessHerbs(s.bundle, p) })
	return f
}

// cascadeInput assembles one medication's risk input from the module
// findings.
func (s *Service) cascadeInput(p *patient.Patient, m patient.Medication, cfs int, frailty refdata.FrailtyLevel, f moduleFindings) risk.Input {
	in := risk.Input{
		Medication:           m.GenericName,
		Type:                 "allopathic",
		DrugClass:            rules.ResolveClass(s.bundle, m),
		ACBScore:             s.bundle.ACBScore(m.GenericName),
		LifeExpectancyMonths: p.LifeExpectancy.Months(),
		GenderFemale:         p.Gender == patient.GenderFemale,
		CFS:                  cfs,
		FrailtyLabel:         frailty.ClinicalLabel,
		FrailtyGuidance:      frailty.ClinicalGuidance,
	}
	for _, b := range f.beers {
		if b.Medication == m.GenericName {
			in.HasBeers = true
		}
	}
	for _, st := range f.stopp {
		if st.Medication == m.GenericName {
			in.HasStopp = true
		}
	}
	for _, g := range f.gender {
		if g.Medication == m.GenericName {
			in.GenderSignals = append(in.GenderSignals, risk.GenderSignal{
				RiskLevel:    g.RiskLevel,
				RiskCategory: g.RiskCategory,
				Mechanism:    g.Mechanism,
			})
		}
	}
	for _, t := range f.ttb {
		if t.Medication == m.GenericName {
			in.TTBSignals = append(in.TTBSignals, risk.TTBSignal{
				NoBenefit:         t.NoBenefit,
				IndicationContext: t.IndicationContext,
				TimeToBenefit:     t.TimeToBenefit,
				MonthsMin:         t.MonthsMin,
			})
		}
	}
	for _, h := range f.herbs {
		if h.Medication == m.GenericName {
			in.HerbSignals = append(in.HerbSignals, risk.HerbSignal{
				Herb:     h.Herb,
				Severity: h.Severity,
				Evidence: h.Evidence,
			})
		}
	}
	return in
}

// taperingPlans builds a plan for every medication whose assessment calls
// for one.
func (s *Service) taperingPlans(ctx context.Context, p *patient.Patient, assessments []risk.Assessment, cfs int, log *zap.Logger) []taper.Plan {
	byName := make(map[string]patient.Medication, len(p.Medications))
	for _, m := range p.Medications {
		byName[m.GenericName] = m
	}
	var plans []taper.Plan
	for _, a := range assessments {
		if !a.TaperRequired {
			continue
		}
		med, ok := byName[a.MedicationName]
		if !ok {
			continue
		}
		plans = append(plans, s.planner.Plan(ctx, med, cfs))
	}
	return plans
}

// prioritySummary counts categories and orders medications most urgent
// first; ties keep assessment (input) order.
func prioritySummary(assessments []risk.Assessment) PrioritySummary {
	sum := PrioritySummary{}
	ordered := make([]risk.Assessment, len(assessments))
	copy(ordered, assessments)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].FinalRisk > ordered[j].FinalRisk
	})
	for _, a := range ordered {
		switch a.FinalRisk {
		case risk.Red:
			sum.Red++
		case risk.Yellow:
			sum.Yellow++
		default:
			sum.Green++
		}
		sum.PriorityOrder = append(sum.PriorityOrder, a.MedicationName)
	}
	return sum
}

// monitoringPlan aggregates monitoring guidance from gender findings, taper
// plans and the frailty level.
func monitoringPlan(f moduleFindings, plans []taper.Plan, frailty refdata.FrailtyLevel) []MonitoringItem {
	var items []MonitoringItem
	for _, g := range f.gender {
		if g.MonitoringGuidance != "" {
			items = append(items, MonitoringItem{Medication: g.Medication, Guidance: g.MonitoringGuidance})
		}
	}
	for _, plan := range plans {
		if plan.MonitoringFrequency != "" {
			items = append(items, MonitoringItem{
				Medication: plan.Medication,
				Guidance:   "Monitor withdrawal symptoms through the taper",
				Frequency:  plan.MonitoringFrequency,
			})
		}
	}
	if frailty.CFSScore >= 6 {
		items = append(items, MonitoringItem{
			Medication: "all",
			Guidance:   frailty.ClinicalGuidance,
		})
	}
	return items
}

// recommendations assembles the clinical recommendation list. Deterministic
// recommendations come first; generated drug background, when available,
// enriches the highest-risk medications.
func (s *Service) recommendations(ctx context.Context, p *patient.Patient, assessments []risk.Assessment, f moduleFindings, log *zap.Logger) []string {
	var recs []string
	for _, t := range f.ttb {
		switch t.Recommendation {
		case rules.TTBDeprescribe:
			recs = append(recs, fmt.Sprintf("Deprescribe %s: %s", t.Medication, t.Rationale))
		case rules.TTBConsider:
			recs = append(recs, fmt.Sprintf("Consider deprescribing %s: %s", t.Medication, t.Rationale))
		}
	}
	for _, b := range f.beers {
		recs = append(recs, fmt.Sprintf("%s (Beers Criteria): %s", b.Medication, b.Recommendation))
	}
	for _, st := range f.stopp {
		recs = append(recs, fmt.Sprintf("%s (STOPP %s): %s", st.Medication, st.RuleID, st.Rationale))
	}
	for _, h := range f.herbs {
		if h.Severity == "Major" || h.Severity == "Moderate" {
			recs = append(recs, h.Recommendation)
		}
	}
	for _, st := range f.start {
		recs = append(recs, fmt.Sprintf("Consider starting %s for %s (START %s)", st.Medication, st.Condition, st.RuleID))
	}
	if f.acb.HighBurden {
		recs = append(recs, "Reduce cumulative anticholinergic burden: "+f.acb.Interpretation)
	}

	// Generated background for the highest-risk medication only, to bound
	// latency and generation volume.
	byName := make(map[string]patient.Medication, len(p.Medications))
	for _, m := range p.Medications {
		byName[m.GenericName] = m
	}
	for _, a := range assessments {
		if a.FinalRisk != risk.Red {
			continue
		}
		med, ok := byName[a.MedicationName]
		if !ok {
			continue
		}
		info := s.planner.DrugInformation(ctx, med, a.RiskFactors)
		if info.Rationale != "" {
			recs = append(recs, fmt.Sprintf("%s background: %s", a.MedicationName, info.Rationale))
		}
		break
	}

	if len(recs) == 0 {
		recs = append(recs, "No deprescribing action indicated; continue current therapy and review at the next scheduled visit")
	}
	return recs
}

// safetyAlerts surfaces the findings a clinician must see first.
func safetyAlerts(assessments []risk.Assessment, f moduleFindings) []string {
	var alerts []string
	for _, h := range f.herbs {
		if h.Severity == "Major" {
			alerts = append(alerts, fmt.Sprintf("Major herb-drug interaction: %s with %s (%s)", h.Herb, h.Medication, h.ClinicalEffect))
		}
	}
	if f.acb.HighBurden {
		alerts = append(alerts, "High anticholinergic burden: "+f.acb.Interpretation)
	}
	red := 0
	for _, a := range assessments {
		if a.FinalRisk == risk.Red {
			red++
		}
	}
	if red > 0 {
		alerts = append(alerts, fmt.Sprintf("%d medication(s) classified RED require priority review", red))
	}
	return alerts
}
