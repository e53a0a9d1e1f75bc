package risk

import (
	"fmt"
	"strings"
)

// highRiskClasses are drug classes that trigger frailty escalation for
// severely frail patients (CFS >= 6). Matched case-insensitively as
// substrings of the medication's drug class.
var highRiskClasses = []string{
	"benzodiazepine", "sedative", "hypnotic", "anticholinergic",
	"antipsychotic", "z-drug", "opioid", "tricyclic",
}

// Finding is one entry of the audit trail: which module contributed, how
// severe, and the human-readable reason. The accumulated ordered list
// reflects the fixed cascade sequence, not discovery order.
type Finding struct {
	Module   string `json:"module"`
	Severity string `json:"severity"`
	Reason   string `json:"reason"`
}

// TTBSignal is one time-to-benefit finding for the medication.
type TTBSignal struct {
	NoBenefit         bool
	IndicationContext string
	TimeToBenefit     string
	MonthsMin         int
}

// GenderSignal is one gender-specific risk finding for the medication.
type GenderSignal struct {
	RiskLevel    string // "High", "Moderate"
	RiskCategory string
	Mechanism    string
}

// HerbSignal is one herb-drug interaction finding for the medication.
type HerbSignal struct {
	Herb     string
	Severity string // "Major", "Moderate", "Minor"
	Evidence string // "known" or "simulated"
}

// Input carries one medication's findings from every rule module. A module
// that produced nothing (or failed) contributes its zero value; absence is
// never an error.
type Input struct {
	Medication string
	Type       string // "allopathic" or "herbal"
	DrugClass  string

	ACBScore int
	HasBeers bool
	HasStopp bool

	LifeExpectancyMonths int
	TTBSignals           []TTBSignal

	GenderFemale  bool
	GenderSignals []GenderSignal

	CFS             int
	FrailtyLabel    string
	FrailtyGuidance string

	HerbSignals []HerbSignal
}

// Assessment is the immutable result of classifying one medication.
type Assessment struct {
	MedicationName      string    `json:"medication_name"`
	MedicationType      string    `json:"medication_type"`
	BaseRisk            Category  `json:"base_risk"`
	FinalRisk           Category  `json:"final_risk"`
	Findings            []Finding `json:"findings"`
	RiskFactors         []string  `json:"risk_factors"`
	ContributingModules []string  `json:"contributing_modules"`
	// EscalatedBy lists the modifiers that actually raised the category,
	// in cascade order.
	EscalatedBy   []string `json:"escalated_by,omitempty"`
	Justification string   `json:"justification"`
	TaperRequired bool     `json:"taper_required"`
}

// Modifier is one step of the escalation cascade. It observes the already
// escalated category from the previous step and may only raise it; the fold
// in Assess enforces monotonicity even for a misbehaving modifier.
type Modifier struct {
	Name  string
	Apply func(in Input, current Category, findings []Finding) (Category, []Finding)
}

// Modifiers is the fixed cascade sequence. The order is load-bearing:
// justification text enumerates factors in this order, and each step
// observes the previous step's escalated category.
var Modifiers = []Modifier{
	{Name: "time_to_benefit", Apply: applyTimeToBenefit},
	{Name: "gender", Apply: applyGender},
	{Name: "frailty", Apply: applyFrailty},
	{Name: "herb_interaction", Apply: applyHerbInteractions},
}

// BaseRisk derives the initial category from anticholinergic burden and
// Beers/STOPP membership.
func BaseRisk(acbScore int, hasBeers, hasStopp bool) Category {
	if acbScore >= 3 {
		return Red
	}
	if hasBeers && hasStopp {
		return Red
	}
	if acbScore >= 1 || hasBeers || hasStopp {
		return Yellow
	}
	return Green
}

// Assess runs the full cascade for one medication: base risk, then the
// ordered modifiers applied left-to-right as a fold over (category,
// findings). Running it twice on identical input yields an identical
// Assessment.
func Assess(in Input) Assessment {
	base := BaseRisk(in.ACBScore, in.HasBeers, in.HasStopp)

	findings := make([]Finding, 0, 4)
	if in.ACBScore > 0 {
		findings = append(findings, Finding{
			Module:   "acb",
			Severity: acbSeverity(in.ACBScore),
			Reason:   fmt.Sprintf("ACB score %d", in.ACBScore),
		})
	}
	if in.HasBeers {
		findings = append(findings, Finding{Module: "beers", Severity: "moderate", Reason: "Beers Criteria matched"})
	}
	if in.HasStopp {
		findings = append(findings, Finding{Module: "stopp", Severity: "moderate", Reason: "STOPP criteria matched"})
	}

	current := base
	var escalatedBy []string
	for _, m := range Modifiers {
		next, updated := m.Apply(in, current, findings)
		// A modifier may raise the category, never lower it.
		raised := current.Escalated(next)
		if raised > current {
			escalatedBy = append(escalatedBy, m.Name)
		}
		current = raised
		findings = updated
	}

	factors := make([]string, 0, len(findings))
	modules := make([]string, 0, len(findings))
	seen := map[string]bool{}
	for _, f := range findings {
		factors = append(factors, f.Reason)
		if !seen[f.Module] {
			seen[f.Module] = true
			modules = append(modules, f.Module)
		}
	}

	return Assessment{
		MedicationName:      in.Medication,
		MedicationType:      in.Type,
		BaseRisk:            base,
		FinalRisk:           current,
		Findings:            findings,
		RiskFactors:         factors,
		ContributingModules: modules,
		EscalatedBy:         escalatedBy,
		Justification:       justification(base, current, factors),
		TaperRequired:       current >= Yellow,
	}
}

// applyTimeToBenefit forces RED when a medication has no proven benefit or
// when the patient's remaining months fall short of the minimum time to
// benefit. Escalates the category at most once; all reasons are recorded.
func applyTimeToBenefit(in Input, current Category, findings []Finding) (Category, []Finding) {
	next := current
	for _, s := range in.TTBSignals {
		switch {
		case s.NoBenefit:
			next = next.Escalated(Red)
			findings = append(findings, Finding{
				Module:   "time_to_benefit",
				Severity: "major",
				Reason:   fmt.Sprintf("no proven benefit for %s", s.IndicationContext),
			})
		case in.LifeExpectancyMonths < s.MonthsMin:
			next = next.Escalated(Red)
			findings = append(findings, Finding{
				Module:   "time_to_benefit",
				Severity: "major",
				Reason:   fmt.Sprintf("life expectancy insufficient for benefit (needs %s)", s.TimeToBenefit),
			})
		}
	}
	return next, findings
}

// applyGender escalates for high-severity gender-specific risks. Applies
// only to female patients; all current table rows are Female > Male.
func applyGender(in Input, current Category, findings []Finding) (Category, []Finding) {
	if !in.GenderFemale {
		return current, findings
	}
	next := current
	for _, s := range in.GenderSignals {
		if s.RiskLevel != "High" {
			continue
		}
		if current >= Yellow {
			next = next.Escalated(Red)
		} else {
			next = next.Escalated(Yellow)
		}
		findings = append(findings, Finding{
			Module:   "gender",
			Severity: "high",
			Reason:   fmt.Sprintf("gender-specific %s risk: %s", s.RiskCategory, s.Mechanism),
		})
	}
	return next, findings
}

// applyFrailty escalates one notch for severely frail patients (CFS >= 6)
// on high-risk drug classes.
func applyFrailty(in Input, current Category, findings []Finding) (Category, []Finding) {
	if in.CFS < 6 || !isHighRiskClass(in.DrugClass) {
		return current, findings
	}
	var next Category
	switch current {
	case Yellow:
		next = Red
	case Green:
		next = Yellow
	default:
		return current, findings
	}
	findings = append(findings, Finding{
		Module:   "frailty",
		Severity: "high",
		Reason:   fmt.Sprintf("CFS %d (%s): %s", in.CFS, in.FrailtyLabel, in.FrailtyGuidance),
	})
	return next, findings
}

// applyHerbInteractions forces RED for any Major interaction; Moderate
// interactions escalate GREEN to YELLOW only and never touch an existing
// YELLOW or RED.
func applyHerbInteractions(in Input, current Category, findings []Finding) (Category, []Finding) {
	var majors, moderates []HerbSignal
	for _, s := range in.HerbSignals {
		switch s.Severity {
		case "Major":
			majors = append(majors, s)
		case "Moderate":
			moderates = append(moderates, s)
		}
	}

	if len(majors) > 0 {
		for _, s := range majors {
			findings = append(findings, Finding{
				Module:   "herb_interaction",
				Severity: "major",
				Reason:   fmt.Sprintf("major herb-drug interaction: %s (%s)", s.Herb, s.Evidence),
			})
		}
		return Red, findings
	}

	if current == Green && len(moderates) > 0 {
		for _, s := range moderates {
			findings = append(findings, Finding{
				Module:   "herb_interaction",
				Severity: "moderate",
				Reason:   fmt.Sprintf("moderate herb-drug interaction: %s (%s)", s.Herb, s.Evidence),
			})
		}
		return Yellow, findings
	}

	return current, findings
}

func isHighRiskClass(drugClass string) bool {
	class := strings.ToLower(drugClass)
	for _, hr := range highRiskClasses {
		if strings.Contains(class, hr) {
			return true
		}
	}
	return false
}

func acbSeverity(score int) string {
	if score >= 3 {
		return "high"
	}
	return "moderate"
}

// justification renders the human-readable summary: base and final category
// plus up to the first three risk factors in accumulation order.
func justification(base, final Category, factors []string) string {
	if len(factors) == 0 {
		return fmt.Sprintf("%s: no significant risk factors identified", final)
	}
	head := factors
	if len(head) > 3 {
		head = head[:3]
	}
	if final != base {
		return fmt.Sprintf("Base %s, final %s: %s", base, final, strings.Join(head, "; "))
	}
	return fmt.Sprintf("%s: %s", final, strings.Join(head, "; "))
}
