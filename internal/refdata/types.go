// Package refdata loads the clinical reference datasets into one immutable
// Bundle at process start. The Bundle is passed by reference into every rule
// module and into the risk cascade; nothing consults ambient global state.
package refdata

import "strings"

// ACBEntry is one row of the anticholinergic cognitive burden list.
type ACBEntry struct {
	GenericName string
	BrandName   string
	Score       int
}

// BeersEntry is one row of the Beers Criteria list.
type BeersEntry struct {
	DrugName          string
	CategoryOrDisease string
	Rationale         string
	Recommendation    string
	Strength          string
	Quality           string
}

// StoppCriterion is one STOPP screening rule.
type StoppCriterion struct {
	RuleID           string
	DrugMedication   string
	ConditionDisease string
	Rationale        string
	FullText         string
}

// StartCriterion is one START screening rule (therapy to consider starting).
type StartCriterion struct {
	RuleID           string
	DrugMedication   string
	ConditionDisease string
	Rationale        string
}

// GenderRisk is one row of the gender-specific medication risk table.
type GenderRisk struct {
	DrugName           string
	RiskCategory       string
	RiskLevel          string // "High", "Moderate"
	Mechanism          string
	MonitoringGuidance string
	GenderRisk         string // e.g. "Female > Male"
}

// TTBEntry is one row of the time-to-benefit table. MonthsMin == 999 marks
// medications with no proven benefit in any realistic horizon.
type TTBEntry struct {
	DrugName              string
	DrugClass             string
	IndicationContext     string
	TimeToBenefit         string
	MonthsMin             int
	MonthsMax             int
	DeprescribingGuidance string
	ReferenceTrial        string
}

// TaperRule is a known tapering protocol for one medication.
type TaperRule struct {
	DrugName            string
	DrugClass           string
	RiskProfile         string
	StrategyName        string
	StepLogic           string
	BaseDurationWeeks   int
	MonitoringFrequency string
	WithdrawalSymptoms  string
	PauseCriteria       string
}

// FrailtyLevel is one row of the Clinical Frailty Scale reference map.
// TaperSpeedMultiplier decreases monotonically with frailty; values below 1
// stretch the taper.
type FrailtyLevel struct {
	CFSScore             int
	ClinicalLabel        string
	TaperSpeedMultiplier float64
	ClinicalGuidance     string
}

// HerbInteraction is one documented herb-drug interaction.
type HerbInteraction struct {
	HerbName        string
	SpecificDrugs   string // lower-cased, comma separated
	InteractionType string
	Mechanism       string
	Severity        string // "Major", "Moderate", "Minor"
	ClinicalEffect  string
}

// HerbProfile is a pharmacological profile used to simulate undocumented
// interactions.
type HerbProfile struct {
	HerbName       string             `json:"herb_name"`
	Profile        map[string]float64 `json:"pharmacological_profile"`
	SafetyConcerns []string           `json:"safety_concerns"`
}

// Bundle is the immutable reference-data set for the lifetime of the process.
type Bundle struct {
	ACB              []ACBEntry
	Beers            []BeersEntry
	Stopp            []StoppCriterion
	Start            []StartCriterion
	GenderRisks      []GenderRisk
	TTB              []TTBEntry
	TaperRules       []TaperRule
	FrailtyLevels    []FrailtyLevel
	HerbInteractions []HerbInteraction
	HerbProfiles     []HerbProfile
}

// ACBScore returns the anticholinergic burden score for one generic name,
// 0 when the medication is not listed.
func (b *Bundle) ACBScore(genericName string) int {
	name := strings.ToLower(genericName)
	for _, e := range b.ACB {
		if strings.ToLower(e.GenericName) == name {
			return e.Score
		}
	}
	return 0
}

// FindBeers returns Beers entries whose drug name contains the generic name.
func (b *Bundle) FindBeers(genericName string) []BeersEntry {
	name := strings.ToLower(genericName)
	var out []BeersEntry
	for _, e := range b.Beers {
		if strings.Contains(strings.ToLower(e.DrugName), name) {
			out = append(out, e)
		}
	}
	return out
}

// FindStoppByDrug returns STOPP criteria whose drug field contains the
// generic name.
func (b *Bundle) FindStoppByDrug(genericName string) []StoppCriterion {
	name := strings.ToLower(genericName)
	var out []StoppCriterion
	for _, c := range b.Stopp {
		if strings.Contains(strings.ToLower(c.DrugMedication), name) {
			out = append(out, c)
		}
	}
	return out
}

// FindStoppByCondition returns STOPP criteria triggered by any of the given
// comorbidities.
func (b *Bundle) FindStoppByCondition(comorbidities []string) []StoppCriterion {
	var out []StoppCriterion
	for _, c := range b.Stopp {
		cond := strings.ToLower(c.ConditionDisease)
		if cond == "" || cond == "n/a" {
			continue
		}
		for _, com := range comorbidities {
			if strings.ToLower(com) == cond {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// FindGenderRisks returns gender-risk rows whose drug name contains the
// generic name.
func (b *Bundle) FindGenderRisks(genericName string) []GenderRisk {
	name := strings.ToLower(genericName)
	var out []GenderRisk
	for _, g := range b.GenderRisks {
		if strings.Contains(strings.ToLower(g.DrugName), name) {
			out = append(out, g)
		}
	}
	return out
}

// FindTTB returns time-to-benefit rows matching the generic name against the
// drug name or drug class.
func (b *Bundle) FindTTB(genericName string) []TTBEntry {
	name := strings.ToLower(genericName)
	var out []TTBEntry
	for _, e := range b.TTB {
		if strings.Contains(strings.ToLower(e.DrugName), name) ||
			strings.Contains(strings.ToLower(e.DrugClass), name) {
			out = append(out, e)
		}
	}
	return out
}

// FindTaperRule returns the known tapering protocol for a medication by
// exact case-insensitive name, or nil.
func (b *Bundle) FindTaperRule(genericName string) *TaperRule {
	name := strings.ToLower(genericName)
	for i := range b.TaperRules {
		if strings.ToLower(b.TaperRules[i].DrugName) == name {
			return &b.TaperRules[i]
		}
	}
	return nil
}

// Frailty returns the reference row for a CFS score. The table covers every
// integer 1-9; out-of-range scores are clamped.
func (b *Bundle) Frailty(cfsScore int) FrailtyLevel {
	if cfsScore < 1 {
		cfsScore = 1
	}
	if cfsScore > 9 {
		cfsScore = 9
	}
	for _, f := range b.FrailtyLevels {
		if f.CFSScore == cfsScore {
			return f
		}
	}
	// Reachable only with a truncated table; behave as "managing well".
	return FrailtyLevel{CFSScore: cfsScore, ClinicalLabel: "Managing Well", TaperSpeedMultiplier: 1.0}
}

// FindHerbInteractions returns documented interactions between one herb and
// one drug, matched case-insensitively.
func (b *Bundle) FindHerbInteractions(herbName, drugName string) []HerbInteraction {
	herb := strings.ToLower(herbName)
	drug := strings.ToLower(drugName)
	var out []HerbInteraction
	for _, hi := range b.HerbInteractions {
		if strings.ToLower(hi.HerbName) == herb &&
			strings.Contains(strings.ToLower(hi.SpecificDrugs), drug) {
			out = append(out, hi)
		}
	}
	return out
}

// FindHerbProfile returns the pharmacological profile for a herb, or nil.
func (b *Bundle) FindHerbProfile(herbName string) *HerbProfile {
	name := strings.ToLower(herbName)
	for i := range b.HerbProfiles {
		if strings.ToLower(b.HerbProfiles[i].HerbName) == name {
			return &b.HerbProfiles[i]
		}
	}
	return nil
}
