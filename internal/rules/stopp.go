package rules

import (
	"strings"

	"github.com/sagecare/deprescribe/internal/patient"
	"github.com/sagecare/deprescribe/internal/refdata"
)

// StoppMatch is one STOPP criterion triggered by the medication list.
type StoppMatch struct {
	Medication string `json:"medication"`
	RuleID     string `json:"rule_id"`
	Condition  string `json:"condition,omitempty"`
	Rationale  string `json:"rationale"`
	FullText   string `json:"full_text"`
}

// StartSuggestion is one START criterion: a therapy the patient's
// comorbidities suggest should be considered, not stopped.
type StartSuggestion struct {
	RuleID     string `json:"rule_id"`
	Medication string `json:"medication"`
	Condition  string `json:"condition"`
	Rationale  string `json:"rationale"`
}

// AssessStopp screens medications against the STOPP criteria. Drug-keyed
// rules match by name; condition-keyed rules additionally require the named
// comorbidity.
func AssessStopp(b *refdata.Bundle, p *patient.Patient) []StoppMatch {
	var out []StoppMatch
	for _, m := range p.Medications {
		for _, c := range b.FindStoppByDrug(m.GenericName) {
			if !stoppConditionMet(c, p.Comorbidities) {
				continue
			}
			out = append(out, StoppMatch{
				Medication: m.GenericName,
				RuleID:     c.RuleID,
				Condition:  c.ConditionDisease,
				Rationale:  c.Rationale,
				FullText:   c.FullText,
			})
		}
	}
	return out
}

// AssessStart lists START criteria matching the patient's comorbidities for
// which no medication on the list already covers the suggested therapy.
func AssessStart(b *refdata.Bundle, p *patient.Patient) []StartSuggestion {
	var out []StartSuggestion
	for _, c := range b.Start {
		if !comorbidityListed(c.ConditionDisease, p.Comorbidities) {
			continue
		}
		if therapyCovered(c.DrugMedication, p.Medications) {
			continue
		}
		out = append(out, StartSuggestion{
			RuleID:     c.RuleID,
			Medication: c.DrugMedication,
			Condition:  c.ConditionDisease,
			Rationale:  c.Rationale,
		})
	}
	return out
}

func stoppConditionMet(c refdata.StoppCriterion, comorbidities []string) bool {
	cond := strings.TrimSpace(c.ConditionDisease)
	if cond == "" || strings.EqualFold(cond, "N/A") {
		return true
	}
	return comorbidityListed(cond, comorbidities)
}

func comorbidityListed(condition string, comorbidities []string) bool {
	want := strings.ToLower(condition)
	for _, c := range comorbidities {
		have := strings.ToLower(c)
		if strings.Contains(have, want) || strings.Contains(want, have) {
			return true
		}
	}
	return false
}

func therapyCovered(drugField string, meds []patient.Medication) bool {
	field := strings.ToLower(drugField)
	for _, m := range meds {
		if strings.Contains(field, strings.ToLower(m.GenericName)) {
			return true
		}
	}
	return false
}
