package rules

import (
	"github.com/sagecare/deprescribe/internal/patient"
	"github.com/sagecare/deprescribe/internal/refdata"
)

// GenderFinding is one gender-specific risk attached to a medication on the
// list.
type GenderFinding struct {
	Medication         string `json:"medication"`
	RiskCategory       string `json:"risk_category"`
	RiskLevel          string `json:"risk_level"`
	Mechanism          string `json:"mechanism"`
	MonitoringGuidance string `json:"monitoring_guidance"`
}

// AssessGender screens the medication list against the gender-risk table.
// Every current table row describes elevated female risk, so the module
// only produces findings for female patients.
func AssessGender(b *refdata.Bundle, p *patient.Patient) []GenderFinding {
	if p.Gender != patient.GenderFemale {
		return nil
	}
	var out []GenderFinding
	for _, m := range p.Medications {
		for _, g := range b.FindGenderRisks(m.GenericName) {
			out = append(out, GenderFinding{
				Medication:         m.GenericName,
				RiskCategory:       g.RiskCategory,
				RiskLevel:          g.RiskLevel,
				Mechanism:          g.Mechanism,
				MonitoringGuidance: g.MonitoringGuidance,
			})
		}
	}
	return out
}
