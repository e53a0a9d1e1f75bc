package rules

import (
	"strings"

	"github.com/sagecare/deprescribe/internal/patient"
	"github.com/sagecare/deprescribe/internal/refdata"
)

// BeersMatch is one Beers Criteria hit for a medication on the list.
type BeersMatch struct {
	Medication     string `json:"medication"`
	Category       string `json:"category_or_disease"`
	Rationale      string `json:"rationale"`
	Recommendation string `json:"recommendation"`
	Strength       string `json:"strength"`
	Quality        string `json:"quality"`
}

// AssessBeers screens the medication list against the Beers Criteria.
// General entries (category "N/A") apply only to patients 65 or older;
// disease-specific entries apply when the named condition appears among the
// comorbidities.
func AssessBeers(b *refdata.Bundle, p *patient.Patient) []BeersMatch {
	var out []BeersMatch
	for _, m := range p.Medications {
		for _, e := range b.FindBeers(m.GenericName) {
			if !beersApplies(e, p) {
				continue
			}
			out = append(out, BeersMatch{
				Medication:     m.GenericName,
				Category:       e.CategoryOrDisease,
				Rationale:      e.Rationale,
				Recommendation: e.Recommendation,
				Strength:       e.Strength,
				Quality:        e.Quality,
			})
		}
	}
	return out
}

func beersApplies(e refdata.BeersEntry, p *patient.Patient) bool {
	cat := strings.TrimSpace(e.CategoryOrDisease)
	if cat == "" || strings.EqualFold(cat, "N/A") {
		return p.Age >= 65
	}
	want := strings.ToLower(cat)
	for _, c := range p.Comorbidities {
		if strings.Contains(strings.ToLower(c), want) || strings.Contains(want, strings.ToLower(c)) {
			return true
		}
	}
	return false
}
