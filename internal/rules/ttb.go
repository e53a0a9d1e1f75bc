package rules

import (
	"fmt"

	"github.com/sagecare/deprescribe/internal/patient"
	"github.com/sagecare/deprescribe/internal/refdata"
)

// Time-to-benefit recommendation labels.
const (
	TTBDeprescribe = "DEPRESCRIBE"
	TTBConsider    = "CONSIDER_DEPRESCRIBING"
	TTBContinue    = "CONTINUE"
)

// noBenefitMonths marks table rows for medications with no proven benefit
// in any realistic horizon.
const noBenefitMonths = 999

// TTBFinding compares one medication's time to benefit against the
// patient's estimated remaining lifespan.
type TTBFinding struct {
	Medication        string `json:"medication"`
	IndicationContext string `json:"indication_context"`
	TimeToBenefit     string `json:"time_to_benefit"`
	MonthsMin         int    `json:"ttb_months_min"`
	NoBenefit         bool   `json:"no_proven_benefit"`
	Recommendation    string `json:"recommendation"`
	Guidance          string `json:"guidance"`
	Rationale         string `json:"rationale"`
}

// AssessTTB evaluates every medication with a time-to-benefit table entry
// against the patient's life expectancy. Medications the patient will not
// live long enough to benefit from are recommended for deprescribing.
func AssessTTB(b *refdata.Bundle, p *patient.Patient) []TTBFinding {
	months := p.LifeExpectancy.Months()
	var out []TTBFinding
	for _, m := range p.Medications {
		for _, e := range b.FindTTB(m.GenericName) {
			f := TTBFinding{
				Medication:        m.GenericName,
				IndicationContext: e.IndicationContext,
				TimeToBenefit:     e.TimeToBenefit,
				MonthsMin:         e.MonthsMin,
				NoBenefit:         e.MonthsMin >= noBenefitMonths,
				Guidance:          e.DeprescribingGuidance,
			}
			switch {
			case f.NoBenefit:
				f.Recommendation = TTBDeprescribe
				f.Rationale = fmt.Sprintf("no proven benefit for %s", e.IndicationContext)
			case months < e.MonthsMin:
				f.Recommendation = TTBDeprescribe
				f.Rationale = fmt.Sprintf("estimated %d months remaining is below the %d months needed to benefit", months, e.MonthsMin)
			case months < e.MonthsMax:
				f.Recommendation = TTBConsider
				f.Rationale = fmt.Sprintf("estimated %d months remaining falls within the %s benefit window", months, e.TimeToBenefit)
			default:
				f.Recommendation = TTBContinue
				f.Rationale = "life expectancy exceeds the time needed to benefit"
			}
			out = append(out, f)
		}
	}
	return out
}
