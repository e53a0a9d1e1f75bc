package rules

import (
	"fmt"

	"github.com/sagecare/deprescribe/internal/patient"
	"github.com/sagecare/deprescribe/internal/refdata"
)

// ACBDrugScore is one medication's contribution to the cumulative
// anticholinergic burden.
type ACBDrugScore struct {
	Medication string `json:"medication"`
	Score      int    `json:"score"`
}

// ACBResult is the cumulative anticholinergic cognitive burden across the
// whole medication list. A total of 3 or more is the established threshold
// for increased cognitive risk in older adults.
type ACBResult struct {
	TotalScore     int            `json:"total_score"`
	PerDrug        []ACBDrugScore `json:"per_drug"`
	HighBurden     bool           `json:"high_burden"`
	Interpretation string         `json:"interpretation"`
}

// AssessACB scores every medication against the ACB list and sums the
// burden. Unlisted medications score zero and are omitted from the per-drug
// breakdown.
func AssessACB(b *refdata.Bundle, meds []patient.Medication) ACBResult {
	res := ACBResult{}
	for _, m := range meds {
		score := b.ACBScore(m.GenericName)
		if score == 0 {
			continue
		}
		res.TotalScore += score
		res.PerDrug = append(res.PerDrug, ACBDrugScore{Medication: m.GenericName, Score: score})
	}
	res.HighBurden = res.TotalScore >= 3
	switch {
	case res.TotalScore >= 3:
		res.Interpretation = fmt.Sprintf("total ACB score %d indicates high anticholinergic burden with increased risk of cognitive decline and falls", res.TotalScore)
	case res.TotalScore >= 1:
		res.Interpretation = fmt.Sprintf("total ACB score %d indicates measurable anticholinergic burden", res.TotalScore)
	default:
		res.Interpretation = "no anticholinergic burden detected"
	}
	return res
}
