// Package patient holds the request-scoped value objects describing an
// older adult under medication review. Entities are created fresh per API
// call and never mutated after the call returns.
package patient

// Gender of the patient.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// DurationCategory classifies how long a medication has been taken.
type DurationCategory string

const (
	DurationShortTerm DurationCategory = "short_term"
	DurationLongTerm  DurationCategory = "long_term"
	DurationUnknown   DurationCategory = "unknown"
)

// LifeExpectancy is an ordered category of estimated remaining lifespan.
type LifeExpectancy string

const (
	LifeExpectancyUnder1Year  LifeExpectancy = "<1_year"
	LifeExpectancy1To2Years   LifeExpectancy = "1-2_years"
	LifeExpectancy2To5Years   LifeExpectancy = "2-5_years"
	LifeExpectancy5To10Years  LifeExpectancy = "5-10_years"
	LifeExpectancyOver10Years LifeExpectancy = ">10_years"
)

// Months converts the life-expectancy category to a representative month
// count used by time-to-benefit comparisons. Unknown categories map to the
// most optimistic bucket.
func (le LifeExpectancy) Months() int {
	switch le {
	case LifeExpectancyUnder1Year:
		return 6
	case LifeExpectancy1To2Years:
		return 18
	case LifeExpectancy2To5Years:
		return 36
	case LifeExpectancy5To10Years:
		return 90
	default:
		return 120
	}
}

// Medication is one allopathic medication on the patient's list.
// The lower-cased generic name is the identity key for all rule matching;
// brand names are display-only.
type Medication struct {
	GenericName string           `json:"generic_name"`
	BrandName   string           `json:"brand_name,omitempty"`
	DrugClass   string           `json:"drug_class,omitempty"`
	Dose        string           `json:"dose"`
	Frequency   string           `json:"frequency"`
	Indication  string           `json:"indication,omitempty"`
	Duration    DurationCategory `json:"duration"`
}

// HerbalProduct is one herbal supplement on the patient's list.
type HerbalProduct struct {
	GenericName    string           `json:"generic_name"`
	BrandName      string           `json:"brand_name,omitempty"`
	Dose           string           `json:"dose"`
	Frequency      string           `json:"frequency"`
	IntendedEffect string           `json:"intended_effect,omitempty"` // e.g. "sleep", "sugar control"
	Duration       DurationCategory `json:"duration"`
}

// Patient is the full input profile for one analysis request.
type Patient struct {
	Age            int             `json:"age"`
	Gender         Gender          `json:"gender"`
	IsFrail        bool            `json:"is_frail"`
	CFSScore       *int            `json:"cfs_score,omitempty"` // Clinical Frailty Scale 1-9
	LifeExpectancy LifeExpectancy  `json:"life_expectancy"`
	Comorbidities  []string        `json:"comorbidities"`
	Medications    []Medication    `json:"medications"`
	Herbs          []HerbalProduct `json:"herbs"`
}

// EffectiveCFS returns the Clinical Frailty Scale score, inferring 5
// ("frail") or 2 ("not frail") from the boolean flag when no explicit score
// is given. Every consumer of frailty must use this substitution.
func (p *Patient) EffectiveCFS() int {
	if p.CFSScore != nil && *p.CFSScore >= 1 && *p.CFSScore <= 9 {
		return *p.CFSScore
	}
	if p.IsFrail {
		return 5
	}
	return 2
}

// Validate reports structural problems with the profile.
func (p *Patient) Validate() map[string]string {
	problems := map[string]string{}
	if p.Age < 0 {
		problems["age"] = "must be non-negative"
	}
	switch p.Gender {
	case GenderMale, GenderFemale, GenderOther:
	default:
		problems["gender"] = "must be male, female or other"
	}
	if p.CFSScore != nil && (*p.CFSScore < 1 || *p.CFSScore > 9) {
		problems["cfs_score"] = "must be between 1 and 9"
	}
	if len(p.Medications) == 0 {
		problems["medications"] = "at least one medication is required"
	}
	for _, m := range p.Medications {
		if m.GenericName == "" {
			problems["medications"] = "generic_name is required"
			break
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return problems
}
