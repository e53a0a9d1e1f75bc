package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sagecare/deprescribe/internal/patient"
	"github.com/sagecare/deprescribe/internal/refdata"
)

// Evidence labels for herb-drug interaction findings.
const (
	EvidenceKnown     = "known"
	EvidenceSimulated = "simulated"
)

// HerbFinding is one herb-drug interaction, either documented in the
// interaction table or simulated from pharmacological profiles.
type HerbFinding struct {
	Herb           string `json:"herb"`
	Medication     string `json:"medication"`
	Severity       string `json:"severity"`
	Evidence       string `json:"evidence"`
	Mechanism      string `json:"mechanism"`
	ClinicalEffect string `json:"clinical_effect"`
	Recommendation string `json:"recommendation"`
}

// profileThreshold is the minimum attribute strength for a simulated
// interaction.
const profileThreshold = 0.5

// attributeTargets maps a pharmacological attribute to the drug-class
// fragments it can interact with additively.
var attributeTargets = map[string]struct {
	classes  []string
	severity string
	effect   string
}{
	"sedative_like": {
		classes:  []string{"benzodiazepine", "sedative", "hypnotic", "z-drug", "opioid", "tricyclic"},
		severity: "Moderate",
		effect:   "additive sedation and increased fall risk",
	},
	"hypoglycemic": {
		classes:  []string{"sulfonylurea", "insulin", "biguanide", "antidiabetic", "glinide"},
		severity: "Moderate",
		effect:   "additive glucose lowering with hypoglycemia risk",
	},
	"hypotensive": {
		classes:  []string{"antihypertensive", "beta-blocker", "ace inhibitor", "calcium channel", "diuretic", "arb"},
		severity: "Moderate",
		effect:   "additive blood pressure lowering with orthostatic hypotension risk",
	},
	"antiplatelet": {
		classes:  []string{"anticoagulant", "antiplatelet", "nsaid", "vitamin k antagonist"},
		severity: "Major",
		effect:   "additive bleeding risk",
	},
	"immunomodulator": {
		classes:  []string{"immunosuppressant", "corticosteroid", "biologic"},
		severity: "Moderate",
		effect:   "possible interference with immunosuppressive therapy",
	},
}

// intendedEffectProfiles lets the engine reason about herbs absent from the
// profile table by inferring a weak profile from the stated intended effect.
var intendedEffectProfiles = map[string]string{
	"sleep":          "sedative_like",
	"anxiety":        "sedative_like",
	"sugar control":  "hypoglycemic",
	"blood sugar":    "hypoglycemic",
	"blood pressure": "hypotensive",
	"immunity":       "immunomodulator",
}

// AssessHerbs evaluates every herb-medication pair. Documented interactions
// from the reference table take precedence; pairs without a documented
// interaction are simulated from the herb's pharmacological profile against
// the medication's drug class.
func AssessHerbs(b *refdata.Bundle, p *patient.Patient) []HerbFinding {
	var out []HerbFinding
	for _, h := range p.Herbs {
		for _, m := range p.Medications {
			known := b.FindHerbInteractions(h.GenericName, m.GenericName)
			if len(known) > 0 {
				for _, hi := range known {
					out = append(out, HerbFinding{
						Herb:           h.GenericName,
						Medication:     m.GenericName,
						Severity:       hi.Severity,
						Evidence:       EvidenceKnown,
						Mechanism:      hi.Mechanism,
						ClinicalEffect: hi.ClinicalEffect,
						Recommendation: herbRecommendation(hi.Severity, h.GenericName, m.GenericName),
					})
				}
				continue
			}
			if f, ok := simulateInteraction(b, h, m); ok {
				out = append(out, f)
			}
		}
	}
	return out
}

// simulateInteraction checks the herb's pharmacological profile against the
// medication's class for additive effects the interaction table does not
// document.
func simulateInteraction(b *refdata.Bundle, h patient.HerbalProduct, m patient.Medication) (HerbFinding, bool) {
	profile := profileFor(b, h)
	if len(profile) == 0 {
		return HerbFinding{}, false
	}
	class := strings.ToLower(ResolveClass(b, m))
	if class == "" {
		return HerbFinding{}, false
	}
	attrs := make([]string, 0, len(profile))
	for attr := range profile {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)
	for _, attr := range attrs {
		strength := profile[attr]
		target, ok := attributeTargets[attr]
		if !ok || strength < profileThreshold {
			continue
		}
		for _, frag := range target.classes {
			if !strings.Contains(class, frag) {
				continue
			}
			return HerbFinding{
				Herb:           h.GenericName,
				Medication:     m.GenericName,
				Severity:       target.severity,
				Evidence:       EvidenceSimulated,
				Mechanism:      fmt.Sprintf("%s profile (strength %.1f) overlapping %s class", attr, strength, m.GenericName),
				ClinicalEffect: target.effect,
				Recommendation: herbRecommendation(target.severity, h.GenericName, m.GenericName),
			}, true
		}
	}
	return HerbFinding{}, false
}

// profileFor returns the herb's pharmacological profile, inferring a weak
// single-attribute profile from the intended effect when the herb is not in
// the profile table.
func profileFor(b *refdata.Bundle, h patient.HerbalProduct) map[string]float64 {
	if p := b.FindHerbProfile(h.GenericName); p != nil {
		return p.Profile
	}
	effect := strings.ToLower(h.IntendedEffect)
	for fragment, attr := range intendedEffectProfiles {
		if strings.Contains(effect, fragment) {
			return map[string]float64{attr: profileThreshold}
		}
	}
	return nil
}

func herbRecommendation(severity, herb, drug string) string {
	switch severity {
	case "Major":
		return fmt.Sprintf("avoid combining %s with %s; discuss stopping the herb with the prescriber", herb, drug)
	case "Moderate":
		return fmt.Sprintf("monitor closely while %s and %s are combined; separate dosing where possible", herb, drug)
	default:
		return fmt.Sprintf("no routine action needed for %s with %s; mention at next review", herb, drug)
	}
}
