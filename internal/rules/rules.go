// Package rules implements the independent screening modules: ACB burden,
// Beers Criteria, STOPP/START, gender-specific risks, time-to-benefit and
// herb-drug interactions. Each module reads the reference Bundle and the
// patient profile and emits findings; modules never see each other's output.
package rules

import (
	"strings"

	"github.com/sagecare/deprescribe/internal/patient"
	"github.com/sagecare/deprescribe/internal/refdata"
)

// DrugClassOf resolves the therapeutic class of a medication from the
// reference tables, preferring the tapering protocols over the
// time-to-benefit table. Unlisted medications return "".
func DrugClassOf(b *refdata.Bundle, genericName string) string {
	if r := b.FindTaperRule(genericName); r != nil {
		return r.DrugClass
	}
	name := strings.ToLower(genericName)
	for _, e := range b.TTB {
		if strings.ToLower(e.DrugName) == name {
			return e.DrugClass
		}
	}
	return ""
}

// ResolveClass prefers the class stated on the medication record over the
// reference tables.
func ResolveClass(b *refdata.Bundle, m patient.Medication) string {
	if m.DrugClass != "" {
		return m.DrugClass
	}
	return DrugClassOf(b, m.GenericName)
}
