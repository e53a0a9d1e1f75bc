package refdata

import (
	"embed"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

//go:embed data/*.csv data/*.json
var embedded embed.FS

// LoadEmbedded builds the reference Bundle from the datasets compiled into
// the binary. This is the default source; Postgres is used instead when
// configured (see LoadFromPostgres).
func LoadEmbedded() (*Bundle, error) {
	b := &Bundle{}

	if err := readCSV("data/acb_scores.csv", func(rec []string) error {
		score, err := strconv.Atoi(rec[2])
		if err != nil {
			return fmt.Errorf("acb score for %q: %w", rec[0], err)
		}
		b.ACB = append(b.ACB, ACBEntry{GenericName: rec[0], BrandName: rec[1], Score: score})
		return nil
	}); err != nil {
		return nil, err
	}

	if err := readCSV("data/beers_criteria.csv", func(rec []string) error {
		b.Beers = append(b.Beers, BeersEntry{
			DrugName:          rec[0],
			CategoryOrDisease: rec[1],
			Rationale:         rec[2],
			Recommendation:    rec[3],
			Strength:          rec[4],
			Quality:           rec[5],
		})
		return nil
	}); err != nil {
		return nil, err
	}

	if err := readCSV("data/stopp_criteria.csv", func(rec []string) error {
		b.Stopp = append(b.Stopp, StoppCriterion{
			RuleID:           rec[0],
			DrugMedication:   rec[1],
			ConditionDisease: rec[2],
			Rationale:        rec[3],
			FullText:         rec[4],
		})
		return nil
	}); err != nil {
		return nil, err
	}

	if err := readCSV("data/start_criteria.csv", func(rec []string) error {
		b.Start = append(b.Start, StartCriterion{
			RuleID:           rec[0],
			DrugMedication:   rec[1],
			ConditionDisease: rec[2],
			Rationale:        rec[3],
		})
		return nil
	}); err != nil {
		return nil, err
	}

	if err := readCSV("data/gender_risks.csv", func(rec []string) error {
		b.GenderRisks = append(b.GenderRisks, GenderRisk{
			DrugName:           rec[0],
			RiskCategory:       rec[1],
			RiskLevel:          rec[2],
			Mechanism:          rec[3],
			MonitoringGuidance: rec[4],
			GenderRisk:         rec[5],
		})
		return nil
	}); err != nil {
		return nil, err
	}

	if err := readCSV("data/time_to_benefit.csv", func(rec []string) error {
		min, err := strconv.Atoi(rec[4])
		if err != nil {
			return fmt.Errorf("ttb months for %q: %w", rec[0], err)
		}
		max, err := strconv.Atoi(rec[5])
		if err != nil {
			return fmt.Errorf("ttb months for %q: %w", rec[0], err)
		}
		b.TTB = append(b.TTB, TTBEntry{
			DrugName:              rec[0],
			DrugClass:             rec[1],
			IndicationContext:     rec[2],
			TimeToBenefit:         rec[3],
			MonthsMin:             min,
			MonthsMax:             max,
			DeprescribingGuidance: rec[6],
			ReferenceTrial:        rec[7],
		})
		return nil
	}); err != nil {
		return nil, err
	}

	if err := readCSV("data/tapering_rules.csv", func(rec []string) error {
		weeks, err := strconv.Atoi(rec[5])
		if err != nil {
			return fmt.Errorf("taper duration for %q: %w", rec[0], err)
		}
		b.TaperRules = append(b.TaperRules, TaperRule{
			DrugName:            rec[0],
			DrugClass:           rec[1],
			RiskProfile:         rec[2],
			StrategyName:        rec[3],
			StepLogic:           rec[4],
			BaseDurationWeeks:   weeks,
			MonitoringFrequency: rec[6],
			WithdrawalSymptoms:  rec[7],
			PauseCriteria:       rec[8],
		})
		return nil
	}); err != nil {
		return nil, err
	}

	if err := readCSV("data/cfs_taper_map.csv", func(rec []string) error {
		score, err := strconv.Atoi(rec[0])
		if err != nil {
			return fmt.Errorf("cfs score: %w", err)
		}
		mult, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return fmt.Errorf("taper multiplier for CFS %d: %w", score, err)
		}
		b.FrailtyLevels = append(b.FrailtyLevels, FrailtyLevel{
			CFSScore:             score,
			ClinicalLabel:        rec[1],
			TaperSpeedMultiplier: mult,
			ClinicalGuidance:     rec[3],
		})
		return nil
	}); err != nil {
		return nil, err
	}

	if err := readCSV("data/herb_interactions.csv", func(rec []string) error {
		b.HerbInteractions = append(b.HerbInteractions, HerbInteraction{
			HerbName:        rec[0],
			SpecificDrugs:   strings.ToLower(rec[1]),
			InteractionType: rec[2],
			Mechanism:       rec[3],
			Severity:        rec[4],
			ClinicalEffect:  rec[5],
		})
		return nil
	}); err != nil {
		return nil, err
	}

	raw, err := embedded.ReadFile("data/herb_profiles.json")
	if err != nil {
		return nil, fmt.Errorf("read herb profiles: %w", err)
	}
	var profiles struct {
		Herbs []HerbProfile `json:"herbs"`
	}
	if err := json.Unmarshal(raw, &profiles); err != nil {
		return nil, fmt.Errorf("parse herb profiles: %w", err)
	}
	b.HerbProfiles = profiles.Herbs

	if err := b.validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// validate checks the invariants downstream code relies on.
func (b *Bundle) validate() error {
	seen := make(map[int]bool, 9)
	for _, f := range b.FrailtyLevels {
		if f.TaperSpeedMultiplier <= 0 {
			return fmt.Errorf("frailty map: non-positive multiplier for CFS %d", f.CFSScore)
		}
		seen[f.CFSScore] = true
	}
	for score := 1; score <= 9; score++ {
		if !seen[score] {
			return fmt.Errorf("frailty map: missing CFS score %d", score)
		}
	}
	if len(b.TaperRules) == 0 {
		return fmt.Errorf("tapering rules table is empty")
	}
	return nil
}

// readCSV streams one embedded CSV file, skipping the header row.
func readCSV(name string, row func(rec []string) error) error {
	f, err := embedded.Open(name)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	if _, err := r.Read(); err != nil { // header
		return fmt.Errorf("read %s header: %w", name, err)
	}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if err := row(rec); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
}
