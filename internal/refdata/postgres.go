package refdata

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LoadFromPostgres builds the reference Bundle from database tables. The
// schema mirrors the embedded datasets one table per file. Reference data is
// read once at startup and never written by this service.
func LoadFromPostgres(ctx context.Context, pool *pgxpool.Pool) (*Bundle, error) {
	b := &Bundle{}

	rows, err := pool.Query(ctx, `SELECT generic_name, brand_name, acb_score FROM acb_scores`)
	if err != nil {
		return nil, fmt.Errorf("query acb_scores: %w", err)
	}
	for rows.Next() {
		var e ACBEntry
		if err := rows.Scan(&e.GenericName, &e.BrandName, &e.Score); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan acb_scores: %w", err)
		}
		b.ACB = append(b.ACB, e)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, fmt.Errorf("read acb_scores: %w", rows.Err())
	}

	rows, err = pool.Query(ctx, `SELECT drug_name, category_or_disease, rationale, recommendation, strength, quality FROM beers_criteria`)
	if err != nil {
		return nil, fmt.Errorf("query beers_criteria: %w", err)
	}
	for rows.Next() {
		var e BeersEntry
		if err := rows.Scan(&e.DrugName, &e.CategoryOrDisease, &e.Rationale, &e.Recommendation, &e.Strength, &e.Quality); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan beers_criteria: %w", err)
		}
		b.Beers = append(b.Beers, e)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, fmt.Errorf("read beers_criteria: %w", rows.Err())
	}

	rows, err = pool.Query(ctx, `SELECT rule_id, drug_medication, condition_disease, rationale, full_text FROM stopp_criteria`)
	if err != nil {
		return nil, fmt.Errorf("query stopp_criteria: %w", err)
	}
	for rows.Next() {
		var c StoppCriterion
		if err := rows.Scan(&c.RuleID, &c.DrugMedication, &c.ConditionDisease, &c.Rationale, &c.FullText); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan stopp_criteria: %w", err)
		}
		b.Stopp = append(b.Stopp, c)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, fmt.Errorf("read stopp_criteria: %w", rows.Err())
	}

	rows, err = pool.Query(ctx, `SELECT rule_id, drug_medication, condition_disease, rationale FROM start_criteria`)
	if err != nil {
		return nil, fmt.Errorf("query start_criteria: %w", err)
	}
	for rows.Next() {
		var c StartCriterion
		if err := rows.Scan(&c.RuleID, &c.DrugMedication, &c.ConditionDisease, &c.Rationale); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan start_criteria: %w", err)
		}
		b.Start = append(b.Start, c)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, fmt.Errorf("read start_criteria: %w", rows.Err())
	}

	rows, err = pool.Query(ctx, `SELECT drug_name, risk_category, risk_level, mechanism, monitoring_guidance, gender_risk FROM gender_risks`)
	if err != nil {
		return nil, fmt.Errorf("query gender_risks: %w", err)
	}
	for rows.Next() {
		var g GenderRisk
		if err := rows.Scan(&g.DrugName, &g.RiskCategory, &g.RiskLevel, &g.Mechanism, &g.MonitoringGuidance, &g.GenderRisk); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan gender_risks: %w", err)
		}
		b.GenderRisks = append(b.GenderRisks, g)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, fmt.Errorf("read gender_risks: %w", rows.Err())
	}

	rows, err = pool.Query(ctx, `SELECT drug_name, drug_class, indication_context, time_to_benefit, ttb_months_min, ttb_months_max, deprescribing_guidance, reference_trial FROM time_to_benefit`)
	if err != nil {
		return nil, fmt.Errorf("query time_to_benefit: %w", err)
	}
	for rows.Next() {
		var e TTBEntry
		if err := rows.Scan(&e.DrugName, &e.DrugClass, &e.IndicationContext, &e.TimeToBenefit, &e.MonthsMin, &e.MonthsMax, &e.DeprescribingGuidance, &e.ReferenceTrial); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan time_to_benefit: %w", err)
		}
		b.TTB = append(b.TTB, e)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, fmt.Errorf("read time_to_benefit: %w", rows.Err())
	}

	rows, err = pool.Query(ctx, `SELECT drug_name, drug_class, risk_profile, taper_strategy_name, step_logic, base_taper_duration_weeks, monitoring_frequency, withdrawal_symptoms, pause_criteria FROM tapering_rules`)
	if err != nil {
		return nil, fmt.Errorf("query tapering_rules: %w", err)
	}
	for rows.Next() {
		var r TaperRule
		if err := rows.Scan(&r.DrugName, &r.DrugClass, &r.RiskProfile, &r.StrategyName, &r.StepLogic, &r.BaseDurationWeeks, &r.MonitoringFrequency, &r.WithdrawalSymptoms, &r.PauseCriteria); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan tapering_rules: %w", err)
		}
		b.TaperRules = append(b.TaperRules, r)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, fmt.Errorf("read tapering_rules: %w", rows.Err())
	}

	rows, err = pool.Query(ctx, `SELECT cfs_score, clinical_label, taper_speed_multiplier, clinical_guidance FROM cfs_taper_map`)
	if err != nil {
		return nil, fmt.Errorf("query cfs_taper_map: %w", err)
	}
	for rows.Next() {
		var f FrailtyLevel
		if err := rows.Scan(&f.CFSScore, &f.ClinicalLabel, &f.TaperSpeedMultiplier, &f.ClinicalGuidance); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan cfs_taper_map: %w", err)
		}
		b.FrailtyLevels = append(b.FrailtyLevels, f)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, fmt.Errorf("read cfs_taper_map: %w", rows.Err())
	}

	rows, err = pool.Query(ctx, `SELECT herb_name, specific_drugs, interaction_type, mechanism, severity, clinical_effect FROM herb_interactions`)
	if err != nil {
		return nil, fmt.Errorf("query herb_interactions: %w", err)
	}
	for rows.Next() {
		var hi HerbInteraction
		if err := rows.Scan(&hi.HerbName, &hi.SpecificDrugs, &hi.InteractionType, &hi.Mechanism, &hi.Severity, &hi.ClinicalEffect); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan herb_interactions: %w", err)
		}
		hi.SpecificDrugs = strings.ToLower(hi.SpecificDrugs)
		b.HerbInteractions = append(b.HerbInteractions, hi)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, fmt.Errorf("read herb_interactions: %w", rows.Err())
	}

	rows, err = pool.Query(ctx, `SELECT herb_name, profile, safety_concerns FROM herb_profiles`)
	if err != nil {
		return nil, fmt.Errorf("query herb_profiles: %w", err)
	}
	for rows.Next() {
		var p HerbProfile
		if err := rows.Scan(&p.HerbName, &p.Profile, &p.SafetyConcerns); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan herb_profiles: %w", err)
		}
		b.HerbProfiles = append(b.HerbProfiles, p)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, fmt.Errorf("read herb_profiles: %w", rows.Err())
	}

	if err := b.validate(); err != nil {
		return nil, err
	}
	return b, nil
}
