package refdata

import "testing"

func TestLoadEmbedded(t *testing.T) {
	b, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded returned error: %v", err)
	}

	if len(b.ACB) == 0 || len(b.Beers) == 0 || len(b.Stopp) == 0 || len(b.TTB) == 0 {
		t.Fatal("one or more reference tables loaded empty")
	}
	if len(b.TaperRules) == 0 {
		t.Fatal("tapering rules table is empty")
	}
	if len(b.HerbProfiles) == 0 {
		t.Fatal("herb profiles loaded empty")
	}
}

// TestFrailtyCoverage pins the invariant downstream tapering depends on:
// every CFS score 1-9 has a row with a positive speed multiplier.
func TestFrailtyCoverage(t *testing.T) {
	b, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded returned error: %v", err)
	}
	for score := 1; score <= 9; score++ {
		f := b.Frailty(score)
		if f.CFSScore != score {
			t.Errorf("Frailty(%d) returned row for CFS %d", score, f.CFSScore)
		}
		if f.TaperSpeedMultiplier <= 0 {
			t.Errorf("CFS %d has non-positive multiplier %f", score, f.TaperSpeedMultiplier)
		}
	}
	// Multipliers must not increase with frailty.
	prev := b.Frailty(1).TaperSpeedMultiplier
	for score := 2; score <= 9; score++ {
		m := b.Frailty(score).TaperSpeedMultiplier
		if m > prev {
			t.Errorf("multiplier increases from CFS %d to %d (%f > %f)", score-1, score, m, prev)
		}
		prev = m
	}
}

func TestFrailtyClamping(t *testing.T) {
	b, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded returned error: %v", err)
	}
	if got := b.Frailty(0); got.CFSScore != 1 {
		t.Errorf("Frailty(0) = CFS %d, want clamped to 1", got.CFSScore)
	}
	if got := b.Frailty(12); got.CFSScore != 9 {
		t.Errorf("Frailty(12) = CFS %d, want clamped to 9", got.CFSScore)
	}
}

func TestLookupsAreCaseInsensitive(t *testing.T) {
	b, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded returned error: %v", err)
	}
	if got := b.ACBScore("Amitriptyline"); got != 3 {
		t.Errorf("ACBScore(Amitriptyline) = %d, want 3", got)
	}
	if r := b.FindTaperRule("LORAZEPAM"); r == nil || r.DrugClass != "Benzodiazepine" {
		t.Errorf("FindTaperRule(LORAZEPAM) = %+v", r)
	}
	if got := b.FindHerbInteractions("St Johns Wort", "Warfarin"); len(got) != 1 {
		t.Errorf("FindHerbInteractions(St Johns Wort, Warfarin) returned %d rows, want 1", len(got))
	}
}

func TestNoBenefitMarker(t *testing.T) {
	b, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded returned error: %v", err)
	}
	rows := b.FindTTB("aspirin")
	if len(rows) == 0 {
		t.Fatal("aspirin missing from time-to-benefit table")
	}
	if rows[0].MonthsMin != 999 {
		t.Errorf("aspirin MonthsMin = %d, want the 999 no-benefit marker", rows[0].MonthsMin)
	}
}
