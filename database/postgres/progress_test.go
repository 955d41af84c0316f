package postgres

import (
	"errors"
	"testing"
)

func TestApplyCompletionFirstWin(t *testing.T) {
	p := ApplyCompletion(DefaultProgress("u1"), "dmitry", 85.504)

	if len(p.CompletedRoles) != 1 || p.CompletedRoles[0] != "dmitry" {
		t.Errorf("completed roles = %v, want [dmitry]", p.CompletedRoles)
	}
	if p.CurrentLevelIndex != 1 {
		t.Errorf("level index = %d, want 1", p.CurrentLevelIndex)
	}
	if p.BestScores["dmitry"] != 85.5 {
		t.Errorf("best score = %.2f, want 85.50 (rounded)", p.BestScores["dmitry"])
	}
	if p.TotalScore != 85.5 {
		t.Errorf("total score = %.2f, want 85.50", p.TotalScore)
	}
}

func TestApplyCompletionRepeatKeepsBestAndLevel(t *testing.T) {
	p := ApplyCompletion(DefaultProgress("u1"), "dmitry", 85.50)

	worse := ApplyCompletion(p, "dmitry", 60)
	if len(worse.CompletedRoles) != 1 {
		t.Errorf("repeat completion duplicated role: %v", worse.CompletedRoles)
	}
	if worse.CurrentLevelIndex != 1 {
		t.Errorf("repeat completion moved level index to %d", worse.CurrentLevelIndex)
	}
	if worse.BestScores["dmitry"] != 85.50 {
		t.Errorf("worse score overwrote best: %.2f", worse.BestScores["dmitry"])
	}
	if worse.TotalScore != 85.50 {
		t.Errorf("total = %.2f, want 85.50", worse.TotalScore)
	}

	better := ApplyCompletion(p, "dmitry", 91.25)
	if better.BestScores["dmitry"] != 91.25 {
		t.Errorf("better score not kept: %.2f", better.BestScores["dmitry"])
	}
	if better.TotalScore != 91.25 {
		t.Errorf("total not recomputed: %.2f", better.TotalScore)
	}
}

func TestApplyCompletionTotalIsSumOfBest(t *testing.T) {
	p := DefaultProgress("u1")
	p = ApplyCompletion(p, "dmitry", 85.50)
	p = ApplyCompletion(p, "irina", 84.75)

	if p.TotalScore != 170.25 {
		t.Errorf("total = %.2f, want 170.25", p.TotalScore)
	}
	if p.CurrentLevelIndex != 2 {
		t.Errorf("level index = %d, want 2", p.CurrentLevelIndex)
	}
}

func TestApplyCompletionLevelIndexCaps(t *testing.T) {
	p := DefaultProgress("u1")
	for _, key := range []string{"dmitry", "irina", "max", "oleg", "victoria"} {
		p = ApplyCompletion(p, key, 80)
	}
	if p.CurrentLevelIndex != 4 {
		t.Errorf("level index = %d, want cap at 4", p.CurrentLevelIndex)
	}
	if len(p.CompletedRoles) != 5 {
		t.Errorf("completed = %v, want all five", p.CompletedRoles)
	}
}

func TestApplyCompletionDoesNotMutateInput(t *testing.T) {
	p := DefaultProgress("u1")
	p.CompletedRoles = []string{"dmitry"}
	p.BestScores = map[string]float64{"dmitry": 50}

	_ = ApplyCompletion(p, "irina", 70)

	if len(p.CompletedRoles) != 1 || len(p.BestScores) != 1 {
		t.Error("ApplyCompletion mutated its input")
	}
}

func TestValidate(t *testing.T) {
	good := DefaultProgress("u1")
	if err := good.Validate(); err != nil {
		t.Errorf("default progress should validate: %v", err)
	}

	cases := []UserProgress{
		DefaultProgress(""),
		{UserID: "u1", CompletedRoles: []string{}, BestScores: map[string]float64{}, CurrentLevelIndex: -1},
		{UserID: "u1", CompletedRoles: []string{}, BestScores: map[string]float64{}, TotalScore: -0.01},
		{UserID: "u1", CompletedRoles: []string{}, BestScores: map[string]float64{"dmitry": -5}},
	}
	for i, p := range cases {
		err := p.Validate()
		if err == nil {
			t.Errorf("case %d: expected validation error", i)
			continue
		}
		if !errors.Is(err, ErrValidation) {
			t.Errorf("case %d: error %v is not ErrValidation", i, err)
		}
	}
}

func TestMigrateLegacyRolesNoop(t *testing.T) {
	p := DefaultProgress("u1")
	p.CompletedRoles = []string{"dmitry", "irina"}
	p.BestScores = map[string]float64{"dmitry": 80, "irina": 70}
	p.TotalScore = 150
	p.CurrentLevelIndex = 2

	migrated, changed := MigrateLegacyRoles(p)
	if changed {
		t.Errorf("modern keys should not trigger migration: %+v", migrated)
	}
}

func TestMigrateLegacyRolesMapsKeys(t *testing.T) {
	p := DefaultProgress("u1")
	p.CompletedRoles = []string{"svetlana", "marina"}
	p.BestScores = map[string]float64{"svetlana": 80.5, "marina": 64.25}

	migrated, changed := MigrateLegacyRoles(p)
	if !changed {
		t.Fatal("legacy keys should trigger migration")
	}
	if len(migrated.CompletedRoles) != 2 || migrated.CompletedRoles[0] != "dmitry" || migrated.CompletedRoles[1] != "irina" {
		t.Errorf("completed = %v, want [dmitry irina]", migrated.CompletedRoles)
	}
	if migrated.BestScores["dmitry"] != 80.5 || migrated.BestScores["irina"] != 64.25 {
		t.Errorf("best scores not re-keyed: %v", migrated.BestScores)
	}
	if migrated.TotalScore != 144.75 {
		t.Errorf("total = %.2f, want 144.75", migrated.TotalScore)
	}
	if migrated.CurrentLevelIndex != 2 {
		t.Errorf("level index = %d, want 2", migrated.CurrentLevelIndex)
	}
}

func TestMigrateLegacyRolesKeepsMaxWhenKeysCollide(t *testing.T) {
	p := DefaultProgress("u1")
	p.CompletedRoles = []string{"marina", "irina"}
	p.BestScores = map[string]float64{"marina": 90, "irina": 75}

	migrated, changed := MigrateLegacyRoles(p)
	if !changed {
		t.Fatal("expected migration")
	}
	if len(migrated.CompletedRoles) != 1 || migrated.CompletedRoles[0] != "irina" {
		t.Errorf("completed = %v, want [irina]", migrated.CompletedRoles)
	}
	if migrated.BestScores["irina"] != 90 {
		t.Errorf("collided best score = %.2f, want max 90", migrated.BestScores["irina"])
	}
}

func TestMigrateLegacyRolesFullLegacySet(t *testing.T) {
	p := DefaultProgress("u1")
	p.CompletedRoles = []string{"svetlana", "marina", "irina", "oleg", "victoria"}
	p.BestScores = map[string]float64{
		"svetlana": 80, "marina": 70, "irina": 60, "oleg": 50, "victoria": 40,
	}

	migrated, changed := MigrateLegacyRoles(p)
	if !changed {
		t.Fatal("expected migration")
	}
	want := []string{"dmitry", "irina", "max", "oleg", "victoria"}
	if len(migrated.CompletedRoles) != len(want) {
		t.Fatalf("completed = %v, want %v", migrated.CompletedRoles, want)
	}
	for i, key := range want {
		if migrated.CompletedRoles[i] != key {
			t.Errorf("completed[%d] = %q, want %q", i, migrated.CompletedRoles[i], key)
		}
	}
	// svetlana folds into dmitry, marina into irina keeping the max.
	if migrated.BestScores["dmitry"] != 80 {
		t.Errorf("dmitry best = %.2f, want 80", migrated.BestScores["dmitry"])
	}
	if migrated.BestScores["irina"] != 70 {
		t.Errorf("irina best = %.2f, want 70", migrated.BestScores["irina"])
	}
	if migrated.CurrentLevelIndex != 5 {
		t.Errorf("level index = %d, want 5", migrated.CurrentLevelIndex)
	}
}
