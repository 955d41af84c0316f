package postgres

import (
	"strings"
	"testing"
)

func findEntry(t *testing.T, entries []UserProgress, userID string) UserProgress {
	t.Helper()
	for _, e := range entries {
		if e.UserID == userID {
			return e
		}
	}
	t.Fatalf("entry %q not found in %v", userID, entries)
	return UserProgress{}
}

func TestParseSnapshotSubstitutesDefaults(t *testing.T) {
	snapshot := `{
		"42": {},
		"43": {"total_score": 95.5},
		"44": {
			"completed_roles": ["dmitry", "irina"],
			"current_level_index": 2,
			"total_score": 170.25,
			"best_scores": {"dmitry": 85.5, "irina": 84.75}
		}
	}`

	entries, bad, err := ParseSnapshot(strings.NewReader(snapshot))
	if err != nil {
		t.Fatalf("ParseSnapshot failed: %v", err)
	}
	if len(bad) != 0 {
		t.Fatalf("unexpected bad entries: %v", bad)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	fresh := findEntry(t, entries, "42")
	if len(fresh.CompletedRoles) != 0 || fresh.CurrentLevelIndex != 0 ||
		fresh.TotalScore != 0 || len(fresh.BestScores) != 0 {
		t.Errorf("empty record did not get defaults: %+v", fresh)
	}
	if fresh.CompletedRoles == nil || fresh.BestScores == nil {
		t.Error("defaults must be empty, not nil, so they serialize as [] and {}")
	}

	partial := findEntry(t, entries, "43")
	if partial.TotalScore != 95.5 || partial.CurrentLevelIndex != 0 {
		t.Errorf("partial record wrong: %+v", partial)
	}

	full := findEntry(t, entries, "44")
	if len(full.CompletedRoles) != 2 || full.BestScores["irina"] != 84.75 {
		t.Errorf("full record wrong: %+v", full)
	}
}

func TestParseSnapshotSkipsMalformedEntries(t *testing.T) {
	snapshot := `{
		"good": {"total_score": 10},
		"shape": {"completed_roles": "not-a-list"},
		"negative": {"total_score": -5},
		"": {"total_score": 1}
	}`

	entries, bad, err := ParseSnapshot(strings.NewReader(snapshot))
	if err != nil {
		t.Fatalf("ParseSnapshot failed: %v", err)
	}
	if len(entries) != 1 || entries[0].UserID != "good" {
		t.Errorf("entries = %v, want only the good one", entries)
	}
	if len(bad) != 3 {
		t.Errorf("got %d bad entries, want 3: %v", len(bad), bad)
	}
}

func TestParseSnapshotRejectsNonObject(t *testing.T) {
	if _, _, err := ParseSnapshot(strings.NewReader(`["not", "a", "map"]`)); err == nil {
		t.Error("expected decode error for non-object snapshot")
	}
	if _, _, err := ParseSnapshot(strings.NewReader(``)); err == nil {
		t.Error("expected decode error for empty input")
	}
}
