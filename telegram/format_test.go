package telegram

import (
	"strings"
	"testing"

	"pitchtrainer/database/postgres"
	"pitchtrainer/modelapi/geminiapi"
	"pitchtrainer/roles"
)

func TestFormatLeaderboardEmpty(t *testing.T) {
	got := formatLeaderboard(nil, nil)
	if !strings.Contains(got, "/start") {
		t.Errorf("empty leaderboard should invite to play: %q", got)
	}
}

func TestFormatLeaderboardRanksAndNames(t *testing.T) {
	entries := []postgres.UserProgress{
		{UserID: "2", TotalScore: 95.00, CompletedRoles: []string{"dmitry", "irina"}},
		{UserID: "1", TotalScore: 90.00, CompletedRoles: []string{"dmitry"}},
		{UserID: "3", TotalScore: 10.00, CompletedRoles: []string{"dmitry"}},
		{UserID: "4", TotalScore: 5.00, CompletedRoles: []string{"dmitry"}},
	}
	names := map[string]string{"2": "Анна", "1": "Борис"}

	got := formatLeaderboard(entries, names)

	if strings.Index(got, "Анна") > strings.Index(got, "Борис") {
		t.Errorf("leader listed after runner-up:\n%s", got)
	}
	if !strings.Contains(got, "🥇 Анна — 95.00") {
		t.Errorf("missing gold medal line:\n%s", got)
	}
	if !strings.Contains(got, "4. Аноним #4") {
		t.Errorf("fourth place should be numbered and anonymous:\n%s", got)
	}
}

func TestFormatProgressFresh(t *testing.T) {
	got := formatProgress(postgres.DefaultProgress("1"), false)
	if !strings.Contains(got, "/start") {
		t.Errorf("fresh progress should point to /start: %q", got)
	}
}

func TestFormatProgressShowsNextLevel(t *testing.T) {
	p := postgres.DefaultProgress("1")
	p.CompletedRoles = []string{"dmitry"}
	p.BestScores = map[string]float64{"dmitry": 85.5}
	p.TotalScore = 85.5
	p.CurrentLevelIndex = 1

	got := formatProgress(p, true)
	if !strings.Contains(got, "Дмитрий") || !strings.Contains(got, "85.50") {
		t.Errorf("completed role missing:\n%s", got)
	}
	if !strings.Contains(got, "Ирина") {
		t.Errorf("next level missing:\n%s", got)
	}
}

func TestFormatProgressAllDone(t *testing.T) {
	p := postgres.DefaultProgress("1")
	p.CompletedRoles = append([]string(nil), roles.Order...)
	p.BestScores = map[string]float64{}
	for _, key := range roles.Order {
		p.BestScores[key] = 80
	}
	p.TotalScore = 400
	p.CurrentLevelIndex = 4

	got := formatProgress(p, true)
	if !strings.Contains(got, "Все роли пройдены") {
		t.Errorf("finished progress should celebrate:\n%s", got)
	}
}

func TestFormatVictory(t *testing.T) {
	role, _ := roles.ByKey("dmitry")
	grade := &geminiapi.PitchGrade{
		Score:        85.5,
		Strengths:    []string{"Быстро выявил потребность"},
		Improvements: []string{"Не дави в начале"},
		Summary:      "Отличный темп.",
	}
	p := postgres.DefaultProgress("1")
	p.TotalScore = 85.5

	got := formatVictory(role, grade, p)
	for _, want := range []string{"ПОБЕДА", "85.50", "Быстро выявил потребность", "Не дави в начале", "Отличный темп."} {
		if !strings.Contains(got, want) {
			t.Errorf("victory message missing %q:\n%s", want, got)
		}
	}
}
