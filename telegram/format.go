package telegram

import (
	"fmt"
	"strings"

	"pitchtrainer/database/postgres"
	"pitchtrainer/modelapi/geminiapi"
	"pitchtrainer/roles"
)

func formatLeaderboard(entries []postgres.UserProgress, names map[string]string) string {
	if len(entries) == 0 {
		return "Таблица лидеров пока пуста. Стань первым — набери очки в диалоге! /start"
	}

	var b strings.Builder
	b.WriteString("🏆 Таблица лидеров\n\n")
	medals := []string{"🥇", "🥈", "🥉"}
	for i, entry := range entries {
		place := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			place = medals[i]
		}
		name := names[entry.UserID]
		if name == "" {
			name = "Аноним #" + entry.UserID
		}
		fmt.Fprintf(&b, "%s %s — %.2f очков (%d/%d ролей)\n",
			place, name, entry.TotalScore, len(entry.CompletedRoles), len(roles.Order))
	}
	return b.String()
}

func formatProgress(progress postgres.UserProgress, found bool) string {
	if !found || len(progress.CompletedRoles) == 0 {
		return "Ты пока не прошёл ни одной роли. Начни тренировку: /start"
	}

	var b strings.Builder
	b.WriteString("📊 Твой прогресс\n\n")
	fmt.Fprintf(&b, "Общий счёт: %.2f\n", progress.TotalScore)
	fmt.Fprintf(&b, "Пройдено ролей: %d из %d\n\n", len(progress.CompletedRoles), len(roles.Order))

	for _, key := range progress.CompletedRoles {
		role, ok := roles.ByKey(key)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "✅ %s — лучший результат %.2f\n", role.Name, progress.BestScores[key])
	}

	if next, ok := roles.AtLevel(progress.CurrentLevelIndex); ok && len(progress.CompletedRoles) < len(roles.Order) {
		fmt.Fprintf(&b, "\nСледующий уровень: %s (%s)", next.Name, next.LevelDescription)
	} else if len(progress.CompletedRoles) >= len(roles.Order) {
		b.WriteString("\nВсе роли пройдены! Улучшай свои лучшие результаты 💪")
	}
	return b.String()
}

func formatVictory(role roles.Role, grade *geminiapi.PitchGrade, progress postgres.UserProgress) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🥳 ПОБЕДА! %s записался на массаж.\n\n", role.Name)
	fmt.Fprintf(&b, "Оценка за диалог: %.2f из 100\n", grade.Score)

	if len(grade.Strengths) > 0 {
		b.WriteString("\nЧто получилось:\n")
		for _, s := range grade.Strengths {
			fmt.Fprintf(&b, "• %s\n", s)
		}
	}
	if len(grade.Improvements) > 0 {
		b.WriteString("\nНад чем поработать:\n")
		for _, s := range grade.Improvements {
			fmt.Fprintf(&b, "• %s\n", s)
		}
	}
	if grade.Summary != "" {
		fmt.Fprintf(&b, "\n%s\n", grade.Summary)
	}

	fmt.Fprintf(&b, "\nОбщий счёт: %.2f. Следующий уровень: /start", progress.TotalScore)
	return b.String()
}

func roleKeyboardLabel(role roles.Role) string {
	return fmt.Sprintf("%s (%s)", role.Name, role.LevelDescription)
}
