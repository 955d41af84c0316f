package postgres

import (
	"fmt"
	"math"
	"time"

	"pitchtrainer/roles"
)

// UserProgress is the decoded form of one users row.
type UserProgress struct {
	UserID            string             `json:"user_id"`
	CompletedRoles    []string           `json:"completed_roles"`
	CurrentLevelIndex int                `json:"current_level_index"`
	TotalScore        float64            `json:"total_score"`
	BestScores        map[string]float64 `json:"best_scores"`
	CreatedAt         time.Time          `json:"-"`
	UpdatedAt         time.Time          `json:"-"`
}

// DefaultProgress is the state of a user who has never been recorded.
func DefaultProgress(userID string) UserProgress {
	return UserProgress{
		UserID:         userID,
		CompletedRoles: []string{},
		BestScores:     map[string]float64{},
	}
}

func (p UserProgress) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("%w: empty user_id", ErrValidation)
	}
	if p.CurrentLevelIndex < 0 {
		return fmt.Errorf("%w: negative current_level_index %d", ErrValidation, p.CurrentLevelIndex)
	}
	if p.TotalScore < 0 {
		return fmt.Errorf("%w: negative total_score %.2f", ErrValidation, p.TotalScore)
	}
	for key, score := range p.BestScores {
		if score < 0 {
			return fmt.Errorf("%w: negative best score %.2f for role %q", ErrValidation, score, key)
		}
	}
	return nil
}

func roundScore(score float64) float64 {
	return math.Round(score*100) / 100
}

// ApplyCompletion folds one won dialog into the progress. The role is
// appended to completed roles only once, the level index advances only when
// the role was new, the per-role best score keeps the maximum, and the total
// is recomputed as the sum of best scores.
func ApplyCompletion(p UserProgress, roleKey string, score float64) UserProgress {
	score = roundScore(score)

	completed := append([]string(nil), p.CompletedRoles...)
	alreadyDone := false
	for _, key := range completed {
		if key == roleKey {
			alreadyDone = true
			break
		}
	}
	if !alreadyDone {
		completed = append(completed, roleKey)
	}

	levelIndex := p.CurrentLevelIndex
	if !alreadyDone && levelIndex < len(roles.Order)-1 {
		levelIndex++
	}

	best := make(map[string]float64, len(p.BestScores)+1)
	for key, value := range p.BestScores {
		best[key] = value
	}
	if prev, ok := best[roleKey]; !ok || score > prev {
		best[roleKey] = score
	}

	total := 0.0
	for _, value := range best {
		total += value
	}

	return UserProgress{
		UserID:            p.UserID,
		CompletedRoles:    completed,
		CurrentLevelIndex: levelIndex,
		TotalScore:        roundScore(total),
		BestScores:        best,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

// Role keys from the first persona catalogue, kept so old rows still load.
var legacyRoleKeys = map[string]string{
	"svetlana": "dmitry",
	"marina":   "irina",
}

var legacyRoleOrder = []string{"svetlana", "marina", "irina", "oleg", "victoria"}

// MigrateLegacyRoles rewrites old role keys to the current catalogue. A user
// who had finished all five legacy levels is credited with the full current
// set; otherwise keys are mapped one by one and duplicates collapse. Best
// scores are re-keyed keeping maxima, the total recomputed, and the level
// index rebuilt from the completed count. changed reports whether anything
// had to move.
func MigrateLegacyRoles(p UserProgress) (UserProgress, bool) {
	changed := false

	completed := append([]string(nil), p.CompletedRoles...)
	if len(completed) > 0 {
		hadAllLegacy := true
		for _, key := range legacyRoleOrder {
			if !containsRole(completed, key) {
				hadAllLegacy = false
				break
			}
		}

		if hadAllLegacy {
			completed = append([]string(nil), roles.Order...)
			changed = true
		} else {
			mapped := []string{}
			for _, key := range completed {
				if newKey, ok := legacyRoleKeys[key]; ok {
					if !containsRole(mapped, newKey) {
						mapped = append(mapped, newKey)
					}
					changed = true
				} else if _, ok := roles.ByKey(key); ok {
					if !containsRole(mapped, key) {
						mapped = append(mapped, key)
					}
				}
			}
			completed = mapped
		}
	}

	best := map[string]float64{}
	for key, score := range p.BestScores {
		target := key
		if newKey, ok := legacyRoleKeys[key]; ok {
			target = newKey
			changed = true
		} else if _, ok := roles.ByKey(key); !ok {
			continue
		}
		if prev, ok := best[target]; !ok || score > prev {
			best[target] = score
		}
	}

	if !changed {
		return p, false
	}

	total := 0.0
	for _, score := range best {
		total += score
	}

	levelIndex := len(completed)
	if levelIndex > len(roles.Order) {
		levelIndex = len(roles.Order)
	}

	return UserProgress{
		UserID:            p.UserID,
		CompletedRoles:    completed,
		CurrentLevelIndex: levelIndex,
		TotalScore:        roundScore(total),
		BestScores:        best,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}, true
}

func containsRole(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
