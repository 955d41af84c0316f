package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// snapshotRecord is one entry of the legacy flat-file store
// (leaderboard_db.json). Every field is optional; absent fields take the
// schema defaults.
type snapshotRecord struct {
	CompletedRoles    []string           `json:"completed_roles"`
	CurrentLevelIndex *int               `json:"current_level_index"`
	TotalScore        *float64           `json:"total_score"`
	BestScores        map[string]float64 `json:"best_scores"`
}

// ParseSnapshot decodes a flat user_id → record mapping into progress values
// with defaults substituted for missing fields. Entries with an empty key or
// values failing validation are returned separately so the caller can log
// and skip them instead of aborting the whole batch.
func ParseSnapshot(r io.Reader) ([]UserProgress, []error, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, nil, fmt.Errorf("could not decode snapshot: %w", err)
	}

	var entries []UserProgress
	var bad []error
	for userID, blob := range raw {
		progress, err := parseSnapshotEntry(userID, blob)
		if err != nil {
			bad = append(bad, err)
			continue
		}
		entries = append(entries, progress)
	}
	return entries, bad, nil
}

func parseSnapshotEntry(userID string, blob json.RawMessage) (UserProgress, error) {
	if userID == "" {
		return UserProgress{}, fmt.Errorf("%w: snapshot entry with empty user_id", ErrValidation)
	}

	var record snapshotRecord
	if err := json.Unmarshal(blob, &record); err != nil {
		return UserProgress{}, fmt.Errorf("snapshot entry %q: %w", userID, err)
	}

	progress := DefaultProgress(userID)
	if record.CompletedRoles != nil {
		progress.CompletedRoles = record.CompletedRoles
	}
	if record.CurrentLevelIndex != nil {
		progress.CurrentLevelIndex = *record.CurrentLevelIndex
	}
	if record.TotalScore != nil {
		progress.TotalScore = *record.TotalScore
	}
	if record.BestScores != nil {
		progress.BestScores = record.BestScores
	}

	if err := progress.Validate(); err != nil {
		return UserProgress{}, fmt.Errorf("snapshot entry %q: %w", userID, err)
	}
	return progress, nil
}

// MigrateFromSnapshot replays a legacy flat-file store into the users table.
// Each entry is upserted, so running the migration twice leaves the table in
// the same state. Malformed entries are logged and skipped; a storage
// failure stops the run since re-running is always safe.
func (d *Database) MigrateFromSnapshot(ctx context.Context, r io.Reader) (int, error) {
	tracer := otel.Tracer("postgres/MigrateFromSnapshot")
	ctx, span := tracer.Start(ctx, "MigrateFromSnapshot")
	defer span.End()

	log := d.logger.Logger(ctx)

	entries, bad, err := ParseSnapshot(r)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	for _, entryErr := range bad {
		log.Warn("[Postgres] Skipping malformed snapshot entry", zap.Error(entryErr))
	}

	span.SetAttributes(
		attribute.Int("snapshot.entries", len(entries)),
		attribute.Int("snapshot.skipped", len(bad)),
	)

	migrated := 0
	for _, progress := range entries {
		if _, err := d.UpsertUserProgress(ctx, progress); err != nil {
			span.RecordError(err)
			return migrated, fmt.Errorf("migration stopped at user %q: %w", progress.UserID, err)
		}
		migrated++
	}

	log.Info("[Postgres] Snapshot migration finished",
		zap.Int("migrated", migrated),
		zap.Int("skipped", len(bad)))

	return migrated, nil
}
