package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"pitchtrainer/logger"

	_ "github.com/lib/pq"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ErrValidation marks inputs rejected before they reach storage.
var ErrValidation = errors.New("invalid user progress")

type DatabaseConnectProps struct {
	Logger *logger.LogMiddleware
}

type Database struct {
	Queries
	logger *logger.LogMiddleware
}

func Connect(ctx context.Context, args DatabaseConnectProps) *Database {
	tracer := otel.Tracer("postgres/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	connectRetries := 5
	var conn *sql.DB
	var err error

	log := args.Logger.Logger(ctx)

	for connectRetries > 0 {
		conn, err = getConnection(ctx)
		if err == nil {
			log.Info("[Postgres] Database client started")
			break
		}
		connectRetries -= 1
		sleepTime := 5
		log.Error(
			"[Postgres] Could not connect to Postgres. Retrying after sleeping.",
			zap.Error(err),
			zap.Int("Retries Left", connectRetries),
			zap.Int("Sleep Time", sleepTime))
		time.Sleep(time.Second * time.Duration(sleepTime))
	}

	if connectRetries <= 0 {
		log.Error("[Postgres] Failed to Connect to Postgres")
		span.RecordError(fmt.Errorf("failed to connect to Postgres"))
		os.Exit(1)
	}

	db := &Database{Queries: *New(conn), logger: args.Logger}

	if err := db.Queries.CreateTables(ctx); err != nil {
		log.Error("[Postgres] Could not ensure schema", zap.Error(err))
		span.RecordError(err)
		os.Exit(1)
	}
	log.Info("[Postgres] Schema ensured")

	return db
}

func getConnection(ctx context.Context) (*sql.DB, error) {
	tracer := otel.Tracer("postgres/getConnection")
	_, span := tracer.Start(ctx, "getConnection")
	defer span.End()

	// Railway-style single URL wins over discrete settings.
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		host := os.Getenv("POSTGRES_DB_HOST")
		port := os.Getenv("POSTGRES_DB_PORT")
		user := os.Getenv("POSTGRES_DB_USER")
		password := os.Getenv("POSTGRES_DB_PASS")
		dbname := os.Getenv("POSTGRES_DB_NAME")

		connStr = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, password, dbname,
		)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err = db.PingContext(ctx); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return db, nil
}

// GetUserProgress returns the stored progress for userID. A user with no row
// is not an error: found is false and the progress carries defaults, so a
// fresh user looks the same as one who has never scored. Legacy role keys
// found in an existing row are migrated and persisted on the spot.
func (d *Database) GetUserProgress(ctx context.Context, userID string) (UserProgress, bool, error) {
	tracer := otel.Tracer("postgres/GetUserProgress")
	ctx, span := tracer.Start(ctx, "GetUserProgress")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID))

	if userID == "" {
		return UserProgress{}, false, fmt.Errorf("%w: empty user_id", ErrValidation)
	}

	row, err := d.Queries.GetUser(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultProgress(userID), false, nil
	}
	if err != nil {
		d.logger.Logger(ctx).Error("[Postgres] Could not read user progress",
			zap.Error(err), zap.String("user_id", userID))
		span.RecordError(err)
		return UserProgress{}, false, fmt.Errorf("could not read user progress: %w", err)
	}

	progress, err := progressFromRow(row)
	if err != nil {
		span.RecordError(err)
		return UserProgress{}, false, fmt.Errorf("could not decode user progress: %w", err)
	}

	if migrated, changed := MigrateLegacyRoles(progress); changed {
		span.AddEvent("Legacy role keys migrated")
		d.logger.Logger(ctx).Info("[Postgres] Migrated legacy role keys",
			zap.String("user_id", userID))
		stored, err := d.UpsertUserProgress(ctx, migrated)
		if err != nil {
			return UserProgress{}, false, err
		}
		return stored, true, nil
	}

	return progress, true, nil
}

// UpsertUserProgress validates and writes the four mutable fields of the
// user's row, creating it when absent. The write is atomic per row.
func (d *Database) UpsertUserProgress(ctx context.Context, progress UserProgress) (UserProgress, error) {
	tracer := otel.Tracer("postgres/UpsertUserProgress")
	ctx, span := tracer.Start(ctx, "UpsertUserProgress")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", progress.UserID),
		attribute.Float64("user.total_score", progress.TotalScore),
	)

	if err := progress.Validate(); err != nil {
		span.RecordError(err)
		return UserProgress{}, err
	}

	completedRoles, err := json.Marshal(progress.CompletedRoles)
	if err != nil {
		return UserProgress{}, fmt.Errorf("could not encode completed_roles: %w", err)
	}
	bestScores, err := json.Marshal(progress.BestScores)
	if err != nil {
		return UserProgress{}, fmt.Errorf("could not encode best_scores: %w", err)
	}

	row, err := d.Queries.UpsertUser(ctx, UpsertUserParams{
		UserID:            progress.UserID,
		CompletedRoles:    completedRoles,
		CurrentLevelIndex: int32(progress.CurrentLevelIndex),
		TotalScore:        roundScore(progress.TotalScore),
		BestScores:        bestScores,
	})
	if err != nil {
		d.logger.Logger(ctx).Error("[Postgres] Could not upsert user progress",
			zap.Error(err), zap.String("user_id", progress.UserID))
		span.RecordError(err)
		return UserProgress{}, fmt.Errorf("could not upsert user progress: %w", err)
	}

	return progressFromRow(row)
}

// RecordRoleCompletion applies a won dialog to the user's progress and
// persists the result: role appended once, best score kept, total recomputed,
// level index advanced when the role was new.
func (d *Database) RecordRoleCompletion(ctx context.Context, userID string, roleKey string, score float64) (UserProgress, error) {
	tracer := otel.Tracer("postgres/RecordRoleCompletion")
	ctx, span := tracer.Start(ctx, "RecordRoleCompletion")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("role.key", roleKey),
		attribute.Float64("score", score),
	)

	progress, _, err := d.GetUserProgress(ctx, userID)
	if err != nil {
		return UserProgress{}, err
	}

	updated := ApplyCompletion(progress, roleKey, score)
	return d.UpsertUserProgress(ctx, updated)
}

// GetLeaderboard returns up to limit users with a positive total score,
// best score first. Ties break by user_id ascending.
func (d *Database) GetLeaderboard(ctx context.Context, limit int) ([]UserProgress, error) {
	tracer := otel.Tracer("postgres/GetLeaderboard")
	ctx, span := tracer.Start(ctx, "GetLeaderboard")
	defer span.End()

	span.SetAttributes(attribute.Int("limit", limit))

	rows, err := d.Queries.ListTopUsers(ctx, int32(limit))
	if err != nil {
		d.logger.Logger(ctx).Error("[Postgres] Could not read leaderboard", zap.Error(err))
		span.RecordError(err)
		return nil, fmt.Errorf("could not read leaderboard: %w", err)
	}

	leaderboard := make([]UserProgress, 0, len(rows))
	for _, row := range rows {
		progress, err := progressFromRow(row)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("could not decode leaderboard row: %w", err)
		}
		leaderboard = append(leaderboard, progress)
	}
	return leaderboard, nil
}

func progressFromRow(row User) (UserProgress, error) {
	progress := DefaultProgress(row.UserID)
	progress.CurrentLevelIndex = int(row.CurrentLevelIndex)
	progress.TotalScore = row.TotalScore
	progress.CreatedAt = row.CreatedAt
	progress.UpdatedAt = row.UpdatedAt

	if len(row.CompletedRoles) > 0 {
		if err := json.Unmarshal(row.CompletedRoles, &progress.CompletedRoles); err != nil {
			return UserProgress{}, fmt.Errorf("completed_roles: %w", err)
		}
	}
	if len(row.BestScores) > 0 {
		if err := json.Unmarshal(row.BestScores, &progress.BestScores); err != nil {
			return UserProgress{}, fmt.Errorf("best_scores: %w", err)
		}
	}
	return progress, nil
}
