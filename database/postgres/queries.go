package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

// User mirrors one row of the users table. JSONB columns stay raw here;
// decoding into domain types happens in the Database layer.
type User struct {
	UserID            string
	CompletedRoles    json.RawMessage
	CurrentLevelIndex int32
	TotalScore        float64
	BestScores        json.RawMessage
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
    user_id VARCHAR(255) PRIMARY KEY,
    completed_roles JSONB DEFAULT '[]'::jsonb,
    current_level_index INTEGER DEFAULT 0,
    total_score NUMERIC(10, 2) DEFAULT 0,
    best_scores JSONB DEFAULT '{}'::jsonb,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)
`

const createTotalScoreIndex = `
CREATE INDEX IF NOT EXISTS idx_users_total_score
ON users (total_score DESC)
`

// CreateTables brings the schema up. Safe to run on every start: both
// statements are IF NOT EXISTS and never touch existing data.
func (q *Queries) CreateTables(ctx context.Context) error {
	if _, err := q.db.ExecContext(ctx, createUsersTable); err != nil {
		return err
	}
	_, err := q.db.ExecContext(ctx, createTotalScoreIndex)
	return err
}

const getUser = `
SELECT user_id, completed_roles, current_level_index, total_score, best_scores, created_at, updated_at
FROM users
WHERE user_id = $1
`

func (q *Queries) GetUser(ctx context.Context, userID string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUser, userID)
	var u User
	err := row.Scan(
		&u.UserID,
		&u.CompletedRoles,
		&u.CurrentLevelIndex,
		&u.TotalScore,
		&u.BestScores,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

const upsertUser = `
INSERT INTO users (user_id, completed_roles, current_level_index, total_score, best_scores)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO UPDATE
SET completed_roles = EXCLUDED.completed_roles,
    current_level_index = EXCLUDED.current_level_index,
    total_score = EXCLUDED.total_score,
    best_scores = EXCLUDED.best_scores,
    updated_at = CURRENT_TIMESTAMP
RETURNING user_id, completed_roles, current_level_index, total_score, best_scores, created_at, updated_at
`

type UpsertUserParams struct {
	UserID            string
	CompletedRoles    json.RawMessage
	CurrentLevelIndex int32
	TotalScore        float64
	BestScores        json.RawMessage
}

// UpsertUser inserts the row or replaces the four mutable fields in place.
// created_at stays untouched on conflict; updated_at is refreshed explicitly
// since the column default only fires at insert.
func (q *Queries) UpsertUser(ctx context.Context, arg UpsertUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, upsertUser,
		arg.UserID,
		arg.CompletedRoles,
		arg.CurrentLevelIndex,
		arg.TotalScore,
		arg.BestScores,
	)
	var u User
	err := row.Scan(
		&u.UserID,
		&u.CompletedRoles,
		&u.CurrentLevelIndex,
		&u.TotalScore,
		&u.BestScores,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

const listTopUsers = `
SELECT user_id, completed_roles, current_level_index, total_score, best_scores, created_at, updated_at
FROM users
WHERE total_score > 0
ORDER BY total_score DESC, user_id ASC
LIMIT $1
`

// ListTopUsers returns up to limit rows ordered by total_score descending.
// Ties break on user_id ascending so rankings are deterministic.
func (q *Queries) ListTopUsers(ctx context.Context, limit int32) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, listTopUsers, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(
			&u.UserID,
			&u.CompletedRoles,
			&u.CurrentLevelIndex,
			&u.TotalScore,
			&u.BestScores,
			&u.CreatedAt,
			&u.UpdatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
