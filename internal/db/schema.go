package db

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS athletes (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		display_name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		npub TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS workouts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		activity_kind TEXT NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		distance_m DOUBLE PRECISION NOT NULL,
		duration_sec DOUBLE PRECISION NOT NULL,
		avg_pace_min_per_km DOUBLE PRECISION NOT NULL,
		calories DOUBLE PRECISION,
		steps BIGINT,
		avg_heart_rate_bpm DOUBLE PRECISION,
		splits JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS workouts_user_end_idx ON workouts (user_id, end_time DESC)`,
	`CREATE TABLE IF NOT EXISTS streak_states (
		user_id TEXT PRIMARY KEY,
		current_days INTEGER NOT NULL DEFAULT 0,
		longest_days INTEGER NOT NULL DEFAULT 0,
		last_workout_day DATE,
		weekly_bonus_week TEXT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS reward_payouts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		workout_id TEXT NOT NULL,
		amount_sats BIGINT NOT NULL,
		memo TEXT,
		status TEXT NOT NULL,
		last_error TEXT,
		attempts INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS workout_posts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		workout_id TEXT NOT NULL UNIQUE,
		content TEXT NOT NULL,
		activity_kind TEXT NOT NULL,
		distance_m DOUBLE PRECISION NOT NULL,
		duration_sec DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS user_follows (
		follower_id TEXT NOT NULL,
		following_id TEXT NOT NULL,
		PRIMARY KEY (follower_id, following_id)
	)`,
}

// EnsureSchema creates any missing tables. Statements are idempotent.
func EnsureSchema(ctx context.Context, q Querier) error {
	for i, stmt := range schema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
