package workout

import (
	"context"
	"encoding/json"
	"fmt"

	"backend-runstr/internal/db"
)

// Store persists finished workouts. Rows are written once and never updated.
type Store struct {
	db db.Querier
}

func NewStore(q db.Querier) *Store {
	return &Store{db: q}
}

// Save inserts w. Saving the same workout twice is a no-op.
func (s *Store) Save(ctx context.Context, w Workout) error {
	splits, err := json.Marshal(w.Splits)
	if err != nil {
		return fmt.Errorf("encode splits: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO workouts (id, user_id, activity_kind, start_time, end_time, distance_m, duration_sec,
		                      avg_pace_min_per_km, calories, steps, avg_heart_rate_bpm, splits)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO NOTHING
	`, w.ID, w.UserID, string(w.ActivityKind), w.StartTime, w.EndTime, w.DistanceMeters, w.DurationSeconds,
		w.AveragePaceMinPerKm, w.Calories, w.Steps, w.AverageHeartRateBPM, splits)
	return err
}

// ListByUser returns the user's most recent workouts first.
func (s *Store) ListByUser(ctx context.Context, userID string, limit int) ([]Workout, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, activity_kind, start_time, end_time, distance_m, duration_sec,
		       avg_pace_min_per_km, calories, steps, avg_heart_rate_bpm, splits
		FROM workouts WHERE user_id=$1
		ORDER BY end_time DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workouts []Workout
	for rows.Next() {
		var w Workout
		var kind string
		var splits []byte
		if err := rows.Scan(&w.ID, &w.UserID, &kind, &w.StartTime, &w.EndTime, &w.DistanceMeters, &w.DurationSeconds,
			&w.AveragePaceMinPerKm, &w.Calories, &w.Steps, &w.AverageHeartRateBPM, &splits); err != nil {
			return nil, err
		}
		w.ActivityKind = ActivityKind(kind)
		if len(splits) > 0 {
			if err := json.Unmarshal(splits, &w.Splits); err != nil {
				return nil, fmt.Errorf("decode splits for %s: %w", w.ID, err)
			}
		}
		workouts = append(workouts, w)
	}
	return workouts, rows.Err()
}
