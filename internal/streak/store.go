package streak

import (
	"context"
	"errors"
	"time"

	"backend-runstr/internal/db"

	"github.com/jackc/pgx/v5"
)

type Store struct {
	db db.Querier
}

func NewStore(q db.Querier) *Store {
	return &Store{db: q}
}

// Load returns the user's streak, or a zero State if none is stored yet.
func (s *Store) Load(ctx context.Context, userID string) (State, error) {
	var state State
	var lastDay *time.Time
	var claimedWeek *string
	err := s.db.QueryRow(ctx, `
		SELECT current_days, longest_days, last_workout_day, weekly_bonus_week
		FROM streak_states WHERE user_id=$1
	`, userID).Scan(&state.CurrentStreakDays, &state.LongestStreakDays, &lastDay, &claimedWeek)
	if errors.Is(err, pgx.ErrNoRows) {
		return State{}, nil
	}
	if err != nil {
		return State{}, err
	}
	if lastDay != nil {
		day := Normalize(*lastDay)
		state.LastWorkoutDay = &day
	}
	if claimedWeek != nil {
		state.WeeklyBonusClaimedWeek = *claimedWeek
	}
	return state, nil
}

func (s *Store) Save(ctx context.Context, userID string, state State) error {
	var claimedWeek *string
	if state.WeeklyBonusClaimedWeek != "" {
		claimedWeek = &state.WeeklyBonusClaimedWeek
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO streak_states (user_id, current_days, longest_days, last_workout_day, weekly_bonus_week, updated_at)
		VALUES ($1,$2,$3,$4,$5, now())
		ON CONFLICT (user_id) DO UPDATE
		SET current_days=EXCLUDED.current_days,
		    longest_days=EXCLUDED.longest_days,
		    last_workout_day=EXCLUDED.last_workout_day,
		    weekly_bonus_week=EXCLUDED.weekly_bonus_week,
		    updated_at=now()
	`, userID, state.CurrentStreakDays, state.LongestStreakDays, state.LastWorkoutDay, claimedWeek)
	return err
}
