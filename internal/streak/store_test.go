package streak

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStreak = errors.New("streak error")

func TestStoreLoad(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	last := time.Date(2025, 7, 9, 0, 0, 0, 0, time.UTC)
	week := "2025-W28"
	mock.ExpectQuery(`SELECT current_days, longest_days, last_workout_day, weekly_bonus_week`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"current_days", "longest_days", "last_workout_day", "weekly_bonus_week"}).
			AddRow(3, 9, &last, &week))

	state, err := NewStore(mock).Load(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, state.CurrentStreakDays)
	assert.Equal(t, 9, state.LongestStreakDays)
	require.NotNil(t, state.LastWorkoutDay)
	assert.Equal(t, last, *state.LastWorkoutDay)
	assert.Equal(t, week, state.WeeklyBonusClaimedWeek)
}

func TestStoreLoadMissingIsZero(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT current_days`).
		WithArgs("user-new").
		WillReturnError(pgx.ErrNoRows)

	state, err := NewStore(mock).Load(context.Background(), "user-new")
	require.NoError(t, err)
	assert.Equal(t, State{}, state)
}

func TestStoreLoadError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT current_days`).
		WithArgs("user-1").
		WillReturnError(errStreak)

	_, err = NewStore(mock).Load(context.Background(), "user-1")
	assert.ErrorIs(t, err, errStreak)
}

func TestStoreSave(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	last := time.Date(2025, 7, 9, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO streak_states`).
		WithArgs("user-1", 4, 4, &last, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewStore(mock).Save(context.Background(), "user-1", State{
		CurrentStreakDays: 4,
		LongestStreakDays: 4,
		LastWorkoutDay:    &last,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
