package streak

import (
	"errors"
	"fmt"
	"time"
)

// WeeklyChallengeDays is the streak length that unlocks the weekly bonus.
const WeeklyChallengeDays = 7

var ErrInvalidInput = errors.New("invalid streak input")

// State is a user's streak as persisted between sessions.
type State struct {
	CurrentStreakDays      int        `json:"current_streak_days"`
	LongestStreakDays      int        `json:"longest_streak_days"`
	LastWorkoutDay         *time.Time `json:"last_workout_day,omitempty"`
	WeeklyBonusClaimedWeek string     `json:"weekly_bonus_claimed_week,omitempty"`
}

// Tracker applies completions to a State. It is not safe for concurrent use;
// reward.Engine serialises access per user.
type Tracker struct {
	state State
}

func NewTracker(s State) *Tracker {
	if s.LastWorkoutDay != nil {
		day := Normalize(*s.LastWorkoutDay)
		s.LastWorkoutDay = &day
	}
	return &Tracker{state: s}
}

// RecordCompletion folds a workout completed on day into the streak. day must
// already be the user's local calendar date; completions must not go backwards.
func (t *Tracker) RecordCompletion(day time.Time) (State, error) {
	day = Normalize(day)
	next := t.state

	if next.LastWorkoutDay == nil {
		next.CurrentStreakDays = 1
	} else {
		switch gap := DaysBetween(*next.LastWorkoutDay, day); {
		case gap < 0:
			return t.State(), fmt.Errorf("%w: completion day %s precedes last workout day %s",
				ErrInvalidInput, day.Format(time.DateOnly), next.LastWorkoutDay.Format(time.DateOnly))
		case gap == 0:
			if next.CurrentStreakDays == 0 {
				next.CurrentStreakDays = 1
			}
		case gap == 1:
			next.CurrentStreakDays++
		default:
			next.CurrentStreakDays = 1
		}
	}

	if next.CurrentStreakDays > next.LongestStreakDays {
		next.LongestStreakDays = next.CurrentStreakDays
	}
	next.LastWorkoutDay = &day
	t.state = next
	return t.State(), nil
}

// HasCompletedWeeklyChallenge reports whether the streak has reached
// WeeklyChallengeDays and the ISO week of the last workout is still unclaimed.
func (t *Tracker) HasCompletedWeeklyChallenge() bool {
	if t.state.LastWorkoutDay == nil || t.state.CurrentStreakDays < WeeklyChallengeDays {
		return false
	}
	return t.state.WeeklyBonusClaimedWeek != ISOWeekID(*t.state.LastWorkoutDay)
}

// ClaimWeeklyBonus marks the current week as credited. It returns false when
// the challenge is not (or no longer) claimable.
func (t *Tracker) ClaimWeeklyBonus() bool {
	if !t.HasCompletedWeeklyChallenge() {
		return false
	}
	t.state.WeeklyBonusClaimedWeek = ISOWeekID(*t.state.LastWorkoutDay)
	return true
}

func (t *Tracker) State() State {
	s := t.state
	if s.LastWorkoutDay != nil {
		day := *s.LastWorkoutDay
		s.LastWorkoutDay = &day
	}
	return s
}

// DayOf converts an instant to the calendar date it falls on in loc.
func DayOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Normalize(t.In(loc))
}

// Normalize keeps the calendar date of t and drops the rest. Dates are held as
// UTC midnights so day arithmetic never crosses a DST shift.
func Normalize(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Normalize(b).Sub(Normalize(a)).Hours() / 24)
}

// ISOWeekID formats the ISO 8601 week of day, e.g. "2025-W28".
func ISOWeekID(day time.Time) string {
	year, week := day.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}
