package reward

import (
	"math"

	"backend-runstr/internal/config"
	"backend-runstr/internal/streak"
	"backend-runstr/internal/workout"
)

// Bonus tiers applied on top of the base reward.
const (
	longDistanceKm     = 10.0
	longDistanceBonus  = 0.50
	midDistanceKm      = 5.0
	midDistanceBonus   = 0.25
	fastPaceBonusShare = 0.30
)

// Breakdown itemises a payout in sats. Total is always the sum of the parts.
type Breakdown struct {
	BaseReward    int64   `json:"base_reward"`
	DistanceBonus int64   `json:"distance_bonus"`
	PaceBonus     int64   `json:"pace_bonus"`
	StreakBonus   int64   `json:"streak_bonus"`
	WeeklyBonus   int64   `json:"weekly_bonus"`
	Total         int64   `json:"total"`
	Multiplier    float64 `json:"multiplier"`
}

type Calculator struct {
	cfg config.Reward
}

func NewCalculator(cfg config.Reward) *Calculator {
	return &Calculator{cfg: cfg}
}

// Compute prices a finished workout. It never fails: negative or non-finite
// inputs contribute nothing instead.
func (c *Calculator) Compute(w workout.Workout, s streak.State, weeklyChallengeMet bool) Breakdown {
	km := clamp(w.DistanceKm())
	minutes := clamp(w.DurationMinutes())

	distanceRaw := floorInt(km * clamp(c.cfg.DistanceRatePerKm))
	timeRaw := floorInt(minutes * clamp(c.cfg.TimeRatePerMinute))
	base := distanceRaw + timeRaw
	if minimum := nonNegative(c.cfg.Minimum); base < minimum {
		base = minimum
	}

	b := Breakdown{BaseReward: base, Multiplier: 1}

	switch {
	case km >= longDistanceKm:
		b.DistanceBonus = floorInt(float64(base) * longDistanceBonus)
		b.Multiplier += longDistanceBonus
	case km >= midDistanceKm:
		b.DistanceBonus = floorInt(float64(base) * midDistanceBonus)
		b.Multiplier += midDistanceBonus
	}

	if pace := clamp(w.AveragePaceMinPerKm); pace > 0 && pace < c.cfg.PaceThresholdMinPerKm {
		b.PaceBonus = floorInt(float64(base) * fastPaceBonusShare)
		b.Multiplier += fastPaceBonusShare
	}

	b.StreakBonus = c.streakBonus(s.CurrentStreakDays)
	if weeklyChallengeMet {
		b.WeeklyBonus = nonNegative(c.cfg.WeeklyBonus)
	}

	b.Total = b.BaseReward + b.DistanceBonus + b.PaceBonus + b.StreakBonus + b.WeeklyBonus
	return b
}

// streakBonus grows linearly with the streak up to the configured cap.
func (c *Calculator) streakBonus(days int) int64 {
	if days <= 0 {
		return 0
	}
	bonus := int64(days) * nonNegative(c.cfg.StreakBonusPerDay)
	if limit := nonNegative(c.cfg.StreakBonusMax); bonus > limit {
		bonus = limit
	}
	return bonus
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func floorInt(v float64) int64 {
	return int64(math.Floor(clamp(v)))
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
