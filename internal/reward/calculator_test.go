package reward

import (
	"math"
	"testing"

	"backend-runstr/internal/config"
	"backend-runstr/internal/shared/geo"
	"backend-runstr/internal/streak"
	"backend-runstr/internal/workout"

	"github.com/stretchr/testify/assert"
)

func testConfig() config.Reward {
	return config.Reward{
		DistanceRatePerKm:     50,
		TimeRatePerMinute:     5,
		Minimum:               21,
		PaceThresholdMinPerKm: 6,
		StreakBonusPerDay:     10,
		StreakBonusMax:        100,
		WeeklyBonus:           500,
	}
}

func run(meters, seconds float64) workout.Workout {
	return workout.Workout{
		ActivityKind:        workout.ActivityRunning,
		DistanceMeters:      meters,
		DurationSeconds:     seconds,
		AveragePaceMinPerKm: geo.PaceMinPerKm(seconds, meters),
	}
}

func TestComputeWorkedExample(t *testing.T) {
	b := NewCalculator(testConfig()).Compute(run(6000, 1800), streak.State{}, false)

	assert.Equal(t, int64(450), b.BaseReward)
	assert.Equal(t, int64(112), b.DistanceBonus)
	assert.Equal(t, int64(135), b.PaceBonus)
	assert.Zero(t, b.StreakBonus)
	assert.Zero(t, b.WeeklyBonus)
	assert.Equal(t, int64(697), b.Total)
	assert.InDelta(t, 1.55, b.Multiplier, 1e-9)
}

func TestDistanceTiers(t *testing.T) {
	calc := NewCalculator(testConfig())
	// A fixed, slow duration keeps the pace bonus out of the picture.
	const seconds = 90 * 60

	below := calc.Compute(run(4900, seconds), streak.State{}, false)
	assert.Zero(t, below.DistanceBonus)

	mid := calc.Compute(run(5100, seconds), streak.State{}, false)
	assert.Equal(t, int64(math.Floor(float64(mid.BaseReward)*0.25)), mid.DistanceBonus)
	assert.Positive(t, mid.DistanceBonus)

	belowLong := calc.Compute(run(9900, seconds), streak.State{}, false)
	assert.Equal(t, int64(math.Floor(float64(belowLong.BaseReward)*0.25)), belowLong.DistanceBonus)

	long := calc.Compute(run(10100, seconds), streak.State{}, false)
	assert.Equal(t, int64(math.Floor(float64(long.BaseReward)*0.5)), long.DistanceBonus)
	assert.Zero(t, long.PaceBonus)
	assert.InDelta(t, 1.5, long.Multiplier, 1e-9)
}

func TestPaceBonusOnlyWhenFaster(t *testing.T) {
	calc := NewCalculator(testConfig())

	fast := calc.Compute(run(3000, 15*60), streak.State{}, false)
	assert.Equal(t, int64(math.Floor(float64(fast.BaseReward)*0.3)), fast.PaceBonus)

	atThreshold := calc.Compute(run(3000, 18*60), streak.State{}, false)
	assert.Zero(t, atThreshold.PaceBonus)

	noPace := calc.Compute(workout.Workout{DurationSeconds: 600}, streak.State{}, false)
	assert.Zero(t, noPace.PaceBonus)
}

func TestMinimumRewardFloor(t *testing.T) {
	b := NewCalculator(testConfig()).Compute(run(10, 30), streak.State{}, false)
	assert.Equal(t, int64(21), b.BaseReward)
	assert.Equal(t, int64(21), b.Total)
}

func TestStreakBonusGrowsAndCaps(t *testing.T) {
	calc := NewCalculator(testConfig())
	w := run(2000, 20*60)

	var prev int64 = -1
	for days := 0; days <= 15; days++ {
		b := calc.Compute(w, streak.State{CurrentStreakDays: days}, false)
		assert.GreaterOrEqual(t, b.StreakBonus, prev, "days=%d", days)
		assert.LessOrEqual(t, b.StreakBonus, int64(100), "days=%d", days)
		prev = b.StreakBonus
	}
	assert.Equal(t, int64(30), calc.Compute(w, streak.State{CurrentStreakDays: 3}, false).StreakBonus)
	assert.Equal(t, int64(100), calc.Compute(w, streak.State{CurrentStreakDays: 30}, false).StreakBonus)
}

func TestWeeklyBonus(t *testing.T) {
	calc := NewCalculator(testConfig())
	w := run(2000, 20*60)

	with := calc.Compute(w, streak.State{CurrentStreakDays: 7}, true)
	without := calc.Compute(w, streak.State{CurrentStreakDays: 7}, false)
	assert.Equal(t, int64(500), with.WeeklyBonus)
	assert.Zero(t, without.WeeklyBonus)
	assert.Equal(t, without.Total+500, with.Total)
}

func TestTotalIsSumOfParts(t *testing.T) {
	calc := NewCalculator(testConfig())
	for _, meters := range []float64{0, 1200, 5000, 7300, 12000, 42195} {
		for _, minutes := range []float64{1, 25, 61, 240} {
			b := calc.Compute(run(meters, minutes*60), streak.State{CurrentStreakDays: 4}, meters > 10000)
			assert.Equal(t, b.BaseReward+b.DistanceBonus+b.PaceBonus+b.StreakBonus+b.WeeklyBonus, b.Total)
			assert.GreaterOrEqual(t, b.DistanceBonus, int64(0))
			assert.GreaterOrEqual(t, b.PaceBonus, int64(0))
		}
	}
}

func TestInvalidInputsClampToZero(t *testing.T) {
	calc := NewCalculator(testConfig())
	w := workout.Workout{
		DistanceMeters:      -5000,
		DurationSeconds:     math.NaN(),
		AveragePaceMinPerKm: math.Inf(-1),
	}
	b := calc.Compute(w, streak.State{CurrentStreakDays: -3}, false)

	assert.Equal(t, int64(21), b.BaseReward)
	assert.Zero(t, b.DistanceBonus)
	assert.Zero(t, b.PaceBonus)
	assert.Zero(t, b.StreakBonus)
	assert.Equal(t, int64(21), b.Total)
}

func TestNegativeConfigClamps(t *testing.T) {
	calc := NewCalculator(config.Reward{
		DistanceRatePerKm: -50,
		TimeRatePerMinute: -5,
		Minimum:           -10,
		StreakBonusPerDay: -1,
		WeeklyBonus:       -500,
	})
	b := calc.Compute(run(6000, 1800), streak.State{CurrentStreakDays: 3}, true)
	assert.Zero(t, b.BaseReward)
	assert.Zero(t, b.WeeklyBonus)
	assert.Zero(t, b.Total)
}
