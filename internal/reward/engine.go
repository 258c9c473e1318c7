package reward

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"backend-runstr/internal/logging"
	"backend-runstr/internal/streak"
	"backend-runstr/internal/workout"
)

// StreakStore is the persistence the engine needs; *streak.Store satisfies it.
type StreakStore interface {
	Load(ctx context.Context, userID string) (streak.State, error)
	Save(ctx context.Context, userID string, state streak.State) error
}

type Result struct {
	Breakdown          Breakdown    `json:"breakdown"`
	Streak             streak.State `json:"streak"`
	WeeklyBonusClaimed bool         `json:"weekly_bonus_claimed"`
}

// lockStripes bounds the number of user locks. Users sharing a stripe only
// queue behind each other.
const lockStripes = 64

// Engine combines the streak update and reward computation for one
// completion. Calls for the same user are serialised so each sees the state
// left by the previous one.
type Engine struct {
	calc   *Calculator
	store  StreakStore
	logger *slog.Logger

	locks [lockStripes]sync.Mutex
}

func NewEngine(calc *Calculator, store StreakStore, logger *slog.Logger) *Engine {
	return &Engine{
		calc:   calc,
		store:  store,
		logger: logging.OrDiscard(logger),
	}
}

// Finalize records the completion day on the user's streak, claims the weekly
// bonus when due, prices the workout and persists the new streak. Nothing is
// saved if any step fails.
func (e *Engine) Finalize(ctx context.Context, userID string, w workout.Workout, completionDay time.Time) (Result, error) {
	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	state, err := e.store.Load(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("load streak: %w", err)
	}

	tracker := streak.NewTracker(state)
	if _, err := tracker.RecordCompletion(completionDay); err != nil {
		return Result{}, err
	}
	weekly := tracker.ClaimWeeklyBonus()
	updated := tracker.State()

	breakdown := e.calc.Compute(w, updated, weekly)

	if err := e.store.Save(ctx, userID, updated); err != nil {
		return Result{}, fmt.Errorf("save streak: %w", err)
	}

	e.logger.Info("reward finalized",
		"user_id", userID,
		"workout_id", w.ID,
		"total_sats", breakdown.Total,
		"streak_days", updated.CurrentStreakDays,
		"weekly_bonus", weekly)

	return Result{Breakdown: breakdown, Streak: updated, WeeklyBonusClaimed: weekly}, nil
}

func (e *Engine) Streak(ctx context.Context, userID string) (streak.State, error) {
	return e.store.Load(ctx, userID)
}

func (e *Engine) userLock(userID string) *sync.Mutex {
	return &e.locks[stripe(userID)]
}

func stripe(userID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return h.Sum32() % lockStripes
}
