package workout

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"backend-runstr/internal/logging"
	"backend-runstr/internal/shared/geo"
)

// Controller drives one session through idle → active → {paused ⇄ active} → ended.
// Feed callbacks and user actions may arrive from different goroutines; every
// mutation goes through mu.
type Controller struct {
	mu     sync.Mutex
	clock  Clock
	logger *slog.Logger

	state       SessionState
	pausedTotal time.Duration
	endedAt     time.Time
	final       *Workout
	rejected    int64

	// segment counts pauses, identifying the current stretch of activity.
	segment uint64

	heartRateSum   float64
	heartRateCount int
	caloriesSeen   bool

	splits           []Split
	lastSplitActive  time.Duration
	lastMetricActive time.Duration
}

func NewController(sessionID string, clock Clock, logger *slog.Logger) *Controller {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Controller{
		clock:  clock,
		logger: logging.OrDiscard(logger).With("session_id", sessionID),
		state: SessionState{
			SessionID: sessionID,
			Status:    StatusIdle,
		},
	}
}

func (c *Controller) Start(kind ActivityKind, startedBy string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Status != StatusIdle {
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidState, c.state.Status)
	}
	c.state.ActivityKind = kind
	c.state.UserID = startedBy
	c.state.StartedAt = c.clock.Now()
	c.state.Status = StatusActive
	c.logger.Info("session started", "user_id", startedBy, "activity_kind", kind)
	return nil
}

// Pause is a no-op on an already paused session.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state.Status {
	case StatusPaused:
		return nil
	case StatusActive:
	default:
		return fmt.Errorf("%w: cannot pause from %s", ErrInvalidState, c.state.Status)
	}
	now := c.clock.Now()
	c.state.PausedAt = &now
	c.state.Status = StatusPaused
	c.segment++
	c.logger.Debug("session paused")
	return nil
}

func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Status != StatusPaused {
		return fmt.Errorf("%w: cannot resume from %s", ErrInvalidState, c.state.Status)
	}
	c.closePauseLocked(c.clock.Now())
	c.state.Status = StatusActive
	c.logger.Debug("session resumed", "paused_total_sec", c.pausedTotal.Seconds())
	return nil
}

// RecordMetricUpdate applies a feed delivery and reports whether it was kept.
// Updates outside the active state are dropped, not queued. Negative or
// non-finite values are counted and logged, never returned as errors.
func (c *Controller) RecordMetricUpdate(u MetricUpdate) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Status != StatusActive {
		return false
	}
	if !validMetric(u) {
		c.rejected++
		c.logger.Warn("metric update rejected",
			"distance_delta_m", u.DistanceDeltaMeters,
			"step_delta", u.StepDelta,
			"rejected_total", c.rejected)
		return false
	}

	now := c.clock.Now()
	prev := c.state.DistanceMeters
	c.state.DistanceMeters += u.DistanceDeltaMeters
	c.state.StepCount += u.StepDelta
	c.state.CurrentPaceMinPerKm = u.PaceMinPerKm
	c.state.CurrentSpeedMetersPerSec = u.SpeedMetersPerSec

	active := c.activeLocked(now)
	c.recordSplitsLocked(prev, u.DistanceDeltaMeters, active)
	c.lastMetricActive = active
	return true
}

// RecordHealthSample folds heart-rate and calorie readings into the session.
// The same active-only rule as metric updates applies.
func (c *Controller) RecordHealthSample(h HealthSample) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Status != StatusActive {
		return false
	}
	if !finiteNonNegative(h.HeartRateBPM) || !finiteNonNegative(h.CaloriesDelta) {
		c.rejected++
		c.logger.Warn("health sample rejected",
			"heart_rate_bpm", h.HeartRateBPM,
			"calories", h.CaloriesDelta,
			"rejected_total", c.rejected)
		return false
	}
	if h.HeartRateBPM > 0 {
		c.heartRateSum += h.HeartRateBPM
		c.heartRateCount++
		c.state.HeartRateBPM = h.HeartRateBPM
	}
	if h.CaloriesDelta > 0 {
		c.caloriesSeen = true
		c.state.Calories += h.CaloriesDelta
	}
	return true
}

// End freezes the session and returns its Workout. Later calls return the
// same value without recomputing.
func (c *Controller) End() (Workout, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.final != nil {
		return *c.final, nil
	}
	if c.state.Status == StatusIdle {
		return Workout{}, fmt.Errorf("%w: cannot end a session that never started", ErrInvalidState)
	}

	now := c.clock.Now()
	if c.state.Status == StatusPaused {
		c.closePauseLocked(now)
	}
	c.endedAt = now
	c.state.Status = StatusEnded

	active := c.activeLocked(now)
	w := Workout{
		ID:                  c.state.SessionID,
		UserID:              c.state.UserID,
		ActivityKind:        c.state.ActivityKind,
		StartTime:           c.state.StartedAt,
		EndTime:             now,
		DistanceMeters:      c.state.DistanceMeters,
		DurationSeconds:     active.Seconds(),
		AveragePaceMinPerKm: geo.PaceMinPerKm(active.Seconds(), c.state.DistanceMeters),
	}
	if c.caloriesSeen {
		calories := c.state.Calories
		w.Calories = &calories
	}
	if c.state.StepCount > 0 {
		steps := c.state.StepCount
		w.Steps = &steps
	}
	if c.heartRateCount > 0 {
		avg := c.heartRateSum / float64(c.heartRateCount)
		w.AverageHeartRateBPM = &avg
	}
	if len(c.splits) > 0 {
		w.Splits = append([]Split(nil), c.splits...)
	}

	c.final = &w
	c.logger.Info("session ended",
		"distance_m", w.DistanceMeters,
		"duration_sec", w.DurationSeconds,
		"rejected_updates", c.rejected)
	return w, nil
}

// Snapshot returns a copy of the session state with the active duration
// evaluated at the current clock reading.
func (c *Controller) Snapshot() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state
	if c.state.PausedAt != nil {
		pausedAt := *c.state.PausedAt
		s.PausedAt = &pausedAt
	}
	s.AccumulatedActiveDuration = c.activeLocked(c.clock.Now())
	s.ActiveSeconds = s.AccumulatedActiveDuration.Seconds()
	return s
}

// activeSegment reports whether the session is active and which stretch of
// activity it is in. The segment changes on every pause.
func (c *Controller) activeSegment() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.segment, c.state.Status == StatusActive
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Status
}

func (c *Controller) SessionID() string {
	return c.state.SessionID
}

// RejectedUpdates counts feed deliveries discarded as invalid.
func (c *Controller) RejectedUpdates() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rejected
}

func (c *Controller) closePauseLocked(now time.Time) {
	if c.state.PausedAt == nil {
		return
	}
	if gap := now.Sub(*c.state.PausedAt); gap > 0 {
		c.pausedTotal += gap
	}
	c.state.PausedAt = nil
}

// activeLocked is wall-clock time since start minus all paused time, including
// an open pause.
func (c *Controller) activeLocked(now time.Time) time.Duration {
	if c.state.Status == StatusIdle {
		return 0
	}
	if c.state.Status == StatusEnded {
		now = c.endedAt
	}
	active := now.Sub(c.state.StartedAt) - c.pausedTotal
	if c.state.PausedAt != nil {
		active -= now.Sub(*c.state.PausedAt)
	}
	if active < 0 {
		return 0
	}
	return active
}

// recordSplitsLocked appends a split for every whole kilometre crossed by the
// latest delta, interpolating the crossing time within the update interval.
func (c *Controller) recordSplitsLocked(prevMeters, deltaMeters float64, active time.Duration) {
	if deltaMeters <= 0 {
		return
	}
	interval := float64(active - c.lastMetricActive)
	for km := len(c.splits) + 1; float64(km)*1000 <= c.state.DistanceMeters; km++ {
		fraction := (float64(km)*1000 - prevMeters) / deltaMeters
		at := c.lastMetricActive + time.Duration(interval*fraction)
		c.splits = append(c.splits, Split{
			Kilometer:       km,
			DurationSeconds: (at - c.lastSplitActive).Seconds(),
		})
		c.lastSplitActive = at
	}
}

func validMetric(u MetricUpdate) bool {
	return finiteNonNegative(u.DistanceDeltaMeters) &&
		u.StepDelta >= 0 &&
		finiteNonNegative(u.PaceMinPerKm) &&
		finiteNonNegative(u.SpeedMetersPerSec)
}

func finiteNonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
