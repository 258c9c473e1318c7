package workout

import (
	"fmt"
	"time"
)

type ActivityKind string

const (
	ActivityRunning ActivityKind = "running"
	ActivityWalking ActivityKind = "walking"
	ActivityCycling ActivityKind = "cycling"
	ActivityOther   ActivityKind = "other"
)

// ParseActivityKind maps client input onto a known kind. Empty input means running.
func ParseActivityKind(s string) (ActivityKind, error) {
	switch ActivityKind(s) {
	case "":
		return ActivityRunning, nil
	case ActivityRunning, ActivityWalking, ActivityCycling, ActivityOther:
		return ActivityKind(s), nil
	}
	return "", fmt.Errorf("unknown activity kind %q", s)
}

type Status string

const (
	StatusIdle   Status = "idle"
	StatusActive Status = "active"
	StatusPaused Status = "paused"
	StatusEnded  Status = "ended"
)

// SessionState is a point-in-time view of a session owned by a Controller.
type SessionState struct {
	SessionID                 string        `json:"session_id"`
	UserID                    string        `json:"user_id"`
	ActivityKind              ActivityKind  `json:"activity_kind"`
	Status                    Status        `json:"status"`
	StartedAt                 time.Time     `json:"started_at"`
	PausedAt                  *time.Time    `json:"paused_at,omitempty"`
	AccumulatedActiveDuration time.Duration `json:"-"`
	ActiveSeconds             float64       `json:"active_sec"`
	DistanceMeters            float64       `json:"distance_m"`
	StepCount                 int64         `json:"step_count"`
	CurrentPaceMinPerKm       float64       `json:"current_pace_min_per_km"`
	CurrentSpeedMetersPerSec  float64       `json:"current_speed_mps"`
	HeartRateBPM              float64       `json:"heart_rate_bpm,omitempty"`
	Calories                  float64       `json:"calories,omitempty"`
}

// MetricUpdate is one delivery from the location or pedometer feed.
type MetricUpdate struct {
	DistanceDeltaMeters float64 `json:"distance_delta_m"`
	StepDelta           int64   `json:"step_delta"`
	PaceMinPerKm        float64 `json:"pace_min_per_km"`
	SpeedMetersPerSec   float64 `json:"speed_mps"`
}

// HealthSample is one delivery from the health feed. Zero fields are ignored.
type HealthSample struct {
	HeartRateBPM  float64 `json:"heart_rate_bpm"`
	CaloriesDelta float64 `json:"calories"`
}

// Split is the active time taken to cover one whole kilometre.
type Split struct {
	Kilometer       int     `json:"km"`
	DurationSeconds float64 `json:"duration_sec"`
}

// Workout is the immutable record produced when a session ends.
type Workout struct {
	ID                  string       `json:"id"`
	UserID              string       `json:"user_id"`
	ActivityKind        ActivityKind `json:"activity_kind"`
	StartTime           time.Time    `json:"start_time"`
	EndTime             time.Time    `json:"end_time"`
	DistanceMeters      float64      `json:"distance_m"`
	DurationSeconds     float64      `json:"duration_sec"`
	AveragePaceMinPerKm float64      `json:"average_pace_min_per_km"`
	Calories            *float64     `json:"calories,omitempty"`
	Steps               *int64       `json:"steps,omitempty"`
	AverageHeartRateBPM *float64     `json:"average_heart_rate_bpm,omitempty"`
	Splits              []Split      `json:"splits,omitempty"`
}

func (w Workout) DistanceKm() float64 {
	return w.DistanceMeters / 1000
}

func (w Workout) DurationMinutes() float64 {
	return w.DurationSeconds / 60
}

// Clock supplies wall-clock time to controllers and trackers.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
