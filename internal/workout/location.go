package workout

import (
	"sync"
	"time"

	"backend-runstr/internal/shared/geo"
)

// Fix is one GPS sample from the device.
type Fix struct {
	Lat               float64   `json:"lat"`
	Lng               float64   `json:"lng"`
	SpeedMetersPerSec float64   `json:"speed_mps"`
	RecordedAt        time.Time `json:"recorded_at"`
}

// LocationTracker turns raw fixes into distance deltas for a Controller.
// A baseline fix only measures distance within the stretch of activity it was
// taken in, so the first fix after a resume never produces a jump covering the
// paused stretch, whether or not fixes arrived during the pause.
type LocationTracker struct {
	mu          sync.Mutex
	controller  *Controller
	last        *Fix
	lastSegment uint64
}

func NewLocationTracker(c *Controller) *LocationTracker {
	return &LocationTracker{controller: c}
}

// RecordFix reports whether the fix advanced the session.
func (t *LocationTracker) RecordFix(f Fix) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	segment, active := t.controller.activeSegment()
	if !active {
		t.last = nil
		return false
	}
	if t.last != nil && t.lastSegment != segment {
		t.last = nil
	}
	t.lastSegment = segment
	if f.RecordedAt.IsZero() {
		f.RecordedAt = t.controller.clock.Now()
	}

	if t.last == nil {
		t.last = &f
		return t.controller.RecordMetricUpdate(MetricUpdate{
			SpeedMetersPerSec: nonNegative(f.SpeedMetersPerSec),
			PaceMinPerKm:      geo.SpeedToPace(f.SpeedMetersPerSec),
		})
	}
	if f.RecordedAt.Before(t.last.RecordedAt) {
		return false
	}

	meters := geo.HaversineKm(t.last.Lat, t.last.Lng, f.Lat, f.Lng) * 1000
	speed := f.SpeedMetersPerSec
	if speed <= 0 {
		if elapsed := f.RecordedAt.Sub(t.last.RecordedAt).Seconds(); elapsed > 0 {
			speed = meters / elapsed
		} else {
			speed = 0
		}
	}
	t.last = &f
	return t.controller.RecordMetricUpdate(MetricUpdate{
		DistanceDeltaMeters: meters,
		SpeedMetersPerSec:   speed,
		PaceMinPerKm:        geo.SpeedToPace(speed),
	})
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
