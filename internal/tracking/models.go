package tracking

import (
	"time"

	"backend-runstr/internal/workout"
)

type startRequest struct {
	ActivityKind string `json:"activity_kind"`
}

type locationRequest struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	SpeedMps   float64   `json:"speed_mps"`
	RecordedAt time.Time `json:"recorded_at"`
}

type endRequest struct {
	Timezone string `json:"timezone"`
}

// FeedResponse tells the client whether a feed delivery changed the session.
// Deliveries while paused or ended are ignored, not rejected.
type FeedResponse struct {
	Accepted bool                 `json:"accepted"`
	Session  workout.SessionState `json:"session"`
}
