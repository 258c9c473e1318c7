package social

import "time"

// Post is a feed entry announcing a finished workout.
type Post struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	WorkoutID       string    `json:"workout_id"`
	Content         string    `json:"content"`
	ActivityKind    string    `json:"activity_kind"`
	DistanceMeters  float64   `json:"distance_m"`
	DurationSeconds float64   `json:"duration_sec"`
	CreatedAt       time.Time `json:"created_at"`
}

type Follow struct {
	FollowerID  string `json:"follower_id"`
	FollowingID string `json:"following_id"`
}
