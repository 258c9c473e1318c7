package social

import (
	"context"
	"errors"
	"fmt"
	"math"

	"backend-runstr/internal/db"
	"backend-runstr/internal/workout"

	"github.com/google/uuid"
)

var ErrSelfFollow = errors.New("cannot follow yourself")

type Service struct {
	db db.Querier
}

func NewService(q db.Querier) *Service {
	return &Service{db: q}
}

// PublishWorkout posts a summary of w to the user's feed. Publishing the same
// workout again returns the existing post.
func (s *Service) PublishWorkout(ctx context.Context, userID string, w workout.Workout) (Post, error) {
	post := Post{
		ID:              uuid.NewString(),
		UserID:          userID,
		WorkoutID:       w.ID,
		Content:         Summary(w),
		ActivityKind:    string(w.ActivityKind),
		DistanceMeters:  w.DistanceMeters,
		DurationSeconds: w.DurationSeconds,
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO workout_posts (id, user_id, workout_id, content, activity_kind, distance_m, duration_sec)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (workout_id) DO UPDATE SET content=workout_posts.content
		RETURNING id, created_at
	`, post.ID, post.UserID, post.WorkoutID, post.Content, post.ActivityKind, post.DistanceMeters, post.DurationSeconds)
	if err := row.Scan(&post.ID, &post.CreatedAt); err != nil {
		return Post{}, err
	}
	return post, nil
}

func (s *Service) Follow(ctx context.Context, followerID, followingID string) error {
	if followerID == followingID {
		return ErrSelfFollow
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_follows (follower_id, following_id)
		VALUES ($1,$2)
		ON CONFLICT DO NOTHING
	`, followerID, followingID)
	return err
}

func (s *Service) Unfollow(ctx context.Context, followerID, followingID string) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM user_follows WHERE follower_id=$1 AND following_id=$2
	`, followerID, followingID)
	return err
}

// Feed returns posts by the user and the athletes they follow, newest first.
func (s *Service) Feed(ctx context.Context, userID string, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, workout_id, content, activity_kind, distance_m, duration_sec, created_at
		FROM workout_posts
		WHERE user_id=$1
		   OR user_id IN (SELECT following_id FROM user_follows WHERE follower_id=$1)
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []Post{}
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.UserID, &p.WorkoutID, &p.Content, &p.ActivityKind,
			&p.DistanceMeters, &p.DurationSeconds, &p.CreatedAt); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// Summary renders w as a one-line feed message, e.g.
// "Completed a 6.00 km run in 30:00 (5:00 /km)".
func Summary(w workout.Workout) string {
	noun := "workout"
	switch w.ActivityKind {
	case workout.ActivityRunning:
		noun = "run"
	case workout.ActivityWalking:
		noun = "walk"
	case workout.ActivityCycling:
		noun = "ride"
	}
	msg := fmt.Sprintf("Completed a %.2f km %s in %s", w.DistanceKm(), noun, clock(w.DurationSeconds))
	if w.AveragePaceMinPerKm > 0 {
		msg += fmt.Sprintf(" (%s /km)", clock(w.AveragePaceMinPerKm*60))
	}
	return msg
}

func clock(seconds float64) string {
	total := int64(math.Round(seconds))
	if total < 0 {
		total = 0
	}
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
