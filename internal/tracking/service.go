package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"backend-runstr/internal/completion"
	"backend-runstr/internal/logging"
	"backend-runstr/internal/streak"
	"backend-runstr/internal/stream"
	"backend-runstr/internal/workout"

	"golang.org/x/sync/singleflight"
)

var ErrBadInput = errors.New("invalid input")

type Completer interface {
	Run(ctx context.Context, userID string, w workout.Workout, completionDay time.Time) (completion.Result, error)
}

type HistoryStore interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]workout.Workout, error)
}

// Service exposes live sessions to the API and hands finished workouts to
// the completion pipeline exactly once per workout.
type Service struct {
	registry   *workout.Registry
	history    HistoryStore
	hub        *stream.Hub
	completer  Completer
	defaultLoc *time.Location
	logger     *slog.Logger

	inflight  singleflight.Group
	mu        sync.Mutex
	completed map[string]completion.Result
}

func NewService(registry *workout.Registry, history HistoryStore, hub *stream.Hub, completer Completer, defaultLoc *time.Location, logger *slog.Logger) *Service {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	return &Service{
		registry:   registry,
		history:    history,
		hub:        hub,
		completer:  completer,
		defaultLoc: defaultLoc,
		logger:     logging.OrDiscard(logger),
		completed:  map[string]completion.Result{},
	}
}

func (s *Service) Start(userID, activityKind string) (workout.SessionState, error) {
	kind, err := workout.ParseActivityKind(activityKind)
	if err != nil {
		return workout.SessionState{}, fmt.Errorf("%w: %v", ErrBadInput, err)
	}
	session, err := s.registry.Start(userID, kind)
	if err != nil {
		return workout.SessionState{}, err
	}
	s.logger.Info("session started", "user_id", userID, "session_id", session.SessionID(), "activity_kind", kind)
	return s.publish(session), nil
}

func (s *Service) Current(userID string) (workout.SessionState, error) {
	session, err := s.registry.Current(userID)
	if err != nil {
		return workout.SessionState{}, err
	}
	return session.Snapshot(), nil
}

func (s *Service) Pause(userID string) (workout.SessionState, error) {
	session, err := s.registry.Current(userID)
	if err != nil {
		return workout.SessionState{}, err
	}
	if err := session.Pause(); err != nil {
		return workout.SessionState{}, err
	}
	return s.publish(session), nil
}

func (s *Service) Resume(userID string) (workout.SessionState, error) {
	session, err := s.registry.Current(userID)
	if err != nil {
		return workout.SessionState{}, err
	}
	if err := session.Resume(); err != nil {
		return workout.SessionState{}, err
	}
	return s.publish(session), nil
}

func (s *Service) RecordMetrics(userID string, u workout.MetricUpdate) (FeedResponse, error) {
	return s.feed(userID, func(session *workout.Session) bool {
		return session.RecordMetricUpdate(u)
	})
}

func (s *Service) RecordLocation(userID string, f workout.Fix) (FeedResponse, error) {
	return s.feed(userID, func(session *workout.Session) bool {
		return session.Location.RecordFix(f)
	})
}

func (s *Service) RecordHealth(userID string, h workout.HealthSample) (FeedResponse, error) {
	return s.feed(userID, func(session *workout.Session) bool {
		return session.RecordHealthSample(h)
	})
}

// End finishes the user's session and runs the completion pipeline for it.
// Retried calls for an already completed workout return the first result.
// The completion day is the end time in timezone, or the default zone when
// timezone is empty.
func (s *Service) End(ctx context.Context, userID, timezone string) (completion.Result, error) {
	loc := s.defaultLoc
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return completion.Result{}, fmt.Errorf("%w: unknown timezone %q", ErrBadInput, timezone)
		}
		loc = l
	}

	session, err := s.registry.Current(userID)
	if err != nil {
		return completion.Result{}, err
	}
	w, err := session.End()
	if err != nil {
		return completion.Result{}, err
	}
	s.publish(session)

	v, err, _ := s.inflight.Do(w.ID, func() (any, error) {
		if res, ok := s.cached(userID, w.ID); ok {
			return res, nil
		}
		res, err := s.completer.Run(ctx, userID, w, streak.DayOf(w.EndTime, loc))
		if err != nil {
			s.logger.Error("workout completion failed", "user_id", userID, "workout_id", w.ID, "error", err)
			return res, err
		}
		s.mu.Lock()
		s.completed[userID] = res
		s.mu.Unlock()
		return res, nil
	})
	res, _ := v.(completion.Result)
	return res, err
}

func (s *Service) History(ctx context.Context, userID string, limit int) ([]workout.Workout, error) {
	workouts, err := s.history.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if workouts == nil {
		workouts = []workout.Workout{}
	}
	return workouts, nil
}

// Snapshot encodes the current state of a live session for stream viewers.
func (s *Service) Snapshot(sessionID string) ([]byte, bool) {
	session, ok := s.registry.BySessionID(sessionID)
	if !ok {
		return nil, false
	}
	payload, err := json.Marshal(session.Snapshot())
	if err != nil {
		return nil, false
	}
	return payload, true
}

func (s *Service) feed(userID string, apply func(*workout.Session) bool) (FeedResponse, error) {
	session, err := s.registry.Current(userID)
	if err != nil {
		return FeedResponse{}, err
	}
	if !apply(session) {
		return FeedResponse{Accepted: false, Session: session.Snapshot()}, nil
	}
	return FeedResponse{Accepted: true, Session: s.publish(session)}, nil
}

func (s *Service) publish(session *workout.Session) workout.SessionState {
	state := session.Snapshot()
	if s.hub != nil {
		s.hub.BroadcastJSON(state.SessionID, state)
	}
	return state
}

func (s *Service) cached(userID, workoutID string) (completion.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.completed[userID]
	if !ok || res.Workout.ID != workoutID {
		return completion.Result{}, false
	}
	return res, true
}
