package tracking

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backend-runstr/internal/completion"
	"backend-runstr/internal/streak"
	"backend-runstr/internal/workout"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func asUser(id string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", id)
		return c.Next()
	}
}

func newApp(t *testing.T) (*fiber.App, *fixture) {
	t.Helper()
	f := newFixture(t)
	app := fiber.New()
	RegisterRoutes(app.Group("/workouts"), f.svc, asUser("user-1"))
	return app, f
}

func do(t *testing.T, app *fiber.App, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestTrackingHandlersFlow(t *testing.T) {
	app, f := newApp(t)

	resp := do(t, app, http.MethodPost, "/workouts/sessions", map[string]string{"activity_kind": "running"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, app, http.MethodPost, "/workouts/sessions", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	f.clock.Advance(30 * time.Minute)
	resp = do(t, app, http.MethodPost, "/workouts/sessions/current/metrics", workout.MetricUpdate{DistanceDeltaMeters: 6000, StepDelta: 7000})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var feed FeedResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&feed))
	assert.True(t, feed.Accepted)
	assert.Equal(t, int64(7000), feed.Session.StepCount)

	resp = do(t, app, http.MethodPost, "/workouts/sessions/current/location", map[string]float64{"lat": 52.52, "lng": 13.405})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, app, http.MethodPost, "/workouts/sessions/current/health", workout.HealthSample{HeartRateBPM: 160})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, app, http.MethodPost, "/workouts/sessions/current/pause", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = do(t, app, http.MethodPost, "/workouts/sessions/current/resume", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, app, http.MethodGet, "/workouts/sessions/current", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, app, http.MethodPost, "/workouts/sessions/current/end", map[string]string{"timezone": "Europe/Berlin"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res completion.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.InDelta(t, 6000, res.Workout.DistanceMeters, 1e-9)
	assert.InDelta(t, 1800, res.Workout.DurationSeconds, 1e-9)

	resp = do(t, app, http.MethodPost, "/workouts/sessions/current/end", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, f.completer.Calls())

	resp = do(t, app, http.MethodPost, "/workouts/sessions/current/pause", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, app, http.MethodGet, "/workouts?limit=10", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 10, f.history.limit)
}

func TestTrackingHandlersNoSession(t *testing.T) {
	app, _ := newApp(t)

	for _, path := range []string{
		"/workouts/sessions/current/pause",
		"/workouts/sessions/current/resume",
		"/workouts/sessions/current/end",
	} {
		resp := do(t, app, http.MethodPost, path, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
	resp := do(t, app, http.MethodGet, "/workouts/sessions/current", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTrackingHandlersBadRequest(t *testing.T) {
	app, _ := newApp(t)

	resp := do(t, app, http.MethodPost, "/workouts/sessions", map[string]string{"activity_kind": "swimming"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, app, http.MethodPost, "/workouts/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, app, http.MethodPost, "/workouts/sessions/current/location", map[string]float64{"lat": 95, "lng": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req := httptest.NewRequest(http.MethodPost, "/workouts/sessions/current/metrics", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	r, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)

	resp = do(t, app, http.MethodPost, "/workouts/sessions/current/end", map[string]string{"timezone": "Nowhere/Land"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTrackingHandlersInvalidStreakInput(t *testing.T) {
	app, f := newApp(t)
	f.completer.err = fmt.Errorf("finalize reward: %w", streak.ErrInvalidInput)

	resp := do(t, app, http.MethodPost, "/workouts/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, app, http.MethodPost, "/workouts/sessions/current/end", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, 1, f.completer.Calls())
}

func TestTrackingHandlersRejectsNegativeDeltas(t *testing.T) {
	app, _ := newApp(t)
	require.Equal(t, http.StatusCreated, do(t, app, http.MethodPost, "/workouts/sessions", nil).StatusCode)

	resp := do(t, app, http.MethodPost, "/workouts/sessions/current/metrics", workout.MetricUpdate{DistanceDeltaMeters: -50})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var feed FeedResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&feed))
	assert.False(t, feed.Accepted)
	assert.Zero(t, feed.Session.DistanceMeters)
}

func TestTrackingHandlersHistoryError(t *testing.T) {
	app, f := newApp(t)
	f.history.err = errPipeline

	resp := do(t, app, http.MethodGet, "/workouts", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestTrackingHandlersRequireUser(t *testing.T) {
	f := newFixture(t)
	app := fiber.New()
	RegisterRoutes(app.Group("/workouts"), f.svc, func(c *fiber.Ctx) error { return c.Next() })

	resp := do(t, app, http.MethodGet, "/workouts/sessions/current", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
