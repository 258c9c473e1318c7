package workout

import (
	"log/slog"
	"sync"

	"backend-runstr/internal/logging"

	"github.com/google/uuid"
)

// Session pairs a controller with the GPS adapter feeding it.
type Session struct {
	*Controller
	Location *LocationTracker
}

// Registry holds at most one session per user. An ended session stays
// registered until the user starts the next one so a retried end call still
// finds it.
type Registry struct {
	mu       sync.Mutex
	clock    Clock
	logger   *slog.Logger
	sessions map[string]*Session
}

func NewRegistry(clock Clock, logger *slog.Logger) *Registry {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Registry{
		clock:    clock,
		logger:   logging.OrDiscard(logger),
		sessions: map[string]*Session{},
	}
}

// Start creates and activates a new session for userID. It fails with
// ErrSessionActive while the user's previous session has not ended.
func (r *Registry) Start(userID string, kind ActivityKind) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[userID]; ok && existing.Status() != StatusEnded {
		return nil, ErrSessionActive
	}

	controller := NewController(uuid.NewString(), r.clock, r.logger)
	if err := controller.Start(kind, userID); err != nil {
		return nil, err
	}
	session := &Session{
		Controller: controller,
		Location:   NewLocationTracker(controller),
	}
	r.sessions[userID] = session
	return session, nil
}

func (r *Registry) Current(userID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[userID]
	if !ok {
		return nil, ErrNoSession
	}
	return session, nil
}

// Discard drops the user's session without ending it. Partial state is lost.
func (r *Registry) Discard(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

// BySessionID finds a registered session by its id, for live viewers who only
// know the session.
func (r *Registry) BySessionID(sessionID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.SessionID() == sessionID {
			return session, true
		}
	}
	return nil, false
}
