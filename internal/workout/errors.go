package workout

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned for lifecycle transitions the state machine does not allow.
	ErrInvalidState = errors.New("invalid session state")
	// ErrSessionActive wraps ErrInvalidState so callers can match either.
	ErrSessionActive = fmt.Errorf("%w: a session is already in progress", ErrInvalidState)
	ErrNoSession     = errors.New("no session in progress")
)
