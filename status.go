package session

import (
	goerrors "github.com/goliatone/go-errors"
)

const textCodeInvalidTransition = "INVALID_SESSION_STATE_TRANSITION"

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid session state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// Status is the authentication state of a session.
type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusAuthenticating  Status = "authenticating"
	StatusAuthenticated   Status = "authenticated"
	StatusError           Status = "error"
)

// transitions is the legal state graph for a session. Logout is modeled
// outside the graph: any state may drop to Unauthenticated.
var transitions = map[Status]map[Status]struct{}{
	StatusUnauthenticated: {
		StatusAuthenticating: {},
	},
	StatusError: {
		StatusAuthenticating: {},
	},
	StatusAuthenticating: {
		StatusAuthenticated:   {},
		StatusUnauthenticated: {},
		StatusError:           {},
	},
	StatusAuthenticated: {
		StatusAuthenticated:   {},
		StatusUnauthenticated: {},
	},
}

func canTransition(from, to Status) bool {
	if to == StatusUnauthenticated {
		return true
	}
	if allowed, ok := transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}
