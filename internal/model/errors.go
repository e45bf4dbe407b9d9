package model

import (
	"fmt"
	"strings"
)

// InvalidInputError reports missing or malformed required fields. It is
// surfaced to the caller as HTTP 400 with a user-facing message and is the
// only rejection that happens before any external call.
type InvalidInputError struct {
	Fields []string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
	}
	if e.Reason != "" {
		return e.Reason
	}
	return "invalid input"
}

// GatewayError reports that the AI capability failed or returned output that
// does not conform to the requested schema. Internal detail is logged, not
// exposed; callers see HTTP 500 with a generic message.
type GatewayError struct {
	Stage string // "call", "decode", "schema"
	Err   error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s failure: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("gateway %s failure", e.Stage)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// PersistenceError reports a store read/write failure. It is always absorbed:
// logged, never surfaced to the caller, never changes the HTTP response.
type PersistenceError struct {
	Op           string
	MissingTable bool
	Err          error
}

func (e *PersistenceError) Error() string {
	if e.MissingTable {
		return fmt.Sprintf("store %s: table not found: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// AuthorizationError reports that the caller lacks the required role. It
// blocks the requested admin view only; the rest of the app keeps working.
type AuthorizationError struct {
	UserID string
	Reason string
}

func (e *AuthorizationError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return "not authorized"
}
