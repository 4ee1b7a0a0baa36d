package services

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Closed error set for the match lifecycle. Raw server strings exist only at
// the HTTP boundary; everything inside the module works with these values.
var (
	ErrNotAuthenticated      = errors.New("not authenticated")
	ErrNotAuthorized         = errors.New("not authorized for this match")
	ErrAlreadyHasActiveMatch = errors.New("user already has an active match")
	ErrInvalidStatus         = errors.New("transition not allowed from current status")
	ErrMatchExpired          = errors.New("match deadline has passed")
	ErrMatchNotFound         = errors.New("match not found")
	ErrInvalidVisit          = errors.New("invalid visit payload")
)

// DatabaseError wraps a storage failure with enough detail for the logs
// without leaking driver internals to clients.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string { return fmt.Sprintf("database error in %s: %v", e.Op, e.Err) }
func (e *DatabaseError) Unwrap() error { return e.Err }

func dbErr(op string, err error) error {
	return &DatabaseError{Op: op, Err: err}
}

// Wire codes, shared by handlers and the client package.
const (
	CodeNotAuthenticated      = "not_authenticated"
	CodeNotAuthorized         = "not_authorized"
	CodeAlreadyHasActiveMatch = "already_has_active_match"
	CodeInvalidStatus         = "invalid_status"
	CodeMatchExpired          = "match_expired"
	CodeMatchNotFound         = "match_not_found"
	CodeInvalidVisit          = "invalid_visit"
	CodeDatabaseError         = "database_error"
	CodeUnknown               = "unknown"
)

// CodeForError maps a service error onto its wire code and HTTP status.
func CodeForError(err error) (string, int) {
	var dberr *DatabaseError
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return CodeNotAuthenticated, fiber.StatusUnauthorized
	case errors.Is(err, ErrNotAuthorized):
		return CodeNotAuthorized, fiber.StatusForbidden
	case errors.Is(err, ErrAlreadyHasActiveMatch):
		return CodeAlreadyHasActiveMatch, fiber.StatusConflict
	case errors.Is(err, ErrInvalidStatus):
		return CodeInvalidStatus, fiber.StatusConflict
	case errors.Is(err, ErrMatchExpired):
		return CodeMatchExpired, fiber.StatusGone
	case errors.Is(err, ErrMatchNotFound):
		return CodeMatchNotFound, fiber.StatusNotFound
	case errors.Is(err, ErrInvalidVisit):
		return CodeInvalidVisit, fiber.StatusUnprocessableEntity
	case errors.As(err, &dberr):
		return CodeDatabaseError, fiber.StatusInternalServerError
	default:
		return CodeDatabaseError, fiber.StatusInternalServerError
	}
}

// ErrorForCode is the inverse mapping used by the client boundary.
// Unrecognized codes are preserved, never interpreted.
func ErrorForCode(code, detail string) error {
	switch code {
	case CodeNotAuthenticated:
		return ErrNotAuthenticated
	case CodeNotAuthorized:
		return ErrNotAuthorized
	case CodeAlreadyHasActiveMatch:
		return ErrAlreadyHasActiveMatch
	case CodeInvalidStatus:
		return ErrInvalidStatus
	case CodeMatchExpired:
		return ErrMatchExpired
	case CodeMatchNotFound:
		return ErrMatchNotFound
	case CodeInvalidVisit:
		return ErrInvalidVisit
	case CodeDatabaseError:
		return &DatabaseError{Op: "remote", Err: errors.New(detail)}
	default:
		return &UnknownCodeError{Code: code, Detail: detail}
	}
}

// UnknownCodeError keeps an unrecognized server code at the boundary
// instead of letting the raw string leak into core logic.
type UnknownCodeError struct {
	Code   string
	Detail string
}

func (e *UnknownCodeError) Error() string {
	return fmt.Sprintf("unknown result code %q: %s", e.Code, e.Detail)
}
