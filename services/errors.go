package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindInvalidInput
	KindConflict
	KindExpired
	KindAlreadyClaimed
	KindCapacityExceeded
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindConflict:
		return "conflict"
	case KindExpired:
		return "expired"
	case KindAlreadyClaimed:
		return "already_claimed"
	case KindCapacityExceeded:
		return "capacity_exceeded"
	default:
		return "internal"
	}
}

// Error is the failure every service returns. Message is safe to show to
// clients; Err is the underlying cause and only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of err. Errors that did not come from a service
// are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Unauthorized(msg string) error     { return &Error{Kind: KindUnauthorized, Message: msg} }
func Forbidden(msg string) error        { return &Error{Kind: KindForbidden, Message: msg} }
func NotFound(msg string) error         { return &Error{Kind: KindNotFound, Message: msg} }
func InvalidInput(msg string) error     { return &Error{Kind: KindInvalidInput, Message: msg} }
func Conflict(msg string) error         { return &Error{Kind: KindConflict, Message: msg} }
func Expired(msg string) error          { return &Error{Kind: KindExpired, Message: msg} }
func AlreadyClaimed(msg string) error   { return &Error{Kind: KindAlreadyClaimed, Message: msg} }
func CapacityExceeded(msg string) error { return &Error{Kind: KindCapacityExceeded, Message: msg} }

func Internal(op string, err error) error {
	return &Error{Kind: KindInternal, Message: op, Err: err}
}

// lookupErr maps a failed single-row lookup to NotFound or Internal.
func lookupErr(err error, notFoundMsg, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(notFoundMsg)
	}
	return Internal(op, err)
}

// passThrough keeps service errors raised inside a transaction intact and
// wraps everything else as internal.
func passThrough(err error, op string) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Internal(op, err)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	pgerr := new(pgconn.PgError)
	if errors.As(err, &pgerr) {
		return pgerr.Code == pgerrcode.UniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
