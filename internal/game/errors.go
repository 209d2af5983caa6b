package game

import (
	"errors"
	"fmt"

	"github.com/sketchduel/backend/internal/storage"
)

// Kind classifies engine failures
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindInvalidState
	KindConflict
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is returned by every Engine operation that fails for a domain reason
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

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrNotFound     = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInvalidState = &Error{Kind: KindInvalidState, Message: "invalid state"}
	ErrConflict     = &Error{Kind: KindConflict, Message: "conflict"}
	ErrUnavailable  = &Error{Kind: KindUnavailable, Message: "unavailable"}
)

// KindOf returns the kind of err, or 0 if err is not an engine error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func notFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func invalidState(format string, args ...any) error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// storageError converts repository failures into engine errors
func storageError(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, storage.ErrSessionNotFound) {
		return notFound("game not found")
	}
	return &Error{Kind: KindUnavailable, Message: "storage unavailable", Err: err}
}
