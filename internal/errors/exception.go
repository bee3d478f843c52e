package errors

import (
	"errors"
	"net/http"
)

// Kind discriminates the error taxonomy the core exposes to callers. Every
// operation fails with exactly one of these; there is no generic catch-all.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindInvalidTransition Kind = "invalid_transition"
	KindConflict          Kind = "conflict"
	KindInvalidSchedule   Kind = "invalid_schedule"
	KindNotFound          Kind = "not_found"
)

type Exception struct {
	Kind       Kind
	Message    string
	StatusCode int
}

func (e *Exception) Error() string {
	return e.Message
}

func StatusCode(err error) int {
	var appErr *Exception
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

func IsKind(err error, kind Kind) bool {
	var appErr *Exception
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}
