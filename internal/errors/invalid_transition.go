package errors

import (
	"fmt"
	"net/http"
)

func NewInvalidTransition(event, status string) *Exception {
	return &Exception{
		Kind:       KindInvalidTransition,
		Message:    fmt.Sprintf("event %q is not allowed from status %q", event, status),
		StatusCode: http.StatusUnprocessableEntity,
	}
}

func IsInvalidTransition(err error) bool {
	return IsKind(err, KindInvalidTransition)
}
