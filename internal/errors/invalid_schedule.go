package errors

import "net/http"

func NewInvalidSchedule(message string) *Exception {
	return &Exception{
		Kind:       KindInvalidSchedule,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func IsInvalidSchedule(err error) bool {
	return IsKind(err, KindInvalidSchedule)
}
