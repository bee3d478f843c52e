package errors

import "net/http"

func NewValidation(message string) *Exception {
	return &Exception{
		Kind:       KindValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func IsValidation(err error) bool {
	return IsKind(err, KindValidation)
}
