package errors

import "net/http"

// ErrConflict surfaces an optimistic locking miss: the caller saw a stale
// version and must re-read and retry. No silent overwrite.
var ErrConflict = &Exception{
	Kind:       KindConflict,
	Message:    "concurrent modification detected, re-read and retry",
	StatusCode: http.StatusConflict,
}

func IsConflict(err error) bool {
	return IsKind(err, KindConflict)
}
