package errors

import "net/http"

var ErrTaskNotFound = &Exception{
	Kind:       KindNotFound,
	Message:    "task not found",
	StatusCode: http.StatusNotFound,
}

var ErrTemplateNotFound = &Exception{
	Kind:       KindNotFound,
	Message:    "recurring template not found",
	StatusCode: http.StatusNotFound,
}

func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}
