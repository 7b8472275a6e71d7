package transport

import (
	"net/http"
)

// classifyStatus maps an HTTP status code to a failure kind.
// 4xx means the request itself is at fault; 5xx means the upstream had
// a bad moment and is worth another attempt.
func classifyStatus(status int) Kind {
	if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
		return Permanent
	}
	return Transient
}
