package router

import "net/http"

// ErrorCodeFromStatus maps an HTTP status to the error code threaded into
// %%error branches. Success and unknown statuses map to 0 (no error).
func ErrorCodeFromStatus(status int) int {
	switch {
	case status >= 200 && status < 300:
		return 0
	case status == http.StatusBadRequest,
		status == http.StatusUnauthorized,
		status == http.StatusForbidden,
		status == http.StatusNotFound:
		return status
	case status >= 405 && status < 500:
		return http.StatusMethodNotAllowed
	case status >= 500 && status < 600:
		return http.StatusInternalServerError
	default:
		return 0
	}
}
