package client

import (
	"fmt"
	"time"
)

// ErrorDetail is the error object inside an API error envelope.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the envelope the API wraps errors in:
// {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Detail ErrorDetail `json:"error"`
}

// APIError is a non-2xx API answer.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter time.Duration
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Code != "" || e.Message != "" {
		return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error %d", e.StatusCode)
}
