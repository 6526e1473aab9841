package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode classifies a failed API response.
type ErrorCode string

const (
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeRateLimit          ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeBadGateway         ErrorCode = "BAD_GATEWAY"
	ErrCodeUnexpected         ErrorCode = "UNEXPECTED_STATUS"
)

// APIError is a non-2xx response from the room service, decoded from its
// JSON error body when one is present.
type APIError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Endpoint   string
	Cause      error
}

func (e *APIError) Error() string {
	prefix := string(e.Code)
	if e.Endpoint != "" {
		prefix = fmt.Sprintf("%s %s", e.Endpoint, e.Code)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// Temporary reports whether retrying the same request may succeed.
func (e *APIError) Temporary() bool {
	switch e.HTTPStatus {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func NewAPIError(code ErrorCode, message string, httpStatus int) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// CodeForStatus maps an HTTP status to an ErrorCode.
func CodeForStatus(status int) ErrorCode {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrCodeInvalidInput
	case http.StatusUnauthorized:
		return ErrCodeUnauthorized
	case http.StatusForbidden:
		return ErrCodeForbidden
	case http.StatusNotFound:
		return ErrCodeNotFound
	case http.StatusConflict:
		return ErrCodeConflict
	case http.StatusTooManyRequests:
		return ErrCodeRateLimit
	case http.StatusBadGateway:
		return ErrCodeBadGateway
	case http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrCodeServiceUnavailable
	}
	if status >= 500 {
		return ErrCodeInternal
	}
	return ErrCodeUnexpected
}

// errorBody covers the error shapes the service returns:
// {"error": "..."}, {"message": "..."} and {"detail": "..."}.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// FromResponse builds an APIError from a response status and body. The body
// message is used when it parses; otherwise the trimmed raw body or the
// status text is used.
func FromResponse(endpoint string, status int, body []byte) *APIError {
	msg := ""
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		switch {
		case eb.Error != "":
			msg = eb.Error
		case eb.Message != "":
			msg = eb.Message
		case eb.Detail != "":
			msg = eb.Detail
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	e := NewAPIError(CodeForStatus(status), msg, status)
	e.Endpoint = endpoint
	return e
}

// GetAPIError extracts an APIError from the error chain.
func GetAPIError(err error) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

// StatusOf returns the HTTP status carried in the chain, or 0.
func StatusOf(err error) int {
	if apiErr := GetAPIError(err); apiErr != nil {
		return apiErr.HTTPStatus
	}
	return 0
}
