package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewRequestID returns the value sent in X-Request-ID on API calls.
func NewRequestID() string {
	return "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewInstanceID identifies one running client process in logs and metrics.
func NewInstanceID() string {
	return uuid.NewString()
}
