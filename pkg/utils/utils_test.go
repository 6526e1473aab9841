package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewRequestID(t *testing.T) {
	a, b := NewRequestID(), NewRequestID()
	assert.True(t, strings.HasPrefix(a, "req_"))
	assert.Len(t, a, len("req_")+32)
	assert.NotEqual(t, a, b)
}

func TestNewInstanceID(t *testing.T) {
	assert.Len(t, NewInstanceID(), 36)
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello \x00"))
	assert.Equal(t, "a\nb", SanitizeString("a\nb"))
	assert.Equal(t, "[31mred", SanitizeString("\x1b[31mred"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "abcdefg...", TruncateString("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", TruncateString("abcdef", 2))
	assert.Equal(t, "привет...", TruncateString("приветмир!", 9))
}

func TestMaskSensitive(t *testing.T) {
	assert.Equal(t, "eyJh******", MaskSensitive("eyJhbGciOi", 4))
	assert.Equal(t, "***", MaskSensitive("abc", 4))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "500ms", FormatDuration(500*time.Millisecond))
	assert.Equal(t, "1.50s", FormatDuration(1500*time.Millisecond))
	assert.Equal(t, "2m5s", FormatDuration(2*time.Minute+5*time.Second))
	assert.Equal(t, "1h30m", FormatDuration(90*time.Minute))
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "--:--", FormatClock(time.Time{}))
	ts := time.Date(2024, 5, 1, 9, 7, 0, 0, time.Local)
	assert.Equal(t, "09:07", FormatClock(ts))
}
