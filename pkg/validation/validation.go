package validation

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MinParticipants = 2
	MaxParticipants = 50

	MaxRoomNameLength = 100
	MaxChatLength     = 2000
)

// Reason codes carried in FieldError.Reason.
const (
	ReasonRequired    = "required"
	ReasonEmptyName   = "empty_name"
	ReasonTooLong     = "too_long"
	ReasonOutOfRange  = "out_of_range"
	ReasonInvalid     = "invalid_format"
	ReasonInvalidUTF8 = "invalid_utf8"
)

var (
	// RoomCodeRegex matches server-issued room codes.
	RoomCodeRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

	IDRegex = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,100}$`)
)

// FieldError names the offending input field and a machine-readable reason.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func fieldErr(field, reason string) *FieldError {
	return &FieldError{Field: field, Reason: reason}
}

// ValidateRoomName rejects blank or whitespace-only names.
func ValidateRoomName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fieldErr("name", ReasonEmptyName)
	}
	if !utf8.ValidString(name) {
		return fieldErr("name", ReasonInvalidUTF8)
	}
	if utf8.RuneCountInString(name) > MaxRoomNameLength {
		return fieldErr("name", ReasonTooLong)
	}
	return nil
}

func ValidateMaxParticipants(n int) error {
	if n < MinParticipants || n > MaxParticipants {
		return fieldErr("max_participants", ReasonOutOfRange)
	}
	return nil
}

// ClampMaxParticipants forces n into [MinParticipants, MaxParticipants].
func ClampMaxParticipants(n int) int {
	if n < MinParticipants {
		return MinParticipants
	}
	if n > MaxParticipants {
		return MaxParticipants
	}
	return n
}

func ValidateRoomCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return fieldErr("room_code", ReasonRequired)
	}
	if !RoomCodeRegex.MatchString(code) {
		return fieldErr("room_code", ReasonInvalid)
	}
	return nil
}

// ValidateID checks user, participant and access-request ids before they are
// put into a URL path.
func ValidateID(field, id string) error {
	if id == "" {
		return fieldErr(field, ReasonRequired)
	}
	if !IDRegex.MatchString(id) {
		return fieldErr(field, ReasonInvalid)
	}
	return nil
}

func ValidateChatText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fieldErr("message", ReasonRequired)
	}
	if !utf8.ValidString(text) {
		return fieldErr("message", ReasonInvalidUTF8)
	}
	if utf8.RuneCountInString(text) > MaxChatLength {
		return fieldErr("message", ReasonTooLong)
	}
	return nil
}

// ValidateIPAddress accepts a single IPv4 or IPv6 address.
func ValidateIPAddress(addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return fieldErr("ip_address", ReasonRequired)
	}
	if net.ParseIP(addr) == nil {
		return fieldErr("ip_address", ReasonInvalid)
	}
	return nil
}

func ValidateCredentials(username, password string) error {
	if strings.TrimSpace(username) == "" {
		return fieldErr("username", ReasonRequired)
	}
	if len(username) > 100 {
		return fieldErr("username", ReasonTooLong)
	}
	if password == "" {
		return fieldErr("password", ReasonRequired)
	}
	if len(password) > 128 {
		return fieldErr("password", ReasonTooLong)
	}
	return nil
}

// ValidateURL validates URL format
func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid URL scheme (must be http, https, ws, or wss)")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
