package domain

import (
	"encoding/json"
	"time"
)

type UserID string

// RequestID identifies a pending access request.
type RequestID string

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type User struct {
	ID          UserID   `json:"id"`
	DisplayName string   `json:"username"`
	Role        UserRole `json:"role"`
}

// UnmarshalJSON also accepts the service's boolean "isAdmin" flag in place of
// a role string.
func (u *User) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID        UserID   `json:"id"`
		Username  string   `json:"username"`
		Role      UserRole `json:"role"`
		IsAdmin   *bool    `json:"isAdmin"`
		IsAdminSQ *bool    `json:"is_admin"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	u.ID = wire.ID
	u.DisplayName = wire.Username
	u.Role = wire.Role
	for _, flag := range []*bool{wire.IsAdmin, wire.IsAdminSQ} {
		if flag != nil && *flag {
			u.Role = RoleAdmin
		}
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Session is the authenticated identity of the local user. Exactly one is
// active per client; a nil *Session means logged out.
type Session struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the token carried an expiry that is already past.
// Sessions without an embedded expiry never expire locally.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ManagedUser is a user record as listed by the admin API.
type ManagedUser struct {
	ID        UserID    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Role      UserRole  `json:"role,omitempty"`
	Approved  bool      `json:"is_approved"`
	Blocked   bool      `json:"is_blocked"`
	LastLogin Timestamp `json:"last_login"`
}

type BlockedIP struct {
	Address   string    `json:"ip_address"`
	Reason    string    `json:"reason"`
	BlockedAt Timestamp `json:"blocked_at"`
}

type AccessRequest struct {
	ID          RequestID `json:"id"`
	Email       string    `json:"email"`
	Username    string    `json:"username,omitempty"`
	Reason      string    `json:"reason"`
	IPAddress   string    `json:"ip_address,omitempty"`
	RequestedAt Timestamp `json:"requested_at"`
	Approved    bool      `json:"approved"`
}

// AccessDecision is the server's answer to approving an access request.
// TempPassword is only set when the service generated an account.
type AccessDecision struct {
	TempPassword string `json:"tempPassword,omitempty"`
}
