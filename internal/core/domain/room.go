package domain

import (
	"html"
	"strings"
	"time"
	"unicode"
)

type RoomCode string

type ParticipantID string

// RoomSummary is the read-only directory projection of a room.
type RoomSummary struct {
	Code             RoomCode `json:"room_code"`
	Name             string   `json:"room_name"`
	IsPrivate        bool     `json:"is_private"`
	ParticipantCount int      `json:"user_count"`
	MaxParticipants  int      `json:"max_users"`
	HostName         string   `json:"host_name,omitempty"`
	Active           *bool    `json:"is_active,omitempty"`
}

type Participant struct {
	ID          ParticipantID `json:"id"`
	DisplayName string        `json:"username"`
	IsHost      bool          `json:"is_host"`
}

// RoomSession is the local view of the room we are joined to. Participants
// keep their join order; the local participant is always a member.
type RoomSession struct {
	Code         RoomCode
	Name         string
	HostID       ParticipantID
	SelfID       ParticipantID
	Participants []Participant
	JoinedAt     time.Time
}

func NewRoomSession(code RoomCode, name string, hostID, selfID ParticipantID, participants []Participant) *RoomSession {
	rs := &RoomSession{
		Code:     code,
		Name:     name,
		HostID:   hostID,
		SelfID:   selfID,
		JoinedAt: time.Now(),
	}
	for _, p := range participants {
		rs.Upsert(p)
	}
	if !rs.Has(selfID) {
		rs.Upsert(Participant{ID: selfID, IsHost: hostID == selfID})
	}
	return rs
}

func (rs *RoomSession) index(id ParticipantID) int {
	for i, p := range rs.Participants {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (rs *RoomSession) Has(id ParticipantID) bool {
	return rs.index(id) >= 0
}

func (rs *RoomSession) Get(id ParticipantID) (Participant, bool) {
	if i := rs.index(id); i >= 0 {
		return rs.Participants[i], true
	}
	return Participant{}, false
}

// Upsert adds p, or refreshes the name and host flag of an existing entry
// without changing its position.
func (rs *RoomSession) Upsert(p Participant) {
	p.IsHost = p.IsHost || (rs.HostID != "" && p.ID == rs.HostID)
	if i := rs.index(p.ID); i >= 0 {
		if p.DisplayName != "" {
			rs.Participants[i].DisplayName = p.DisplayName
		}
		rs.Participants[i].IsHost = p.IsHost
		return
	}
	rs.Participants = append(rs.Participants, p)
}

// Remove drops id. The local participant cannot be removed.
func (rs *RoomSession) Remove(id ParticipantID) bool {
	if id == rs.SelfID {
		return false
	}
	i := rs.index(id)
	if i < 0 {
		return false
	}
	rs.Participants = append(rs.Participants[:i], rs.Participants[i+1:]...)
	return true
}

// Remotes returns every participant except the local one.
func (rs *RoomSession) Remotes() []Participant {
	out := make([]Participant, 0, len(rs.Participants))
	for _, p := range rs.Participants {
		if p.ID != rs.SelfID {
			out = append(out, p)
		}
	}
	return out
}

func (rs *RoomSession) IsHost(id ParticipantID) bool {
	return rs.HostID != "" && rs.HostID == id
}

func (rs *RoomSession) Clone() *RoomSession {
	if rs == nil {
		return nil
	}
	cp := *rs
	cp.Participants = append([]Participant(nil), rs.Participants...)
	return &cp
}

type ChatMessage struct {
	SenderID   ParticipantID `json:"user_id"`
	SenderName string        `json:"username"`
	Text       string        `json:"message"`
	SentAt     time.Time     `json:"timestamp"`
}

// HTML returns the message as escaped markup-safe text.
func (m ChatMessage) HTML() string {
	return html.EscapeString(m.SenderName) + ": " + html.EscapeString(m.Text)
}

// Plain returns the message for terminal output with control characters removed.
func (m ChatMessage) Plain() string {
	return stripControl(m.SenderName) + ": " + stripControl(m.Text)
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
