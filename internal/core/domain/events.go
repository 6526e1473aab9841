package domain

import "encoding/json"

// Event is an inbound signaling event. The set of implementations is closed:
// consumers switch over the concrete types below.
type Event interface {
	eventName() string
}

type ParticipantJoined struct {
	Participant Participant
}

type ParticipantLeft struct {
	ParticipantID ParticipantID
	DisplayName   string
	// Kicked is set when the participant was removed by a moderator.
	Kicked   bool
	KickedBy string
}

type ChatMessageReceived struct {
	Message ChatMessage
}

// RoomSnapshot is the server-authoritative membership of a room.
type RoomSnapshot struct {
	Code         RoomCode
	Name         string
	HostID       ParticipantID
	Participants []Participant
}

// Signal is a relayed WebRTC negotiation message. Payload is the raw
// description or candidate JSON as sent by the remote peer.
type Signal struct {
	Kind    SignalKind
	From    ParticipantID
	Payload json.RawMessage
}

// Moderated means the local user was removed from the room.
type Moderated struct {
	Action ModerationAction
	Reason string
	By     string
}

type ChannelError struct {
	Code    string
	Message string
	// Fatal errors end the channel; the event stream closes after them.
	Fatal bool
}

func (ParticipantJoined) eventName() string   { return "participant-joined" }
func (ParticipantLeft) eventName() string     { return "participant-left" }
func (ChatMessageReceived) eventName() string { return "chat-message" }
func (RoomSnapshot) eventName() string        { return "room-snapshot" }
func (Signal) eventName() string              { return "signal" }
func (Moderated) eventName() string           { return "moderated" }
func (ChannelError) eventName() string        { return "channel-error" }

// EventName returns the stable name of an event, used for logs and metrics.
func EventName(e Event) string {
	if e == nil {
		return ""
	}
	return e.eventName()
}

const (
	ChannelErrDisconnected = "disconnected"
	ChannelErrUnauthorized = "unauthorized"
	ChannelErrServer       = "server_error"
)
