package signal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"roomlink/internal/core/domain"
)

// Wire event names used by the room service.
const (
	eventJoinRoom     = "join-room"
	eventLeaveRoom    = "leave-room"
	eventSendMessage  = "send-message"
	eventKickUser     = "kick-user"
	eventOffer        = "webrtc-offer"
	eventAnswer       = "webrtc-answer"
	eventICECandidate = "webrtc-ice-candidate"

	eventUserJoined = "user-joined"
	eventUserLeft   = "user-left"
	eventNewMessage = "new-message"
	eventRoomInfo   = "room-info"
	eventUserKicked = "user-kicked"
	eventKicked     = "kicked"
	eventError      = "error"
)

// Envelope frames every message on the socket in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encode(event string, data interface{}) ([]byte, error) {
	env := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event, err)
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

type chatPayload struct {
	Message string `json:"message"`
}

type kickPayload struct {
	UserID domain.ParticipantID `json:"userId"`
	Ban    bool                 `json:"ban"`
	Reason string               `json:"reason,omitempty"`
}

// signalEvent maps a negotiation kind to its wire event and the key the
// payload travels under.
func signalEvent(kind domain.SignalKind) (event, key string, err error) {
	switch kind {
	case domain.SignalOffer:
		return eventOffer, "offer", nil
	case domain.SignalAnswer:
		return eventAnswer, "answer", nil
	case domain.SignalICECandidate:
		return eventICECandidate, "candidate", nil
	}
	return "", "", fmt.Errorf("unknown signal kind %q", kind)
}

func encodeSignal(kind domain.SignalKind, target domain.ParticipantID, payload json.RawMessage) (string, []byte, error) {
	event, key, err := signalEvent(kind)
	if err != nil {
		return "", nil, err
	}
	data, err := encode(event, map[string]interface{}{
		key:  payload,
		"to": target,
	})
	return event, data, err
}

type userPayload struct {
	UserID   domain.ParticipantID `json:"userId"`
	Username string               `json:"username"`
}

type messagePayload struct {
	UserID    domain.ParticipantID `json:"userId"`
	UserIDAlt domain.ParticipantID `json:"user_id"`
	Username  string               `json:"username"`
	Message   string               `json:"message"`
	Timestamp domain.Timestamp     `json:"timestamp"`
}

type roomInfoPayload struct {
	Room struct {
		Code   domain.RoomCode      `json:"room_code"`
		Name   string               `json:"room_name"`
		HostID domain.ParticipantID `json:"host_id"`
	} `json:"room"`
	Participants []domain.Participant `json:"participants"`
}

type negotiationPayload struct {
	From      domain.ParticipantID `json:"from"`
	Offer     json.RawMessage      `json:"offer"`
	Answer    json.RawMessage      `json:"answer"`
	Candidate json.RawMessage      `json:"candidate"`
}

type kickedPayload struct {
	UserID   domain.ParticipantID `json:"userId"`
	Username string               `json:"username"`
	KickedBy string               `json:"kickedBy"`
	Reason   string               `json:"reason"`
	Ban      bool                 `json:"ban"`
}

// decoder turns inbound envelopes into domain events. self identifies the
// local participant; room is the code of the room last joined, which
// room-info does not always repeat.
type decoder struct {
	self domain.ParticipantID
	room domain.RoomCode
	now  func() time.Time
}

// decode returns (nil, nil) for events the client does not consume.
func (d *decoder) decode(raw []byte) (domain.Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}

	switch env.Event {
	case eventUserJoined:
		var p userPayload
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		if p.UserID == "" {
			return nil, fmt.Errorf("%s: missing userId", env.Event)
		}
		return domain.ParticipantJoined{
			Participant: domain.Participant{ID: p.UserID, DisplayName: p.Username},
		}, nil

	case eventUserLeft:
		var p userPayload
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		if p.UserID == "" {
			return nil, fmt.Errorf("%s: missing userId", env.Event)
		}
		return domain.ParticipantLeft{ParticipantID: p.UserID, DisplayName: p.Username}, nil

	case eventNewMessage:
		var p messagePayload
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		sender := p.UserID
		if sender == "" {
			sender = p.UserIDAlt
		}
		sentAt := p.Timestamp.Time
		if sentAt.IsZero() {
			sentAt = d.now()
		}
		return domain.ChatMessageReceived{Message: domain.ChatMessage{
			SenderID:   sender,
			SenderName: p.Username,
			Text:       p.Message,
			SentAt:     sentAt,
		}}, nil

	case eventRoomInfo:
		var p roomInfoPayload
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		code := p.Room.Code
		if code == "" {
			code = d.room
		}
		participants := make([]domain.Participant, 0, len(p.Participants))
		for _, participant := range p.Participants {
			if participant.ID == "" {
				continue
			}
			participant.IsHost = participant.IsHost || participant.ID == p.Room.HostID
			participants = append(participants, participant)
		}
		return domain.RoomSnapshot{
			Code:         code,
			Name:         p.Room.Name,
			HostID:       p.Room.HostID,
			Participants: participants,
		}, nil

	case eventOffer, eventAnswer, eventICECandidate:
		var p negotiationPayload
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		if p.From == "" {
			return nil, fmt.Errorf("%s: missing from", env.Event)
		}
		sig := domain.Signal{From: p.From}
		switch env.Event {
		case eventOffer:
			sig.Kind, sig.Payload = domain.SignalOffer, p.Offer
		case eventAnswer:
			sig.Kind, sig.Payload = domain.SignalAnswer, p.Answer
		default:
			sig.Kind, sig.Payload = domain.SignalICECandidate, p.Candidate
		}
		if len(sig.Payload) == 0 || bytes.Equal(sig.Payload, []byte("null")) {
			return nil, fmt.Errorf("%s: empty payload", env.Event)
		}
		return sig, nil

	case eventUserKicked:
		var p kickedPayload
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		if p.UserID == "" {
			return nil, fmt.Errorf("%s: missing userId", env.Event)
		}
		if p.UserID == d.self {
			action := domain.ActionKick
			if p.Ban {
				action = domain.ActionBan
			}
			return domain.Moderated{Action: action, Reason: p.Reason, By: p.KickedBy}, nil
		}
		return domain.ParticipantLeft{
			ParticipantID: p.UserID,
			DisplayName:   p.Username,
			Kicked:        true,
			KickedBy:      p.KickedBy,
		}, nil

	case eventKicked:
		// addressed only to the removed user; the payload is a bare message
		return domain.Moderated{Action: domain.ActionKick, Reason: textData(env.Data)}, nil

	case eventError:
		return domain.ChannelError{Code: domain.ChannelErrServer, Message: textData(env.Data)}, nil
	}

	return nil, nil
}

func unmarshalData(env Envelope, v interface{}) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%s: missing data", env.Event)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%s: %w", env.Event, err)
	}
	return nil
}

// textData reads a payload that is either a JSON string or an object with a
// message field.
func textData(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		return obj.Error
	}
	return string(raw)
}
