package domain

import "time"

type LinkState string

const (
	LinkNew          LinkState = "new"
	LinkConnecting   LinkState = "connecting"
	LinkConnected    LinkState = "connected"
	LinkDisconnected LinkState = "disconnected"
	LinkFailed       LinkState = "failed"
	LinkClosed       LinkState = "closed"
)

// PeerLink is the observable state of one media connection to a remote
// participant.
type PeerLink struct {
	RemoteParticipantID ParticipantID
	State               LinkState
	LocalMediaAttached  bool
	Initiator           bool
	CreatedAt           time.Time
}

type SignalKind string

const (
	SignalOffer        SignalKind = "offer"
	SignalAnswer       SignalKind = "answer"
	SignalICECandidate SignalKind = "ice-candidate"
)

func (k SignalKind) Valid() bool {
	switch k {
	case SignalOffer, SignalAnswer, SignalICECandidate:
		return true
	}
	return false
}

type ModerationAction string

const (
	ActionKick ModerationAction = "kick"
	ActionBan  ModerationAction = "ban"
)

func (a ModerationAction) Valid() bool {
	return a == ActionKick || a == ActionBan
}
