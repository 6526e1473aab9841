package ports

import (
	"context"
	"encoding/json"

	"roomlink/internal/core/domain"

	"github.com/pion/webrtc/v3"
)

// TokenSource hands out the current bearer token and is told when the server
// rejected it.
type TokenSource interface {
	Token() string
	Invalidate(ctx context.Context, cause error)
}

// SessionProvider exposes the local session to components that only read it.
type SessionProvider interface {
	Current() *domain.Session
	Subscribe(fn func(*domain.Session)) (unsubscribe func())
}

type AuthAPI interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error)
}

type RoomAPI interface {
	ListRooms(ctx context.Context) ([]domain.RoomSummary, error)
	CreateRoom(ctx context.Context, name string, isPrivate bool, maxParticipants int) (*domain.RoomSummary, error)
}

type AdminAPI interface {
	ListUsers(ctx context.Context) ([]domain.ManagedUser, error)
	ApproveUser(ctx context.Context, id domain.UserID) error
	BlockUser(ctx context.Context, id domain.UserID) error
	BlockIP(ctx context.Context, address, reason string) error
	UnblockIP(ctx context.Context, address string) error
	ListBlockedIPs(ctx context.Context) ([]domain.BlockedIP, error)
	CloseRoom(ctx context.Context, code domain.RoomCode) error
	ListAccessRequests(ctx context.Context) ([]domain.AccessRequest, error)
	ApproveAccessRequest(ctx context.Context, id domain.RequestID) (*domain.AccessDecision, error)
	DenyAccessRequest(ctx context.Context, id domain.RequestID) error
}

type AnalyticsAPI interface {
	TrackVisit(ctx context.Context, page, referrer string) error
}

// SignalSender is the outbound half of the signaling channel used for
// WebRTC negotiation.
type SignalSender interface {
	SendSignal(ctx context.Context, kind domain.SignalKind, target domain.ParticipantID, payload json.RawMessage) error
}

type SignalingChannel interface {
	SignalSender
	Connect(ctx context.Context) error
	Events() <-chan domain.Event
	JoinRoom(ctx context.Context, code domain.RoomCode) error
	LeaveRoom(ctx context.Context, code domain.RoomCode) error
	SendChatMessage(ctx context.Context, text string) error
	RequestModeration(ctx context.Context, target domain.ParticipantID, action domain.ModerationAction, reason string) error
	Connected() bool
	Close() error
}

// ChannelFactory creates an unconnected signaling channel for the local
// participant self. A channel serves one room session and is then discarded.
type ChannelFactory func(self domain.ParticipantID) SignalingChannel

// LocalMedia is an acquired set of local tracks. Video may be nil for
// audio-only capture. Stop releases the devices behind the tracks.
type LocalMedia struct {
	Audio webrtc.TrackLocal
	Video webrtc.TrackLocal
	Stop  func()
}

func (m *LocalMedia) Tracks() []webrtc.TrackLocal {
	if m == nil {
		return nil
	}
	var tracks []webrtc.TrackLocal
	if m.Audio != nil {
		tracks = append(tracks, m.Audio)
	}
	if m.Video != nil {
		tracks = append(tracks, m.Video)
	}
	return tracks
}

// MediaSource acquires local capture devices. Acquire may block on user
// permission; failures are *domain.MediaError.
type MediaSource interface {
	Acquire(ctx context.Context) (*LocalMedia, error)
}

type PeerManager interface {
	EnsureLink(ctx context.Context, id domain.ParticipantID) (domain.PeerLink, error)
	InitiateOffer(ctx context.Context, id domain.ParticipantID) error
	HandleSignal(ctx context.Context, sig domain.Signal) error
	CloseLink(id domain.ParticipantID)
	CloseAll()
	SetLocalMedia(media *LocalMedia) error
	Links() []domain.PeerLink

	SetAudioEnabled(enabled bool) error
	SetVideoEnabled(enabled bool) error
	// ReplaceVideo swaps the outgoing video on every link without
	// renegotiating, e.g. to share a screen. RestoreCamera undoes it.
	ReplaceVideo(track webrtc.TrackLocal) error
	RestoreCamera() error
}

type Notifier interface {
	Notify(n domain.Notice)
}

// Metrics receives client-side counters; implementations must be safe for
// concurrent use.
type Metrics interface {
	RecordJoin(result string)
	SetParticipants(n int)
	SetPeerLinks(n int)
	RecordChatMessage()
	RecordSignal(direction, kind string)
	RecordMediaBytes(kind string, n int)
	RecordRequest(endpoint string, status int)
}
