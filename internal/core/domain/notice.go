package domain

type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeWarn  NoticeLevel = "warn"
	NoticeError NoticeLevel = "error"
)

type NoticeKind string

const (
	NoticeJoined          NoticeKind = "joined"
	NoticeLeft            NoticeKind = "left"
	NoticeParticipantIn   NoticeKind = "participant_joined"
	NoticeParticipantOut  NoticeKind = "participant_left"
	NoticeModerated       NoticeKind = "moderated"
	NoticeDisconnected    NoticeKind = "disconnected"
	NoticeJoinFailed      NoticeKind = "join_failed"
	NoticeChatOnly        NoticeKind = "chat_only"
	NoticeChannelError    NoticeKind = "channel_error"
	NoticeSessionEnded    NoticeKind = "session_ended"
	NoticePeerUnavailable NoticeKind = "peer_unavailable"
)

// Notice is a user-visible message produced by the client core.
type Notice struct {
	Level   NoticeLevel
	Kind    NoticeKind
	Message string
	Room    RoomCode
}
