package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoomSession_AddsSelf(t *testing.T) {
	rs := NewRoomSession("ABCD", "Standup", "u1", "me", []Participant{{ID: "u1", DisplayName: "Ann"}})

	require.Len(t, rs.Participants, 2)
	assert.True(t, rs.Has("me"))
	assert.True(t, rs.Participants[0].IsHost)
	assert.False(t, rs.Participants[1].IsHost)
	assert.Equal(t, []Participant{{ID: "u1", DisplayName: "Ann", IsHost: true}}, rs.Remotes())
}

func TestRoomSession_UpsertKeepsPosition(t *testing.T) {
	rs := NewRoomSession("ABCD", "", "", "me", []Participant{{ID: "me"}, {ID: "u1"}, {ID: "u2"}})

	rs.Upsert(Participant{ID: "u1", DisplayName: "Ann"})
	rs.Upsert(Participant{ID: "u1"})

	p, ok := rs.Get("u1")
	require.True(t, ok)
	assert.Equal(t, "Ann", p.DisplayName)
	assert.Equal(t, ParticipantID("u1"), rs.Participants[1].ID)
	assert.Len(t, rs.Participants, 3)
}

func TestRoomSession_RemoveNeverDropsSelf(t *testing.T) {
	rs := NewRoomSession("ABCD", "", "", "me", []Participant{{ID: "u1"}})

	assert.False(t, rs.Remove("me"))
	assert.False(t, rs.Remove("ghost"))
	assert.True(t, rs.Remove("u1"))
	assert.Equal(t, []ParticipantID{"me"}, ids(rs))
}

func TestRoomSession_CloneIsIndependent(t *testing.T) {
	rs := NewRoomSession("ABCD", "", "", "me", []Participant{{ID: "u1"}})
	cp := rs.Clone()
	cp.Remove("u1")

	assert.True(t, rs.Has("u1"))
	assert.Nil(t, (*RoomSession)(nil).Clone())
}

func TestChatMessage_Rendering(t *testing.T) {
	msg := ChatMessage{SenderName: "<i>eve</i>", Text: "hi\x1b[31m & bye"}

	assert.Equal(t, "&lt;i&gt;eve&lt;/i&gt;: hi\x1b[31m &amp; bye", msg.HTML())
	assert.Equal(t, "<i>eve</i>: hi[31m & bye", msg.Plain())
}

func ids(rs *RoomSession) []ParticipantID {
	var out []ParticipantID
	for _, p := range rs.Participants {
		out = append(out, p.ID)
	}
	return out
}
