package notify

import (
	"testing"

	"roomlink/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogNotifierLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	n := NewLog(zap.New(core).Sugar())

	n.Notify(domain.Notice{Level: domain.NoticeInfo, Kind: domain.NoticeJoined, Room: "ABCD", Message: "joined"})
	n.Notify(domain.Notice{Level: domain.NoticeWarn, Kind: domain.NoticeChatOnly, Message: "no camera"})
	n.Notify(domain.Notice{Level: domain.NoticeError, Kind: domain.NoticeDisconnected, Message: "lost"})

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, "ABCD", entries[0].ContextMap()["room_code"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.NotContains(t, entries[1].ContextMap(), "room_code")
	assert.Equal(t, zap.ErrorLevel, entries[2].Level)
}

func TestQueueDropsWhenFull(t *testing.T) {
	q := NewQueue(1)
	q.Notify(domain.Notice{Message: "first"})
	q.Notify(domain.Notice{Message: "second"})

	assert.Equal(t, 1, q.Dropped())
	assert.Equal(t, "first", (<-q.C()).Message)

	q.Close()
	q.Notify(domain.Notice{Message: "after close"})
	_, ok := <-q.C()
	assert.False(t, ok)
}

func TestMultiFansOut(t *testing.T) {
	a, b := NewQueue(1), NewQueue(1)
	Multi{a, nil, b}.Notify(domain.Notice{Message: "hello"})

	assert.Equal(t, "hello", (<-a.C()).Message)
	assert.Equal(t, "hello", (<-b.C()).Message)
}
