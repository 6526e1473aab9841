package services

import (
	"sync"

	"roomlink/internal/core/domain"
)

// ChatTranscript is the append-only message log of the current room.
type ChatTranscript struct {
	mu       sync.RWMutex
	messages []domain.ChatMessage
}

func NewChatTranscript() *ChatTranscript {
	return &ChatTranscript{}
}

func (t *ChatTranscript) Append(msg domain.ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msg)
}

// All returns a copy in arrival order.
func (t *ChatTranscript) All() []domain.ChatMessage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]domain.ChatMessage(nil), t.messages...)
}

func (t *ChatTranscript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

func (t *ChatTranscript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
}
