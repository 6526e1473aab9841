package notify

import (
	"sync"

	"roomlink/internal/core/domain"
	"roomlink/internal/core/ports"
	"roomlink/pkg/logger"

	"go.uber.org/zap"
)

// Log writes notices to a zap logger at the matching level.
type Log struct {
	logger *zap.SugaredLogger
}

func NewLog(log *zap.SugaredLogger) *Log {
	if log == nil {
		log = logger.Nop()
	}
	return &Log{logger: log.With("component", "notice")}
}

func (l *Log) Notify(n domain.Notice) {
	kv := []interface{}{"kind", n.Kind}
	if n.Room != "" {
		kv = append(kv, "room_code", n.Room)
	}
	switch n.Level {
	case domain.NoticeError:
		l.logger.Errorw(n.Message, kv...)
	case domain.NoticeWarn:
		l.logger.Warnw(n.Message, kv...)
	default:
		l.logger.Infow(n.Message, kv...)
	}
}

// Queue buffers notices for a consumer such as a terminal UI. Notices are
// dropped when the buffer is full so producers never block.
type Queue struct {
	ch      chan domain.Notice
	mu      sync.Mutex
	closed  bool
	dropped int
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 32
	}
	return &Queue{ch: make(chan domain.Notice, size)}
}

func (q *Queue) Notify(n domain.Notice) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	select {
	case q.ch <- n:
	default:
		q.dropped++
	}
}

func (q *Queue) C() <-chan domain.Notice {
	return q.ch
}

// Dropped reports how many notices did not fit into the buffer.
func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// Multi fans a notice out to every notifier in order.
type Multi []ports.Notifier

func (m Multi) Notify(n domain.Notice) {
	for _, target := range m {
		if target != nil {
			target.Notify(n)
		}
	}
}

var (
	_ ports.Notifier = (*Log)(nil)
	_ ports.Notifier = (*Queue)(nil)
	_ ports.Notifier = Multi(nil)
)
