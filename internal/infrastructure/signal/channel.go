package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"roomlink/internal/core/domain"
	"roomlink/internal/core/ports"
	"roomlink/pkg/logger"
	"roomlink/pkg/tracing"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// CloseTokenRevoked is the application close code the service uses when it
// drops a socket whose token is no longer valid.
const CloseTokenRevoked = 4401

type Config struct {
	URL               string
	HandshakeTimeout  time.Duration
	PingInterval      time.Duration
	PongTimeout       time.Duration
	WriteTimeout      time.Duration
	MaxMessageSize    int64
	MessagesPerSecond float64
	Burst             int
	EventBuffer       int
}

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 25 * time.Second
	}
	if c.PongTimeout <= c.PingInterval {
		c.PongTimeout = c.PingInterval * 2
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.MessagesPerSecond <= 0 {
		c.MessagesPerSecond = 20
	}
	if c.Burst <= 0 {
		c.Burst = 40
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 64
	}
	return c
}

// Channel is a single authenticated websocket session with the signaling
// server. It is not reusable: once closed, by either side, a new Channel
// must be created.
type Channel struct {
	cfg     Config
	tokens  ports.TokenSource
	self    domain.ParticipantID
	metrics ports.Metrics
	limiter *rate.Limiter
	logger  *zap.SugaredLogger

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	closing   bool
	room      domain.RoomCode

	// gorilla allows one concurrent writer
	writeMu sync.Mutex

	events     chan domain.Event
	done       chan struct{}
	closeOnce  sync.Once
	eventsOnce sync.Once
}

var _ ports.SignalingChannel = (*Channel)(nil)

func NewChannel(cfg Config, tokens ports.TokenSource, self domain.ParticipantID, metrics ports.Metrics, log *zap.SugaredLogger) *Channel {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &Channel{
		cfg:     cfg,
		tokens:  tokens,
		self:    self,
		metrics: metrics,
		limiter: rate.NewLimiter(rate.Limit(cfg.MessagesPerSecond), cfg.Burst),
		logger:  log.With("component", "signal"),
		events:  make(chan domain.Event, cfg.EventBuffer),
		done:    make(chan struct{}),
	}
}

// Connect dials the signaling server with the current bearer token.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return domain.ErrChannelClosed
	}
	if c.conn != nil {
		c.mu.Unlock()
		return errors.New("signaling channel already connected")
	}
	c.mu.Unlock()

	token := ""
	if c.tokens != nil {
		token = c.tokens.Token()
	}
	if token == "" {
		return domain.NewAuthError(domain.AuthNoSession, nil)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			authErr := domain.NewAuthError(domain.AuthTokenInvalid, err)
			if c.tokens != nil {
				c.tokens.Invalidate(ctx, authErr)
			}
			return authErr
		}
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return &domain.NetworkError{Op: "signal connect", Status: status, Cause: err}
	}

	if c.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(c.cfg.MaxMessageSize)
	}
	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		conn.Close()
		return domain.ErrChannelClosed
	}
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop(conn)
	go c.pingLoop(conn)

	c.logger.Infow("signaling channel connected", "url", c.cfg.URL)
	return nil
}

func (c *Channel) Events() <-chan domain.Event {
	return c.events
}

func (c *Channel) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && !c.closing
}

func (c *Channel) JoinRoom(ctx context.Context, code domain.RoomCode) error {
	c.mu.Lock()
	c.room = code
	c.mu.Unlock()
	return c.send(ctx, eventJoinRoom, string(code), string(code))
}

func (c *Channel) LeaveRoom(ctx context.Context, code domain.RoomCode) error {
	return c.send(ctx, eventLeaveRoom, string(code), string(code))
}

func (c *Channel) SendChatMessage(ctx context.Context, text string) error {
	return c.send(ctx, eventSendMessage, "", chatPayload{Message: text})
}

func (c *Channel) RequestModeration(ctx context.Context, target domain.ParticipantID, action domain.ModerationAction, reason string) error {
	if !action.Valid() {
		return domain.NewValidationError("action", "invalid_format")
	}
	return c.send(ctx, eventKickUser, string(target), kickPayload{
		UserID: target,
		Ban:    action == domain.ActionBan,
		Reason: reason,
	})
}

func (c *Channel) SendSignal(ctx context.Context, kind domain.SignalKind, target domain.ParticipantID, payload json.RawMessage) error {
	event, data, err := encodeSignal(kind, target, payload)
	if err != nil {
		return err
	}
	return c.write(ctx, event, string(target), data)
}

func (c *Channel) send(ctx context.Context, event, target string, payload interface{}) error {
	data, err := encode(event, payload)
	if err != nil {
		return err
	}
	return c.write(ctx, event, target, data)
}

func (c *Channel) write(ctx context.Context, event, target string, data []byte) (err error) {
	ctx, span := tracing.TraceSignal(ctx, event, target)
	defer func() { tracing.End(span, err) }()

	c.mu.RLock()
	conn := c.conn
	usable := c.connected && !c.closing
	c.mu.RUnlock()
	if conn == nil || !usable {
		return domain.ErrChannelClosed
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("signal %s: %w", event, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return &domain.NetworkError{Op: "signal " + event, Cause: err}
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return &domain.NetworkError{Op: "signal " + event, Cause: err}
	}

	if c.metrics != nil {
		c.metrics.RecordSignal("out", event)
	}
	c.logger.Debugw("signal sent", "event", event, "target", target)
	return nil
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	defer c.closeEvents()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))

		c.mu.RLock()
		dec := decoder{self: c.self, room: c.room, now: time.Now}
		c.mu.RUnlock()

		ev, err := dec.decode(raw)
		if err != nil {
			c.logger.Warnw("dropping malformed signaling message", "error", err)
			continue
		}
		if ev == nil {
			continue
		}
		if c.metrics != nil {
			c.metrics.RecordSignal("in", domain.EventName(ev))
		}
		if !c.emit(ev) {
			return
		}
	}
}

func (c *Channel) handleReadError(err error) {
	c.mu.Lock()
	wasClosing := c.closing
	c.connected = false
	c.mu.Unlock()

	if wasClosing {
		return
	}

	code := domain.ChannelErrDisconnected
	if websocket.IsCloseError(err, CloseTokenRevoked, websocket.ClosePolicyViolation) {
		code = domain.ChannelErrUnauthorized
		if c.tokens != nil {
			c.tokens.Invalidate(context.Background(), domain.NewAuthError(domain.AuthTokenInvalid, err))
		}
	}

	c.logger.Warnw("signaling channel lost", "code", code, "error", err)
	c.emit(domain.ChannelError{Code: code, Message: err.Error(), Fatal: true})
}

// emit delivers ev unless the channel is being closed locally.
func (c *Channel) emit(ev domain.Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *Channel) closeEvents() {
	c.eventsOnce.Do(func() { close(c.events) })
}

func (c *Channel) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Debugw("ping failed", "error", err)
				// unblocks the reader, which reports the disconnect
				conn.Close()
				return
			}
		}
	}
}

// Close ends the session. No ChannelError is emitted for a local close; the
// event stream is simply closed.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closing = true
		conn := c.conn
		c.connected = false
		c.mu.Unlock()

		close(c.done)

		if conn == nil {
			c.closeEvents()
			return
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = conn.Close()
		c.logger.Infow("signaling channel closed")
	})
	return err
}
