package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"roomlink/internal/core/domain"
	"roomlink/internal/core/ports"
	"roomlink/pkg/logger"
	"roomlink/pkg/tracing"
	"roomlink/pkg/validation"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

type RoomState string

const (
	RoomIdle    RoomState = "idle"
	RoomJoining RoomState = "joining"
	RoomActive  RoomState = "active"
)

type RoomControllerConfig struct {
	// JoinTimeout bounds the wait for the room snapshot after joinRoom.
	JoinTimeout time.Duration
	// Media enables local capture on join. Acquisition failures fall back
	// to chat only.
	Media     bool
	InboxSize int
}

func DefaultRoomControllerConfig() RoomControllerConfig {
	return RoomControllerConfig{
		JoinTimeout: 10 * time.Second,
		Media:       true,
		InboxSize:   64,
	}
}

type inbound struct {
	ch ports.SignalingChannel
	ev domain.Event
}

// pendingJoin is resolved exactly once: by the snapshot, by a failure
// event, or by Join giving up.
type pendingJoin struct {
	code       domain.RoomCode
	result     chan error
	aborted    chan struct{}
	finishOnce sync.Once
	abortOnce  sync.Once
}

func newPendingJoin(code domain.RoomCode) *pendingJoin {
	return &pendingJoin{
		code:    code,
		result:  make(chan error, 1),
		aborted: make(chan struct{}),
	}
}

func (p *pendingJoin) finish(err error) bool {
	done := false
	p.finishOnce.Do(func() {
		p.result <- err
		done = true
	})
	return done
}

func (p *pendingJoin) abort() {
	p.abortOnce.Do(func() { close(p.aborted) })
}

// RoomController drives membership of at most one room: it owns the
// signaling channel for that room, reconciles membership events into the
// local RoomSession and tells the peer manager which links to open.
//
// Events from every channel are funneled through Run and handled one at a
// time. Events from a channel that is no longer current are dropped.
type RoomController struct {
	cfg        RoomControllerConfig
	sessions   ports.SessionProvider
	newChannel ports.ChannelFactory
	peers      ports.PeerManager
	media      ports.MediaSource
	notifier   ports.Notifier
	metrics    ports.Metrics
	transcript *ChatTranscript
	logger     *zap.SugaredLogger

	inbox       chan inbound
	unsubscribe func()

	// transitionMu serializes Join and Leave.
	transitionMu sync.Mutex

	mu      sync.RWMutex
	state   RoomState
	code    domain.RoomCode
	self    domain.ParticipantID
	room    *domain.RoomSession
	channel ports.SignalingChannel
	stopFwd chan struct{}
	pending *pendingJoin
}

var _ ports.SignalSender = (*RoomController)(nil)

func NewRoomController(
	cfg RoomControllerConfig,
	sessions ports.SessionProvider,
	channels ports.ChannelFactory,
	peers ports.PeerManager,
	media ports.MediaSource,
	notifier ports.Notifier,
	metrics ports.Metrics,
	log *zap.SugaredLogger,
) *RoomController {
	if log == nil {
		log = logger.Nop()
	}
	defaults := DefaultRoomControllerConfig()
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = defaults.JoinTimeout
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = defaults.InboxSize
	}

	c := &RoomController{
		cfg:        cfg,
		sessions:   sessions,
		newChannel: channels,
		peers:      peers,
		media:      media,
		notifier:   notifier,
		metrics:    metrics,
		transcript: NewChatTranscript(),
		logger:     log.With("component", "room"),
		inbox:      make(chan inbound, cfg.InboxSize),
		state:      RoomIdle,
	}
	c.unsubscribe = sessions.Subscribe(c.onSession)
	return c
}

// Run handles channel events until ctx is done. Join only completes while
// Run is running.
func (c *RoomController) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in := <-c.inbox:
			c.handle(ctx, in.ch, in.ev)
		}
	}
}

// Close leaves the current room and stops following the session.
func (c *RoomController) Close(ctx context.Context) error {
	c.unsubscribe()
	return c.Leave(ctx)
}

// Join enters the room identified by code and blocks until the room
// snapshot arrived. A room that is already joined is left first.
func (c *RoomController) Join(ctx context.Context, code domain.RoomCode) (err error) {
	code = domain.RoomCode(strings.TrimSpace(string(code)))
	if err := validation.ValidateRoomCode(string(code)); err != nil {
		return toValidationError(err)
	}
	sess := c.sessions.Current()
	if sess == nil {
		return domain.NewAuthError(domain.AuthNoSession, nil)
	}

	// a join still waiting for its snapshot is abandoned, not completed
	c.mu.RLock()
	prev := c.pending
	c.mu.RUnlock()
	if prev != nil {
		prev.abort()
	}

	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()

	if c.State() != RoomIdle {
		c.logger.Infow("leaving current room before join", "room_code", c.Code(), "next", code)
		c.leave(ctx)
	}

	ctx, span := tracing.TraceRoom(ctx, "join", string(code))
	defer func() { tracing.End(span, err) }()

	self := domain.ParticipantID(sess.User.ID)
	ch := c.newChannel(self)
	if err := ch.Connect(ctx); err != nil {
		c.recordJoin("error")
		c.notify(domain.NoticeError, domain.NoticeJoinFailed, code,
			fmt.Sprintf("could not connect to room %s: %v", code, err))
		return err
	}

	pj := newPendingJoin(code)
	stop := make(chan struct{})

	c.mu.Lock()
	c.state = RoomJoining
	c.code = code
	c.self = self
	c.channel = ch
	c.stopFwd = stop
	c.pending = pj
	c.mu.Unlock()

	go c.forward(ch, stop)

	c.acquireMedia(ctx, code)

	if err := ch.JoinRoom(ctx, code); err != nil {
		c.teardown(context.Background(), ch, false, err, &domain.Notice{
			Level:   domain.NoticeError,
			Kind:    domain.NoticeJoinFailed,
			Message: fmt.Sprintf("could not join room %s: %v", code, err),
		})
		c.recordJoin("error")
		return err
	}

	timer := time.NewTimer(c.cfg.JoinTimeout)
	defer timer.Stop()

	select {
	case err = <-pj.result:
	case <-timer.C:
		err = c.giveUp(ch, pj, domain.ErrJoinTimeout)
	case <-ctx.Done():
		err = c.giveUp(ch, pj, ctx.Err())
	case <-pj.aborted:
		err = c.giveUp(ch, pj, domain.ErrJoinAborted)
	}

	c.recordJoin(joinResult(err))
	if err != nil {
		c.logger.Infow("join failed", "room_code", code, "error", err)
	}
	return err
}

// giveUp resolves pj with cause unless the join already completed.
func (c *RoomController) giveUp(ch ports.SignalingChannel, pj *pendingJoin, cause error) error {
	if !pj.finish(cause) {
		return <-pj.result
	}
	<-pj.result

	n := &domain.Notice{Level: domain.NoticeWarn, Kind: domain.NoticeJoinFailed}
	switch cause {
	case domain.ErrJoinAborted:
		n = &domain.Notice{Level: domain.NoticeInfo, Kind: domain.NoticeLeft, Message: fmt.Sprintf("join of room %s cancelled", pj.code)}
	case domain.ErrJoinTimeout:
		n.Message = fmt.Sprintf("room %s did not answer in time", pj.code)
	default:
		n.Message = fmt.Sprintf("join of room %s interrupted: %v", pj.code, cause)
	}
	c.teardown(context.Background(), ch, true, cause, n)
	return cause
}

// Leave exits the current room. A pending join is cancelled. Leaving while
// idle is a no-op.
func (c *RoomController) Leave(ctx context.Context) error {
	c.mu.RLock()
	pj := c.pending
	c.mu.RUnlock()
	if pj != nil {
		pj.abort()
	}

	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()
	c.leave(ctx)
	return nil
}

func (c *RoomController) leave(ctx context.Context) bool {
	c.mu.RLock()
	ch, code := c.channel, c.code
	c.mu.RUnlock()
	if ch == nil {
		return false
	}

	ctx, span := tracing.TraceRoom(ctx, "leave", string(code))
	defer span.End()

	return c.teardown(ctx, ch, true, domain.ErrJoinAborted, &domain.Notice{
		Level:   domain.NoticeInfo,
		Kind:    domain.NoticeLeft,
		Message: fmt.Sprintf("left room %s", code),
	})
}

// teardown returns to Idle if ch is still the current channel. Links are
// closed and the transcript is cleared. A pending join resolves with joinErr.
func (c *RoomController) teardown(ctx context.Context, ch ports.SignalingChannel, sendLeave bool, joinErr error, n *domain.Notice) bool {
	c.mu.Lock()
	if c.channel == nil || c.channel != ch {
		c.mu.Unlock()
		return false
	}
	code, pj, stop := c.code, c.pending, c.stopFwd
	c.state = RoomIdle
	c.code = ""
	c.room = nil
	c.channel = nil
	c.stopFwd = nil
	c.pending = nil
	c.mu.Unlock()

	if pj != nil {
		if joinErr == nil {
			joinErr = domain.ErrJoinAborted
		}
		pj.finish(joinErr)
	}
	close(stop)

	if sendLeave && ch.Connected() {
		if err := ch.LeaveRoom(ctx, code); err != nil {
			c.logger.Debugw("leave not delivered", "room_code", code, "error", err)
		}
	}
	c.peers.CloseAll()
	c.transcript.Clear()
	if err := ch.Close(); err != nil {
		c.logger.Debugw("failed to close signaling channel", "error", err)
	}
	c.setParticipants(0)

	c.logger.Infow("room session ended", "room_code", code)
	if n != nil {
		n.Room = code
		c.notifyNotice(*n)
	}
	return true
}

func (c *RoomController) forward(ch ports.SignalingChannel, stop <-chan struct{}) {
	for ev := range ch.Events() {
		select {
		case c.inbox <- inbound{ch: ch, ev: ev}:
		case <-stop:
			return
		}
	}
}

func (c *RoomController) onSession(sess *domain.Session) {
	if sess != nil {
		return
	}
	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()
	if ch == nil {
		return
	}
	// the caller may be the channel itself reporting a revoked token
	go c.teardown(context.Background(), ch, true, domain.NewAuthError(domain.AuthNoSession, nil), &domain.Notice{
		Level:   domain.NoticeWarn,
		Kind:    domain.NoticeSessionEnded,
		Message: "session ended, left the room",
	})
}

func (c *RoomController) handle(ctx context.Context, ch ports.SignalingChannel, ev domain.Event) {
	if !c.owns(ch) {
		c.logger.Debugw("dropping event from stale channel", "event", domain.EventName(ev))
		return
	}

	switch e := ev.(type) {
	case domain.RoomSnapshot:
		c.onSnapshot(ctx, ch, e)
	case domain.ParticipantJoined:
		c.onJoined(ctx, ch, e)
	case domain.ParticipantLeft:
		c.onLeft(ch, e)
	case domain.ChatMessageReceived:
		c.onChat(ch, e)
	case domain.Signal:
		c.onSignal(ctx, ch, e)
	case domain.Moderated:
		c.onModerated(ch, e)
	case domain.ChannelError:
		c.onChannelError(ch, e)
	default:
		c.logger.Debugw("unhandled event", "event", domain.EventName(ev))
	}
}

func (c *RoomController) owns(ch ports.SignalingChannel) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel != nil && c.channel == ch
}

func (c *RoomController) onSnapshot(ctx context.Context, ch ports.SignalingChannel, snap domain.RoomSnapshot) {
	c.mu.Lock()
	if c.channel != ch {
		c.mu.Unlock()
		return
	}

	switch c.state {
	case RoomJoining:
		pj := c.pending
		if snap.Code != "" && snap.Code != pj.code {
			c.mu.Unlock()
			c.logger.Warnw("snapshot for another room", "room_code", pj.code, "snapshot_code", snap.Code)
			return
		}
		if !pj.finish(nil) {
			c.mu.Unlock()
			return
		}
		c.room = domain.NewRoomSession(pj.code, snap.Name, snap.HostID, c.self, snap.Participants)
		c.state = RoomActive
		c.pending = nil
		remotes := c.room.Remotes()
		total := len(c.room.Participants)
		name := c.room.Name
		c.mu.Unlock()

		c.logger.Infow("joined room", "room_code", pj.code, "room_name", name, "participants", total)
		c.notify(domain.NoticeInfo, domain.NoticeJoined, pj.code,
			fmt.Sprintf("joined %s (%d participant(s))", displayRoom(pj.code, name), total))
		c.setParticipants(total)

		for _, p := range remotes {
			c.connectTo(ctx, p.ID)
		}

	case RoomActive:
		prev := c.room
		name := snap.Name
		if name == "" {
			name = prev.Name
		}
		next := domain.NewRoomSession(prev.Code, name, snap.HostID, c.self, snap.Participants)
		next.JoinedAt = prev.JoinedAt

		var gone, fresh []domain.ParticipantID
		for _, p := range prev.Remotes() {
			if !next.Has(p.ID) {
				gone = append(gone, p.ID)
			}
		}
		for _, p := range next.Remotes() {
			if !prev.Has(p.ID) {
				fresh = append(fresh, p.ID)
			}
		}
		c.room = next
		total := len(next.Participants)
		c.mu.Unlock()

		c.logger.Debugw("membership replaced by snapshot", "participants", total, "gone", len(gone), "new", len(fresh))
		for _, id := range gone {
			c.peers.CloseLink(id)
		}
		for _, id := range fresh {
			if _, err := c.peers.EnsureLink(ctx, id); err != nil {
				c.logger.Warnw("failed to prepare link", "participant", id, "error", err)
			}
		}
		c.setParticipants(total)

	default:
		c.mu.Unlock()
	}
}

// connectTo opens a link to a participant that was present before us. The
// newcomer always makes the offer.
func (c *RoomController) connectTo(ctx context.Context, id domain.ParticipantID) {
	if _, err := c.peers.EnsureLink(ctx, id); err != nil {
		c.logger.Warnw("failed to create link", "participant", id, "error", err)
		return
	}
	if err := c.peers.InitiateOffer(ctx, id); err != nil {
		c.logger.Warnw("failed to send offer", "participant", id, "error", err)
	}
}

func (c *RoomController) onJoined(ctx context.Context, ch ports.SignalingChannel, e domain.ParticipantJoined) {
	p := e.Participant

	c.mu.Lock()
	if c.channel != ch || c.state != RoomActive {
		c.mu.Unlock()
		c.logger.Debugw("participant joined before snapshot", "participant", p.ID)
		return
	}
	if p.ID == c.self {
		c.mu.Unlock()
		return
	}
	c.room.Upsert(p)
	total := len(c.room.Participants)
	code := c.code
	c.mu.Unlock()

	c.setParticipants(total)
	c.notify(domain.NoticeInfo, domain.NoticeParticipantIn, code, fmt.Sprintf("%s joined", nameOf(p)))

	// the newcomer sends the offer
	if _, err := c.peers.EnsureLink(ctx, p.ID); err != nil {
		c.logger.Warnw("failed to prepare link", "participant", p.ID, "error", err)
	}
}

func (c *RoomController) onLeft(ch ports.SignalingChannel, e domain.ParticipantLeft) {
	c.mu.Lock()
	if c.channel != ch || c.state != RoomActive || e.ParticipantID == c.self {
		c.mu.Unlock()
		return
	}
	known, _ := c.room.Get(e.ParticipantID)
	removed := c.room.Remove(e.ParticipantID)
	total := len(c.room.Participants)
	code := c.code
	c.mu.Unlock()

	c.peers.CloseLink(e.ParticipantID)
	if !removed {
		return
	}

	name := e.DisplayName
	if name == "" {
		name = nameOf(known)
	}
	msg := fmt.Sprintf("%s left", name)
	if e.Kicked {
		msg = fmt.Sprintf("%s was removed", name)
		if e.KickedBy != "" {
			msg += " by " + e.KickedBy
		}
	}
	c.setParticipants(total)
	c.notify(domain.NoticeInfo, domain.NoticeParticipantOut, code, msg)
}

// onChat appends to the transcript. Sent messages show up only when the
// server echoes them back.
func (c *RoomController) onChat(ch ports.SignalingChannel, e domain.ChatMessageReceived) {
	c.mu.RLock()
	active := c.channel == ch && c.state == RoomActive
	c.mu.RUnlock()
	if !active {
		c.logger.Debugw("chat message outside a room dropped")
		return
	}
	c.transcript.Append(e.Message)
	if c.metrics != nil {
		c.metrics.RecordChatMessage()
	}
}

func (c *RoomController) onSignal(ctx context.Context, ch ports.SignalingChannel, sig domain.Signal) {
	c.mu.Lock()
	if c.channel != ch || c.state != RoomActive || sig.From == "" || sig.From == c.self {
		c.mu.Unlock()
		return
	}
	provisional := false
	if !c.room.Has(sig.From) {
		if sig.Kind == domain.SignalAnswer {
			c.mu.Unlock()
			c.logger.Debugw("signal from unknown participant dropped", "from", sig.From, "kind", sig.Kind)
			return
		}
		// an offer or candidate raced ahead of the user-joined event
		c.room.Upsert(domain.Participant{ID: sig.From})
		provisional = true
	}
	total := len(c.room.Participants)
	c.mu.Unlock()

	if provisional {
		c.setParticipants(total)
	}
	if err := c.peers.HandleSignal(ctx, sig); err != nil {
		c.logger.Warnw("failed to apply signal", "from", sig.From, "kind", sig.Kind, "error", err)
	}
}

func (c *RoomController) onModerated(ch ports.SignalingChannel, e domain.Moderated) {
	c.mu.RLock()
	code := c.code
	c.mu.RUnlock()

	verb := "removed from"
	if e.Action == domain.ActionBan {
		verb = "banned from"
	}
	msg := fmt.Sprintf("you were %s room %s", verb, code)
	if e.By != "" {
		msg += " by " + e.By
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}

	c.logger.Warnw("removed by moderator", "room_code", code, "action", e.Action, "by", e.By, "reason", e.Reason)
	c.teardown(context.Background(), ch, false, fmt.Errorf("%w: %s", domain.ErrRemoved, e.Reason), &domain.Notice{
		Level:   domain.NoticeWarn,
		Kind:    domain.NoticeModerated,
		Message: msg,
	})
}

func (c *RoomController) onChannelError(ch ports.SignalingChannel, e domain.ChannelError) {
	c.mu.RLock()
	state, code := c.state, c.code
	c.mu.RUnlock()

	switch {
	case e.Fatal && e.Code == domain.ChannelErrUnauthorized:
		c.teardown(context.Background(), ch, false, e, &domain.Notice{
			Level:   domain.NoticeError,
			Kind:    domain.NoticeSessionEnded,
			Message: "the server rejected the session, log in again",
		})
	case e.Fatal:
		c.teardown(context.Background(), ch, false, e, &domain.Notice{
			Level:   domain.NoticeError,
			Kind:    domain.NoticeDisconnected,
			Message: fmt.Sprintf("connection to room %s lost", code),
		})
	case state == RoomJoining:
		c.teardown(context.Background(), ch, true, e, &domain.Notice{
			Level:   domain.NoticeError,
			Kind:    domain.NoticeJoinFailed,
			Message: fmt.Sprintf("could not join room %s: %s", code, e.Message),
		})
	default:
		c.logger.Warnw("server reported an error", "room_code", code, "message", e.Message)
		c.notify(domain.NoticeWarn, domain.NoticeChannelError, code, e.Message)
	}
}

func (c *RoomController) acquireMedia(ctx context.Context, code domain.RoomCode) {
	if !c.cfg.Media || c.media == nil {
		return
	}
	media, err := c.media.Acquire(ctx)
	if err == nil {
		err = c.peers.SetLocalMedia(media)
	}
	if err != nil {
		c.logger.Warnw("continuing without media", "room_code", code, "error", err)
		c.notify(domain.NoticeWarn, domain.NoticeChatOnly, code,
			fmt.Sprintf("camera or microphone unavailable, joining with chat only: %v", err))
	}
}

// SendChat sends text to the room. It is not added to the transcript until
// the server relays it back.
func (c *RoomController) SendChat(ctx context.Context, text string) error {
	if err := validation.ValidateChatText(text); err != nil {
		return toValidationError(err)
	}
	ch, err := c.activeChannel()
	if err != nil {
		return err
	}
	return ch.SendChatMessage(ctx, text)
}

// Moderate asks the server to kick or ban target. Only the room host or an
// admin may do so; the server enforces the same rule.
func (c *RoomController) Moderate(ctx context.Context, target domain.ParticipantID, action domain.ModerationAction, reason string) (err error) {
	if !action.Valid() {
		return domain.NewValidationError("action", "must be kick or ban")
	}
	sess := c.sessions.Current()
	if sess == nil {
		return domain.NewAuthError(domain.AuthNoSession, nil)
	}

	c.mu.RLock()
	if c.state != RoomActive {
		c.mu.RUnlock()
		return domain.ErrNotInRoom
	}
	self, code, ch := c.self, c.code, c.channel
	isHost := c.room.IsHost(self)
	member := c.room.Has(target)
	c.mu.RUnlock()

	switch {
	case target == self:
		return domain.NewValidationError("target", "cannot moderate yourself")
	case !member:
		return domain.NewValidationError("target", "not a participant")
	case !isHost && !sess.User.IsAdmin():
		return domain.ErrNotPermitted
	}

	ctx, span := tracing.TraceRoom(ctx, string(action), string(code))
	defer func() { tracing.End(span, err) }()
	tracing.AddSpanAttributes(ctx, tracing.ParticipantKey.String(string(target)))

	if err := ch.RequestModeration(ctx, target, action, strings.TrimSpace(reason)); err != nil {
		return err
	}
	c.logger.Infow("moderation requested", "room_code", code, "target", target, "action", action)
	return nil
}

// SendSignal relays negotiation messages from the peer manager over the
// current channel.
func (c *RoomController) SendSignal(ctx context.Context, kind domain.SignalKind, target domain.ParticipantID, payload json.RawMessage) error {
	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()
	if ch == nil {
		return domain.ErrNotInRoom
	}
	return ch.SendSignal(ctx, kind, target, payload)
}

func (c *RoomController) activeChannel() (ports.SignalingChannel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != RoomActive {
		return nil, domain.ErrNotInRoom
	}
	return c.channel, nil
}

func (c *RoomController) State() RoomState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *RoomController) Code() domain.RoomCode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.code
}

// Room returns a copy of the joined room, or nil.
func (c *RoomController) Room() *domain.RoomSession {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.room.Clone()
}

func (c *RoomController) Transcript() []domain.ChatMessage { return c.transcript.All() }
func (c *RoomController) Links() []domain.PeerLink         { return c.peers.Links() }

func (c *RoomController) SetAudioEnabled(enabled bool) error { return c.peers.SetAudioEnabled(enabled) }
func (c *RoomController) SetVideoEnabled(enabled bool) error { return c.peers.SetVideoEnabled(enabled) }

func (c *RoomController) ShareScreen(track webrtc.TrackLocal) error {
	if c.State() != RoomActive {
		return domain.ErrNotInRoom
	}
	return c.peers.ReplaceVideo(track)
}

func (c *RoomController) StopScreenShare() error { return c.peers.RestoreCamera() }

func (c *RoomController) notify(level domain.NoticeLevel, kind domain.NoticeKind, code domain.RoomCode, msg string) {
	c.notifyNotice(domain.Notice{Level: level, Kind: kind, Room: code, Message: msg})
}

func (c *RoomController) notifyNotice(n domain.Notice) {
	if c.notifier != nil {
		c.notifier.Notify(n)
	}
}

func (c *RoomController) recordJoin(result string) {
	if c.metrics != nil {
		c.metrics.RecordJoin(result)
	}
}

func (c *RoomController) setParticipants(n int) {
	if c.metrics != nil {
		c.metrics.SetParticipants(n)
	}
}

func joinResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrJoinTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrJoinAborted):
		return "aborted"
	}
	return "error"
}

func nameOf(p domain.Participant) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return "participant " + string(p.ID)
}

func displayRoom(code domain.RoomCode, name string) string {
	if name == "" {
		return string(code)
	}
	return fmt.Sprintf("%s (%s)", name, code)
}
