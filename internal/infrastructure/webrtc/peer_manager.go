package webrtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"roomlink/internal/core/domain"
	"roomlink/internal/core/ports"
	"roomlink/pkg/logger"
	"roomlink/pkg/optimize"
	"roomlink/pkg/tracing"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

var ErrNoLocalVideo = errors.New("no local video to replace")

// TrackHandler receives a remote track. It runs on its own goroutine and
// owns the track until it returns.
type TrackHandler func(from domain.ParticipantID, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)

type link struct {
	id        domain.ParticipantID
	conn      Connection
	epoch     uint64
	state     domain.LinkState
	initiator bool
	createdAt time.Time

	audio         Sender
	video         Sender
	recvOnlyAdded bool

	remoteSet bool
	pending   []webrtc.ICECandidateInit
}

// Manager keeps one peer connection per remote participant of the current
// room. Callbacks from pion are matched against the link they were
// registered for and the manager epoch, so events from closed links are
// dropped.
type Manager struct {
	newConn  ConnectionFactory
	signals  ports.SignalSender
	notifier ports.Notifier
	metrics  ports.Metrics
	logger   *zap.SugaredLogger

	mu      sync.Mutex
	epoch   uint64
	links   map[domain.ParticipantID]*link
	media   *ports.LocalMedia
	video   webrtc.TrackLocal
	audioOn bool
	videoOn bool
	onTrack TrackHandler
}

var _ ports.PeerManager = (*Manager)(nil)

func NewManager(factory ConnectionFactory, signals ports.SignalSender, notifier ports.Notifier, metrics ports.Metrics, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		newConn:  factory,
		signals:  signals,
		notifier: notifier,
		metrics:  metrics,
		logger:   log.With("component", "peers"),
		links:    make(map[domain.ParticipantID]*link),
		audioOn:  true,
		videoOn:  true,
	}
}

// SetSignalSender points negotiation output at a new signaling channel.
func (m *Manager) SetSignalSender(signals ports.SignalSender) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals = signals
}

func (m *Manager) SetTrackHandler(h TrackHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTrack = h
}

func (m *Manager) EnsureLink(ctx context.Context, id domain.ParticipantID) (domain.PeerLink, error) {
	l, err := m.ensure(id)
	if err != nil {
		return domain.PeerLink{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return l.snapshot(), nil
}

func (m *Manager) ensure(id domain.ParticipantID) (*link, error) {
	if id == "" {
		return nil, domain.NewValidationError("participant_id", "required")
	}

	m.mu.Lock()
	if l, ok := m.links[id]; ok {
		m.mu.Unlock()
		return l, nil
	}
	epoch := m.epoch
	media := m.media
	video := m.video
	audioOn, videoOn := m.audioOn, m.videoOn
	m.mu.Unlock()

	conn, err := m.newConn()
	if err != nil {
		return nil, err
	}
	l := &link{
		id:        id,
		conn:      conn,
		epoch:     epoch,
		state:     domain.LinkNew,
		createdAt: time.Now(),
	}

	if media != nil {
		if err := l.attach(media.Audio, video, audioOn, videoOn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to attach local media: %w", err)
		}
	}

	conn.OnICECandidate(func(c webrtc.ICECandidateInit) { m.relayCandidate(l, c) })
	conn.OnStateChange(func(s domain.LinkState) { m.updateState(l, s) })
	conn.OnTrack(func(t *webrtc.TrackRemote, r *webrtc.RTPReceiver) { m.handleTrack(l, t, r) })

	m.mu.Lock()
	if existing, ok := m.links[id]; ok {
		m.mu.Unlock()
		conn.Close()
		return existing, nil
	}
	if m.epoch != epoch {
		m.mu.Unlock()
		conn.Close()
		return nil, domain.ErrLinkNotFound
	}
	m.links[id] = l
	n := len(m.links)
	m.mu.Unlock()

	m.recordLinks(n)
	m.logger.Debugw("peer link created", "participant_id", id, "media", media != nil)
	return l, nil
}

func (l *link) attach(audio, video webrtc.TrackLocal, audioOn, videoOn bool) error {
	if audio != nil && l.audio == nil {
		s, err := l.conn.AddTrack(audio)
		if err != nil {
			return err
		}
		if !audioOn {
			if err := s.ReplaceTrack(nil); err != nil {
				return err
			}
		}
		l.audio = s
	}
	if video != nil && l.video == nil {
		s, err := l.conn.AddTrack(video)
		if err != nil {
			return err
		}
		if !videoOn {
			if err := s.ReplaceTrack(nil); err != nil {
				return err
			}
		}
		l.video = s
	}
	return nil
}

func (l *link) snapshot() domain.PeerLink {
	return domain.PeerLink{
		RemoteParticipantID: l.id,
		State:               l.state,
		LocalMediaAttached:  l.audio != nil || l.video != nil,
		Initiator:           l.initiator,
		CreatedAt:           l.createdAt,
	}
}

// current reports whether l is still the live link for its participant.
// Callers hold m.mu.
func (m *Manager) current(l *link) bool {
	return m.links[l.id] == l && l.epoch == m.epoch
}

func (m *Manager) InitiateOffer(ctx context.Context, id domain.ParticipantID) (err error) {
	ctx, span := tracing.TraceWebRTC(ctx, "offer", string(id))
	defer func() { tracing.End(span, err) }()

	l, err := m.ensure(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	l.initiator = true
	l.state = domain.LinkConnecting
	addAudio := l.audio == nil && !l.recvOnlyAdded
	addVideo := l.video == nil && !l.recvOnlyAdded
	l.recvOnlyAdded = true
	signals := m.signals
	m.mu.Unlock()

	// without local tracks the offer still needs media sections to receive
	if rc, ok := l.conn.(receiveOnly); ok {
		if addAudio {
			if err := rc.AddReceiver(webrtc.RTPCodecTypeAudio); err != nil {
				return m.drop(l, err)
			}
		}
		if addVideo {
			if err := rc.AddReceiver(webrtc.RTPCodecTypeVideo); err != nil {
				return m.drop(l, err)
			}
		}
	}

	offer, err := l.conn.CreateOffer()
	if err != nil {
		return m.drop(l, err)
	}
	if err := l.conn.SetLocalDescription(offer); err != nil {
		return m.drop(l, err)
	}
	payload, err := json.Marshal(offer)
	if err != nil {
		return m.drop(l, err)
	}

	// the link may have been closed while the offer was being built
	m.mu.Lock()
	live := m.current(l)
	m.mu.Unlock()
	if !live {
		return domain.ErrLinkNotFound
	}
	if err := signals.SendSignal(ctx, domain.SignalOffer, id, payload); err != nil {
		return m.drop(l, err)
	}

	m.logger.Debugw("offer sent", "participant_id", id)
	return nil
}

// HandleSignal applies a relayed offer, answer or ICE candidate.
func (m *Manager) HandleSignal(ctx context.Context, sig domain.Signal) error {
	switch sig.Kind {
	case domain.SignalOffer:
		return m.handleOffer(ctx, sig)
	case domain.SignalAnswer:
		return m.handleAnswer(ctx, sig)
	case domain.SignalICECandidate:
		return m.handleCandidate(sig)
	}
	return fmt.Errorf("unknown signal kind %q", sig.Kind)
}

func decodeDescription(sig domain.Signal, want webrtc.SDPType) (webrtc.SessionDescription, error) {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(sig.Payload, &desc); err != nil {
		return desc, fmt.Errorf("malformed %s from %s: %w", sig.Kind, sig.From, err)
	}
	if desc.SDP == "" {
		return desc, fmt.Errorf("empty %s from %s", sig.Kind, sig.From)
	}
	if desc.Type == 0 {
		desc.Type = want
	}
	return desc, nil
}

func (m *Manager) handleOffer(ctx context.Context, sig domain.Signal) (err error) {
	ctx, span := tracing.TraceWebRTC(ctx, "answer", string(sig.From))
	defer func() { tracing.End(span, err) }()

	desc, err := decodeDescription(sig, webrtc.SDPTypeOffer)
	if err != nil {
		return err
	}

	// an offer crossing our own unanswered offer: answer theirs on a fresh link
	m.mu.Lock()
	existing := m.links[sig.From]
	glare := existing != nil && existing.initiator && !existing.remoteSet
	m.mu.Unlock()
	if glare {
		m.logger.Debugw("offer collision, answering remote offer", "participant_id", sig.From)
		m.CloseLink(sig.From)
	}

	l, err := m.ensure(sig.From)
	if err != nil {
		return err
	}
	if err := l.conn.SetRemoteDescription(desc); err != nil {
		return m.drop(l, err)
	}
	m.remoteApplied(l)

	answer, err := l.conn.CreateAnswer()
	if err != nil {
		return m.drop(l, err)
	}
	if err := l.conn.SetLocalDescription(answer); err != nil {
		return m.drop(l, err)
	}
	payload, err := json.Marshal(answer)
	if err != nil {
		return m.drop(l, err)
	}

	m.mu.Lock()
	signals := m.signals
	live := m.current(l)
	if live && l.state == domain.LinkNew {
		l.state = domain.LinkConnecting
	}
	m.mu.Unlock()
	if !live {
		return domain.ErrLinkNotFound
	}

	if err := signals.SendSignal(ctx, domain.SignalAnswer, sig.From, payload); err != nil {
		return m.drop(l, err)
	}
	return nil
}

func (m *Manager) handleAnswer(ctx context.Context, sig domain.Signal) error {
	desc, err := decodeDescription(sig, webrtc.SDPTypeAnswer)
	if err != nil {
		return err
	}

	m.mu.Lock()
	l, ok := m.links[sig.From]
	m.mu.Unlock()
	if !ok {
		return domain.ErrLinkNotFound
	}

	if err := l.conn.SetRemoteDescription(desc); err != nil {
		return m.drop(l, err)
	}
	m.remoteApplied(l)
	return nil
}

func (m *Manager) handleCandidate(sig domain.Signal) error {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(sig.Payload, &candidate); err != nil {
		return fmt.Errorf("malformed candidate from %s: %w", sig.From, err)
	}

	m.mu.Lock()
	_, ok := m.links[sig.From]
	m.mu.Unlock()
	if !ok {
		// the candidate outran the offer; hold it on a link the offer will reuse
		if _, err := m.ensure(sig.From); err != nil {
			return err
		}
	}

	m.mu.Lock()
	l, ok := m.links[sig.From]
	if !ok {
		m.mu.Unlock()
		return domain.ErrLinkNotFound
	}
	if !l.remoteSet {
		l.pending = append(l.pending, candidate)
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if err := l.conn.AddICECandidate(candidate); err != nil {
		m.logger.Warnw("failed to add ICE candidate", "participant_id", sig.From, "error", err)
		return err
	}
	return nil
}

// remoteApplied flushes candidates that arrived before the remote
// description.
func (m *Manager) remoteApplied(l *link) {
	m.mu.Lock()
	l.remoteSet = true
	pending := l.pending
	l.pending = nil
	m.mu.Unlock()

	for _, c := range pending {
		if err := l.conn.AddICECandidate(c); err != nil {
			m.logger.Warnw("failed to add queued ICE candidate", "participant_id", l.id, "error", err)
		}
	}
}

func (m *Manager) relayCandidate(l *link, c webrtc.ICECandidateInit) {
	m.mu.Lock()
	live := m.current(l)
	signals := m.signals
	m.mu.Unlock()
	if !live {
		return
	}

	payload, err := json.Marshal(c)
	if err != nil {
		return
	}
	if err := signals.SendSignal(context.Background(), domain.SignalICECandidate, l.id, payload); err != nil {
		m.logger.Debugw("failed to relay ICE candidate", "participant_id", l.id, "error", err)
	}
}

func (m *Manager) updateState(l *link, s domain.LinkState) {
	m.mu.Lock()
	if !m.current(l) {
		m.mu.Unlock()
		return
	}
	l.state = s
	m.mu.Unlock()

	m.logger.Debugw("peer link state changed", "participant_id", l.id, "state", s)
	if s == domain.LinkFailed {
		m.drop(l, errors.New("connection failed"))
	}
}

// drop removes a link that could not be established. Links are never
// retried.
func (m *Manager) drop(l *link, cause error) error {
	m.mu.Lock()
	live := m.current(l)
	m.mu.Unlock()
	if !live {
		return cause
	}

	m.logger.Warnw("peer link failed", "participant_id", l.id, "error", cause)
	m.removeLink(l)
	if m.notifier != nil {
		m.notifier.Notify(domain.Notice{
			Level:   domain.NoticeWarn,
			Kind:    domain.NoticePeerUnavailable,
			Message: fmt.Sprintf("media connection to %s failed", l.id),
		})
	}
	return cause
}

func (m *Manager) removeLink(l *link) {
	m.mu.Lock()
	if m.links[l.id] == l {
		delete(m.links, l.id)
	}
	n := len(m.links)
	m.mu.Unlock()

	if err := l.conn.Close(); err != nil {
		m.logger.Debugw("error closing peer connection", "participant_id", l.id, "error", err)
	}
	m.recordLinks(n)
}

func (m *Manager) handleTrack(l *link, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	m.mu.Lock()
	live := m.current(l)
	handler := m.onTrack
	m.mu.Unlock()
	if !live {
		return
	}

	m.logger.Infow("remote track received",
		"participant_id", l.id,
		"kind", track.Kind().String(),
		"codec", track.Codec().MimeType,
	)

	if track.Kind() == webrtc.RTPCodecTypeVideo {
		pli := []rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())}}
		if err := l.conn.WriteRTCP(pli); err != nil {
			m.logger.Debugw("failed to request keyframe", "participant_id", l.id, "error", err)
		}
	}

	if handler != nil {
		go handler(l.id, track, receiver)
		return
	}
	go m.drain(l.id, track)
}

// drain reads a remote track nobody renders so its buffers do not fill,
// counting payload bytes.
func (m *Manager) drain(id domain.ParticipantID, track *webrtc.TrackRemote) {
	kind := track.Kind().String()
	bufp := optimize.RTPBuffers.Get()
	defer optimize.RTPBuffers.Put(bufp)
	buf := *bufp
	pkt := &rtp.Packet{}

	for {
		n, _, err := track.Read(buf)
		if err != nil {
			m.logger.Debugw("remote track ended", "participant_id", id, "kind", kind, "error", err)
			return
		}
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			continue
		}
		if m.metrics != nil {
			m.metrics.RecordMediaBytes(kind, len(pkt.Payload))
		}
	}
}

func (m *Manager) CloseLink(id domain.ParticipantID) {
	m.mu.Lock()
	l, ok := m.links[id]
	m.mu.Unlock()
	if ok {
		m.removeLink(l)
		m.logger.Debugw("peer link closed", "participant_id", id)
	}
}

// CloseAll closes every link and releases the local media. Callbacks still
// in flight for the old links are ignored.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	m.epoch++
	links := m.links
	m.links = make(map[domain.ParticipantID]*link)
	media := m.media
	m.media = nil
	m.video = nil
	m.audioOn, m.videoOn = true, true
	m.mu.Unlock()

	for _, l := range links {
		if err := l.conn.Close(); err != nil {
			m.logger.Debugw("error closing peer connection", "participant_id", l.id, "error", err)
		}
	}
	if media != nil && media.Stop != nil {
		media.Stop()
	}
	m.recordLinks(0)
	if len(links) > 0 {
		m.logger.Infow("closed all peer links", "count", len(links))
	}
}

// SetLocalMedia hands the manager ownership of media. Links that exist
// already get the tracks added; they take effect on their next negotiation.
func (m *Manager) SetLocalMedia(media *ports.LocalMedia) error {
	m.mu.Lock()
	old := m.media
	m.media = media
	m.video = nil
	if media != nil {
		m.video = media.Video
	}
	var errs []error
	if media != nil {
		for _, l := range m.links {
			if err := l.attach(media.Audio, m.video, m.audioOn, m.videoOn); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", l.id, err))
			}
		}
	}
	m.mu.Unlock()

	if old != nil && old != media && old.Stop != nil {
		old.Stop()
	}
	return errors.Join(errs...)
}

func (m *Manager) SetAudioEnabled(enabled bool) error {
	m.mu.Lock()
	m.audioOn = enabled
	var track webrtc.TrackLocal
	if m.media != nil {
		track = m.media.Audio
	}
	senders := m.senders(func(l *link) Sender { return l.audio })
	m.mu.Unlock()

	if !enabled {
		track = nil
	}
	return replaceAll(senders, track)
}

func (m *Manager) SetVideoEnabled(enabled bool) error {
	m.mu.Lock()
	m.videoOn = enabled
	track := m.video
	senders := m.senders(func(l *link) Sender { return l.video })
	m.mu.Unlock()

	if !enabled {
		track = nil
	}
	return replaceAll(senders, track)
}

func (m *Manager) ReplaceVideo(track webrtc.TrackLocal) error {
	if track == nil {
		return ErrNoLocalVideo
	}

	m.mu.Lock()
	if m.media == nil || m.media.Video == nil {
		m.mu.Unlock()
		return ErrNoLocalVideo
	}
	m.video = track
	on := m.videoOn
	senders := m.senders(func(l *link) Sender { return l.video })
	m.mu.Unlock()

	if !on {
		return nil
	}
	return replaceAll(senders, track)
}

func (m *Manager) RestoreCamera() error {
	m.mu.Lock()
	var camera webrtc.TrackLocal
	if m.media != nil {
		camera = m.media.Video
	}
	m.mu.Unlock()
	return m.ReplaceVideo(camera)
}

// senders collects one sender per link. Callers hold m.mu.
func (m *Manager) senders(pick func(*link) Sender) []Sender {
	out := make([]Sender, 0, len(m.links))
	for _, l := range m.links {
		if s := pick(l); s != nil {
			out = append(out, s)
		}
	}
	return out
}

func replaceAll(senders []Sender, track webrtc.TrackLocal) error {
	var errs []error
	for _, s := range senders {
		if err := s.ReplaceTrack(track); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Links returns the current links in creation order.
func (m *Manager) Links() []domain.PeerLink {
	m.mu.Lock()
	out := make([]domain.PeerLink, 0, len(m.links))
	for _, l := range m.links {
		out = append(out, l.snapshot())
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].RemoteParticipantID < out[j].RemoteParticipantID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *Manager) recordLinks(n int) {
	if m.metrics != nil {
		m.metrics.SetPeerLinks(n)
	}
}
