package webrtc

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"roomlink/internal/core/domain"
	"roomlink/internal/core/ports"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSignalSender struct {
	mock.Mock
}

func (m *MockSignalSender) SendSignal(ctx context.Context, kind domain.SignalKind, target domain.ParticipantID, payload json.RawMessage) error {
	args := m.Called(ctx, kind, target, payload)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(n domain.Notice) {
	m.Called(n)
}

type fakeSender struct {
	mu    sync.Mutex
	track webrtc.TrackLocal
}

func (s *fakeSender) ReplaceTrack(track webrtc.TrackLocal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track = track
	return nil
}

func (s *fakeSender) Track() webrtc.TrackLocal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.track
}

type fakeConn struct {
	mu         sync.Mutex
	closed     bool
	remote     *webrtc.SessionDescription
	local      *webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	senders    []*fakeSender
	receivers  []webrtc.RTPCodecType
	remoteErr  error

	// runs before the local description is applied
	beforeLocal func()

	onICE   func(webrtc.ICECandidateInit)
	onState func(domain.LinkState)
}

func (c *fakeConn) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}, nil
}

func (c *fakeConn) CreateAnswer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}, nil
}

func (c *fakeConn) SetLocalDescription(desc webrtc.SessionDescription) error {
	if c.beforeLocal != nil {
		c.beforeLocal()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local = &desc
	return nil
}

func (c *fakeConn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remoteErr != nil {
		return c.remoteErr
	}
	c.remote = &desc
	return nil
}

func (c *fakeConn) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remote == nil {
		return errors.New("remote description not set")
	}
	c.candidates = append(c.candidates, candidate)
	return nil
}

func (c *fakeConn) AddTrack(track webrtc.TrackLocal) (Sender, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &fakeSender{track: track}
	c.senders = append(c.senders, s)
	return s, nil
}

func (c *fakeConn) AddReceiver(kind webrtc.RTPCodecType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receivers = append(c.receivers, kind)
	return nil
}

func (c *fakeConn) WriteRTCP(pkts []rtcp.Packet) error { return nil }

func (c *fakeConn) OnICECandidate(fn func(webrtc.ICECandidateInit))           { c.onICE = fn }
func (c *fakeConn) OnStateChange(fn func(domain.LinkState))                   { c.onState = fn }
func (c *fakeConn) OnTrack(fn func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type connRecorder struct {
	mu          sync.Mutex
	conns       []*fakeConn
	beforeLocal func()
}

func (r *connRecorder) factory() (Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &fakeConn{beforeLocal: r.beforeLocal}
	r.conns = append(r.conns, c)
	return c, nil
}

func (r *connRecorder) last() *fakeConn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[len(r.conns)-1]
}

func (r *connRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

func newTestManager(t *testing.T) (*Manager, *connRecorder, *MockSignalSender, *MockNotifier) {
	t.Helper()
	rec := &connRecorder{}
	signals := &MockSignalSender{}
	notifier := &MockNotifier{}
	return NewManager(rec.factory, signals, notifier, nil, nil), rec, signals, notifier
}

func testMedia(t *testing.T) (*ports.LocalMedia, *int) {
	t.Helper()
	media, err := StaticSource{Audio: true, Video: true}.Acquire(context.Background())
	require.NoError(t, err)
	stops := 0
	media.Stop = func() { stops++ }
	return media, &stops
}

func TestManager_EnsureLinkIsIdempotent(t *testing.T) {
	m, rec, _, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.EnsureLink(ctx, "u1")
	require.NoError(t, err)
	second, err := m.EnsureLink(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, 1, rec.count())
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Len(t, m.Links(), 1)
}

func TestManager_InitiateOfferSendsToTarget(t *testing.T) {
	m, rec, signals, _ := newTestManager(t)
	signals.On("SendSignal", mock.Anything, domain.SignalOffer, domain.ParticipantID("u1"), mock.Anything).Return(nil)

	require.NoError(t, m.InitiateOffer(context.Background(), "u1"))

	signals.AssertExpectations(t)
	payload := signals.Calls[0].Arguments.Get(3).(json.RawMessage)
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0 offer"}`, string(payload))

	links := m.Links()
	require.Len(t, links, 1)
	assert.True(t, links[0].Initiator)
	assert.Equal(t, domain.LinkConnecting, links[0].State)
	// no local media: the offer asks to receive both kinds
	assert.Len(t, rec.last().receivers, 2)
}

func TestManager_AnswersOfferAndFlushesQueuedCandidates(t *testing.T) {
	m, rec, signals, _ := newTestManager(t)
	signals.On("SendSignal", mock.Anything, domain.SignalAnswer, domain.ParticipantID("u2"), mock.Anything).Return(nil)
	ctx := context.Background()

	_, err := m.EnsureLink(ctx, "u2")
	require.NoError(t, err)

	// candidate before the offer is queued
	require.NoError(t, m.HandleSignal(ctx, domain.Signal{
		Kind:    domain.SignalICECandidate,
		From:    "u2",
		Payload: json.RawMessage(`{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host"}`),
	}))
	assert.Empty(t, rec.last().candidates)

	require.NoError(t, m.HandleSignal(ctx, domain.Signal{
		Kind:    domain.SignalOffer,
		From:    "u2",
		Payload: json.RawMessage(`{"type":"offer","sdp":"v=0 remote"}`),
	}))

	conn := rec.last()
	require.NotNil(t, conn.remote)
	assert.Equal(t, "v=0 remote", conn.remote.SDP)
	assert.Len(t, conn.candidates, 1)
	signals.AssertExpectations(t)
}

func TestManager_OfferFromUnknownParticipantCreatesLink(t *testing.T) {
	m, _, signals, _ := newTestManager(t)
	signals.On("SendSignal", mock.Anything, domain.SignalAnswer, domain.ParticipantID("u9"), mock.Anything).Return(nil)

	require.NoError(t, m.HandleSignal(context.Background(), domain.Signal{
		Kind:    domain.SignalOffer,
		From:    "u9",
		Payload: json.RawMessage(`{"type":"offer","sdp":"v=0"}`),
	}))

	links := m.Links()
	require.Len(t, links, 1)
	assert.False(t, links[0].Initiator)
}

// Both sides offered at once: the pending local offer is dropped and the
// remote offer is answered on a fresh connection.
func TestManager_OfferCollisionAnswersOnFreshLink(t *testing.T) {
	m, rec, signals, _ := newTestManager(t)
	signals.On("SendSignal", mock.Anything, domain.SignalOffer, domain.ParticipantID("u3"), mock.Anything).Return(nil)
	signals.On("SendSignal", mock.Anything, domain.SignalAnswer, domain.ParticipantID("u3"), mock.Anything).Return(nil)
	ctx := context.Background()

	require.NoError(t, m.InitiateOffer(ctx, "u3"))
	first := rec.last()

	require.NoError(t, m.HandleSignal(ctx, domain.Signal{
		Kind:    domain.SignalOffer,
		From:    "u3",
		Payload: json.RawMessage(`{"type":"offer","sdp":"v=0 remote"}`),
	}))

	assert.True(t, first.isClosed())
	require.Equal(t, 2, rec.count())
	fresh := rec.last()
	require.NotNil(t, fresh.remote)
	assert.Equal(t, "v=0 remote", fresh.remote.SDP)
	assert.False(t, fresh.isClosed())

	links := m.Links()
	require.Len(t, links, 1)
	assert.False(t, links[0].Initiator)
	signals.AssertExpectations(t)
}

func TestManager_CandidateBeforeOfferIsHeld(t *testing.T) {
	m, rec, signals, _ := newTestManager(t)
	signals.On("SendSignal", mock.Anything, domain.SignalAnswer, domain.ParticipantID("u4"), mock.Anything).Return(nil)
	ctx := context.Background()

	require.NoError(t, m.HandleSignal(ctx, domain.Signal{
		Kind:    domain.SignalICECandidate,
		From:    "u4",
		Payload: json.RawMessage(`{"candidate":"candidate:1 1 udp 1 10.0.0.4 5000 typ host"}`),
	}))
	require.Len(t, m.Links(), 1)
	assert.Empty(t, rec.last().candidates)

	require.NoError(t, m.HandleSignal(ctx, domain.Signal{
		Kind:    domain.SignalOffer,
		From:    "u4",
		Payload: json.RawMessage(`{"type":"offer","sdp":"v=0 remote"}`),
	}))

	assert.Equal(t, 1, rec.count())
	assert.Len(t, rec.last().candidates, 1)
	signals.AssertExpectations(t)
}

func TestManager_AnswerWithoutLink(t *testing.T) {
	m, _, _, _ := newTestManager(t)

	err := m.HandleSignal(context.Background(), domain.Signal{
		Kind:    domain.SignalAnswer,
		From:    "ghost",
		Payload: json.RawMessage(`{"type":"answer","sdp":"v=0"}`),
	})
	assert.ErrorIs(t, err, domain.ErrLinkNotFound)
}

func TestManager_FailedNegotiationRemovesLink(t *testing.T) {
	m, rec, signals, notifier := newTestManager(t)
	signals.On("SendSignal", mock.Anything, domain.SignalOffer, mock.Anything, mock.Anything).Return(nil)
	notifier.On("Notify", mock.MatchedBy(func(n domain.Notice) bool {
		return n.Kind == domain.NoticePeerUnavailable
	})).Return()
	ctx := context.Background()

	require.NoError(t, m.InitiateOffer(ctx, "u1"))
	rec.last().remoteErr = errors.New("bad sdp")

	err := m.HandleSignal(ctx, domain.Signal{
		Kind:    domain.SignalAnswer,
		From:    "u1",
		Payload: json.RawMessage(`{"type":"answer","sdp":"v=0"}`),
	})

	assert.Error(t, err)
	assert.Empty(t, m.Links())
	assert.True(t, rec.last().isClosed())
	notifier.AssertExpectations(t)
}

func TestManager_ConnectionFailureRemovesLink(t *testing.T) {
	m, rec, _, notifier := newTestManager(t)
	notifier.On("Notify", mock.Anything).Return()

	_, err := m.EnsureLink(context.Background(), "u1")
	require.NoError(t, err)

	rec.last().onState(domain.LinkConnected)
	assert.Equal(t, domain.LinkConnected, m.Links()[0].State)

	rec.last().onState(domain.LinkFailed)
	assert.Empty(t, m.Links())
}

func TestManager_CandidatesRelayedOnlyToTheirLink(t *testing.T) {
	m, rec, signals, _ := newTestManager(t)
	signals.On("SendSignal", mock.Anything, domain.SignalICECandidate, domain.ParticipantID("u1"), mock.Anything).Return(nil)
	ctx := context.Background()

	_, err := m.EnsureLink(ctx, "u1")
	require.NoError(t, err)
	conn := rec.last()

	conn.onICE(webrtc.ICECandidateInit{Candidate: "candidate:1"})
	signals.AssertNumberOfCalls(t, "SendSignal", 1)
	signals.AssertCalled(t, "SendSignal", mock.Anything, domain.SignalICECandidate, domain.ParticipantID("u1"), mock.Anything)
}

func TestManager_CloseAllIgnoresLateCallbacks(t *testing.T) {
	m, rec, signals, _ := newTestManager(t)
	media, stops := testMedia(t)
	require.NoError(t, m.SetLocalMedia(media))

	_, err := m.EnsureLink(context.Background(), "u1")
	require.NoError(t, err)
	conn := rec.last()
	require.Len(t, conn.senders, 2)
	assert.True(t, m.Links()[0].LocalMediaAttached)

	m.CloseAll()

	assert.True(t, conn.isClosed())
	assert.Empty(t, m.Links())
	assert.Equal(t, 1, *stops)

	// a candidate gathered after close must not be relayed
	conn.onICE(webrtc.ICECandidateInit{Candidate: "candidate:late"})
	conn.onState(domain.LinkConnected)
	signals.AssertNotCalled(t, "SendSignal", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, m.Links())
}

func TestManager_NegotiationClosedMidFlightSendsNothing(t *testing.T) {
	ctx := context.Background()

	t.Run("offer", func(t *testing.T) {
		m, rec, signals, _ := newTestManager(t)
		rec.beforeLocal = m.CloseAll

		err := m.InitiateOffer(ctx, "u1")

		assert.ErrorIs(t, err, domain.ErrLinkNotFound)
		signals.AssertNotCalled(t, "SendSignal", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		assert.Empty(t, m.Links())
	})

	t.Run("answer", func(t *testing.T) {
		m, rec, signals, _ := newTestManager(t)
		rec.beforeLocal = m.CloseAll

		err := m.HandleSignal(ctx, domain.Signal{
			Kind:    domain.SignalOffer,
			From:    "u2",
			Payload: json.RawMessage(`{"type":"offer","sdp":"v=0 remote"}`),
		})

		assert.ErrorIs(t, err, domain.ErrLinkNotFound)
		signals.AssertNotCalled(t, "SendSignal", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		assert.Empty(t, m.Links())
	})
}

func TestManager_CloseLink(t *testing.T) {
	m, rec, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.EnsureLink(ctx, "u1")
	require.NoError(t, err)
	first := rec.last()
	_, err = m.EnsureLink(ctx, "u2")
	require.NoError(t, err)

	m.CloseLink("u1")
	m.CloseLink("unknown")

	assert.True(t, first.isClosed())
	links := m.Links()
	require.Len(t, links, 1)
	assert.Equal(t, domain.ParticipantID("u2"), links[0].RemoteParticipantID)
}

func TestManager_MediaToggles(t *testing.T) {
	m, rec, _, _ := newTestManager(t)
	media, _ := testMedia(t)
	require.NoError(t, m.SetLocalMedia(media))

	_, err := m.EnsureLink(context.Background(), "u1")
	require.NoError(t, err)
	conn := rec.last()
	audio, video := conn.senders[0], conn.senders[1]

	require.NoError(t, m.SetAudioEnabled(false))
	assert.Nil(t, audio.Track())
	require.NoError(t, m.SetAudioEnabled(true))
	assert.Equal(t, media.Audio, audio.Track())

	screen, err := NewVideoTrack("screen", "test")
	require.NoError(t, err)
	require.NoError(t, m.ReplaceVideo(screen))
	assert.Equal(t, webrtc.TrackLocal(screen), video.Track())

	require.NoError(t, m.SetVideoEnabled(false))
	assert.Nil(t, video.Track())
	require.NoError(t, m.SetVideoEnabled(true))
	assert.Equal(t, webrtc.TrackLocal(screen), video.Track())

	require.NoError(t, m.RestoreCamera())
	assert.Equal(t, media.Video, video.Track())
}

func TestManager_ReplaceVideoWithoutCamera(t *testing.T) {
	m, _, _, _ := newTestManager(t)

	screen, err := NewVideoTrack("screen", "test")
	require.NoError(t, err)
	assert.ErrorIs(t, m.ReplaceVideo(screen), ErrNoLocalVideo)
}

func TestStaticSource_NothingRequested(t *testing.T) {
	_, err := StaticSource{}.Acquire(context.Background())
	assert.True(t, domain.IsMediaError(err))
}
