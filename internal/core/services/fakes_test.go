package services

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"roomlink/internal/core/domain"
	"roomlink/internal/core/ports"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/mock"
)

type MockAuthAPI struct {
	mock.Mock
}

func (m *MockAuthAPI) Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	args := m.Called(ctx, creds)
	sess, _ := args.Get(0).(*domain.Session)
	return sess, args.Error(1)
}

type MockRoomAPI struct {
	mock.Mock
}

func (m *MockRoomAPI) ListRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	args := m.Called(ctx)
	rooms, _ := args.Get(0).([]domain.RoomSummary)
	return rooms, args.Error(1)
}

func (m *MockRoomAPI) CreateRoom(ctx context.Context, name string, isPrivate bool, maxParticipants int) (*domain.RoomSummary, error) {
	args := m.Called(ctx, name, isPrivate, maxParticipants)
	room, _ := args.Get(0).(*domain.RoomSummary)
	return room, args.Error(1)
}

type MockAdminAPI struct {
	mock.Mock
}

func (m *MockAdminAPI) ListUsers(ctx context.Context) ([]domain.ManagedUser, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]domain.ManagedUser)
	return users, args.Error(1)
}

func (m *MockAdminAPI) ApproveUser(ctx context.Context, id domain.UserID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAdminAPI) BlockUser(ctx context.Context, id domain.UserID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAdminAPI) BlockIP(ctx context.Context, address, reason string) error {
	return m.Called(ctx, address, reason).Error(0)
}

func (m *MockAdminAPI) UnblockIP(ctx context.Context, address string) error {
	return m.Called(ctx, address).Error(0)
}

func (m *MockAdminAPI) ListBlockedIPs(ctx context.Context) ([]domain.BlockedIP, error) {
	args := m.Called(ctx)
	blocked, _ := args.Get(0).([]domain.BlockedIP)
	return blocked, args.Error(1)
}

func (m *MockAdminAPI) CloseRoom(ctx context.Context, code domain.RoomCode) error {
	return m.Called(ctx, code).Error(0)
}

func (m *MockAdminAPI) ListAccessRequests(ctx context.Context) ([]domain.AccessRequest, error) {
	args := m.Called(ctx)
	requests, _ := args.Get(0).([]domain.AccessRequest)
	return requests, args.Error(1)
}

func (m *MockAdminAPI) ApproveAccessRequest(ctx context.Context, id domain.RequestID) (*domain.AccessDecision, error) {
	args := m.Called(ctx, id)
	decision, _ := args.Get(0).(*domain.AccessDecision)
	return decision, args.Error(1)
}

func (m *MockAdminAPI) DenyAccessRequest(ctx context.Context, id domain.RequestID) error {
	return m.Called(ctx, id).Error(0)
}

type MockAnalyticsAPI struct {
	mock.Mock
}

func (m *MockAnalyticsAPI) TrackVisit(ctx context.Context, page, referrer string) error {
	return m.Called(ctx, page, referrer).Error(0)
}

// fakeSessions is a settable ports.SessionProvider.
type fakeSessions struct {
	mu   sync.Mutex
	sess *domain.Session
	subs []func(*domain.Session)
}

func newFakeSessions(sess *domain.Session) *fakeSessions {
	return &fakeSessions{sess: sess}
}

func (f *fakeSessions) Current() *domain.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copySession(f.sess)
}

func (f *fakeSessions) Subscribe(fn func(*domain.Session)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, fn)
	return func() {}
}

func (f *fakeSessions) set(sess *domain.Session) {
	f.mu.Lock()
	f.sess = sess
	subs := append(([]func(*domain.Session))(nil), f.subs...)
	f.mu.Unlock()
	for _, fn := range subs {
		fn(copySession(sess))
	}
}

func userSession(id, name string) *domain.Session {
	return &domain.Session{Token: "token-" + id, User: domain.User{ID: domain.UserID(id), DisplayName: name, Role: domain.RoleUser}}
}

func adminSession(id, name string) *domain.Session {
	sess := userSession(id, name)
	sess.User.Role = domain.RoleAdmin
	return sess
}

type sentSignal struct {
	kind   domain.SignalKind
	target domain.ParticipantID
}

type moderationRequest struct {
	target domain.ParticipantID
	action domain.ModerationAction
	reason string
}

// fakeChannel is an in-memory ports.SignalingChannel.
type fakeChannel struct {
	self       domain.ParticipantID
	connectErr error
	joinErr    error
	events     chan domain.Event

	mu         sync.Mutex
	connected  bool
	closed     bool
	joined     []domain.RoomCode
	left       []domain.RoomCode
	chats      []string
	signals    []sentSignal
	moderation []moderationRequest
}

func newFakeChannel(self domain.ParticipantID) *fakeChannel {
	return &fakeChannel{self: self, events: make(chan domain.Event, 32)}
}

func (f *fakeChannel) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeChannel) Events() <-chan domain.Event { return f.events }

func (f *fakeChannel) JoinRoom(ctx context.Context, code domain.RoomCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, code)
	return f.joinErr
}

func (f *fakeChannel) LeaveRoom(ctx context.Context, code domain.RoomCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.left = append(f.left, code)
	return nil
}

func (f *fakeChannel) SendChatMessage(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, text)
	return nil
}

func (f *fakeChannel) SendSignal(ctx context.Context, kind domain.SignalKind, target domain.ParticipantID, payload json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, sentSignal{kind: kind, target: target})
	return nil
}

func (f *fakeChannel) RequestModeration(ctx context.Context, target domain.ParticipantID, action domain.ModerationAction, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moderation = append(f.moderation, moderationRequest{target: target, action: action, reason: reason})
	return nil
}

func (f *fakeChannel) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.connected = false
		close(f.events)
	}
	return nil
}

func (f *fakeChannel) push(ev domain.Event) {
	f.events <- ev
}

func (f *fakeChannel) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeChannel) joinedRooms() []domain.RoomCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.RoomCode(nil), f.joined...)
}

func (f *fakeChannel) leftRooms() []domain.RoomCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.RoomCode(nil), f.left...)
}

func (f *fakeChannel) sentChats() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.chats...)
}

func (f *fakeChannel) moderationRequests() []moderationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]moderationRequest(nil), f.moderation...)
}

// fakePeers records what the controller asks of the peer manager.
type fakePeers struct {
	mu        sync.Mutex
	links     map[domain.ParticipantID]bool
	offers    []domain.ParticipantID
	handled   []domain.Signal
	closedAll int
	media     *ports.LocalMedia
	audio     bool
	video     bool
}

var _ ports.PeerManager = (*fakePeers)(nil)

func newFakePeers() *fakePeers {
	return &fakePeers{links: make(map[domain.ParticipantID]bool)}
}

func (f *fakePeers) EnsureLink(ctx context.Context, id domain.ParticipantID) (domain.PeerLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links[id] = true
	return domain.PeerLink{RemoteParticipantID: id, State: domain.LinkNew}, nil
}

func (f *fakePeers) InitiateOffer(ctx context.Context, id domain.ParticipantID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.links[id] {
		return domain.ErrLinkNotFound
	}
	f.offers = append(f.offers, id)
	return nil
}

func (f *fakePeers) HandleSignal(ctx context.Context, sig domain.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handled = append(f.handled, sig)
	if sig.Kind == domain.SignalOffer {
		f.links[sig.From] = true
	}
	return nil
}

func (f *fakePeers) CloseLink(id domain.ParticipantID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.links, id)
}

func (f *fakePeers) CloseAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links = make(map[domain.ParticipantID]bool)
	f.closedAll++
}

func (f *fakePeers) SetLocalMedia(media *ports.LocalMedia) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.media = media
	return nil
}

func (f *fakePeers) Links() []domain.PeerLink {
	f.mu.Lock()
	defer f.mu.Unlock()
	links := make([]domain.PeerLink, 0, len(f.links))
	for id := range f.links {
		links = append(links, domain.PeerLink{RemoteParticipantID: id, State: domain.LinkNew})
	}
	sort.Slice(links, func(i, j int) bool {
		return links[i].RemoteParticipantID < links[j].RemoteParticipantID
	})
	return links
}

func (f *fakePeers) SetAudioEnabled(enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audio = enabled
	return nil
}

func (f *fakePeers) SetVideoEnabled(enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.video = enabled
	return nil
}

func (f *fakePeers) ReplaceVideo(track webrtc.TrackLocal) error { return nil }
func (f *fakePeers) RestoreCamera() error                       { return nil }

func (f *fakePeers) linkIDs() []domain.ParticipantID {
	var ids []domain.ParticipantID
	for _, l := range f.Links() {
		ids = append(ids, l.RemoteParticipantID)
	}
	return ids
}

func (f *fakePeers) offered() []domain.ParticipantID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ParticipantID(nil), f.offers...)
}

func (f *fakePeers) handledSignals() []domain.Signal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Signal(nil), f.handled...)
}

func (f *fakePeers) closeAllCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closedAll
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []domain.Notice
}

func (r *recordingNotifier) Notify(n domain.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recordingNotifier) find(kind domain.NoticeKind) (domain.Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.notices) - 1; i >= 0; i-- {
		if r.notices[i].Kind == kind {
			return r.notices[i], true
		}
	}
	return domain.Notice{}, false
}

type mediaSourceFunc func(ctx context.Context) (*ports.LocalMedia, error)

func (f mediaSourceFunc) Acquire(ctx context.Context) (*ports.LocalMedia, error) { return f(ctx) }
