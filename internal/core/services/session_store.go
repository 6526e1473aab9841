package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"roomlink/internal/core/domain"
	"roomlink/internal/core/ports"
	"roomlink/pkg/logger"
	"roomlink/pkg/utils"
	"roomlink/pkg/validation"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// SessionStore owns the single local session. It persists it through
// ports.SessionStorage and publishes every change to subscribers.
//
// Tokens are never verified locally; the exp claim is only read so an
// expired session is dropped without a round trip.
type SessionStore struct {
	auth    ports.AuthAPI
	storage ports.SessionStorage
	logger  *zap.SugaredLogger
	now     func() time.Time

	mu      sync.RWMutex
	session *domain.Session
	nextSub int
	subs    map[int]func(*domain.Session)
}

var _ ports.TokenSource = (*SessionStore)(nil)

func NewSessionStore(auth ports.AuthAPI, storage ports.SessionStorage, log *zap.SugaredLogger) *SessionStore {
	if log == nil {
		log = logger.Nop()
	}
	return &SessionStore{
		auth:    auth,
		storage: storage,
		logger:  log.With("component", "session"),
		now:     time.Now,
		subs:    make(map[int]func(*domain.Session)),
	}
}

// Restore loads a previously persisted session. An expired one is cleared.
func (s *SessionStore) Restore(ctx context.Context) error {
	sess, err := s.storage.Load(ctx)
	if err != nil {
		return err
	}
	if sess == nil || sess.Token == "" {
		return nil
	}

	sess.ExpiresAt = tokenExpiry(sess.Token)
	if sess.Expired(s.now()) {
		s.logger.Infow("stored session expired", "user", sess.User.DisplayName)
		return s.storage.Clear(ctx)
	}

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	s.logger.Infow("session restored", "user", sess.User.DisplayName, "role", sess.User.Role)
	s.publish(sess)
	return nil
}

func (s *SessionStore) Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	if err := validation.ValidateCredentials(creds.Username, creds.Password); err != nil {
		return nil, toValidationError(err)
	}

	sess, err := s.auth.Login(ctx, creds)
	if err != nil {
		s.logger.Infow("login failed", "user", creds.Username, "error", err)
		return nil, err
	}
	sess.ExpiresAt = tokenExpiry(sess.Token)

	if err := s.storage.Save(ctx, sess); err != nil {
		// the session still works for this process
		s.logger.Warnw("failed to persist session", "error", err)
	}

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	s.logger.Infow("logged in", "user", sess.User.DisplayName, "role", sess.User.Role)
	s.logger.Debugw("session token issued", "token", utils.MaskSensitive(sess.Token, 6), "expires_at", sess.ExpiresAt)
	s.publish(sess)
	return copySession(sess), nil
}

// Logout clears the session. Calling it while logged out is a no-op apart
// from clearing storage.
func (s *SessionStore) Logout(ctx context.Context) error {
	s.mu.Lock()
	had := s.session != nil
	s.session = nil
	s.mu.Unlock()

	err := s.storage.Clear(ctx)
	if err != nil {
		s.logger.Warnw("failed to clear stored session", "error", err)
	}
	if had {
		s.logger.Infow("logged out")
		s.publish(nil)
	}
	return err
}

// Current returns a copy of the session, or nil. An expired session is
// logged out on access.
func (s *SessionStore) Current() *domain.Session {
	s.mu.RLock()
	sess := s.session
	s.mu.RUnlock()

	if sess == nil {
		return nil
	}
	if sess.Expired(s.now()) {
		s.logger.Infow("session expired", "user", sess.User.DisplayName)
		_ = s.Logout(context.Background())
		return nil
	}
	return copySession(sess)
}

func (s *SessionStore) Token() string {
	if sess := s.Current(); sess != nil {
		return sess.Token
	}
	return ""
}

// Invalidate is called when the server rejected the token.
func (s *SessionStore) Invalidate(ctx context.Context, cause error) {
	s.logger.Warnw("session rejected by server", "error", cause)
	_ = s.Logout(ctx)
}

// Subscribe registers fn for session changes; nil means logged out. The
// returned func removes the subscription.
func (s *SessionStore) Subscribe(fn func(*domain.Session)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *SessionStore) publish(sess *domain.Session) {
	s.mu.RLock()
	subs := make([]func(*domain.Session), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(copySession(sess))
	}
}

func copySession(sess *domain.Session) *domain.Session {
	if sess == nil {
		return nil
	}
	cp := *sess
	return &cp
}

// tokenExpiry reads the exp claim without verifying the signature. Opaque
// tokens have no local expiry.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func toValidationError(err error) error {
	var fe *validation.FieldError
	if errors.As(err, &fe) {
		return domain.NewValidationError(fe.Field, fe.Reason)
	}
	return err
}
