package services

import (
	"context"
	"strings"
	"sync"

	"roomlink/internal/core/domain"
	"roomlink/internal/core/ports"
	"roomlink/pkg/logger"
	"roomlink/pkg/validation"

	"go.uber.org/zap"
)

// Dashboard summarizes the admin lists.
type Dashboard struct {
	Users           int
	PendingUsers    int
	BlockedUsers    int
	Rooms           int
	ActiveRooms     int
	BlockedIPs      int
	PendingRequests int
}

// AdminService is the admin surface. Every call requires an admin session;
// the server performs the same check. It keeps the last fetched list of each
// kind and refreshes a list after every mutation that affects it.
type AdminService struct {
	api      ports.AdminAPI
	rooms    ports.RoomAPI
	sessions ports.SessionProvider
	logger   *zap.SugaredLogger

	mu       sync.RWMutex
	users    []domain.ManagedUser
	blocked  []domain.BlockedIP
	roomList []domain.RoomSummary
	requests []domain.AccessRequest
}

func NewAdminService(api ports.AdminAPI, rooms ports.RoomAPI, sessions ports.SessionProvider, log *zap.SugaredLogger) *AdminService {
	if log == nil {
		log = logger.Nop()
	}
	return &AdminService{
		api:      api,
		rooms:    rooms,
		sessions: sessions,
		logger:   log.With("component", "admin"),
	}
}

func (s *AdminService) requireAdmin() error {
	sess := s.sessions.Current()
	if sess == nil {
		return domain.NewAuthError(domain.AuthNoSession, nil)
	}
	if !sess.User.IsAdmin() {
		return domain.ErrAdminRequired
	}
	return nil
}

func (s *AdminService) ListUsers(ctx context.Context) ([]domain.ManagedUser, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, err
	}
	users, err := s.api.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.users = users
	s.mu.Unlock()
	return append([]domain.ManagedUser(nil), users...), nil
}

func (s *AdminService) ApproveUser(ctx context.Context, id domain.UserID) error {
	if err := s.checkUser(id); err != nil {
		return err
	}
	if err := s.api.ApproveUser(ctx, id); err != nil {
		return err
	}
	s.logger.Infow("user approved", "user_id", id)
	s.refresh(ctx, "users", s.refreshUsers)
	return nil
}

func (s *AdminService) BlockUser(ctx context.Context, id domain.UserID) error {
	if err := s.checkUser(id); err != nil {
		return err
	}
	if err := s.api.BlockUser(ctx, id); err != nil {
		return err
	}
	s.logger.Infow("user blocked", "user_id", id)
	s.refresh(ctx, "users", s.refreshUsers)
	return nil
}

func (s *AdminService) checkUser(id domain.UserID) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	return toValidationError(validation.ValidateID("user_id", string(id)))
}

func (s *AdminService) ListBlockedIPs(ctx context.Context) ([]domain.BlockedIP, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, err
	}
	blocked, err := s.api.ListBlockedIPs(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.blocked = blocked
	s.mu.Unlock()
	return append([]domain.BlockedIP(nil), blocked...), nil
}

// BlockIP validates the address locally before sending it.
func (s *AdminService) BlockIP(ctx context.Context, address, reason string) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	address = strings.TrimSpace(address)
	if err := validation.ValidateIPAddress(address); err != nil {
		return toValidationError(err)
	}
	if err := s.api.BlockIP(ctx, address, strings.TrimSpace(reason)); err != nil {
		return err
	}
	s.logger.Infow("ip blocked", "ip_address", address)
	s.refresh(ctx, "blocked ips", s.refreshBlocked)
	return nil
}

func (s *AdminService) UnblockIP(ctx context.Context, address string) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	address = strings.TrimSpace(address)
	if err := validation.ValidateIPAddress(address); err != nil {
		return toValidationError(err)
	}
	if err := s.api.UnblockIP(ctx, address); err != nil {
		return err
	}
	s.logger.Infow("ip unblocked", "ip_address", address)
	s.refresh(ctx, "blocked ips", s.refreshBlocked)
	return nil
}

func (s *AdminService) ListRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, err
	}
	rooms, err := s.rooms.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.roomList = rooms
	s.mu.Unlock()
	return append([]domain.RoomSummary(nil), rooms...), nil
}

func (s *AdminService) CloseRoom(ctx context.Context, code domain.RoomCode) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	if err := validation.ValidateRoomCode(string(code)); err != nil {
		return toValidationError(err)
	}
	if err := s.api.CloseRoom(ctx, code); err != nil {
		return err
	}
	s.logger.Infow("room closed", "room_code", code)
	s.refresh(ctx, "rooms", s.refreshRooms)
	return nil
}

func (s *AdminService) ListAccessRequests(ctx context.Context) ([]domain.AccessRequest, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, err
	}
	requests, err := s.api.ListAccessRequests(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.requests = requests
	s.mu.Unlock()
	return append([]domain.AccessRequest(nil), requests...), nil
}

// ApproveRequest grants access. The returned decision carries the temporary
// password when the server created an account.
func (s *AdminService) ApproveRequest(ctx context.Context, id domain.RequestID) (*domain.AccessDecision, error) {
	if err := s.checkRequest(id); err != nil {
		return nil, err
	}
	decision, err := s.api.ApproveAccessRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("access request approved", "request_id", id, "account_created", decision.TempPassword != "")
	s.refresh(ctx, "access requests", s.refreshRequests)
	// approval may have created an account
	s.refresh(ctx, "users", s.refreshUsers)
	return decision, nil
}

func (s *AdminService) DenyRequest(ctx context.Context, id domain.RequestID) error {
	if err := s.checkRequest(id); err != nil {
		return err
	}
	if err := s.api.DenyAccessRequest(ctx, id); err != nil {
		return err
	}
	s.logger.Infow("access request denied", "request_id", id)
	s.refresh(ctx, "access requests", s.refreshRequests)
	return nil
}

func (s *AdminService) checkRequest(id domain.RequestID) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	return toValidationError(validation.ValidateID("request_id", string(id)))
}

// Dashboard fetches every list and returns the counts.
func (s *AdminService) Dashboard(ctx context.Context) (*Dashboard, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	rooms, err := s.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	blocked, err := s.ListBlockedIPs(ctx)
	if err != nil {
		return nil, err
	}
	requests, err := s.ListAccessRequests(ctx)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{Users: len(users), Rooms: len(rooms), BlockedIPs: len(blocked)}
	for _, u := range users {
		if u.Blocked {
			d.BlockedUsers++
		}
		if !u.Approved {
			d.PendingUsers++
		}
	}
	for _, r := range rooms {
		if r.Active == nil || *r.Active {
			d.ActiveRooms++
		}
	}
	for _, r := range requests {
		if !r.Approved {
			d.PendingRequests++
		}
	}
	return d, nil
}

// Users returns the last fetched user list.
func (s *AdminService) Users() []domain.ManagedUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ManagedUser(nil), s.users...)
}

func (s *AdminService) BlockedIPs() []domain.BlockedIP {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.BlockedIP(nil), s.blocked...)
}

func (s *AdminService) Rooms() []domain.RoomSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.RoomSummary(nil), s.roomList...)
}

func (s *AdminService) AccessRequests() []domain.AccessRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AccessRequest(nil), s.requests...)
}

func (s *AdminService) refreshUsers(ctx context.Context) error {
	_, err := s.ListUsers(ctx)
	return err
}

func (s *AdminService) refreshBlocked(ctx context.Context) error {
	_, err := s.ListBlockedIPs(ctx)
	return err
}

func (s *AdminService) refreshRooms(ctx context.Context) error {
	_, err := s.ListRooms(ctx)
	return err
}

func (s *AdminService) refreshRequests(ctx context.Context) error {
	_, err := s.ListAccessRequests(ctx)
	return err
}

// refresh reloads a list after a mutation. The mutation already succeeded,
// so a failed reload is only logged.
func (s *AdminService) refresh(ctx context.Context, what string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		s.logger.Warnw("failed to refresh list", "list", what, "error", err)
	}
}
