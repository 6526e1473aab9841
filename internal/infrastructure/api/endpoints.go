package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"roomlink/internal/core/domain"
)

type loginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	var resp loginResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/auth/login",
		path:   "/auth/login",
		body:   creds,
		out:    &resp,
	})
	if err != nil {
		if domain.IsAuthError(err) {
			return nil, err
		}
		var ne *domain.NetworkError
		if errors.As(err, &ne) && ne.Status == http.StatusBadRequest {
			return nil, domain.NewAuthError(domain.AuthInvalidCredentials, err)
		}
		return nil, domain.NewAuthError(domain.AuthNetwork, err)
	}
	if resp.Token == "" {
		return nil, domain.NewAuthError(domain.AuthNetwork, fmt.Errorf("login response carried no token"))
	}

	return &domain.Session{Token: resp.Token, User: resp.User}, nil
}

// roomList accepts both a bare array and an object wrapping it under "rooms".
type roomList []domain.RoomSummary

func (l *roomList) UnmarshalJSON(data []byte) error {
	var rooms []domain.RoomSummary
	if err := json.Unmarshal(data, &rooms); err == nil {
		*l = rooms
		return nil
	}
	var wrapped struct {
		Rooms []domain.RoomSummary `json:"rooms"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	*l = wrapped.Rooms
	return nil
}

func (c *Client) ListRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	var rooms roomList
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/rooms",
		path:   "/rooms",
		auth:   true,
		out:    &rooms,
	})
	if err != nil {
		return nil, err
	}
	if rooms == nil {
		return []domain.RoomSummary{}, nil
	}
	return rooms, nil
}

type createRoomRequest struct {
	RoomName  string `json:"roomName"`
	IsPrivate bool   `json:"isPrivate"`
	MaxUsers  int    `json:"maxUsers"`
}

func (c *Client) CreateRoom(ctx context.Context, name string, isPrivate bool, maxParticipants int) (*domain.RoomSummary, error) {
	var room domain.RoomSummary
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/rooms",
		path:   "/rooms",
		body:   createRoomRequest{RoomName: name, IsPrivate: isPrivate, MaxUsers: maxParticipants},
		auth:   true,
		out:    &room,
	})
	if err != nil {
		return nil, err
	}
	if room.Name == "" {
		room.Name = name
	}
	if room.MaxParticipants == 0 {
		room.MaxParticipants = maxParticipants
	}
	return &room, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]domain.ManagedUser, error) {
	users := []domain.ManagedUser{}
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/admin/users",
		path:   "/admin/users",
		auth:   true,
		out:    &users,
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) ApproveUser(ctx context.Context, id domain.UserID) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		route:  "/admin/approve-user/:id",
		path:   "/admin/approve-user/" + url.PathEscape(string(id)),
		auth:   true,
	})
}

func (c *Client) BlockUser(ctx context.Context, id domain.UserID) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		route:  "/admin/block-user/:id",
		path:   "/admin/block-user/" + url.PathEscape(string(id)),
		auth:   true,
	})
}

type ipRequest struct {
	IPAddress string `json:"ipAddress"`
	Reason    string `json:"reason,omitempty"`
}

func (c *Client) BlockIP(ctx context.Context, address, reason string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		route:  "/admin/block-ip",
		path:   "/admin/block-ip",
		body:   ipRequest{IPAddress: address, Reason: reason},
		auth:   true,
	})
}

func (c *Client) UnblockIP(ctx context.Context, address string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		route:  "/admin/unblock-ip",
		path:   "/admin/unblock-ip",
		body:   ipRequest{IPAddress: address},
		auth:   true,
	})
}

func (c *Client) ListBlockedIPs(ctx context.Context) ([]domain.BlockedIP, error) {
	blocked := []domain.BlockedIP{}
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/admin/blocked-ips",
		path:   "/admin/blocked-ips",
		auth:   true,
		out:    &blocked,
	})
	if err != nil {
		return nil, err
	}
	return blocked, nil
}

func (c *Client) CloseRoom(ctx context.Context, code domain.RoomCode) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		route:  "/admin/close-room/:code",
		path:   "/admin/close-room/" + url.PathEscape(string(code)),
		auth:   true,
	})
}

func (c *Client) ListAccessRequests(ctx context.Context) ([]domain.AccessRequest, error) {
	requests := []domain.AccessRequest{}
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/admin/access-requests",
		path:   "/admin/access-requests",
		auth:   true,
		out:    &requests,
	})
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (c *Client) ApproveAccessRequest(ctx context.Context, id domain.RequestID) (*domain.AccessDecision, error) {
	var decision domain.AccessDecision
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/admin/approve-request/:id",
		path:   "/admin/approve-request/" + url.PathEscape(string(id)),
		auth:   true,
		out:    &decision,
	})
	if err != nil {
		return nil, err
	}
	return &decision, nil
}

func (c *Client) DenyAccessRequest(ctx context.Context, id domain.RequestID) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		route:  "/admin/deny-request/:id",
		path:   "/admin/deny-request/" + url.PathEscape(string(id)),
		auth:   true,
	})
}

type visitRequest struct {
	PageVisited string `json:"page_visited"`
	Referrer    string `json:"referrer"`
}

// TrackVisit posts a page visit. It does not require a session.
func (c *Client) TrackVisit(ctx context.Context, page, referrer string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		route:  "/analytics",
		path:   "/analytics",
		body:   visitRequest{PageVisited: page, Referrer: referrer},
	})
}
