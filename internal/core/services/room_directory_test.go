package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"roomlink/internal/core/domain"
	"roomlink/internal/infrastructure/api"
	"roomlink/internal/infrastructure/repositories/memory"
	"roomlink/pkg/circuitbreaker"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRoomDirectory_CreateValidatesLocally(t *testing.T) {
	tests := []struct {
		name   string
		room   string
		max    int
		field  string
		reason string
	}{
		{name: "empty name", room: "", max: 10, field: "name", reason: "empty_name"},
		{name: "whitespace name", room: "   ", max: 10, field: "name", reason: "empty_name"},
		{name: "too few", room: "Standup", max: 1, field: "max_participants", reason: "out_of_range"},
		{name: "too many", room: "Standup", max: 51, field: "max_participants", reason: "out_of_range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roomAPI := &MockRoomAPI{}
			dir := NewRoomDirectory(roomAPI, nil)

			_, err := dir.Create(context.Background(), tt.room, false, tt.max)

			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, tt.reason, ve.Reason)
			roomAPI.AssertNotCalled(t, "CreateRoom", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRoomDirectory_CreateTrimsName(t *testing.T) {
	roomAPI := &MockRoomAPI{}
	dir := NewRoomDirectory(roomAPI, nil)
	roomAPI.On("CreateRoom", mock.Anything, "Standup", true, 2).
		Return(&domain.RoomSummary{Code: "NEW1", Name: "Standup", IsPrivate: true, MaxParticipants: 2}, nil)

	room, err := dir.Create(context.Background(), "  Standup ", true, 2)

	require.NoError(t, err)
	assert.Equal(t, domain.RoomCode("NEW1"), room.Code)
	roomAPI.AssertExpectations(t)
}

func TestRoomDirectory_ListPassesErrorsThrough(t *testing.T) {
	roomAPI := &MockRoomAPI{}
	dir := NewRoomDirectory(roomAPI, nil)
	noSession := domain.NewAuthError(domain.AuthNoSession, nil)
	roomAPI.On("ListRooms", mock.Anything).Return(nil, noSession).Once()
	roomAPI.On("ListRooms", mock.Anything).Return([]domain.RoomSummary{{Code: "ABCD"}}, nil).Once()

	_, err := dir.List(context.Background())
	assert.ErrorIs(t, err, noSession)

	rooms, err := dir.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
}

// A rejected token logs the user out before the error surfaces, so the
// next request fails locally without reaching the server.
func TestRoomDirectory_RejectedTokenEndsSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var listed int32
	r := gin.New()
	r.POST("/api/auth/login", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"token": "opaque", "user": gin.H{"id": 3, "username": "ann"}})
	})
	r.GET("/api/rooms", func(c *gin.Context) {
		atomic.AddInt32(&listed, 1)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token expired"})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := api.NewClient(api.Config{
		BaseURL:        srv.URL + "/api",
		Timeout:        2 * time.Second,
		CircuitBreaker: circuitbreaker.DefaultConfig(),
	}, nil, nil)
	store := NewSessionStore(client, memory.NewMemorySessionStorage(), nil)
	client.SetTokenSource(store)
	dir := NewRoomDirectory(client, nil)

	ended := make(chan struct{}, 1)
	store.Subscribe(func(sess *domain.Session) {
		if sess == nil {
			ended <- struct{}{}
		}
	})

	_, err := store.Login(context.Background(), domain.Credentials{Username: "ann", Password: "secret"})
	require.NoError(t, err)

	_, err = dir.List(context.Background())
	var ae *domain.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, domain.AuthTokenInvalid, ae.Reason)
	assert.Nil(t, store.Current())
	assert.Len(t, ended, 1)

	_, err = dir.List(context.Background())
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, domain.AuthNoSession, ae.Reason)
	assert.Equal(t, int32(1), atomic.LoadInt32(&listed))
}
