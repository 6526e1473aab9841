package services

import (
	"context"
	"strings"

	"roomlink/internal/core/domain"
	"roomlink/internal/core/ports"
	"roomlink/pkg/logger"
	"roomlink/pkg/tracing"
	"roomlink/pkg/validation"

	"go.uber.org/zap"
)

// RoomDirectory lists and creates rooms. Nothing is cached.
type RoomDirectory struct {
	api    ports.RoomAPI
	logger *zap.SugaredLogger
}

func NewRoomDirectory(api ports.RoomAPI, log *zap.SugaredLogger) *RoomDirectory {
	if log == nil {
		log = logger.Nop()
	}
	return &RoomDirectory{api: api, logger: log.With("component", "rooms")}
}

func (d *RoomDirectory) List(ctx context.Context) ([]domain.RoomSummary, error) {
	return d.api.ListRooms(ctx)
}

// Create validates the input locally before anything is sent.
func (d *RoomDirectory) Create(ctx context.Context, name string, isPrivate bool, maxParticipants int) (room *domain.RoomSummary, err error) {
	name = strings.TrimSpace(name)
	if err := validation.ValidateRoomName(name); err != nil {
		return nil, toValidationError(err)
	}
	if err := validation.ValidateMaxParticipants(maxParticipants); err != nil {
		return nil, toValidationError(err)
	}

	ctx, span := tracing.TraceRoom(ctx, "create", "")
	defer func() { tracing.End(span, err) }()

	room, err = d.api.CreateRoom(ctx, name, isPrivate, maxParticipants)
	if err != nil {
		return nil, err
	}

	tracing.AddSpanAttributes(ctx, tracing.RoomCodeKey.String(string(room.Code)))
	d.logger.Infow("room created",
		"room_code", room.Code,
		"private", isPrivate,
		"max_participants", maxParticipants,
	)
	return room, nil
}
