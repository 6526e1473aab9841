package services

import (
	"context"
	"strings"
	"time"

	"roomlink/internal/core/ports"
	"roomlink/pkg/logger"

	"go.uber.org/zap"
)

// AnalyticsService reports page visits. Reporting never fails the caller.
type AnalyticsService struct {
	api     ports.AnalyticsAPI
	timeout time.Duration
	logger  *zap.SugaredLogger
}

func NewAnalyticsService(api ports.AnalyticsAPI, timeout time.Duration, log *zap.SugaredLogger) *AnalyticsService {
	if log == nil {
		log = logger.Nop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AnalyticsService{
		api:     api,
		timeout: timeout,
		logger:  log.With("component", "analytics"),
	}
}

func (s *AnalyticsService) TrackVisit(ctx context.Context, page, referrer string) {
	page = strings.TrimSpace(page)
	if page == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.api.TrackVisit(ctx, page, referrer); err != nil {
		s.logger.Debugw("visit not recorded", "page", page, "error", err)
	}
}
