package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"roomlink/internal/core/services"
	handlers "roomlink/internal/handlers/http"
	"roomlink/internal/infrastructure/monitoring"

	"github.com/gin-gonic/gin"
)

// startStatusServer serves /health, /status, /transcript and /metrics while
// the join command runs. The returned func shuts it down.
func startStatusServer(ctrl *services.RoomController, health *monitoring.HealthChecker) func() {
	gin.SetMode(gin.ReleaseMode)

	h := handlers.NewStatusHandler(ctrl, a.sessions, health, a.metrics.Handler(), a.logger)
	router := handlers.NewRouter(h, handlers.RouterConfig{
		Token:             a.cfg.Status.Token,
		RequestsPerSecond: a.cfg.Status.RequestsPerSecond,
		Burst:             a.cfg.Status.Burst,
	}, a.ctxLogger)

	srv := &http.Server{
		Addr:              a.cfg.Status.Address,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Infow("status server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Errorw("status server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Warnw("status server shutdown failed", "error", err)
		}
	}
}
