package http

import (
	"net/http"
	"time"

	"roomlink/internal/core/domain"
	"roomlink/internal/core/ports"
	"roomlink/internal/core/services"
	"roomlink/internal/infrastructure/middleware"
	"roomlink/internal/infrastructure/monitoring"
	apperrors "roomlink/pkg/errors"
	"roomlink/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RoomView is the read side of the room controller.
type RoomView interface {
	State() services.RoomState
	Code() domain.RoomCode
	Room() *domain.RoomSession
	Transcript() []domain.ChatMessage
	Links() []domain.PeerLink
}

type RouterConfig struct {
	Token             string
	RequestsPerSecond float64
	Burst             int
}

type StatusHandler struct {
	room     RoomView
	sessions ports.SessionProvider
	health   *monitoring.HealthChecker
	metrics  http.Handler
	started  time.Time
	log      *zap.SugaredLogger
}

var _ ports.StatusHandler = (*StatusHandler)(nil)

func NewStatusHandler(
	room RoomView,
	sessions ports.SessionProvider,
	health *monitoring.HealthChecker,
	metrics http.Handler,
	log *zap.SugaredLogger,
) *StatusHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &StatusHandler{
		room:     room,
		sessions: sessions,
		health:   health,
		metrics:  metrics,
		started:  time.Now(),
		log:      log.With("component", "status_handler"),
	}
}

// NewRouter builds the status server. /health stays open; everything else
// requires the configured bearer token.
func NewRouter(h *StatusHandler, cfg RouterConfig, cl *logger.ContextLogger) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.Recovery(h.log),
		middleware.Tracing(),
		middleware.RequestLogger(cl),
		middleware.ErrorHandler(h.log),
		middleware.RateLimit(cfg.RequestsPerSecond, cfg.Burst),
	)
	h.SetupRoutes(router, middleware.RequireToken(cfg.Token))
	return router
}

func (h *StatusHandler) SetupRoutes(router *gin.Engine, auth gin.HandlerFunc) {
	router.GET("/health", h.Health)

	protected := router.Group("/", auth)
	{
		protected.GET("/status", h.Status)
		protected.GET("/transcript", h.Transcript)
		if h.metrics != nil {
			protected.GET("/metrics", gin.WrapH(h.metrics))
		}
	}
}

func (h *StatusHandler) Health(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		return
	}

	status := h.health.CheckAll(c.Request.Context())
	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

type participantView struct {
	ID          domain.ParticipantID `json:"id"`
	DisplayName string               `json:"username"`
	IsHost      bool                 `json:"is_host"`
	Self        bool                 `json:"self,omitempty"`
}

type linkView struct {
	Participant domain.ParticipantID `json:"participant_id"`
	State       domain.LinkState     `json:"state"`
	Media       bool                 `json:"media"`
	Initiator   bool                 `json:"initiator"`
	Age         string               `json:"age"`
}

type roomView struct {
	Code         domain.RoomCode   `json:"room_code"`
	Name         string            `json:"room_name,omitempty"`
	JoinedAt     time.Time         `json:"joined_at"`
	Participants []participantView `json:"participants"`
}

func (h *StatusHandler) Status(c *gin.Context) {
	resp := gin.H{
		"state":  h.room.State(),
		"uptime": time.Since(h.started).Round(time.Second).String(),
	}

	if sess := h.sessions.Current(); sess != nil {
		resp["user"] = gin.H{
			"id":       sess.User.ID,
			"username": sess.User.DisplayName,
			"role":     sess.User.Role,
		}
	}

	if code := h.room.Code(); code != "" {
		resp["room_code"] = code
	}

	if rs := h.room.Room(); rs != nil {
		view := roomView{
			Code:         rs.Code,
			Name:         rs.Name,
			JoinedAt:     rs.JoinedAt,
			Participants: make([]participantView, 0, len(rs.Participants)),
		}
		for _, p := range rs.Participants {
			view.Participants = append(view.Participants, participantView{
				ID:          p.ID,
				DisplayName: p.DisplayName,
				IsHost:      p.IsHost,
				Self:        p.ID == rs.SelfID,
			})
		}
		resp["room"] = view

		links := h.room.Links()
		out := make([]linkView, 0, len(links))
		for _, l := range links {
			out = append(out, linkView{
				Participant: l.RemoteParticipantID,
				State:       l.State,
				Media:       l.LocalMediaAttached,
				Initiator:   l.Initiator,
				Age:         time.Since(l.CreatedAt).Round(time.Second).String(),
			})
		}
		resp["links"] = out
	}

	c.JSON(http.StatusOK, resp)
}

// Transcript returns the chat of the current room. ?format=html escapes
// markup, the default strips control characters.
func (h *StatusHandler) Transcript(c *gin.Context) {
	if h.room.State() != services.RoomActive {
		c.Error(apperrors.NewAPIError(apperrors.ErrCodeConflict, "not in a room", http.StatusConflict))
		return
	}

	html := c.Query("format") == "html"
	messages := h.room.Transcript()
	lines := make([]gin.H, 0, len(messages))
	for _, m := range messages {
		text := m.Plain()
		if html {
			text = m.HTML()
		}
		lines = append(lines, gin.H{
			"sender_id": m.SenderID,
			"sent_at":   m.SentAt,
			"text":      text,
		})
	}

	h.log.Debugw("transcript served", "room_code", h.room.Code(), "messages", len(lines))
	c.JSON(http.StatusOK, gin.H{
		"room_code": h.room.Code(),
		"messages":  lines,
	})
}
