package realtime

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/RayenAkrich/EduLink-sub000/internal/models"
	"github.com/RayenAkrich/EduLink-sub000/pkg/config"
	appErrors "github.com/RayenAkrich/EduLink-sub000/pkg/errors"
	"github.com/RayenAkrich/EduLink-sub000/pkg/response"
)

// TokenParser validates an access token and returns its claims.
type TokenParser func(token string) (*models.JWTClaims, error)

// Handler upgrades authenticated HTTP requests to websocket connections and
// registers them with the hub.
type Handler struct {
	hub        *Hub
	parseToken TokenParser
	cfg        config.RealtimeConfig
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewHandler creates the websocket handler.
func NewHandler(hub *Hub, parseToken TokenParser, cfg config.RealtimeConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		hub:        hub,
		parseToken: parseToken,
		cfg:        cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers cannot set Authorization headers on websocket
			// requests; origin policy is enforced by the CORS layer.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Serve handles GET /ws. The access token travels in the token query
// parameter because websocket clients cannot send custom headers.
func (h *Handler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	claims, err := h.parseToken(token)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(claims.UserID, conn, h.cfg.SendBuffer, h.cfg.WriteTimeout, h.cfg.PingInterval, h.logger)
	h.hub.Register(claims.UserID, client)
	client.Run(h.hub)
}
