package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"class_forum/internal/middleware"
	"class_forum/internal/realtime"
)

// WSHandler 建立推送通道：GET /ws?token=<access token>
type WSHandler struct {
	auth         *middleware.Authenticator
	registry     realtime.Registry
	upgrader     websocket.Upgrader
	buffer       int
	writeTimeout time.Duration
	log          zerolog.Logger
}

func NewWSHandler(auth *middleware.Authenticator, registry realtime.Registry, origins []string, buffer int, writeTimeout time.Duration, log zerolog.Logger) *WSHandler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &WSHandler{
		auth:     auth,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
		buffer:       buffer,
		writeTimeout: writeTimeout,
		log:          log.With().Str("component", "ws").Logger(),
	}
}

func (h *WSHandler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"msg": "missing token"})
		return
	}
	claims, err := h.auth.Verify(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"msg": "invalid or expired token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写回了错误响应
		h.log.Debug().Err(err).Msg("upgrade")
		return
	}

	ch := realtime.NewWSChannel(conn, h.buffer, h.writeTimeout, h.log)
	h.registry.Register(claims.UserID, ch)
	h.log.Info().Uint64("user_id", claims.UserID).Str("conn_id", ch.ID).Msg("connected")

	ch.Serve()

	// 只删除自己的登记，新连接不受影响
	released := h.registry.Release(claims.UserID, ch)
	h.log.Info().Uint64("user_id", claims.UserID).Str("conn_id", ch.ID).Bool("released", released).Msg("disconnected")
}
