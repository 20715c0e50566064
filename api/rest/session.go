package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questtoken/cache"
	"github.com/kasuganosora/questtoken/config"
	mw "github.com/kasuganosora/questtoken/middleware"
	"go.uber.org/zap"
)

// SessionHandler mints and revokes player sessions. The game host asks for a
// token once it has authenticated the player itself.
type SessionHandler struct {
	cache  cache.Cache
	sec    config.SecurityConfig
	logger *zap.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(c cache.Cache, sec config.SecurityConfig, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{cache: c, sec: sec, logger: logger}
}

// Create signs a token for a player and stores its session.
// POST /api/admin/players/:id/session
func (h *SessionHandler) Create(c *gin.Context) {
	playerID := c.Param("id")
	if h.sec.JWTSecret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "player endpoints disabled: set security.jwt_secret in config"})
		return
	}
	token, err := mw.GenerateToken(playerID, h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.cache.Set(ctx, mw.SessionKey(token), playerID, h.sec.JWTTTLH); err != nil {
		h.logger.Error("session store failed", zap.String("player", playerID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session error"})
		return
	}
	h.logger.Info("player session created", zap.String("player", playerID))
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"player_id":  playerID,
		"expires_in": int64(h.sec.JWTTTLH / time.Second),
	})
}

// Logout revokes the caller's session.
// POST /api/players/:id/logout
func (h *SessionHandler) Logout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.cache.Del(ctx, mw.SessionKey(mw.BearerToken(c))); err != nil {
		h.logger.Warn("session delete failed", zap.String("player", mw.GetPlayerID(c)), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
