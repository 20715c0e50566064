package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questtoken/cache"
)

const (
	PlayerIDKey = "player_id"
	// AccessTokenQuery carries the token for clients that cannot set headers,
	// such as browser EventSource.
	AccessTokenQuery = "access_token"
)

// SessionKey is the cache key of a player session.
func SessionKey(token string) string { return "session:" + token }

// BearerToken returns the token from the Authorization header, or from the
// access_token query parameter when the header is absent.
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if header == "" {
		return c.Query(AccessTokenQuery)
	}
	return ""
}

// PlayerAuth validates the player JWT and checks that its session is still
// in the cache. When the route has an :id parameter it must name the same
// player as the token.
func PlayerAuth(secret string, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if secret == "" {
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "player endpoints disabled: set security.jwt_secret in config"})
			return
		}
		tokenStr := BearerToken(ctx)
		if tokenStr == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := ParseToken(tokenStr, secret)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		cacheCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()
		owner, err := c.Get(cacheCtx, SessionKey(tokenStr))
		if err != nil || owner != claims.PlayerID {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}

		if id := ctx.Param("id"); id != "" && id != claims.PlayerID {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "token belongs to another player"})
			return
		}

		ctx.Set(PlayerIDKey, claims.PlayerID)
		ctx.Next()
	}
}

// GetPlayerID retrieves the authenticated player id from the Gin context.
func GetPlayerID(c *gin.Context) string {
	if v, ok := c.Get(PlayerIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
