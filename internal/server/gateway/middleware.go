package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/neurostore/internal/server/auth"
	"github.com/gin-gonic/gin"
)

// TokenQueryParam carries the access token for WebSocket handshakes, where
// browsers cannot set headers.
const TokenQueryParam = "access_token"

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.Query(TokenQueryParam)
}

// identity resolves the caller. No token means anonymous.
func (g *Gateway) identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearerToken(c)
		if tok == "" {
			c.Next()
			return
		}
		id, err := auth.IdentityFromToken(tok, g.jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: err.Error()})
			return
		}
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

func (g *Gateway) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		g.logger.Debug(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
