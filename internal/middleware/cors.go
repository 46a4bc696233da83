package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// CORSConfig is carried over from the teacher pack's auth-service
// internal/middleware/cors.go, trimmed to the headers this API actually
// needs.
type CORSConfig struct {
	AllowOrigins []string
	MaxAge       time.Duration
}

// CORS builds gin middleware applying the given origin allowlist. The
// config's origins come from spec §6's `cors_origins` environment option.
func CORS(origins []string) gin.HandlerFunc {
	config := CORSConfig{AllowOrigins: origins, MaxAge: 12 * time.Hour}
	if len(config.AllowOrigins) == 0 {
		config.AllowOrigins = []string{"*"}
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		for _, allowed := range config.AllowOrigins {
			if allowed == "*" || allowed == origin {
				c.Header("Access-Control-Allow-Origin", origin)
				break
			}
		}
		c.Header("Access-Control-Allow-Methods", strings.Join([]string{
			http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions,
		}, ", "))
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Signwell-Signature")
		c.Header("Access-Control-Max-Age", time.Duration(config.MaxAge).String())

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
