package middleware

import (
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Origins is the set of browser origins allowed to use the console. The
// console acts with its own session, so a request from any other page is
// refused rather than merely left unreadable.
type Origins struct {
	allowed map[string]bool
}

func NewOrigins(list []string) *Origins {
	o := &Origins{allowed: make(map[string]bool, len(list))}
	for _, origin := range list {
		o.allowed[strings.TrimRight(origin, "/")] = true
	}
	return o
}

// Allowed reports whether a request from origin may proceed. Requests with no
// Origin header come from non-browser clients and are allowed.
func (o *Origins) Allowed(origin string) bool {
	return origin == "" || o.allowed[origin]
}

// CheckOrigin fits websocket.Upgrader.
func (o *Origins) CheckOrigin(r *http.Request) bool {
	return o.Allowed(r.Header.Get("Origin"))
}

// CORS answers preflights and reflects allowed origins only.
func (o *Origins) CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		c.Writer.Header().Add("Vary", "Origin")
		if origin != "" && o.allowed[origin] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		}
		if c.Request.Method == http.MethodOptions {
			if !o.Allowed(origin) {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Guard rejects foreign origins outright, and state-changing requests that
// are not JSON. A plain HTML form cannot send application/json, so this also
// closes the no-preflight path.
func (o *Origins) Guard() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !o.Allowed(c.GetHeader("Origin")) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Origin not allowed"})
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
		default:
			mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
			if err != nil || mediaType != "application/json" {
				c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{"error": "Content-Type must be application/json"})
				return
			}
		}
		c.Next()
	}
}
