package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func Logger(l zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		ev := l.Info()
		if status >= 500 {
			ev = l.Error()
		}
		rid := c.GetString(RequestIDHeader)
		ev = ev.Str("request_id", rid).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", latency)
		if actor, ok := ActorFrom(c); ok {
			ev = ev.Str("actor", actor.Email)
		}
		ev.Msg("request")
	}
}
