package api

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	traceIDKey    = "trace_id"
	traceIDHeader = "X-Trace-ID"
)

// TraceIDMiddleware reuses a caller supplied X-Trace-ID or mints one.
func TraceIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := strings.TrimSpace(c.GetHeader(traceIDHeader))
		if traceID == "" || len(traceID) > 128 {
			traceID = uuid.New().String()
		}
		c.Set(traceIDKey, traceID)
		c.Writer.Header().Set(traceIDHeader, traceID)
		c.Next()
	}
}

func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("trace_id", c.GetString(traceIDKey)).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http_request")
	}
}
