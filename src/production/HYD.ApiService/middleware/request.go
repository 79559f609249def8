package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	logger "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Logger"
)

// RequestIDHeader carries the correlation id in and out
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// RequestID reuses the caller's X-Request-ID or mints one, and echoes it back
func RequestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		requestID := strings.TrimSpace(ctx.GetHeader(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx.Set(requestIDKey, requestID)
		ctx.Header(RequestIDHeader, requestID)
		ctx.Next()
	}
}

// GetRequestID returns the id set by RequestID, or "" outside it
func GetRequestID(ctx *gin.Context) string {
	return ctx.GetString(requestIDKey)
}

// RequestTimeout bounds every downstream repository call by timeout
func RequestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if timeout <= 0 {
			ctx.Next()
			return
		}
		reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), timeout)
		defer cancel()

		ctx.Request = ctx.Request.WithContext(reqCtx)
		ctx.Next()
	}
}

// RequestLogger writes one access log line per request
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	log = log.WithComponent("http")
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		status := ctx.Writer.Status()
		event := log.Logger.Info()
		switch {
		case status >= 500:
			event = log.Logger.Error()
		case status >= 400:
			event = log.Logger.Warn()
		}

		event.
			Str("method", ctx.Request.Method).
			Str("path", ctx.Request.URL.Path).
			Str("action", ctx.Query("action")).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", ctx.ClientIP()).
			Str("request_id", GetRequestID(ctx)).
			Msg("request")
	}
}
