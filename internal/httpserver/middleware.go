package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	clientIDHeader = "X-Client-ID"
	clientIDCookie = "client_id"
	clientIDKey    = "client_id"
	requestIDKey   = "request_id"
)

// requestLogger logs one line per request, at warn for 4xx and error for 5xx.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if id := c.GetString(clientIDKey); id != "" {
			fields = append(fields, zap.String("client_id", id))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

func recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("recovered from panic", zap.Any("panic", rec), zap.String("path", c.Request.URL.Path))
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Error: errorDetail{Message: "internal server error"}})
			}
		}()
		c.Next()
	}
}

// clientIDMiddleware resolves the browser's client id from the header or cookie and
// issues a new one when neither carries a valid id. The id is echoed in both.
func clientIDMiddleware(ids clientIDService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(clientIDHeader)
		if raw == "" {
			raw, _ = c.Cookie(clientIDCookie)
		}
		id, issued := ids.Resolve(raw)
		c.Set(clientIDKey, id)
		c.Header(clientIDHeader, id)
		if issued || raw != id {
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(clientIDCookie, id, ids.TTLSeconds(), "/", "", c.Request.TLS != nil, true)
		}
		c.Next()
	}
}

func clientID(c *gin.Context) string {
	return c.GetString(clientIDKey)
}
