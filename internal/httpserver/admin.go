package httpserver

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// basicAuth checks HTTP basic credentials against the configured user and bcrypt hash.
func basicAuth(cfg AdminConfig, logger *zap.Logger) gin.HandlerFunc {
	hash := []byte(cfg.PasswordHash)
	return func(c *gin.Context) {
		user, pass, ok := c.Request.BasicAuth()
		userOK := ok && subtle.ConstantTimeCompare([]byte(user), []byte(cfg.Username)) == 1
		if !ok || bcrypt.CompareHashAndPassword(hash, []byte(pass)) != nil || !userOK {
			logger.Warn("admin auth failed", zap.String("user", user), zap.String("client_ip", c.ClientIP()))
			c.Header("WWW-Authenticate", `Basic realm="admin"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: errorDetail{Message: "unauthorized"}})
			return
		}
		c.Set(gin.AuthUserKey, user)
		c.Next()
	}
}
