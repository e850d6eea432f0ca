// Package auth holds the gin guards placed in front of relay endpoints.
package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"graphwise-relay/internal/common/config"
	"graphwise-relay/internal/common/errors"
	"graphwise-relay/internal/common/logger"
)

const (
	APIKeyHeader   = "X-API-Key"
	AdminKeyHeader = "X-Admin-Key"
)

// SecretFunc returns the secret currently in force. It is read per request
// so a settings update applies without a restart.
type SecretFunc func() string

// SharedSecretMiddleware requires X-API-Key to equal the configured webhook
// secret. With auth mode "open" every request passes. A missing secret fails
// closed with AUTH_NOT_CONFIGURED.
func SharedSecretMiddleware(mode string, secret SecretFunc, log logger.Logger) gin.HandlerFunc {
	if mode == config.AuthModeOpen {
		log.Warn("Webhook authentication disabled by configuration", map[string]interface{}{
			"authMode": mode,
		})
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		expected := secret()
		if expected == "" {
			abort(c, errors.NewAuthNotConfiguredError("webhook secret is not configured"), log)
			return
		}
		if !Equal(strings.TrimSpace(c.GetHeader(APIKeyHeader)), expected) {
			abort(c, errors.NewAuthenticationError("invalid or missing "+APIKeyHeader), log)
			return
		}
		c.Next()
	}
}

// AdminKeyMiddleware guards the settings endpoints.
func AdminKeyMiddleware(adminKey string, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Equal(strings.TrimSpace(c.GetHeader(AdminKeyHeader)), adminKey) {
			abort(c, errors.NewAuthenticationError("invalid or missing "+AdminKeyHeader), log)
			return
		}
		c.Next()
	}
}

// Equal compares two secrets in constant time. An empty expected value
// never matches.
func Equal(given, expected string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(expected)) == 1
}

func abort(c *gin.Context, stdErr *errors.StandardError, log logger.Logger) {
	log.Warn("Request blocked by guard", map[string]interface{}{
		"errorCode": string(stdErr.Code),
		"path":      c.FullPath(),
		"clientIP":  c.ClientIP(),
	})
	c.AbortWithStatusJSON(stdErr.Status(), stdErr.Body())
}
