package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"graphwise-relay/internal/common/auth"
	"graphwise-relay/internal/common/database"
	"graphwise-relay/internal/common/logger"
	"graphwise-relay/internal/common/observability"
	"graphwise-relay/internal/relay"
)

// Endpoints are the relay endpoints the router mounts. Settings endpoints
// are optional.
type Endpoints struct {
	CourseComplete   relay.Endpoint
	UpdateCategories relay.Endpoint
	TrackView        relay.Endpoint
	GetContact       relay.Endpoint
	ThankYou         relay.Endpoint
	LegacyAjax       relay.Endpoint
	SettingsGet      relay.Endpoint
	SettingsUpdate   relay.Endpoint
}

type Options struct {
	Endpoints     Endpoints
	AuthMode      string
	WebhookSecret auth.SecretFunc
	AdminAPIKey   string
	Sessions      *auth.SessionIssuer
	Observability *observability.Observability
	// Checks are pinged by /ready, keyed by dependency name.
	Checks map[string]database.Pinger
	Logger logger.Logger
}

// NewRouter wires the public probes, the server-to-server webhook, the
// same-origin browser endpoints and the admin settings API.
func NewRouter(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(opts.Logger))
	if opts.Observability != nil {
		r.Use(opts.Observability.Middleware())
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().UTC().Format(time.RFC3339)})
	})
	r.GET("/ready", readiness(opts.Checks))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/graphwise/v1")

	// Server-to-server: shared secret in X-API-Key.
	webhook := auth.SharedSecretMiddleware(opts.AuthMode, opts.WebhookSecret, opts.Logger)
	v1.POST("/course-complete", webhook, relay.Adapt(opts.Endpoints.CourseComplete))
	v1.POST("/webhook", webhook, relay.Adapt(opts.Endpoints.CourseComplete))

	// Browser: session cookie plus nonce.
	v1.GET("/session", opts.Sessions.Issue)
	browser := v1.Group("", opts.Sessions.Middleware())
	browser.POST("/update-categories", relay.Adapt(opts.Endpoints.UpdateCategories))
	browser.POST("/track-view", relay.Adapt(opts.Endpoints.TrackView))
	browser.GET("/contact", relay.Adapt(opts.Endpoints.GetContact))
	// The page renders contact details, so it takes the nonce as a query field.
	browser.GET("/pages/:slug", relay.Adapt(opts.Endpoints.ThankYou))
	r.POST("/wp-admin/admin-ajax.php", opts.Sessions.Middleware(), relay.Adapt(opts.Endpoints.LegacyAjax))

	if opts.AdminAPIKey != "" && opts.Endpoints.SettingsGet != nil && opts.Endpoints.SettingsUpdate != nil {
		admin := v1.Group("/settings", auth.AdminKeyMiddleware(opts.AdminAPIKey, opts.Logger))
		admin.GET("", relay.Adapt(opts.Endpoints.SettingsGet))
		admin.PUT("", relay.Adapt(opts.Endpoints.SettingsUpdate))
	} else {
		opts.Logger.Info("Settings API disabled: no admin key configured", nil)
	}

	return r
}

// readiness pings every configured dependency with a one second budget.
func readiness(checks map[string]database.Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		failed := gin.H{}
		for name, p := range checks {
			if err := p.Ping(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "errors": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
