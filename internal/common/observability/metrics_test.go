package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphwise-relay/internal/common/logger"
)

func TestMiddleware_RecordsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := promclient.NewRegistry()
	obs := NewWithRegisterer("relay-test", reg, logger.NewNoOpLogger())
	defer obs.Shutdown()

	router := gin.New()
	router.Use(obs.Middleware())
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]bool{}
	for _, mf := range families {
		byName[mf.GetName()] = true
		assert.False(t, strings.Contains(mf.GetName(), "."), "exported name %q must not contain dots", mf.GetName())
		if mf.GetName() == "relay_http_requests_total" {
			require.NotEmpty(t, mf.GetMetric())
			assert.Equal(t, float64(3), mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, byName["relay_http_requests_total"], "request counter should be exported, got %v", byName)
	assert.True(t, byName["relay_http_duration_milliseconds"], "duration histogram should be exported, got %v", byName)
}

func TestObservability_ZeroValueIsSafe(t *testing.T) {
	var obs Observability
	assert.NotPanics(t, func() {
		obs.RecordRequest(t.Context(), "/x", 200)
		obs.Shutdown()
	})
}
