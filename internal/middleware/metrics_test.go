package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/steamsedu/steams/pkg/metrics"
)

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/api/messages/:id/read", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/api/messages/1/read", "/api/messages/2/read", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.GreaterOrEqual(t, promtest.CollectAndCount(metrics.APILatency), 2)
	require.Equal(t, 2, int(histogramCount(t, "GET", "/api/messages/:id/read", "200")))
}

func histogramCount(t *testing.T, labels ...string) uint64 {
	t.Helper()
	observer, err := metrics.APILatency.GetMetricWithLabelValues(labels...)
	require.NoError(t, err)
	m := &dto.Metric{}
	require.NoError(t, observer.(prometheus.Metric).Write(m))
	return m.GetHistogram().GetSampleCount()
}
