package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewDataMetrics(reg)
	require.NoError(t, err)

	m.Observe("image", "create", OutcomeSuccess, 5*time.Millisecond)
	m.Observe("image", "create", OutcomeSuccess, 5*time.Millisecond)
	m.Observe("image", "create", OutcomeConflict, time.Millisecond)
	m.ImportRows(RowImported, 3)
	m.ImportRows(RowFailed, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("image", "create", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("image", "create", OutcomeConflict)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.importRows.WithLabelValues(RowImported)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.importRows))
}

func TestDataMetrics_NilIsNoop(t *testing.T) {
	var m *DataMetrics
	assert.NotPanics(t, func() {
		m.Observe("label", "delete", OutcomeSuccess, time.Millisecond)
		m.ImportRows(RowSkipped, 1)
	})
}

func TestRegistry_HandlerAndMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg, err := NewRegistry()
	require.NoError(t, err)

	router := gin.New()
	router.Use(reg.HTTP.Middleware())
	router.GET("/api/images/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.GET("/metrics", gin.WrapH(reg.Handler()))

	for _, id := range []string{"1", "2"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/images/"+id, nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.True(t, strings.Contains(body,
		`annotator_http_requests_total{method="GET",route="/api/images/:id",status="204"} 2`), body)
	assert.Contains(t, body, "go_goroutines")
}
