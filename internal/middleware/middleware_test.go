package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hiring-gateway/internal/model"
	"hiring-gateway/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCorrelationIDIsEchoed(t *testing.T) {
	r := gin.New()
	r.Use(CorrelationID())

	var seen string
	var hasLogger bool
	r.GET("/ping", func(c *gin.Context) {
		seen = GetCorrelationID(c)
		hasLogger = zerolog.Ctx(c.Request.Context()) != zerolog.DefaultContextLogger
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(CorrelationIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", w.Header().Get(CorrelationIDHeader))
	assert.True(t, hasLogger)
}

func TestCorrelationIDIsGenerated(t *testing.T) {
	r := gin.New()
	r.Use(CorrelationID())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Len(t, w.Header().Get(CorrelationIDHeader), 36)
}

func TestRateLimitRejectsAfterBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RPM: 1, Burst: 2, CleanupInterval: time.Hour})
	defer rl.Stop()

	r := gin.New()
	r.Use(CorrelationID(), rl.RateLimit())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-API-Key", "k1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	first := do()
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusNoContent, do().Code)

	limited := do()
	require.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))

	var body response.StandardResponse
	require.NoError(t, json.Unmarshal(limited.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body.Error.Code)
	assert.Equal(t, "Maximum 1 requests per minute allowed", body.Error.Details)
	assert.NotEmpty(t, body.CorrelationID)

	assert.Equal(t, 1, rl.GetStats().ActiveClients)
}

func TestRateLimitEvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RPM: 60, Burst: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	rl.client("ip:10.0.0.1")
	rl.evict(time.Now().Add(2 * time.Minute))
	assert.Equal(t, 0, rl.GetStats().ActiveClients)
}

func TestOperationMetrics(t *testing.T) {
	InitMetrics()
	InitMetrics()
	m := GetMetrics()
	require.NotNil(t, m)

	op := &model.Operation{Kind: model.OperationRestore, Table: "metrics_test", Status: model.OperationSucceeded, Rows: 12, Rebuilt: true}
	OperationMetrics{}.ObserveOperation(op, 3*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("restore", "metrics_test", "succeeded")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.OperationRows.WithLabelValues("restore", "metrics_test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RestoreRebuilds.WithLabelValues("metrics_test")))

	RecordInsert("metrics_test", "success", 5)
	RecordInsert("metrics_test", "DUPLICATE_IDS", 5)
	assert.Equal(t, 5.0, testutil.ToFloat64(m.InsertRowsAccepted.WithLabelValues("metrics_test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InsertsTotal.WithLabelValues("metrics_test", "DUPLICATE_IDS")))

	UpdateBackendHealth("warehouse", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BackendUp.WithLabelValues("warehouse")))
}

func TestPrometheusMiddlewareUsesRoutePattern(t *testing.T) {
	InitMetrics()

	r := gin.New()
	r.Use(PrometheusMiddleware())
	r.POST("/backup/:table", func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/backup/jobs", nil))
	require.Equal(t, http.StatusCreated, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(GetMetrics().HttpRequestsTotal.WithLabelValues("POST", "/backup/:table", "201")))
}
