package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap/zaptest"

	"github.com/sommekat/sommelier/internal/domain/pairing"
)

func TestMetrics_PipelineObserver(t *testing.T) {
	m := NewMetrics(zaptest.NewLogger(t))

	m.PipelineCompleted(pairing.TaskMenu, "OK", 3*time.Second)
	m.PipelineCompleted(pairing.TaskMenu, "OUTPUT_TRUNCATED", time.Second)
	m.PipelineCompleted(pairing.TaskRecipe, "OK", time.Second)
	m.Truncated(pairing.TaskMenu)
	m.ParseCompleted(pairing.TaskMenu, "legacy_array")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.pipelineRuns.WithLabelValues("menu", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pipelineRuns.WithLabelValues("menu", "OUTPUT_TRUNCATED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.truncations.WithLabelValues("menu")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.parseOutcomes.WithLabelValues("menu", "legacy_array")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.pipelineDuration))
}

func TestMetrics_FetchAndAI(t *testing.T) {
	m := NewMetrics(zaptest.NewLogger(t))

	m.FetchCompleted("ok", 200*time.Millisecond)
	m.FetchCompleted("ok", 300*time.Millisecond)
	m.FetchCompleted("http_404", 100*time.Millisecond)
	m.AIRequest("anthropic", "claude-sonnet-4-5-20250929", "success", 4*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.fetchRequests.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchRequests.WithLabelValues("http_404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.aiRequestsTotal.WithLabelValues("anthropic", "claude-sonnet-4-5-20250929", "success")))
}

func TestMetrics_HTTPMiddlewareUsesRoutePattern(t *testing.T) {
	m := NewMetrics(zaptest.NewLogger(t))

	r := chi.NewRouter()
	r.Use(m.HTTPMiddleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"1", "2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/items/{id}", "418")))
}

func TestMetrics_HandlerExposesRegistry(t *testing.T) {
	m := NewMetrics(zaptest.NewLogger(t))
	m.Truncated(pairing.TaskRecipe)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sommelier_truncations_total{task="recipe"} 1`)
}

func TestTelemetry_BridgesOTelInstrumentsToRegistry(t *testing.T) {
	m := NewMetrics(zaptest.NewLogger(t))

	tel, err := NewTelemetry(TelemetryConfig{ServiceName: "sommelier-test"}, m, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	counter, err := otel.Meter("monitoring-test").Int64Counter("sommelier.test.tokens")
	require.NoError(t, err)
	counter.Add(context.Background(), 42, metric.WithAttributes())

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "sommelier_test_tokens") {
			found = true
		}
	}
	assert.True(t, found, "otel counter should be exported through the shared registry")
}
