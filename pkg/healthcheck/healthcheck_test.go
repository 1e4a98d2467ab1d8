package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func staticChecker(status Status) Checker {
	return NewCustomChecker("static", func(context.Context) (Status, string, interface{}) {
		return status, string(status), nil
	})
}

func TestHealthCheck_AggregatesStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
		code     int
	}{
		{"no checks", nil, StatusHealthy, http.StatusOK},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy, http.StatusOK},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded, http.StatusOK},
		{"one unhealthy", []Status{StatusDegraded, StatusUnhealthy}, StatusUnhealthy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New("1.2.3", zaptest.NewLogger(t))
			for i, s := range tt.statuses {
				h.Register(string(rune('a'+i)), staticChecker(s))
			}

			rec := httptest.NewRecorder()
			h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			assert.Equal(t, tt.code, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, string(tt.want), body["status"])
			assert.Equal(t, "1.2.3", body["version"])
			assert.Len(t, body["checks"], len(tt.statuses))
		})
	}
}

func TestHealthCheck_ChecksAreNamedAndSorted(t *testing.T) {
	h := New("v", zaptest.NewLogger(t))
	h.Register("zeta", staticChecker(StatusHealthy))
	h.Register("alpha", staticChecker(StatusHealthy))

	resp := h.Check(context.Background())
	require.Len(t, resp.Checks, 2)
	assert.Equal(t, "alpha", resp.Checks[0].Name)
	assert.Equal(t, "zeta", resp.Checks[1].Name)
}

func TestHealthCheck_CachesResults(t *testing.T) {
	var calls int32
	h := New("v", zaptest.NewLogger(t))
	h.Register("counted", NewCustomChecker("counted", func(context.Context) (Status, string, interface{}) {
		atomic.AddInt32(&calls, 1)
		return StatusHealthy, "", nil
	}))

	h.Check(context.Background())
	h.Check(context.Background())
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	h.SetCacheTTL(0)
	h.Check(context.Background())
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestExternalServiceChecker(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   Status
	}{
		{"ok", http.StatusOK, StatusHealthy},
		{"unauthenticated root", http.StatusUnauthorized, StatusHealthy},
		{"overloaded", http.StatusServiceUnavailable, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			check := NewExternalServiceChecker(srv.URL, time.Second).Check(context.Background())
			assert.Equal(t, tt.want, check.Status)
			assert.Equal(t, tt.status, check.Metadata.(map[string]interface{})["status_code"])
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		check := NewExternalServiceChecker(url, time.Second).Check(context.Background())
		assert.Equal(t, StatusUnhealthy, check.Status)
		assert.NotEmpty(t, check.Message)
	})
}

func TestCheck_MarshalsDurationAsMilliseconds(t *testing.T) {
	data, err := json.Marshal(Check{Name: "x", Status: StatusHealthy, Duration: 1500 * time.Millisecond})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"duration_ms":1500`)
}

var errBoom = errors.New("boom")

func newTestBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, *time.Time) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("ai", cfg)
	cb.now = func() time.Time { return now }
	return cb, &now
}

func fail() error    { return errBoom }
func succeed() error { return nil }

func TestNewCircuitBreaker_DefaultValues(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{})

	assert.Equal(t, 5, cb.config.FailureThreshold)
	assert.Equal(t, 2, cb.config.SuccessThreshold)
	assert.Equal(t, 30*time.Second, cb.config.Timeout)
	assert.Equal(t, 1, cb.config.MaxRequests)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_TripsAndRecovers(t *testing.T) {
	var transitions []string
	cb, now := newTestBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          10 * time.Second,
		OnStateChange: func(name string, from, to CircuitBreakerState) {
			transitions = append(transitions, from.String()+">"+to.String())
		},
	})

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(fail), errBoom)
	}
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	*now = now.Add(10 * time.Second)
	require.NoError(t, cb.Execute(succeed))
	assert.Equal(t, StateHalfOpen, cb.GetState())
	require.NoError(t, cb.Execute(succeed))
	assert.Equal(t, StateClosed, cb.GetState())

	assert.Equal(t, []string{"closed>open", "open>half-open", "half-open>closed"}, transitions)

	stats := cb.GetStats()
	assert.EqualValues(t, 6, stats.TotalRequests)
	assert.EqualValues(t, 3, stats.TotalFailures)
	assert.EqualValues(t, 1, stats.TotalRejections)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, now := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Second})

	_ = cb.Execute(fail)
	assert.Equal(t, StateOpen, cb.GetState())

	*now = now.Add(time.Second)
	_ = cb.Execute(fail)
	assert.Equal(t, StateOpen, cb.GetState())
	assert.ErrorIs(t, cb.Execute(succeed), ErrCircuitOpen)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 2})

	_ = cb.Execute(fail)
	_ = cb.Execute(succeed)
	_ = cb.Execute(fail)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_IgnoredErrorsDoNotCount(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		IsFailure:        func(err error) bool { return !errors.Is(err, context.Canceled) },
	})

	assert.ErrorIs(t, cb.Execute(func() error { return context.Canceled }), context.Canceled)
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Zero(t, cb.GetStats().TotalFailures)
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	cb, now := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Second, MaxRequests: 1})
	_ = cb.Execute(fail)
	*now = now.Add(time.Second)

	probing := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = cb.Execute(func() error {
			close(probing)
			<-release
			return nil
		})
	}()

	<-probing
	assert.ErrorIs(t, cb.Execute(succeed), ErrCircuitOpen)
	close(release)
	wg.Wait()
}

func TestCircuitBreaker_CheckerAndReset(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 1})

	check := cb.Checker().Check(context.Background())
	assert.Equal(t, StatusHealthy, check.Status)

	_ = cb.Execute(fail)
	check = cb.Checker().Check(context.Background())
	assert.Equal(t, StatusDegraded, check.Status)
	assert.Equal(t, "open", check.Metadata.(map[string]interface{})["state"])

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, CircuitBreakerStats{}, cb.GetStats())
}
