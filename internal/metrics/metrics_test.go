// ABOUTME: Tests for the Prometheus observer and metrics handler
// ABOUTME: Uses client_golang testutil to read collector values

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-operator/internal/relay"
)

func TestCollectors_RequestLifecycle(t *testing.T) {
	c := New()

	c.RequestStarted("claude")
	c.RequestStarted("claude")
	assert.Equal(t, 2.0, testutil.ToFloat64(c.RequestsInFlight.WithLabelValues("claude")))

	c.RequestFinished("claude", relay.OutcomeResponse, 3*time.Second)
	c.RequestFinished("claude", relay.OutcomeStopped, time.Second)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.RequestsInFlight.WithLabelValues("claude")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.RequestsTotal.WithLabelValues("claude", "response")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.RequestsTotal.WithLabelValues("claude", "stopped")))
}

func TestCollectors_Counters(t *testing.T) {
	c := New()

	c.BusyRejected()
	c.SessionCaptured("codex")
	c.ProcessExited("codex", 0)
	c.ProcessExited("codex", -1)
	c.ProcessExited("codex", -1)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.BusyRejections))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SessionsCaptured.WithLabelValues("codex")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.ProcessExits.WithLabelValues("codex", "-1")))
}

func TestCollectors_Handler(t *testing.T) {
	c := New()
	c.RequestFinished("gemini", relay.OutcomeEmpty, time.Second)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `coven_operator_requests_total{outcome="empty",provider="gemini"} 1`))
	assert.Contains(t, body, "go_goroutines")
}
