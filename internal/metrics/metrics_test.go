package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_ObserveCheck(t *testing.T) {
	manager := NewManager()

	manager.ObserveCheck("active", "admitted", 5*time.Millisecond)
	manager.ObserveCheck("active", "refreshed", time.Millisecond)
	manager.ObserveCheck("active", "refreshed", time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(manager.ChecksTotal.WithLabelValues("active", "admitted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(manager.ChecksTotal.WithLabelValues("active", "refreshed")))
	assert.Equal(t, 1, testutil.CollectAndCount(manager.CheckDuration))
}

func TestManager_Handler(t *testing.T) {
	manager := NewManager()
	manager.RateLimitedTotal.Inc()

	server := httptest.NewServer(manager.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "seatkeeper_license_checks_rate_limited_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}
