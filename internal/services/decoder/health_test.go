package decoder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/LeonardoBeccarini/model4916_decoder/internal/testutil"
)

func healthStatus(t *testing.T, h http.Handler) string {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Status
}

func TestHealthHandler(t *testing.T) {
	client := testutil.NewClient()
	pub := &testutil.Publisher{}
	h := newTestHandler(pub)
	hh := NewHealthHandler(client, h, time.Minute)

	assert.Equal(t, "degraded", healthStatus(t, hh))

	require.NoError(t, h.Handle("", fixtureMessage(t, "v3/a/devices/model4916-01/up", "uplinks/tts_v3.json")))
	assert.Equal(t, "ok", healthStatus(t, hh))

	client.Disconnect(0)
	assert.Equal(t, "down", healthStatus(t, hh))
}

func TestReadyHandler(t *testing.T) {
	client := testutil.NewClient()
	rh := NewReadyHandler(client)

	rec := httptest.NewRecorder()
	rh.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ready":true}`, rec.Body.String())

	client.Disconnect(0)
	rec = httptest.NewRecorder()
	rh.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"ready":false}`, rec.Body.String())
}

func TestWatchHealth(t *testing.T) {
	client := testutil.NewClient()
	hs := health.NewServer()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		WatchHealth(ctx, client, hs, 5*time.Millisecond)
		close(done)
	}()

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
		if err != nil {
			return healthpb.HealthCheckResponse_UNKNOWN
		}
		return resp.Status
	}

	require.Eventually(t, func() bool {
		return check() == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 5*time.Millisecond)

	client.Disconnect(0)
	require.Eventually(t, func() bool {
		return check() == healthpb.HealthCheckResponse_NOT_SERVING
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
