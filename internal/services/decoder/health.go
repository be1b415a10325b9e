package decoder

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name registered with the gRPC health service.
const ServiceName = "model4916.decoder"

type healthHandler struct {
	mqtt    mqtt.Client
	handler *Handler
	stale   time.Duration
}

// NewHealthHandler reports ok when MQTT is connected and a reading was
// decoded within stale, degraded when only MQTT is up.
func NewHealthHandler(m mqtt.Client, h *Handler, stale time.Duration) http.Handler {
	return &healthHandler{mqtt: m, handler: h, stale: stale}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	type status struct {
		Status         string  `json:"status"`
		MQTTConnected  bool    `json:"mqtt_connected"`
		LastDecodeAgeS float64 `json:"last_decode_age_sec"`
	}
	age := h.handler.LastDecodeAge()
	st := status{
		MQTTConnected:  h.mqtt != nil && h.mqtt.IsConnectionOpen(),
		LastDecodeAgeS: age.Seconds(),
	}

	switch {
	case st.MQTTConnected && age >= 0 && age <= h.stale:
		st.Status = "ok"
	case st.MQTTConnected:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

type readyHandler struct {
	mqtt mqtt.Client
}

// NewReadyHandler answers 200 while the MQTT connection is open, 503 otherwise.
func NewReadyHandler(m mqtt.Client) http.Handler {
	return &readyHandler{mqtt: m}
}

func (h *readyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	ready := h.mqtt != nil && h.mqtt.IsConnectionOpen()
	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(struct {
		Ready bool `json:"ready"`
	}{Ready: ready})
}

// WatchHealth mirrors the MQTT connection state into the gRPC health server
// until ctx is done.
func WatchHealth(ctx context.Context, m mqtt.Client, hs *health.Server, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	last := healthpb.HealthCheckResponse_UNKNOWN
	for {
		st := healthpb.HealthCheckResponse_NOT_SERVING
		if m != nil && m.IsConnectionOpen() {
			st = healthpb.HealthCheckResponse_SERVING
		}
		if st != last {
			hs.SetServingStatus(ServiceName, st)
			hs.SetServingStatus("", st)
			log.WithField("status", st.String()).Info("decoder: grpc health status changed")
			last = st
		}

		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-t.C:
		}
	}
}
