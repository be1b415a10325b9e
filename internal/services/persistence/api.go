package persistence

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/model4916_decoder/internal/model"
)

const (
	sourceAuto   = "auto"
	sourceInflux = "influx"
	sourceCache  = "cache"
)

// Pinger checks a dependency.
type Pinger interface {
	Ping(ctx context.Context) (bool, error)
}

// API serves the persistence HTTP routes.
type API struct {
	Querier Querier
	Breaker *gobreaker.CircuitBreaker
	Cache   *Cache
	Writer  *Writer
	MQTT    mqtt.Client
	Influx  Pinger

	QueryTimeout time.Duration
}

// NewBreaker trips after failures consecutive errors and stays open for openFor.
func NewBreaker(name string, failures int, openFor, interval time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: interval,
		Timeout:  openFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(failures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(log.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warning("persistence: circuit breaker state changed")
		},
	})
}

// Router returns the HTTP routes of the service.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", a.health).Methods(http.MethodGet)
	r.HandleFunc("/readyz", a.ready).Methods(http.MethodGet)
	r.HandleFunc("/readings/latest", a.latest).Methods(http.MethodGet)
	r.HandleFunc("/devices/{device}/latest", a.deviceLatest).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// latest serves GET /readings/latest?source=auto|influx|cache&minutes=N.
// auto prefers Influx and falls back to the cache on error or empty result.
func (a *API) latest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	source := strings.ToLower(strings.TrimSpace(q.Get("source")))
	if source == "" {
		source = sourceAuto
	}
	switch source {
	case sourceAuto, sourceInflux, sourceCache:
	default:
		writeJSONError(w, http.StatusBadRequest, errors.Errorf("unknown source %q", source))
		return
	}
	minutes := 60 * 24
	if s := q.Get("minutes"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			minutes = n
		}
	}

	var (
		list []model.DecodedReading
		used string
	)
	if source != sourceCache && a.Querier != nil {
		res, err := a.queryInflux(r.Context(), minutes)
		switch {
		case err == nil && len(res) > 0:
			list, used = res, sourceInflux
		case source == sourceInflux && err != nil:
			w.Header().Set("X-Data-Source", "none")
			writeJSONError(w, http.StatusServiceUnavailable, err)
			return
		case source == sourceInflux:
			list, used = res, sourceInflux
		case err != nil:
			log.WithError(err).Warning("persistence: influx query failed, serving cache")
		}
	}
	if used == "" {
		list, used = a.Cache.Latest(), sourceCache
	}
	if list == nil {
		list = []model.DecodedReading{}
	}
	queryCounter(used).Inc()

	w.Header().Set("X-Data-Source", used)
	writeJSON(w, http.StatusOK, list)
}

func (a *API) queryInflux(ctx context.Context, minutes int) ([]model.DecodedReading, error) {
	timeout := a.QueryTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	call := func() (interface{}, error) {
		return a.Querier.LatestReadings(ctx, minutes)
	}
	var (
		res interface{}
		err error
	)
	if a.Breaker != nil {
		res, err = a.Breaker.Execute(call)
	} else {
		res, err = call()
	}
	if err != nil {
		return nil, err
	}
	list, _ := res.([]model.DecodedReading)
	return list, nil
}

func (a *API) deviceLatest(w http.ResponseWriter, r *http.Request) {
	device := mux.Vars(r)["device"]
	rd, ok := a.Cache.Get(device)
	if !ok {
		writeJSONError(w, http.StatusNotFound, errors.Errorf("no reading for device %q", device))
		return
	}
	w.Header().Set("X-Data-Source", sourceCache)
	writeJSON(w, http.StatusOK, rd)
}

func (a *API) influxOK(ctx context.Context) bool {
	if a.Influx == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	ok, err := a.Influx.Ping(ctx)
	return ok && err == nil
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	type status struct {
		Status          string  `json:"status"`
		MQTTConnected   bool    `json:"mqtt_connected"`
		InfluxOK        bool    `json:"influx_ok"`
		LastWriteErrorS float64 `json:"last_write_error_age_sec"`
		PointsWritten   int64   `json:"points_written"`
		Breaker         string  `json:"breaker,omitempty"`
	}
	st := status{
		MQTTConnected:   a.MQTT != nil && a.MQTT.IsConnectionOpen(),
		InfluxOK:        a.influxOK(r.Context()),
		LastWriteErrorS: a.Writer.LastErrorAge().Seconds(),
		PointsWritten:   a.Writer.Written(),
	}
	if a.Breaker != nil {
		st.Breaker = a.Breaker.State().String()
	}

	switch {
	case st.MQTTConnected && st.InfluxOK && a.Writer.LastErrorAge() > 30*time.Second:
		st.Status = "ok"
	case st.MQTTConnected || st.InfluxOK:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) ready(w http.ResponseWriter, r *http.Request) {
	ready := a.MQTT != nil && a.MQTT.IsConnectionOpen() && a.influxOK(r.Context()) && a.Writer.LastErrorAge() > 2*time.Second
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, struct {
		Ready bool `json:"ready"`
	}{Ready: ready})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, struct {
		Error string `json:"error"`
	}{Error: err.Error()})
}
