package persistence

import (
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	log "github.com/sirupsen/logrus"
)

// PointWriter is the subset of the Influx async write API the service uses.
type PointWriter interface {
	WritePoint(point *write.Point)
	Errors() <-chan error
}

// Writer wraps the async write API and tracks the last write error for
// /healthz and /readyz.
type Writer struct {
	api     PointWriter
	mu      sync.RWMutex
	lastErr time.Time
	written int64
	now     func() time.Time
}

// NewWriter starts draining the asynchronous write errors of w.
func NewWriter(w PointWriter) *Writer {
	ww := &Writer{
		api:     w,
		lastErr: time.Now().Add(-24 * time.Hour),
		now:     time.Now,
	}
	go func() {
		for err := range w.Errors() {
			if err == nil {
				continue
			}
			ww.mu.Lock()
			ww.lastErr = ww.now()
			ww.mu.Unlock()
			writeCounter("error").Inc()
			log.WithError(err).Error("persistence: influx write error")
		}
	}()
	return ww
}

// Write queues p for the next batch.
func (w *Writer) Write(p *write.Point) {
	w.api.WritePoint(p)
	w.mu.Lock()
	w.written++
	w.mu.Unlock()
	writeCounter("queued").Inc()
}

// LastErrorAge returns the time since the last write error.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return w.now().Sub(t)
}

// Written returns the number of queued points.
func (w *Writer) Written() int64 {
	if w == nil {
		return 0
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.written
}
