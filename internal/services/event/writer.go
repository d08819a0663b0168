package event

import (
	"log"
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Writer wraps the async WriteAPI and remembers the last write error for the
// health endpoints.
type Writer struct {
	api      api.WriteAPI
	ingested *prometheus.CounterVec
	failed   prometheus.Counter

	mu      sync.RWMutex
	lastErr time.Time
}

func NewWriter(w api.WriteAPI, reg prometheus.Registerer) *Writer {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	ww := &Writer{
		api: w,
		ingested: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "garden", Subsystem: "events", Name: "ingested_total",
			Help: "Events written to InfluxDB by type.",
		}, []string{"event_type"}),
		failed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "garden", Subsystem: "events", Name: "write_errors_total",
			Help: "Asynchronous InfluxDB write errors.",
		}),
		lastErr: time.Now().Add(-24 * time.Hour),
	}
	go func() {
		for err := range w.Errors() {
			if err == nil {
				continue
			}
			ww.mu.Lock()
			ww.lastErr = time.Now()
			ww.mu.Unlock()
			ww.failed.Inc()
			log.Printf("event-svc: influx write error: %v", err)
		}
	}()
	return ww
}

func (w *Writer) Write(evt CommonEvent) {
	w.api.WritePoint(EventToPoint(evt))
	w.ingested.WithLabelValues(evt.EventType).Inc()
}

// LastErrorAge is the time since the last write error.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return time.Since(t)
}
