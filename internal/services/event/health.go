package event

import (
	"encoding/json"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Health reports the state of the broker connection and the Influx writer.
type Health struct {
	mqtt     mqtt.Client
	writer   *Writer
	errQuiet time.Duration
}

func NewHealth(m mqtt.Client, w *Writer, errQuiet time.Duration) *Health {
	if errQuiet <= 0 {
		errQuiet = 30 * time.Second
	}
	return &Health{mqtt: m, writer: w, errQuiet: errQuiet}
}

type healthStatus struct {
	Status          string  `json:"status"`
	MQTTConnected   bool    `json:"mqtt_connected"`
	WriterOK        bool    `json:"writer_ok"`
	LastWriteErrorS float64 `json:"last_write_error_age_sec"`
}

func (h *Health) status() healthStatus {
	st := healthStatus{
		MQTTConnected:   h.mqtt != nil && h.mqtt.IsConnectionOpen(),
		WriterOK:        h.writer != nil && h.writer.LastErrorAge() > h.errQuiet,
		LastWriteErrorS: h.writer.LastErrorAge().Seconds(),
	}
	switch {
	case st.MQTTConnected && st.WriterOK:
		st.Status = "ok"
	case st.MQTTConnected || st.WriterOK:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}
	return st
}

// Healthz always answers 200 with the detailed status.
func (h *Health) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.status())
}

// Readyz answers 503 unless every dependency is ok.
func (h *Health) Readyz(w http.ResponseWriter, _ *http.Request) {
	ready := h.status().Status == "ok"
	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ready": ready})
}
