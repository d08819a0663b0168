package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// DayHistory is one closed day record as stored in InfluxDB.
type DayHistory struct {
	Time                string  `json:"time"` // RFC3339
	FieldID             string  `json:"field_id"`
	Weekday             string  `json:"weekday"`
	MaxTemperature      float64 `json:"max_temperature"`
	RainfallEventCount  int64   `json:"rainfall_event_count"`
	TankLevelPercent    float64 `json:"tank_level_percent"`
	TotalWaterDispensed float64 `json:"total_water_dispensed"`
}

// EventEntry is one stored controller event.
type EventEntry struct {
	Time      string `json:"time"`
	EventType string `json:"event_type"`
	Key       string `json:"key,omitempty"`
	Field     string `json:"field"`
	Value     any    `json:"value"`
}

type queryParams struct {
	Days      int
	Minutes   int
	Limit     int
	EventType string
	Timeout   time.Duration
}

func parseQuery(r *http.Request) queryParams {
	q := r.URL.Query()
	get := func(k string, def, min, max int) int {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				if n < min {
					return min
				}
				if max > 0 && n > max {
					return max
				}
				return n
			}
		}
		return def
	}
	return queryParams{
		Days:      get("days", 30, 1, 366),
		Minutes:   get("minutes", 1440, 1, 7*24*60),
		Limit:     get("limit", 3, 1, 500),
		EventType: strings.TrimSpace(q.Get("type")),
		Timeout:   time.Duration(get("timeout_ms", 2000, 200, 5000)) * time.Millisecond,
	}
}

// knownEventTypes are the values accepted for ?type=.
var knownEventTypes = map[string]bool{
	TypeStateChange: true,
	TypeDosage:      true,
	TypeCycle:       true,
	TypeDayRecord:   true,
}

var fluxEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "${", `\${`)

// fluxString quotes s as a Flux string literal.
func fluxString(s string) string { return `"` + fluxEscaper.Replace(s) + `"` }

func buildDaysFlux(bucket, fieldID string, days, limit int) string {
	return fmt.Sprintf(`
from(bucket: %s)
  |> range(start: -%dd)
  |> filter(fn: (r) => r._measurement == %s and r.field_id == %s)
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> group()
  |> sort(columns: ["_time"], desc: true)
  |> limit(n: %d)
`, fluxString(bucket), days, fluxString(MeasurementDayRecord), fluxString(fieldID), limit)
}

func buildEventsFlux(bucket, eventType string, minutes, limit int) string {
	filter := ""
	if eventType != "" {
		filter = " and r.event_type == " + fluxString(eventType)
	}
	return fmt.Sprintf(`
from(bucket: %s)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %s%s and r._field != "count")
  |> group()
  |> sort(columns: ["_time"], desc: true)
  |> limit(n: %d)
`, fluxString(bucket), minutes, fluxString(MeasurementEvents), filter, limit)
}

// HistoryAPI serves the stored day records and events.
type HistoryAPI struct {
	query   api.QueryAPI
	bucket  string
	fieldID string
}

func NewHistoryAPI(q api.QueryAPI, bucket, fieldID string) *HistoryAPI {
	return &HistoryAPI{query: q, bucket: bucket, fieldID: fieldID}
}

func (h *HistoryAPI) LoadAPI(r *mux.Router) {
	r.HandleFunc("/history/days", h.days).Methods(http.MethodGet)
	r.HandleFunc("/events/latest", h.events).Methods(http.MethodGet)
}

// GET /history/days?limit=3[&days=30]
func (h *HistoryAPI) days(w http.ResponseWriter, r *http.Request) {
	p := parseQuery(r)
	ctx, cancel := context.WithTimeout(r.Context(), p.Timeout)
	defer cancel()

	out := make([]DayHistory, 0, p.Limit)
	res, err := h.query.Query(ctx, buildDaysFlux(h.bucket, h.fieldID, p.Days, p.Limit))
	if err != nil {
		log.Printf("event-svc: history query: %v", err)
		writeJSON(w, http.StatusOK, out, "influx-query-error")
		return
	}
	defer res.Close()
	for res.Next() {
		rec := res.Record()
		wd := time.Weekday(toInt(rec.ValueByKey("weekday")))
		out = append(out, DayHistory{
			Time:                rec.Time().UTC().Format(time.RFC3339),
			FieldID:             toString(rec.ValueByKey("field_id")),
			Weekday:             wd.String(),
			MaxTemperature:      toFloat(rec.ValueByKey("max_temperature")),
			RainfallEventCount:  toInt(rec.ValueByKey("rainfall_event_count")),
			TankLevelPercent:    toFloat(rec.ValueByKey("tank_level_percent")),
			TotalWaterDispensed: toFloat(rec.ValueByKey("total_water_dispensed")),
		})
	}
	xerr := ""
	if res.Err() != nil {
		xerr = "influx-iter-error"
	}
	writeJSON(w, http.StatusOK, out, xerr)
}

// GET /events/latest?limit=20[&minutes=1440][&type=valve.state_change]
func (h *HistoryAPI) events(w http.ResponseWriter, r *http.Request) {
	p := parseQuery(r)
	if r.URL.Query().Get("limit") == "" {
		p.Limit = 20
	}
	if p.EventType != "" && !knownEventTypes[p.EventType] {
		writeJSON(w, http.StatusBadRequest, []EventEntry{}, "unknown-event-type")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), p.Timeout)
	defer cancel()

	out := make([]EventEntry, 0, p.Limit)
	res, err := h.query.Query(ctx, buildEventsFlux(h.bucket, p.EventType, p.Minutes, p.Limit))
	if err != nil {
		log.Printf("event-svc: events query: %v", err)
		writeJSON(w, http.StatusOK, out, "influx-query-error")
		return
	}
	defer res.Close()
	for res.Next() {
		rec := res.Record()
		out = append(out, EventEntry{
			Time:      rec.Time().UTC().Format(time.RFC3339),
			EventType: toString(rec.ValueByKey("event_type")),
			Key:       toString(rec.ValueByKey("key")),
			Field:     rec.Field(),
			Value:     rec.Value(),
		})
	}
	xerr := ""
	if res.Err() != nil {
		xerr = "influx-iter-error"
	}
	writeJSON(w, http.StatusOK, out, xerr)
}

func writeJSON(w http.ResponseWriter, code int, v any, xerr string) {
	w.Header().Set("Content-Type", "application/json")
	if xerr != "" {
		w.Header().Set("X-Error", xerr)
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
	}
	return 0
}

func toInt(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case uint64:
		return int64(t)
	case float64:
		return int64(t)
	}
	return 0
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
