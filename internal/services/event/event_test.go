package event

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LeonardoBeccarini/garden_controller/internal/model/entities"
	msg "github.com/LeonardoBeccarini/garden_controller/internal/model/messages"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/mux"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ts = time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC)

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestDecodeStateChange(t *testing.T) {
	payload := mustJSON(t, msg.StateChangeEvent{
		Line: 3, NewState: entities.StateOn, Duration: 135 * time.Second, Source: "watering", Timestamp: ts,
	})
	evt, ok, err := Decode("event/StateChange/garden/line3", payload)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, TypeStateChange, evt.EventType)
	assert.Equal(t, "garden", evt.FieldID, "field taken from the topic")
	assert.Equal(t, "line3", evt.Key)
	assert.Equal(t, "on", evt.Fields["new_state"])
	assert.Equal(t, 135.0, evt.Fields["duration"])
	assert.True(t, ts.Equal(evt.Timestamp))
}

func TestDecodeCycleAbortedIsWarning(t *testing.T) {
	payload := mustJSON(t, msg.CycleEvent{
		FieldID: "garden", Cycle: msg.CycleDispense, Status: msg.CycleAborted,
		StartedAt: ts, Timestamp: ts.Add(25 * time.Second),
	})
	evt, ok, err := Decode("event/cycle/garden/dispense", payload)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "warning", evt.Severity)
	assert.Equal(t, "dispense", evt.Key)
	assert.Equal(t, 25.0, evt.Fields["elapsed"])
}

func TestDecodeDayRecord(t *testing.T) {
	payload := mustJSON(t, msg.DayRecordEvent{
		FieldID:          "garden",
		Record:           entities.DayRecord{Weekday: time.Saturday, MaxTemperature: 31, RainfallEventCount: 2},
		TankLevelPercent: 40,
		Timestamp:        ts,
	})
	evt, ok, err := Decode("event/dayRecord/garden", payload)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Saturday", evt.Key)
	assert.Equal(t, int64(2), evt.Fields["rainfall_event_count"])

	p := EventToPoint(evt)
	assert.Equal(t, MeasurementDayRecord, p.Name())
}

func TestDecodeDosageAndUnknown(t *testing.T) {
	payload := mustJSON(t, msg.DosageDecisionEvent{FieldID: "garden", Line: 3, DoseSeconds: 135, Opened: true, Timestamp: ts})
	evt, ok, err := Decode("event/dosage/garden/line3", payload)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(135), evt.Fields["dose_seconds"])

	_, ok, err = Decode("cmd/garden/override", []byte(`{}`))
	assert.NoError(t, err)
	assert.False(t, ok)

	_, _, err = Decode("event/dosage/garden/line3", []byte(`{`))
	assert.Error(t, err)

	_, _, err = Decode("event/StateChange/garden", mustJSON(t, msg.StateChangeEvent{}))
	assert.Error(t, err, "missing key")
}

func TestEventToPointTags(t *testing.T) {
	p := EventToPoint(CommonEvent{
		EventType: TypeStateChange, SourceService: sourceController, FieldID: "garden",
		Key: "tap", Severity: "info", Fields: map[string]interface{}{"new_state": "on"}, Timestamp: ts,
	})
	assert.Equal(t, MeasurementEvents, p.Name())

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, "tap", tags["key"])
	assert.Equal(t, "garden", tags["field_id"])

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, int64(1), fields["count"])
	assert.Equal(t, "on", fields["new_state"])
}

func TestParseQueryClamps(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/history/days?days=9999&limit=0&timeout_ms=abc&type=+cycle.status", nil)
	p := parseQuery(r)
	assert.Equal(t, 366, p.Days)
	assert.Equal(t, 1, p.Limit)
	assert.Equal(t, 2*time.Second, p.Timeout)
	assert.Equal(t, "cycle.status", p.EventType)
}

func TestBuildFlux(t *testing.T) {
	q := buildDaysFlux("garden", "backyard", 30, 3)
	assert.Contains(t, q, `from(bucket: "garden")`)
	assert.Contains(t, q, `r._measurement == "day_record" and r.field_id == "backyard"`)
	assert.Contains(t, q, "pivot(")
	assert.Contains(t, q, "limit(n: 3)")

	q = buildEventsFlux("garden", "", 60, 20)
	assert.NotContains(t, q, "event_type")
	q = buildEventsFlux("garden", TypeCycle, 60, 20)
	assert.Contains(t, q, `r.event_type == "cycle.status"`)
}

func TestFluxStringEscapes(t *testing.T) {
	assert.Equal(t, `"backyard"`, fluxString("backyard"))
	assert.Equal(t, `"a\"b\${x}\\"`, fluxString(`a"b${x}\`))

	q := buildDaysFlux("garden", `x" or true or "${y}`, 30, 3)
	assert.Contains(t, q, `r.field_id == "x\" or true or \"\${y}"`)
}

type recordingQueryAPI struct {
	api.QueryAPI
	queries []string
}

func (q *recordingQueryAPI) Query(_ context.Context, flux string) (*api.QueryTableResult, error) {
	q.queries = append(q.queries, flux)
	return nil, errors.New("unavailable")
}

func TestHistoryAPIRejectsUnknownEventType(t *testing.T) {
	qa := &recordingQueryAPI{}
	r := mux.NewRouter()
	NewHistoryAPI(qa, "garden", "garden").LoadAPI(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/latest?type=%24%7Bx%7D", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unknown-event-type", rec.Header().Get("X-Error"))
	assert.Empty(t, qa.queries)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/latest?type=day.record", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, qa.queries, 1)
	assert.Contains(t, qa.queries[0], `r.event_type == "day.record"`)
}

type fakeWriteAPI struct {
	api.WriteAPI
	mu     sync.Mutex
	points []*write.Point
	errs   chan error
}

func (f *fakeWriteAPI) WritePoint(p *write.Point) {
	f.mu.Lock()
	f.points = append(f.points, p)
	f.mu.Unlock()
}

func (f *fakeWriteAPI) Errors() <-chan error { return f.errs }

func TestWriterRecordsErrors(t *testing.T) {
	fw := &fakeWriteAPI{errs: make(chan error, 1)}
	w := NewWriter(fw, nil)

	w.Write(CommonEvent{EventType: TypeCycle, Timestamp: ts})
	assert.Len(t, fw.points, 1)
	assert.Greater(t, w.LastErrorAge(), time.Hour)

	fw.errs <- errors.New("bucket not found")
	require.Eventually(t, func() bool { return w.LastErrorAge() < time.Minute }, time.Second, 5*time.Millisecond)

	h := NewHealth(nil, w, time.Minute)
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"down"`)
	close(fw.errs)
}

type failingQueryAPI struct{ api.QueryAPI }

func (failingQueryAPI) Query(context.Context, string) (*api.QueryTableResult, error) {
	return nil, errors.New("unauthorized")
}

func TestHistoryAPIQueryErrorIsEmptyList(t *testing.T) {
	r := mux.NewRouter()
	NewHistoryAPI(failingQueryAPI{}, "garden", "garden").LoadAPI(r)

	for _, path := range []string{"/history/days", "/events/latest"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "influx-query-error", rec.Header().Get("X-Error"))
		assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
	}
}

type fakeMessage struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

func TestMQTTHandler(t *testing.T) {
	var got []CommonEvent
	h := NewMQTTHandler(func(e CommonEvent) { got = append(got, e) })

	require.NoError(t, h.Handle("event/#", fakeMessage{topic: "telemetry/x", payload: []byte(`{}`)}))
	assert.Empty(t, got)

	payload := mustJSON(t, msg.CycleEvent{FieldID: "garden", Cycle: msg.CycleWatering, Status: msg.CycleStarted, Timestamp: ts})
	require.NoError(t, h.Handle("event/#", fakeMessage{topic: "event/cycle/garden/watering", payload: payload}))
	require.Len(t, got, 1)
	assert.Equal(t, TypeCycle, got[0].EventType)

	assert.Error(t, h.Handle("event/#", fakeMessage{topic: "event/cycle/garden/watering", payload: []byte(`nope`)}))
}

func TestConversions(t *testing.T) {
	assert.Equal(t, 2.5, toFloat("2.5"))
	assert.Equal(t, 3.0, toFloat(int64(3)))
	assert.Equal(t, int64(4), toInt(4.9))
	assert.Equal(t, "", toString(1))
}
