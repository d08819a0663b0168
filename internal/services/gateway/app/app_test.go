package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LeonardoBeccarini/garden_controller/internal/model"
	"github.com/LeonardoBeccarini/garden_controller/internal/model/entities"
	controller "github.com/LeonardoBeccarini/garden_controller/internal/services/irrigation-controller"
	"github.com/LeonardoBeccarini/garden_controller/pkg/dedup"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/mux"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePanel struct {
	mu        sync.Mutex
	snap      controller.Snapshot
	err       error
	calls     []string
	dispensed chan float64
	lastMode  entities.HackMode
	lastLine  int
	lastOn    bool
	lastFlag  string
}

func newFakePanel() *fakePanel { return &fakePanel{dispensed: make(chan float64, 4)} }

func (p *fakePanel) record(call string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
	return p.err
}

func (p *fakePanel) Snapshot() controller.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

func (p *fakePanel) Logs() []controller.ActivityEntry {
	return []controller.ActivityEntry{{Message: "controller: ready"}}
}

func (p *fakePanel) SetAutomation(flag string, value bool) error {
	p.mu.Lock()
	p.lastFlag, p.lastOn = flag, value
	p.mu.Unlock()
	return p.record("automation")
}

func (p *fakePanel) ManualOverride(actuator string, on bool) error {
	p.mu.Lock()
	p.lastFlag, p.lastOn = actuator, on
	p.mu.Unlock()
	return p.record("override")
}

func (p *fakePanel) SetHackTimerMode(line int, mode entities.HackMode) error {
	p.mu.Lock()
	p.lastLine, p.lastMode = line, mode
	p.mu.Unlock()
	return p.record("hack")
}

func (p *fakePanel) StartManualFertilize() error { return p.record("fertilize") }

func (p *fakePanel) RunDiagnosticDispense(_ context.Context, ml float64) error {
	if err := p.record("dispense"); err != nil {
		return err
	}
	p.dispensed <- ml
	return nil
}

func serve(t *testing.T, g *Gateway, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := mux.NewRouter()
	g.LoadAPI(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestHandleState(t *testing.T) {
	p := newFakePanel()
	p.snap.WateringCursor = 3
	g := NewGateway(context.Background(), p, Config{})

	rec := serve(t, g, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var s controller.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, 3, s.WateringCursor)

	rec = serve(t, g, http.MethodGet, "/api/log", "")
	assert.Contains(t, rec.Body.String(), "controller: ready")
}

func TestHandleAutomation(t *testing.T) {
	p := newFakePanel()
	g := NewGateway(context.Background(), p, Config{})

	rec := serve(t, g, http.MethodPut, "/api/automation/fertilize", `{"value":true}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fertilize", p.lastFlag)
	assert.True(t, p.lastOn)

	rec = serve(t, g, http.MethodPut, "/api/automation/water", `{"value":true,"extra":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	p.err = controller.ErrUnknownFlag
	rec = serve(t, g, http.MethodPut, "/api/automation/mow", `{"value":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleOverrideConflictWhileDispensing(t *testing.T) {
	p := newFakePanel()
	p.err = controller.ErrDispenseRunning
	g := NewGateway(context.Background(), p, Config{})

	rec := serve(t, g, http.MethodPost, "/api/override/tap", `{"on":true}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "dispense")
}

func TestHandleHackMode(t *testing.T) {
	p := newFakePanel()
	g := NewGateway(context.Background(), p, Config{})

	rec := serve(t, g, http.MethodPut, "/api/hack/line2", `{"mode":"timer10weekly"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 2, p.lastLine)
	assert.Equal(t, entities.HackTimer10Weekly, p.lastMode)

	rec = serve(t, g, http.MethodPut, "/api/hack/line2", `{"mode":"forever"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = serve(t, g, http.MethodPut, "/api/hack/line8", `{"mode":"on"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleFertilizeBusy(t *testing.T) {
	p := newFakePanel()
	g := NewGateway(context.Background(), p, Config{})

	assert.Equal(t, http.StatusAccepted, serve(t, g, http.MethodPost, "/api/fertilize", "").Code)
	p.err = controller.ErrCycleBusy
	assert.Equal(t, http.StatusConflict, serve(t, g, http.MethodPost, "/api/fertilize", "").Code)
}

func TestHandleDispense(t *testing.T) {
	p := newFakePanel()
	g := NewGateway(context.Background(), p, Config{})

	rec := serve(t, g, http.MethodPost, "/api/dispense", `{"ml":40}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	select {
	case ml := <-p.dispensed:
		assert.Equal(t, 40.0, ml)
	case <-time.After(time.Second):
		t.Fatal("dispense not started")
	}

	rec = serve(t, g, http.MethodPost, "/api/dispense?wait=true", `{"ml":10}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 10.0, <-p.dispensed)

	assert.Equal(t, http.StatusBadRequest, serve(t, g, http.MethodPost, "/api/dispense", `{"ml":0}`).Code)

	p.snap.Dispensing = true
	assert.Equal(t, http.StatusConflict, serve(t, g, http.MethodPost, "/api/dispense", `{"ml":5}`).Code)
}

func TestHandleHistory(t *testing.T) {
	events := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/history/days", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[{"weekday":"Saturday","rainfall_event_count":4},{"weekday":"Friday"}]`))
	}))
	defer events.Close()

	g := NewGateway(context.Background(), newFakePanel(), Config{EventsBaseURL: events.URL + "/"})
	rec := serve(t, g, http.MethodGet, "/api/history/days?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var days []DayHistory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &days))
	require.Len(t, days, 2)
	assert.EqualValues(t, 4, days[0].RainfallEventCount)

	g = NewGateway(context.Background(), newFakePanel(), Config{})
	assert.Equal(t, http.StatusNotFound, serve(t, g, http.MethodGet, "/api/history/days", "").Code)
}

func TestUpstreamBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	u := NewUpstream("events", srv.URL, time.Second, 2, time.Minute)
	var out any
	for i := 0; i < 4; i++ {
		assert.Error(t, u.GetJSON(context.Background(), "/history/days", nil, &out))
	}
	assert.EqualValues(t, 2, hits.Load())
	assert.Equal(t, gobreaker.StateOpen, u.State())
}

type fakeMessage struct {
	mqtt.Message
	topic   string
	payload []byte
	id      uint16
	dup     bool
}

func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) MessageID() uint16 { return m.id }
func (m fakeMessage) Duplicate() bool   { return m.dup }

func TestDispatch(t *testing.T) {
	p := newFakePanel()
	ctx := context.Background()

	require.NoError(t, Dispatch(ctx, p, CmdSetAutomation, model.Command{Flag: "water", Value: true}))
	require.NoError(t, Dispatch(ctx, p, CmdOverride, model.Command{Actuator: "pump"}))
	require.NoError(t, Dispatch(ctx, p, CmdHackMode, model.Command{Line: 4, Mode: "timer20"}))
	require.NoError(t, Dispatch(ctx, p, CmdFertilize, model.Command{}))
	require.NoError(t, Dispatch(ctx, p, CmdDispense, model.Command{ML: 12}))
	assert.Equal(t, []string{"automation", "override", "hack", "fertilize", "dispense"}, p.calls)
	assert.Equal(t, entities.HackTimer20, p.lastMode)

	assert.Error(t, Dispatch(ctx, p, CmdHackMode, model.Command{Mode: "sometimes"}))
	assert.Error(t, Dispatch(ctx, p, "reboot", model.Command{}))
}

func TestCommandHandlerRunsRepeatedCommands(t *testing.T) {
	p := newFakePanel()
	h := CommandHandler(context.Background(), p, dedup.New(10*time.Minute, 100))
	topic := CommandTopicPrefix + CmdOverride

	require.NoError(t, h("cmd/garden/#", fakeMessage{topic: topic, payload: []byte(`{"actuator":"tap","value":true}`), id: 1}))
	require.NoError(t, h("cmd/garden/#", fakeMessage{topic: topic, payload: []byte(`{"actuator":"tap"}`), id: 2}))
	require.NoError(t, h("cmd/garden/#", fakeMessage{topic: topic, payload: []byte(`{"actuator":"tap","value":true}`), id: 3}))
	require.NoError(t, h("cmd/garden/#", fakeMessage{topic: topic, payload: []byte(`{"actuator":"tap","value":true}`), id: 1}))
	assert.Equal(t, []string{"override", "override", "override", "override"}, p.calls)
	assert.True(t, p.lastOn)

	require.NoError(t, h("cmd/garden/#", fakeMessage{topic: CommandTopicPrefix + CmdFertilize, payload: []byte(`{}`), id: 4}))
	require.NoError(t, h("cmd/garden/#", fakeMessage{topic: CommandTopicPrefix + CmdSetAutomation, payload: []byte(`{}`), id: 5}))
	assert.Equal(t, "fertilize", p.calls[4])
	assert.Equal(t, "automation", p.calls[5])
}

func TestCommandHandlerDropsRedeliveries(t *testing.T) {
	p := newFakePanel()
	h := CommandHandler(context.Background(), p, dedup.New(time.Minute, 100))
	msg := fakeMessage{topic: CommandTopicPrefix + CmdFertilize, payload: []byte(`{"id":"abc"}`)}

	require.NoError(t, h("cmd/garden/#", msg))
	require.NoError(t, h("cmd/garden/#", msg))
	require.NoError(t, h("cmd/garden/#", fakeMessage{topic: CommandTopicPrefix + CmdOverride, payload: []byte(`not json`)}))
	assert.Equal(t, []string{"fertilize"}, p.calls)

	on := fakeMessage{topic: CommandTopicPrefix + CmdOverride, payload: []byte(`{"actuator":"tap","value":true}`), id: 9}
	require.NoError(t, h("cmd/garden/#", on))
	on.dup = true
	require.NoError(t, h("cmd/garden/#", on))
	assert.Equal(t, []string{"fertilize", "override"}, p.calls)

	require.NoError(t, h("cmd/garden/#", fakeMessage{topic: CommandTopicPrefix + CmdDispense, payload: []byte(`{"ml":3}`)}))
	select {
	case ml := <-p.dispensed:
		assert.Equal(t, 3.0, ml)
	case <-time.After(time.Second):
		t.Fatal("dispense command not run")
	}
}
