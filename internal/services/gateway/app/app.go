// Package app is the operator panel API: the display and menu surface of the
// controller over HTTP and MQTT.
package app

import (
	"context"
	"log"
	"time"

	"github.com/LeonardoBeccarini/garden_controller/internal/model/entities"
	controller "github.com/LeonardoBeccarini/garden_controller/internal/services/irrigation-controller"
	"github.com/gorilla/mux"
)

// Panel is what the panel reads from and commands on the controller.
type Panel interface {
	Snapshot() controller.Snapshot
	Logs() []controller.ActivityEntry
	SetAutomation(flag string, value bool) error
	ManualOverride(actuator string, on bool) error
	SetHackTimerMode(line int, mode entities.HackMode) error
	StartManualFertilize() error
	RunDiagnosticDispense(ctx context.Context, ml float64) error
}

type Config struct {
	// EventsBaseURL is the event service serving /history/days; empty
	// disables the history route.
	EventsBaseURL string
	HTTPTimeout   time.Duration

	BreakerFailures int
	BreakerOpenFor  time.Duration

	Logger *log.Logger
}

type Gateway struct {
	cfg    Config
	panel  Panel
	events *Upstream
	// ctx bounds dispenses started without waiting for them.
	ctx context.Context
}

func NewGateway(ctx context.Context, panel Panel, cfg Config) *Gateway {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 3 * time.Second
	}
	var events *Upstream
	if cfg.EventsBaseURL != "" {
		events = NewUpstream("events", cfg.EventsBaseURL, cfg.HTTPTimeout, cfg.BreakerFailures, cfg.BreakerOpenFor)
	}
	return &Gateway{cfg: cfg, panel: panel, events: events, ctx: ctx}
}

// LoadAPI registers the panel routes under /api.
func (g *Gateway) LoadAPI(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", g.HandleState).Methods("GET")
	api.HandleFunc("/log", g.HandleLog).Methods("GET")
	api.HandleFunc("/automation/{flag}", g.HandleAutomation).Methods("PUT")
	api.HandleFunc("/override/{actuator}", g.HandleOverride).Methods("POST")
	api.HandleFunc("/hack/{line}", g.HandleHackMode).Methods("PUT")
	api.HandleFunc("/fertilize", g.HandleFertilize).Methods("POST")
	api.HandleFunc("/dispense", g.HandleDispense).Methods("POST")
	api.HandleFunc("/history/days", g.HandleHistory).Methods("GET")
}
