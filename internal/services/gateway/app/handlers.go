package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/LeonardoBeccarini/garden_controller/internal/model/entities"
	controller "github.com/LeonardoBeccarini/garden_controller/internal/services/irrigation-controller"
	"github.com/gorilla/mux"
)

func (g *Gateway) HandleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, g.panel.Snapshot())
}

func (g *Gateway) HandleLog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, g.panel.Logs())
}

func (g *Gateway) HandleAutomation(w http.ResponseWriter, r *http.Request) {
	var req automationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := g.panel.SetAutomation(mux.Vars(r)["flag"], req.Value); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, g.panel.Snapshot().Switches)
}

func (g *Gateway) HandleOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := g.panel.ManualOverride(mux.Vars(r)["actuator"], req.On); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) HandleHackMode(w http.ResponseWriter, r *http.Request) {
	var req hackModeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	line, err := controller.ParseLine(mux.Vars(r)["line"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	mode, err := entities.ParseHackMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", controller.ErrInvalidMode, err))
		return
	}
	if err := g.panel.SetHackTimerMode(int(line), mode); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) HandleFertilize(w http.ResponseWriter, _ *http.Request) {
	if err := g.panel.StartManualFertilize(); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleDispense starts the diagnostic dispense. With ?wait=true the request
// blocks until it is over; otherwise it answers 202 straight away.
func (g *Gateway) HandleDispense(w http.ResponseWriter, r *http.Request) {
	var req dispenseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ML <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", controller.ErrInvalidDispense, req.ML))
		return
	}
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		if err := g.panel.RunDiagnosticDispense(r.Context(), req.ML); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if g.panel.Snapshot().Dispensing {
		writeError(w, http.StatusConflict, controller.ErrDispenseRunning)
		return
	}
	go g.dispense(req.ML)
	w.WriteHeader(http.StatusAccepted)
}

func (g *Gateway) dispense(ml float64) {
	ctx := g.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := g.panel.RunDiagnosticDispense(ctx, ml); err != nil && !errors.Is(err, context.Canceled) {
		g.cfg.Logger.Printf("gateway: dispense %.1fml: %v", ml, err)
	}
}

// HandleHistory proxies the stored day records from the event service.
func (g *Gateway) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if g.events == nil {
		writeError(w, http.StatusNotFound, errors.New("history not configured"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.HTTPTimeout)
	defer cancel()

	q := url.Values{}
	if v := r.URL.Query().Get("limit"); v != "" {
		q.Set("limit", v)
	}
	out := []DayHistory{}
	if err := g.events.GetJSON(ctx, "/history/days", q, &out); err != nil {
		g.cfg.Logger.Printf("gateway: history: %v", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
