package app

import (
	"encoding/json"
	"errors"
	"net/http"

	controller "github.com/LeonardoBeccarini/garden_controller/internal/services/irrigation-controller"
)

type automationRequest struct {
	Value bool `json:"value"`
}

type overrideRequest struct {
	On bool `json:"on"`
}

type hackModeRequest struct {
	Mode string `json:"mode"`
}

type dispenseRequest struct {
	ML float64 `json:"ml"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// DayHistory mirrors the event service's /history/days entries.
type DayHistory struct {
	Time                string  `json:"time"`
	FieldID             string  `json:"field_id"`
	Weekday             string  `json:"weekday"`
	MaxTemperature      float64 `json:"max_temperature"`
	RainfallEventCount  int64   `json:"rainfall_event_count"`
	TankLevelPercent    float64 `json:"tank_level_percent"`
	TotalWaterDispensed float64 `json:"total_water_dispensed"`
}

// statusFor maps controller errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, controller.ErrInvalidLine),
		errors.Is(err, controller.ErrInvalidMode),
		errors.Is(err, controller.ErrUnknownActuator),
		errors.Is(err, controller.ErrUnknownFlag),
		errors.Is(err, controller.ErrInvalidDispense):
		return http.StatusBadRequest
	case errors.Is(err, controller.ErrCycleBusy),
		errors.Is(err, controller.ErrDispenseRunning):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
