package messages

import "time"

// DosageDecisionEvent records what the watering cycle computed for one line and why.
type DosageDecisionEvent struct {
	FieldID        string    `json:"field_id"`
	RunID          string    `json:"run_id"`
	Line           int       `json:"line"`
	RainEvents     int       `json:"rain_events"`
	MaxTemperature float64   `json:"max_temperature"`
	Delta          float64   `json:"delta"`
	Tally          float64   `json:"tally"`
	DoseSeconds    int       `json:"dose_seconds"`
	Opened         bool      `json:"opened"`
	Timestamp      time.Time `json:"timestamp"`
}
