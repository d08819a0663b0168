package messages

import "time"

const (
	CycleWatering    = "watering"
	CycleFertilizing = "fertilizing"
	CycleDispense    = "dispense"

	CycleStarted  = "STARTED"
	CycleFinished = "FINISHED"
	CycleAborted  = "ABORTED"
)

// CycleEvent marks the start or end of a watering/fertilizing run.
type CycleEvent struct {
	FieldID     string    `json:"field_id"`
	Cycle       string    `json:"cycle"`
	RunID       string    `json:"run_id"`
	Status      string    `json:"status"`
	Trigger     string    `json:"trigger"` // schedule | manual
	Repetitions int       `json:"repetitions,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	Timestamp   time.Time `json:"timestamp"`
}
