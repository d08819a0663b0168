package messages

import (
	"time"

	"github.com/LeonardoBeccarini/garden_controller/internal/model/entities"
)

// StateChangeEvent is published whenever a line's desired valve state changes.
type StateChangeEvent struct {
	FieldID   string              `json:"field_id"`
	Line      int                 `json:"line"`
	NewState  entities.ValveState `json:"new_state"`
	Duration  time.Duration       `json:"duration"` // 0 when open-ended
	Source    string              `json:"source"`   // watering | fertilizing | hack | manual
	Timestamp time.Time           `json:"timestamp"`
}
