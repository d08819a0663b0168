package messages

import (
	"time"

	"github.com/LeonardoBeccarini/garden_controller/internal/model/entities"
)

// DayRecordEvent carries the record closed by a daily ledger rotation.
type DayRecordEvent struct {
	FieldID          string             `json:"field_id"`
	Record           entities.DayRecord `json:"record"`
	TankLevelPercent float64            `json:"tank_level_percent"`
	Timestamp        time.Time          `json:"timestamp"`
}
