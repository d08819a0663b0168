package entities

import "time"

// DayRecord accumulates one day's environment and dispensing statistics.
type DayRecord struct {
	Weekday             time.Weekday `json:"weekday"`
	MaxTemperature      float64      `json:"max_temperature"`
	RainfallEventCount  int          `json:"rainfall_event_count"`
	TankLevelRaw        uint32       `json:"tank_level_raw"`        // echo pulse width, µs
	TotalWaterDispensed float64      `json:"total_water_dispensed"` // dosed seconds
	temperatureSeen     bool
}

// ObserveTemperature keeps the day's maximum; the first sample initializes it.
func (d *DayRecord) ObserveTemperature(c float64) {
	if !d.temperatureSeen || c > d.MaxTemperature {
		d.MaxTemperature = c
		d.temperatureSeen = true
	}
}
