package entities

// LineConfig holds the per-line dosage and fertilizing constants.
type LineConfig struct {
	DesiredLevel           float64 `json:"desired_level" yaml:"desired_level"`
	BufferSize             float64 `json:"buffer_size" yaml:"buffer_size"`                         // minimum dose (s) worth opening the valve for
	RainCoefficient        float64 `json:"rain_coefficient" yaml:"rain_coefficient"`               // seconds per rain event
	TemperatureCoefficient float64 `json:"temperature_coefficient" yaml:"temperature_coefficient"` // seconds per °C of max temperature
	MaxRain                int     `json:"max_rain" yaml:"max_rain"`                               // rain events beyond this do not count
	FertilizeSeconds       int     `json:"fertilize_seconds" yaml:"fertilize_seconds"`             // <= 0 skips the line while fertilizing
}
