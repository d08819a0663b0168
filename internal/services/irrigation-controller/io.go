package irrigation_controller

import "github.com/LeonardoBeccarini/garden_controller/internal/model/entities"

// Pin identifies a digital input or output on the board.
type Pin int

// ActuatorIO is the board collaborator: digital outputs, inputs and the
// ultrasonic trigger.
type ActuatorIO interface {
	SetOutput(pin Pin, active bool) error
	ReadInput(pin Pin) (bool, error)
	TriggerPulse(pin Pin) error
}

// TemperatureSensor returns the current air temperature in °C.
type TemperatureSensor interface {
	ReadCelsius() (float64, error)
}

// PinMap wires logical actuators and sensors to board pins.
type PinMap struct {
	Spin        [entities.LineCount]Pin `yaml:"spin"`
	Read        [entities.LineCount]Pin `yaml:"read"`
	TapWater    Pin                     `yaml:"tap_water"`
	FertPump    Pin                     `yaml:"fert_pump"`
	FertValve   Pin                     `yaml:"fert_valve"`
	Rain        Pin                     `yaml:"rain"`
	EchoTrigger Pin                     `yaml:"echo_trigger"`
	Echo        Pin                     `yaml:"echo"`
}

// DefaultPinMap mirrors the reference board layout.
func DefaultPinMap() PinMap {
	return PinMap{
		Spin:        [entities.LineCount]Pin{22, 24, 26, 28, 30, 32},
		Read:        [entities.LineCount]Pin{23, 25, 27, 29, 31, 33},
		TapWater:    40,
		FertPump:    41,
		FertValve:   42,
		Rain:        44,
		EchoTrigger: 46,
		Echo:        2,
	}
}
