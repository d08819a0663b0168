package irrigation_controller

import "errors"

var (
	ErrInvalidLine     = errors.New("invalid line")
	ErrInvalidMode     = errors.New("invalid hack timer mode")
	ErrCycleBusy       = errors.New("another cycle is active")
	ErrUnknownActuator = errors.New("unknown actuator")
	ErrUnknownFlag     = errors.New("unknown automation flag")
	ErrDispenseRunning = errors.New("diagnostic dispense in progress")
	ErrInvalidDispense = errors.New("dispense volume must be positive")
	ErrNoTemperature   = errors.New("no fresh temperature reading")
)
