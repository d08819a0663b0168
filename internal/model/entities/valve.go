package entities

// ValveState indicates whether a valve or relay is open/on or closed/off.
type ValveState string

const (
	StateOff ValveState = "off"
	StateOn  ValveState = "on"
)

func StateOf(on bool) ValveState {
	if on {
		return StateOn
	}
	return StateOff
}
