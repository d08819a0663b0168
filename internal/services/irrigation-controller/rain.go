package irrigation_controller

// RainCounter counts discrete rain-sensor trips, at most one per second.
type RainCounter struct {
	tripped bool
}

// Sample is called once per second tick with the sensor level and reports
// whether a new rain event started.
func (r *RainCounter) Sample(active bool) bool {
	if !active {
		r.tripped = false
		return false
	}
	if r.tripped {
		return false
	}
	r.tripped = true
	return true
}
