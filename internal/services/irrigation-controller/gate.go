package irrigation_controller

import "sync/atomic"

// RelayGate wraps relay writes that induce electrical noise on the echo line.
// Each write reloads a cooldown counter that the mainline decrements once per
// second tick; the tank sampler ignores edges while it is non-zero.
type RelayGate struct {
	io       ActuatorIO
	reload   int32
	cooldown atomic.Int32
}

func NewRelayGate(io ActuatorIO, cooldownSeconds int) *RelayGate {
	if cooldownSeconds < 0 {
		cooldownSeconds = 0
	}
	return &RelayGate{io: io, reload: int32(cooldownSeconds)}
}

// Write switches the output and restarts the cooldown, even on error: a
// failed write may still have moved the relay.
func (g *RelayGate) Write(pin Pin, active bool) error {
	err := g.io.SetOutput(pin, active)
	g.cooldown.Store(g.reload)
	return err
}

// Tick is called by the mainline once per second.
func (g *RelayGate) Tick() {
	if v := g.cooldown.Load(); v > 0 {
		g.cooldown.Store(v - 1)
	}
}

// Quiet reports whether the echo line may be sampled.
func (g *RelayGate) Quiet() bool { return g.cooldown.Load() == 0 }

func (g *RelayGate) Cooldown() int { return int(g.cooldown.Load()) }
