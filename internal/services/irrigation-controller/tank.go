package irrigation_controller

import (
	"math"
	"sync/atomic"
	"time"
)

// usPerCm is the round-trip echo time per centimetre of distance.
const usPerCm = 58.0

// TankSampler times the ultrasonic echo pulse. OnEdge is the interrupt entry
// point and may be called from any goroutine; Take is called by the mainline.
// The two sides share only the relay gate's cooldown and a single-slot cell.
type TankSampler struct {
	gate    *RelayGate
	start   atomic.Int64  // rising edge timestamp (ns), -1 when unarmed
	cell    atomic.Uint64 // sample+1, 0 when empty
	ignored atomic.Uint64
}

func NewTankSampler(gate *RelayGate) *TankSampler {
	t := &TankSampler{gate: gate}
	t.start.Store(-1)
	return t
}

// OnEdge handles one echo edge. at is a monotonic timestamp.
func (t *TankSampler) OnEdge(rising bool, at time.Duration) {
	if !t.gate.Quiet() {
		t.start.Store(-1)
		t.ignored.Add(1)
		return
	}
	if rising {
		t.start.Store(int64(at))
		return
	}
	s := t.start.Swap(-1)
	if s < 0 || int64(at) < s {
		return
	}
	us := (int64(at) - s) / int64(time.Microsecond)
	if us > math.MaxUint32 {
		us = math.MaxUint32
	}
	t.cell.Store(uint64(us) + 1)
}

// Take drains the latest sample, if any.
func (t *TankSampler) Take() (uint32, bool) {
	v := t.cell.Swap(0)
	if v == 0 {
		return 0, false
	}
	return uint32(v - 1), true
}

// Ignored counts edges dropped during relay cooldown.
func (t *TankSampler) Ignored() uint64 { return t.ignored.Load() }

// TankLevelPercent converts an echo width (µs) into a fill percentage for a
// sensor mounted heightCm above the tank floor.
func TankLevelPercent(raw uint32, heightCm float64) float64 {
	if heightCm <= 0 || raw == 0 {
		return 0
	}
	distance := float64(raw) / usPerCm
	pct := (heightCm - distance) / heightCm * 100
	return math.Max(0, math.Min(100, pct))
}
