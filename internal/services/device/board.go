// Package device simulates the controller board: six rotary line valves with
// position feedback, three relays, a rain sensor, an air temperature sensor
// and an ultrasonic tank probe.
package device

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/garden_controller/internal/model/entities"
	ctrl "github.com/LeonardoBeccarini/garden_controller/internal/services/irrigation-controller"
)

// EchoSink receives echo edges; the controller's EchoEdge.
type EchoSink func(rising bool, at time.Duration)

type valve struct {
	open   bool
	travel int
	jammed bool
}

// Board is an in-memory ActuatorIO. A valve changes position after its spin
// output has been active for TravelSteps consecutive Step calls.
type Board struct {
	mu          sync.Mutex
	pins        ctrl.PinMap
	travelSteps int
	outputs     map[ctrl.Pin]bool
	failing     map[ctrl.Pin]error
	valves      [entities.LineCount]valve
	rain        bool
	tankLevel   float64 // 0..1
	tankHeight  float64 // cm
	echo        EchoSink
	clock       time.Duration
	writes      int
}

func NewBoard(pins ctrl.PinMap, travelSteps int) *Board {
	if travelSteps <= 0 {
		travelSteps = 1
	}
	return &Board{
		pins:        pins,
		travelSteps: travelSteps,
		outputs:     make(map[ctrl.Pin]bool),
		failing:     make(map[ctrl.Pin]error),
		tankLevel:   0.5,
		tankHeight:  120,
	}
}

func (b *Board) SetOutput(pin ctrl.Pin, active bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failing[pin]; err != nil {
		return err
	}
	b.outputs[pin] = active
	b.writes++
	return nil
}

func (b *Board) ReadInput(pin ctrl.Pin) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failing[pin]; err != nil {
		return false, err
	}
	if pin == b.pins.Rain {
		return b.rain, nil
	}
	for i, p := range b.pins.Read {
		if p == pin {
			return b.valves[i].open, nil
		}
	}
	return b.outputs[pin], nil
}

// TriggerPulse on the echo trigger pin answers with one echo pulse whose
// width matches the simulated water level.
func (b *Board) TriggerPulse(pin ctrl.Pin) error {
	b.mu.Lock()
	if err := b.failing[pin]; err != nil {
		b.mu.Unlock()
		return err
	}
	if pin != b.pins.EchoTrigger {
		b.mu.Unlock()
		return fmt.Errorf("pin %d is not an echo trigger", pin)
	}
	sink := b.echo
	distance := b.tankHeight * (1 - b.tankLevel)
	width := time.Duration(distance*58) * time.Microsecond
	b.clock += time.Millisecond
	start := b.clock
	b.clock += width
	b.mu.Unlock()

	if sink != nil {
		sink(true, start)
		sink(false, start+width)
	}
	return nil
}

// Step advances valve travel by one control tick.
func (b *Board) Step() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.valves {
		v := &b.valves[i]
		if !b.outputs[b.pins.Spin[i]] || v.jammed {
			v.travel = 0
			continue
		}
		v.travel++
		if v.travel >= b.travelSteps {
			v.open = !v.open
			v.travel = 0
		}
	}
}

func (b *Board) SetEchoSink(s EchoSink) {
	b.mu.Lock()
	b.echo = s
	b.mu.Unlock()
}

func (b *Board) SetRain(active bool) {
	b.mu.Lock()
	b.rain = active
	b.mu.Unlock()
}

// SetTank sets the water level (0..1) of a tank heightCm tall.
func (b *Board) SetTank(level, heightCm float64) {
	b.mu.Lock()
	b.tankLevel = clamp01(level)
	if heightCm > 0 {
		b.tankHeight = heightCm
	}
	b.mu.Unlock()
}

// Jam makes a line's valve ignore its spin output.
func (b *Board) Jam(l entities.Line, jammed bool) {
	b.mu.Lock()
	b.valves[l].jammed = jammed
	b.mu.Unlock()
	if jammed {
		log.Printf("device: %s jammed", l)
	}
}

// Fail makes every access to pin return err; nil clears it.
func (b *Board) Fail(pin ctrl.Pin, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failing, pin)
		return
	}
	b.failing[pin] = err
}

func (b *Board) Output(pin ctrl.Pin) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.outputs[pin]
}

func (b *Board) ValveOpen(l entities.Line) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.valves[l].open
}

// Spinning returns the lines whose spin output is active.
func (b *Board) Spinning() []entities.Line {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []entities.Line
	for i, p := range b.pins.Spin {
		if b.outputs[p] {
			out = append(out, entities.Line(i))
		}
	}
	return out
}

func (b *Board) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
