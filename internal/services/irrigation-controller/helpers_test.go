package irrigation_controller

import (
	"strings"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/garden_controller/internal/model/entities"
	"github.com/LeonardoBeccarini/garden_controller/internal/model/messages"
)

type pinWrite struct {
	pin    Pin
	active bool
}

// fakeIO is a board whose valves move one position per step while spun.
type fakeIO struct {
	mu      sync.Mutex
	pins    PinMap
	outputs map[Pin]bool
	valves  [entities.LineCount]bool
	jammed  [entities.LineCount]bool
	rain    bool
	pulses  int
	writes  []pinWrite
}

func newFakeIO(pins PinMap) *fakeIO {
	return &fakeIO{pins: pins, outputs: make(map[Pin]bool)}
}

func (f *fakeIO) SetOutput(pin Pin, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs[pin] = active
	f.writes = append(f.writes, pinWrite{pin, active})
	return nil
}

func (f *fakeIO) ReadInput(pin Pin) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pin == f.pins.Rain {
		return f.rain, nil
	}
	for i, p := range f.pins.Read {
		if p == pin {
			return f.valves[i], nil
		}
	}
	return false, nil
}

func (f *fakeIO) TriggerPulse(Pin) error {
	f.mu.Lock()
	f.pulses++
	f.mu.Unlock()
	return nil
}

func (f *fakeIO) step() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.pins.Spin {
		if f.outputs[p] && !f.jammed[i] {
			f.valves[i] = !f.valves[i]
		}
	}
}

func (f *fakeIO) spinning() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.pins.Spin {
		if f.outputs[p] {
			n++
		}
	}
	return n
}

func (f *fakeIO) output(pin Pin) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outputs[pin]
}

// relayWrites returns the writes to pins other than spin outputs.
func (f *fakeIO) relayWrites() []pinWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	spin := make(map[Pin]bool)
	for _, p := range f.pins.Spin {
		spin[p] = true
	}
	var out []pinWrite
	for _, w := range f.writes {
		if !spin[w.pin] {
			out = append(out, w)
		}
	}
	return out
}

type published struct {
	topic   string
	payload any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []published
}

func (r *recordingNotifier) Notify(topic string, payload any) {
	r.mu.Lock()
	r.events = append(r.events, published{topic, payload})
	r.mu.Unlock()
}

func (r *recordingNotifier) stateChanges() []messages.StateChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []messages.StateChangeEvent
	for _, e := range r.events {
		if s, ok := e.payload.(messages.StateChangeEvent); ok {
			out = append(out, s)
		}
	}
	return out
}

// relayEvents returns "name:on|off" per relay change with its epoch.
func (r *recordingNotifier) relayEvents() map[int64][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64][]string)
	for _, e := range r.events {
		s, ok := e.payload.(messages.StateChangeEvent)
		if !ok || s.Line >= 0 {
			continue
		}
		name := e.topic[strings.LastIndex(e.topic, "/")+1:]
		at := s.Timestamp.Unix()
		out[at] = append(out[at], name+":"+string(s.NewState))
	}
	return out
}

func (r *recordingNotifier) dosages() []messages.DosageDecisionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []messages.DosageDecisionEvent
	for _, e := range r.events {
		if d, ok := e.payload.(messages.DosageDecisionEvent); ok {
			out = append(out, d)
		}
	}
	return out
}

func (r *recordingNotifier) cycles() []messages.CycleEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []messages.CycleEvent
	for _, e := range r.events {
		if c, ok := e.payload.(messages.CycleEvent); ok {
			out = append(out, c)
		}
	}
	return out
}

func (r *recordingNotifier) count(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if strings.HasPrefix(e.topic, prefix) {
			n++
		}
	}
	return n
}

// engine bundles the parts a cycle needs, without the tick dispatcher.
type engine struct {
	io        *fakeIO
	gate      *RelayGate
	lock      *SpinLock
	solenoids *SolenoidController
	act       *actuators
	notifier  *recordingNotifier
	metrics   *Metrics
}

func newEngine() *engine {
	pins := DefaultPinMap()
	io := newFakeIO(pins)
	m := NewMetrics(nil)
	gate := NewRelayGate(io, 2)
	lock := &SpinLock{}
	sol := NewSolenoidController(io, gate, pins, lock, m)
	n := &recordingNotifier{}
	return &engine{
		io:        io,
		gate:      gate,
		lock:      lock,
		solenoids: sol,
		act:       &actuators{fieldID: "garden", pins: pins, gate: gate, solenoids: sol, notifier: n},
		notifier:  n,
		metrics:   m,
	}
}

func at(epoch int64) Instant { return Instant{Epoch: epoch} }

func uniformLines(lc entities.LineConfig) [entities.LineCount]entities.LineConfig {
	var out [entities.LineCount]entities.LineConfig
	for i := range out {
		out[i] = lc
	}
	return out
}

// sunday0759 is 07:59:58 UTC on a Sunday.
var sunday0759 = time.Date(2024, time.June, 2, 7, 59, 58, 0, time.UTC)
