package irrigation_controller

import (
	"fmt"
	"log"
	"time"

	"github.com/LeonardoBeccarini/garden_controller/internal/model/entities"
	"github.com/dustin/go-humanize"
)

const stallLogEvery = 60 // seconds

type confirmation int8

const (
	confirmUnknown confirmation = iota
	confirmClosed
	confirmOpen
)

func (c confirmation) String() string {
	switch c {
	case confirmOpen:
		return "open"
	case confirmClosed:
		return "closed"
	}
	return "unknown"
}

type solenoid struct {
	desiredOpen bool
	confirmed   confirmation
	driving     bool
	driveStart  int64
	lastStall   int64
	readFailing bool
}

// SolenoidController is the closed-loop position servo of the six line
// valves. A line whose feedback disagrees with its desired position drives
// its spin output until the feedback agrees, holding the shared SpinLock
// meanwhile. A valve that never confirms keeps the lock: no timeout, the
// stall is reported instead.
type SolenoidController struct {
	io      ActuatorIO
	gate    *RelayGate
	pins    PinMap
	lock    *SpinLock
	metrics *Metrics
	lines   [entities.LineCount]solenoid
}

func NewSolenoidController(io ActuatorIO, gate *RelayGate, pins PinMap, lock *SpinLock, m *Metrics) *SolenoidController {
	return &SolenoidController{io: io, gate: gate, pins: pins, lock: lock, metrics: m}
}

// SetDesired records the wanted position and forces re-evaluation.
func (s *SolenoidController) SetDesired(l entities.Line, open bool) error {
	if !l.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidLine, int(l))
	}
	s.lines[l].desiredOpen = open
	s.lines[l].confirmed = confirmUnknown
	return nil
}

// Service evaluates every line once; called on every control tick.
func (s *SolenoidController) Service(now Instant) {
	for _, l := range entities.Lines() {
		s.serviceLine(l, now)
	}
	if owner, held := s.lock.Owner(); held {
		s.metrics.SpinOwner.Set(float64(owner))
	} else {
		s.metrics.SpinOwner.Set(-1)
	}
}

func (s *SolenoidController) serviceLine(l entities.Line, now Instant) {
	sl := &s.lines[l]
	fb, err := s.io.ReadInput(s.pins.Read[l])
	if err != nil {
		if !sl.readFailing {
			log.Printf("solenoid: %s feedback read error: %v", l, err)
			sl.readFailing = true
		}
		return
	}
	sl.readFailing = false

	if fb == sl.desiredOpen {
		if sl.driving {
			s.stop(l, sl)
			log.Printf("solenoid: %s confirmed %s after %ds", l, confirmOf(fb), now.Epoch-sl.driveStart)
		}
		sl.confirmed = confirmOf(fb)
		return
	}

	if sl.driving {
		stalled := now.Epoch - sl.driveStart
		s.metrics.SolenoidStall.WithLabelValues(l.String()).Set(float64(stalled))
		if stalled >= stallLogEvery && now.Epoch-sl.lastStall >= stallLogEvery {
			sl.lastStall = now.Epoch
			log.Printf("solenoid: %s not confirming %s, spinning since %s (holding spin lock)",
				l, confirmOf(sl.desiredOpen), humanize.Time(time.Unix(sl.driveStart, 0)))
		}
		return
	}
	if !s.lock.TryAcquire(l) {
		return
	}
	if err := s.gate.Write(s.pins.Spin[l], true); err != nil {
		s.lock.Release(l)
		log.Printf("solenoid: %s spin start error: %v", l, err)
		return
	}
	sl.driving = true
	sl.driveStart = now.Epoch
	sl.lastStall = now.Epoch
}

func (s *SolenoidController) stop(l entities.Line, sl *solenoid) {
	if err := s.gate.Write(s.pins.Spin[l], false); err != nil {
		log.Printf("solenoid: %s spin stop error: %v", l, err)
	}
	sl.driving = false
	s.lock.Release(l)
	s.metrics.SolenoidStall.WithLabelValues(l.String()).Set(0)
}

func (s *SolenoidController) Desired(l entities.Line) bool { return s.lines[l].desiredOpen }

// Confirmed returns the last feedback-confirmed position.
func (s *SolenoidController) Confirmed(l entities.Line) (open, known bool) {
	c := s.lines[l].confirmed
	return c == confirmOpen, c != confirmUnknown
}

func (s *SolenoidController) Driving(l entities.Line) bool { return s.lines[l].driving }

func confirmOf(open bool) confirmation {
	if open {
		return confirmOpen
	}
	return confirmClosed
}
