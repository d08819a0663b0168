package irrigation_controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LeonardoBeccarini/garden_controller/internal/model/entities"
	"github.com/LeonardoBeccarini/garden_controller/internal/model/messages"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	triggerSchedule = "schedule"
	triggerManual   = "manual"

	activityLogSize = 100
)

// SwitchStore persists the automation switches.
type SwitchStore interface {
	ReadSwitches() (entities.Switches, error)
	WriteSwitches(entities.Switches) error
}

// MemorySwitchStore keeps the switches in memory only.
type MemorySwitchStore struct {
	mu sync.Mutex
	sw entities.Switches
}

func NewMemorySwitchStore(sw entities.Switches) *MemorySwitchStore {
	return &MemorySwitchStore{sw: sw}
}

func (m *MemorySwitchStore) ReadSwitches() (entities.Switches, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sw, nil
}

func (m *MemorySwitchStore) WriteSwitches(sw entities.Switches) error {
	m.mu.Lock()
	m.sw = sw
	m.mu.Unlock()
	return nil
}

// Deps are the controller's collaborators. IO is required; the rest default
// to the system clock, an in-memory store, no telemetry and a private
// metrics registry.
type Deps struct {
	Clock       Clock
	IO          ActuatorIO
	Temperature TemperatureSensor
	Store       SwitchStore
	Notifier    Notifier
	Registerer  prometheus.Registerer
	Sleep       Sleeper
}

// ActivityEntry is one line of the operator-facing activity log.
type ActivityEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// Controller is the tick dispatcher. Every tick services the solenoids; the
// rest of the engine advances only when the clock's second changes.
// All engine state is guarded by mu, which the diagnostic dispense holds for
// its whole run.
type Controller struct {
	cfg     Config
	loc     *time.Location
	clock   Clock
	io      ActuatorIO
	temp    TemperatureSensor
	store   SwitchStore
	metrics *Metrics
	sleep   Sleeper

	mu          sync.Mutex
	gate        *RelayGate
	lock        *SpinLock
	solenoids   *SolenoidController
	act         *actuators
	tank        *TankSampler
	rain        RainCounter
	ledger      *Ledger
	dosage      *DosageModel
	watering    *WateringCycle
	fertilizing *FertilizingCycle
	hacks       *HackTimers
	wateringAt  *Trigger
	fertAt      *Trigger
	switches    entities.Switches
	pendingFert bool
	started     bool
	lastEpoch   int64
	lastPing    int64
	tankPct     float64
	temperature float64
	tempKnown   bool
	tempErrAt   int64
	rainErr     bool

	dispensing atomic.Bool
	lastTick   atomic.Int64
	snapshot   atomic.Pointer[Snapshot]

	logMu    sync.Mutex
	activity []ActivityEntry
}

func NewController(cfg Config, d Deps) (*Controller, error) {
	if d.IO == nil {
		return nil, errors.New("actuator io is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc := cfg.Location()
	if d.Clock == nil {
		d.Clock = SystemClock{Location: loc}
	}
	if d.Store == nil {
		d.Store = NewMemorySwitchStore(cfg.DefaultSwitches)
	}
	if d.Notifier == nil {
		d.Notifier = NopNotifier{}
	}
	if d.Sleep == nil {
		d.Sleep = sleepCtx
	}

	wateringAt, err := NewTrigger(cfg.WateringSchedule, loc)
	if err != nil {
		return nil, err
	}
	fertAt, err := NewTrigger(cfg.FertilizingSchedule, loc)
	if err != nil {
		return nil, err
	}

	m := NewMetrics(d.Registerer)
	gate := NewRelayGate(d.IO, cfg.RelayCooldownSecs)
	lock := &SpinLock{}
	solenoids := NewSolenoidController(d.IO, gate, cfg.Pins, lock, m)
	act := &actuators{fieldID: cfg.FieldID, pins: cfg.Pins, gate: gate, solenoids: solenoids, notifier: d.Notifier}
	now := d.Clock.Now()
	ledger := NewLedger(now.Weekday)
	dosage := NewDosageModel(cfg.Lines)

	c := &Controller{
		cfg:         cfg,
		loc:         loc,
		clock:       d.Clock,
		io:          d.IO,
		temp:        d.Temperature,
		store:       d.Store,
		metrics:     m,
		sleep:       d.Sleep,
		gate:        gate,
		lock:        lock,
		solenoids:   solenoids,
		act:         act,
		tank:        NewTankSampler(gate),
		ledger:      ledger,
		dosage:      dosage,
		watering:    NewWateringCycle(act, ledger, dosage, m),
		fertilizing: NewFertilizingCycle(act, cfg.Lines, m),
		hacks:       NewHackTimers(act, m),
		wateringAt:  wateringAt,
		fertAt:      fertAt,
	}

	sw, err := d.Store.ReadSwitches()
	if err != nil {
		c.logf("controller: read switches: %v (using defaults %+v)", err, cfg.DefaultSwitches)
		sw = cfg.DefaultSwitches
	}
	c.switches = sw
	c.publishSnapshot(now)
	c.logf("controller: ready field=%s switches=%+v watering=%q fertilizing=%q",
		cfg.FieldID, sw, cfg.WateringSchedule, cfg.FertilizingSchedule)
	return c, nil
}

// Run ticks the engine until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	every := c.cfg.TickInterval
	if every <= 0 {
		every = 50 * time.Millisecond
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			c.Tick(c.clock.Now())
		}
	}
}

// Tick runs one control iteration at now.
func (c *Controller) Tick(now Instant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick(now)
	c.lastTick.Store(time.Now().UnixNano())
}

func (c *Controller) tick(now Instant) {
	boundary := !c.started || now.Epoch != c.lastEpoch
	// the cooldown counts down before any write this tick can reload it
	if boundary {
		c.gate.Tick()
	}
	c.solenoids.Service(now)
	if !boundary {
		return
	}
	if c.started && now.Epoch > c.lastEpoch+1 {
		missed := now.Epoch - c.lastEpoch - 1
		c.metrics.SkippedSeconds.Add(float64(missed))
		log.Printf("controller: %d second(s) skipped", missed)
	}
	c.started = true
	c.lastEpoch = now.Epoch
	c.second(now)
	c.publishSnapshot(now)
}

func (c *Controller) second(now Instant) {
	c.sampleTank(now)
	c.sampleRain()
	c.sampleTemperature(now)

	if c.wateringAt.Due(now) {
		c.rotate(now)
		if c.switches.Water {
			if err := c.watering.Start(now, triggerSchedule); err != nil {
				c.logf("controller: watering not started: %v", err)
			}
		}
	}
	if c.fertAt.Due(now) && c.switches.Fertilize {
		c.pendingFert = true
	}
	if c.pendingFert && !c.switches.Fertilize {
		c.pendingFert = false
		c.logf("controller: deferred fertilizing dropped, switch is off")
	}
	if c.pendingFert && !c.watering.Active() {
		c.pendingFert = false
		if err := c.fertilizing.Start(now, triggerSchedule, c.switches.FertPump); err != nil {
			c.logf("controller: scheduled fertilizing not started: %v", err)
		}
	}

	c.watering.Advance(now, c.fertilizing.Active())
	c.fertilizing.Advance(now)
	c.hacks.Advance(now)

	c.metrics.RelayCooldown.Set(float64(c.gate.Cooldown()))
}

func (c *Controller) sampleTank(now Instant) {
	if raw, ok := c.tank.Take(); ok {
		c.ledger.Current().TankLevelRaw = raw
		c.tankPct = TankLevelPercent(raw, c.cfg.TankHeightCm)
		c.metrics.EchoSamples.Inc()
		c.metrics.TankLevel.Set(c.tankPct)
	}
	every := int64(c.cfg.TankPingEverySecs)
	if every <= 0 || now.Epoch-c.lastPing < every || !c.gate.Quiet() {
		return
	}
	c.lastPing = now.Epoch
	if err := c.io.TriggerPulse(c.cfg.Pins.EchoTrigger); err != nil {
		log.Printf("tank: trigger pulse: %v", err)
	}
}

func (c *Controller) sampleRain() {
	active, err := c.io.ReadInput(c.cfg.Pins.Rain)
	if err != nil {
		if !c.rainErr {
			log.Printf("rain: read error: %v", err)
			c.rainErr = true
		}
		return
	}
	c.rainErr = false
	if c.rain.Sample(active) {
		c.ledger.Current().RainfallEventCount++
		c.metrics.RainEvents.Inc()
	}
}

func (c *Controller) sampleTemperature(now Instant) {
	if c.temp == nil {
		return
	}
	t, err := c.temp.ReadCelsius()
	if err != nil {
		if now.Epoch-c.tempErrAt >= 60 {
			c.tempErrAt = now.Epoch
			log.Printf("temperature: read error: %v", err)
		}
		return
	}
	c.temperature, c.tempKnown = t, true
	c.ledger.Current().ObserveTemperature(t)
	c.metrics.Temperature.Set(t)
}

func (c *Controller) rotate(now Instant) {
	closed := c.ledger.Rotate(now.Weekday)
	pct := TankLevelPercent(closed.TankLevelRaw, c.cfg.TankHeightCm)
	c.logf("ledger: closed %s rain=%d maxT=%.1f tank=%.0f%% water=%.0fs",
		closed.Weekday, closed.RainfallEventCount, closed.MaxTemperature, pct, closed.TotalWaterDispensed)
	c.act.notifier.Notify(formatTopic(TopicDayRecord, c.cfg.FieldID, ""), messages.DayRecordEvent{
		FieldID:          c.cfg.FieldID,
		Record:           closed,
		TankLevelPercent: pct,
		Timestamp:        epochTime(now.Epoch),
	})
}

// EchoEdge is the tank echo interrupt entry point; safe from any goroutine.
func (c *Controller) EchoEdge(rising bool, at time.Duration) { c.tank.OnEdge(rising, at) }

// ===================== commands =====================

// command takes the engine lock unless a diagnostic dispense holds it.
func (c *Controller) command(fn func(now Instant) error) error {
	if c.dispensing.Load() {
		return ErrDispenseRunning
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	if err := fn(now); err != nil {
		return err
	}
	c.publishSnapshot(now)
	return nil
}

// SetAutomation toggles one switch (water, fertilize, fertpump) and persists
// all three.
func (c *Controller) SetAutomation(flag string, value bool) error {
	return c.command(func(Instant) error {
		sw := c.switches
		switch strings.ToLower(strings.TrimSpace(flag)) {
		case "water":
			sw.Water = value
		case "fertilize":
			sw.Fertilize = value
		case "fertpump", "fert_pump":
			sw.FertPump = value
		default:
			return fmt.Errorf("%w: %q", ErrUnknownFlag, flag)
		}
		if err := c.store.WriteSwitches(sw); err != nil {
			return fmt.Errorf("persist switches: %w", err)
		}
		c.switches = sw
		c.logf("panel: automation %s=%v", flag, value)
		return nil
	})
}

// ManualOverride drives one actuator: line0..line5, tap, pump or fertvalve.
func (c *Controller) ManualOverride(actuator string, on bool) error {
	return c.command(func(now Instant) error {
		name := strings.ToLower(strings.TrimSpace(actuator))
		p := c.cfg.Pins
		switch name {
		case "tap":
			c.act.relay(now, p.TapWater, name, on, sourceManual)
		case "pump":
			c.act.relay(now, p.FertPump, name, on, sourceManual)
		case "fertvalve":
			c.act.relay(now, p.FertValve, name, on, sourceManual)
		default:
			l, err := ParseLine(name)
			if err != nil {
				return fmt.Errorf("%w: %q", ErrUnknownActuator, actuator)
			}
			c.act.drive(now, l, on, sourceManual, 0)
		}
		c.logf("panel: override %s -> %s", name, entities.StateOf(on))
		return nil
	})
}

func (c *Controller) SetHackTimerMode(line int, mode entities.HackMode) error {
	return c.command(func(now Instant) error {
		return c.hacks.SetMode(now, entities.Line(line), mode)
	})
}

// StartManualFertilize starts a fertilizing run now. It is refused while the
// watering cycle or another fertilizing run is active.
func (c *Controller) StartManualFertilize() error {
	return c.command(func(now Instant) error {
		if c.watering.Active() {
			return fmt.Errorf("%w: watering", ErrCycleBusy)
		}
		if err := c.fertilizing.Start(now, triggerManual, c.switches.FertPump); err != nil {
			return err
		}
		c.logf("panel: manual fertilizing started")
		return nil
	})
}

// ParseLine accepts "line3" or "3".
func ParseLine(s string) (entities.Line, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "line"))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLine, s)
	}
	l := entities.Line(n)
	if !l.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLine, n)
	}
	return l, nil
}

// ===================== state =====================

// Alive reports whether the loop ticked within maxAge. A running diagnostic
// dispense counts as alive.
func (c *Controller) Alive(maxAge time.Duration) bool {
	if c.dispensing.Load() {
		return true
	}
	last := c.lastTick.Load()
	return last != 0 && time.Since(time.Unix(0, last)) <= maxAge
}

func (c *Controller) Dispensing() bool { return c.dispensing.Load() }

func (c *Controller) logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Print(msg)
	c.logMu.Lock()
	defer c.logMu.Unlock()
	c.activity = append(c.activity, ActivityEntry{Time: time.Now(), Message: msg})
	if n := len(c.activity); n > activityLogSize {
		c.activity = append(c.activity[:0:0], c.activity[n-activityLogSize:]...)
	}
}

// Logs returns the activity log, newest last.
func (c *Controller) Logs() []ActivityEntry {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	out := make([]ActivityEntry, len(c.activity))
	copy(out, c.activity)
	return out
}
