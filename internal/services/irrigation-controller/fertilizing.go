package irrigation_controller

import (
	"log"

	"github.com/LeonardoBeccarini/garden_controller/internal/model/entities"
	"github.com/LeonardoBeccarini/garden_controller/internal/model/messages"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// FertilizeRepetitions is the number of line sweeps per fertilizing run.
const FertilizeRepetitions = 3

type FertPhase int

const (
	FertIdle FertPhase = iota
	FertPriming
	FertDispensing
)

func (p FertPhase) String() string {
	switch p {
	case FertPriming:
		return "priming"
	case FertDispensing:
		return "dispensing"
	}
	return "idle"
}

// primingOffsets are the step times, in seconds from the run start.
var primingOffsets = [...]int64{0, 32, 40, 72}

// FertilizingCycle runs the priming sequence once, then sweeps every line
// FertilizeRepetitions times, each line open for its fertilizing duration.
type FertilizingCycle struct {
	act     *actuators
	lines   [entities.LineCount]entities.LineConfig
	metrics *Metrics

	phase      FertPhase
	start      int64
	step       int
	pump       bool
	cursor     int
	repetition int
	dueAt      int64
	opened     bool
	runID      string
	trigger    string
	startedAt  int64
}

func NewFertilizingCycle(act *actuators, lines [entities.LineCount]entities.LineConfig, m *Metrics) *FertilizingCycle {
	return &FertilizingCycle{act: act, lines: lines, metrics: m, cursor: cursorIdle}
}

func (f *FertilizingCycle) Active() bool { return f.phase != FertIdle }

func (f *FertilizingCycle) Phase() FertPhase { return f.phase }

func (f *FertilizingCycle) Cursor() int { return f.cursor }

func (f *FertilizingCycle) Repetition() int { return f.repetition }

// Start begins priming at now. pump selects whether the fertilizer pump runs.
func (f *FertilizingCycle) Start(now Instant, trigger string, pump bool) error {
	if f.Active() {
		return ErrCycleBusy
	}
	f.phase = FertPriming
	f.start = now.Epoch
	f.step = 0
	f.pump = pump
	f.cursor = cursorIdle
	f.repetition = 0
	f.opened = false
	f.runID = uuid.NewString()
	f.trigger = trigger
	f.startedAt = now.Epoch
	f.metrics.FertilizingPhase.Set(float64(f.phase))
	log.Printf("fertilizing: run %s started (%s, pump=%v)", f.runID, trigger, pump)
	f.notifyCycle(now, messages.CycleStarted)
	return nil
}

func (f *FertilizingCycle) Advance(now Instant) {
	switch f.phase {
	case FertPriming:
		f.advancePriming(now)
	case FertDispensing:
		f.advanceDispensing(now)
	}
	f.metrics.FertilizingPhase.Set(float64(f.phase))
}

// advancePriming performs at most one step per tick. A late step shifts the
// remaining offsets so every step keeps its duration.
func (f *FertilizingCycle) advancePriming(now Instant) {
	at := f.start + primingOffsets[f.step]
	if now.Epoch < at {
		return
	}
	if late := now.Epoch - at; late > 0 {
		log.Printf("fertilizing: priming step %d late by %ds", f.step, late)
		f.start += late
	}
	p := f.act.pins
	switch f.step {
	case 0:
		f.act.relay(now, p.TapWater, "tap", true, sourceFertilizing)
	case 1:
		f.act.relay(now, p.TapWater, "tap", false, sourceFertilizing)
		if f.pump {
			f.act.relay(now, p.FertPump, "pump", true, sourceFertilizing)
		}
		f.act.relay(now, p.FertValve, "fertvalve", true, sourceFertilizing)
	case 2:
		f.act.relay(now, p.TapWater, "tap", true, sourceFertilizing)
		if f.pump {
			f.act.relay(now, p.FertPump, "pump", false, sourceFertilizing)
		}
		f.act.relay(now, p.FertValve, "fertvalve", false, sourceFertilizing)
	case 3:
		f.act.relay(now, p.TapWater, "tap", false, sourceFertilizing)
		f.phase = FertDispensing
		f.cursor = cursorStarting
		f.dueAt = now.Epoch
	}
	f.step++
}

func (f *FertilizingCycle) advanceDispensing(now Instant) {
	if now.Epoch < f.dueAt {
		return
	}
	if f.cursor >= 0 && f.opened {
		f.act.drive(now, entities.Line(f.cursor), false, sourceFertilizing, 0)
		f.opened = false
	}
	f.cursor++
	for f.cursor < entities.LineCount && f.lines[f.cursor].FertilizeSeconds <= 0 {
		f.cursor++
	}
	if f.cursor >= entities.LineCount {
		f.repetition++
		log.Printf("fertilizing: %s sweep done", humanize.Ordinal(f.repetition))
		if f.repetition >= FertilizeRepetitions {
			f.finish(now)
			return
		}
		f.cursor = cursorStarting
		f.dueAt = now.Epoch
		return
	}
	l := entities.Line(f.cursor)
	d := int64(f.lines[l].FertilizeSeconds)
	f.act.drive(now, l, true, sourceFertilizing, seconds(d))
	f.opened = true
	f.dueAt = now.Epoch + d
}

func (f *FertilizingCycle) finish(now Instant) {
	f.phase = FertIdle
	f.cursor = cursorIdle
	log.Printf("fertilizing: run %s finished after %d sweeps", f.runID, f.repetition)
	f.notifyCycle(now, messages.CycleFinished)
}

func (f *FertilizingCycle) notifyCycle(now Instant, status string) {
	f.act.notifier.Notify(formatTopic(TopicCycle, f.act.fieldID, messages.CycleFertilizing), messages.CycleEvent{
		FieldID:     f.act.fieldID,
		Cycle:       messages.CycleFertilizing,
		RunID:       f.runID,
		Status:      status,
		Trigger:     f.trigger,
		Repetitions: f.repetition,
		StartedAt:   epochTime(f.startedAt),
		Timestamp:   epochTime(now.Epoch),
	})
}
