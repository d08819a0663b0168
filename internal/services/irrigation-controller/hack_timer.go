package irrigation_controller

import (
	"fmt"
	"log"

	"github.com/LeonardoBeccarini/garden_controller/internal/model/entities"
)

// WeekSeconds is the period of the weekly hack timer modes.
const WeekSeconds = 7 * 24 * 3600

type hackTimer struct {
	mode      entities.HackMode
	triggerAt int64
	isOn      bool
}

// HackTimers are six independent per-line on/off schedules. They share the
// lines (and the spin lock) with the cycles without any priority.
//
// Timer10/Timer20 open the line now and close it once after 10/20 minutes,
// then revert to Off. The weekly variants keep alternating: on for the mode's
// duration, off for the rest of the week.
type HackTimers struct {
	act     *actuators
	metrics *Metrics
	timers  [entities.LineCount]hackTimer
}

func NewHackTimers(act *actuators, m *Metrics) *HackTimers {
	return &HackTimers{act: act, metrics: m}
}

func (h *HackTimers) SetMode(now Instant, l entities.Line, mode entities.HackMode) error {
	if !l.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidLine, int(l))
	}
	if mode < entities.HackOff || mode > entities.HackTimer20Weekly {
		return fmt.Errorf("%w: %d", ErrInvalidMode, int(mode))
	}
	t := &h.timers[l]
	t.mode = mode
	t.triggerAt = 0
	t.isOn = mode != entities.HackOff
	if mode.Timed() {
		t.triggerAt = now.Epoch + mode.OnSeconds()
	}
	h.act.drive(now, l, t.isOn, sourceHack, seconds(mode.OnSeconds()))
	log.Printf("hack: %s mode=%s", l, mode)
	return nil
}

func (h *HackTimers) Mode(l entities.Line) entities.HackMode { return h.timers[l].mode }

func (h *HackTimers) TriggerAt(l entities.Line) int64 { return h.timers[l].triggerAt }

func (h *HackTimers) IsOn(l entities.Line) bool { return h.timers[l].isOn }

// Advance toggles every timer whose trigger time has been reached.
func (h *HackTimers) Advance(now Instant) {
	for _, l := range entities.Lines() {
		t := &h.timers[l]
		if t.triggerAt == 0 || now.Epoch < t.triggerAt {
			continue
		}
		t.isOn = !t.isOn
		h.metrics.HackToggles.WithLabelValues(l.String()).Inc()

		if !t.mode.Weekly() {
			h.act.drive(now, l, t.isOn, sourceHack, 0)
			log.Printf("hack: %s one-shot %s elapsed, back to off", l, t.mode)
			t.mode = entities.HackOff
			t.triggerAt = 0
			continue
		}
		period := t.mode.OnSeconds()
		if !t.isOn {
			period = WeekSeconds - period
		}
		h.act.drive(now, l, t.isOn, sourceHack, 0)
		next := t.triggerAt + period
		if next <= now.Epoch {
			next = now.Epoch + period
		}
		t.triggerAt = next
	}
}
