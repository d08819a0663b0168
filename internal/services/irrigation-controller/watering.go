package irrigation_controller

import (
	"log"

	"github.com/LeonardoBeccarini/garden_controller/internal/model/entities"
	"github.com/LeonardoBeccarini/garden_controller/internal/model/messages"
	"github.com/google/uuid"
)

const (
	cursorIdle     = -2
	cursorStarting = -1
)

// WateringCycle visits every line once per day, in ascending order, opening
// each for the dose computed from yesterday's record.
type WateringCycle struct {
	act     *actuators
	ledger  *Ledger
	model   *DosageModel
	metrics *Metrics

	cursor    int
	dueAt     int64
	opened    bool
	runID     string
	trigger   string
	startedAt int64
}

func NewWateringCycle(act *actuators, ledger *Ledger, model *DosageModel, m *Metrics) *WateringCycle {
	return &WateringCycle{act: act, ledger: ledger, model: model, metrics: m, cursor: cursorIdle}
}

func (w *WateringCycle) Active() bool { return w.cursor >= cursorStarting }

func (w *WateringCycle) Cursor() int { return w.cursor }

// Start arms the cycle; the first line is evaluated on the next Advance.
func (w *WateringCycle) Start(now Instant, trigger string) error {
	if w.Active() {
		return ErrCycleBusy
	}
	w.cursor = cursorStarting
	w.dueAt = now.Epoch
	w.opened = false
	w.runID = uuid.NewString()
	w.trigger = trigger
	w.startedAt = now.Epoch
	w.metrics.WateringCursor.Set(float64(w.cursor))
	log.Printf("watering: run %s started (%s)", w.runID, trigger)
	w.notifyCycle(now, messages.CycleStarted)
	return nil
}

// Advance moves to the next line once the current dose has elapsed. While
// hold is set the cycle stays in Starting.
func (w *WateringCycle) Advance(now Instant, hold bool) {
	if !w.Active() || now.Epoch < w.dueAt {
		return
	}
	if w.cursor == cursorStarting && hold {
		return
	}
	if w.cursor >= 0 && w.opened {
		w.act.drive(now, entities.Line(w.cursor), false, sourceWatering, 0)
		w.opened = false
	}
	w.cursor++
	defer func() { w.metrics.WateringCursor.Set(float64(w.cursor)) }()

	if w.cursor >= entities.LineCount {
		w.cursor = cursorIdle
		log.Printf("watering: run %s finished, %.0fs dosed today", w.runID, w.ledger.Current().TotalWaterDispensed)
		w.notifyCycle(now, messages.CycleFinished)
		return
	}

	l := entities.Line(w.cursor)
	yesterday := w.ledger.Yesterday()
	dose := w.model.Dose(l, yesterday)
	w.ledger.Current().TotalWaterDispensed += float64(dose)

	w.opened = dose > 0 && float64(dose) >= w.model.Buffer(l)
	if w.opened {
		w.act.drive(now, l, true, sourceWatering, seconds(int64(dose)))
		w.dueAt = now.Epoch + int64(dose)
		w.metrics.DosedSeconds.WithLabelValues(l.String()).Add(float64(dose))
		log.Printf("watering: %s open for %ds (rain=%d maxT=%.1f)", l, dose, yesterday.RainfallEventCount, yesterday.MaxTemperature)
	} else {
		w.dueAt = now.Epoch
		log.Printf("watering: %s skipped, dose %ds below buffer %.0fs", l, dose, w.model.Buffer(l))
	}

	w.act.notifier.Notify(formatTopic(TopicDosage, w.act.fieldID, l.String()), messages.DosageDecisionEvent{
		FieldID:        w.act.fieldID,
		RunID:          w.runID,
		Line:           int(l),
		RainEvents:     yesterday.RainfallEventCount,
		MaxTemperature: yesterday.MaxTemperature,
		Delta:          w.model.Delta(l, yesterday),
		Tally:          w.model.Tally(l),
		DoseSeconds:    dose,
		Opened:         w.opened,
		Timestamp:      epochTime(now.Epoch),
	})
}

func (w *WateringCycle) notifyCycle(now Instant, status string) {
	w.act.notifier.Notify(formatTopic(TopicCycle, w.act.fieldID, messages.CycleWatering), messages.CycleEvent{
		FieldID:   w.act.fieldID,
		Cycle:     messages.CycleWatering,
		RunID:     w.runID,
		Status:    status,
		Trigger:   w.trigger,
		StartedAt: epochTime(w.startedAt),
		Timestamp: epochTime(now.Epoch),
	})
}
