package irrigation_controller

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/LeonardoBeccarini/garden_controller/internal/model/messages"
	"github.com/google/uuid"
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RunDiagnosticDispense is the blocking maintenance mode: it pushes ml of
// fertilizer through the manifold and flushes it with tap water. The engine
// does not tick until it returns. Cancelling ctx cuts the sequence short but
// every actuator is still switched off.
func (c *Controller) RunDiagnosticDispense(ctx context.Context, ml float64) error {
	if ml <= 0 || math.IsNaN(ml) || math.IsInf(ml, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidDispense, ml)
	}
	if !c.dispensing.CompareAndSwap(false, true) {
		return ErrDispenseRunning
	}
	defer c.dispensing.Store(false)

	c.mu.Lock()
	defer c.mu.Unlock()

	pumpFor := time.Duration(ml / c.cfg.PumpRateMLPerSec * float64(time.Second))
	runID := uuid.NewString()
	started := c.clock.Now()
	c.logf("dispense: run %s %.1fml, pump %s, blocking the control loop", runID, ml, pumpFor.Round(time.Second))
	c.notifyDispense(runID, started, messages.CycleStarted)

	p := c.cfg.Pins
	var pumpOn, tapOn bool
	err := func() error {
		c.act.relay(c.clock.Now(), p.FertValve, "fertvalve", true, sourceDispense)
		if err := c.sleep(ctx, c.cfg.DispenseSettle); err != nil {
			return err
		}
		c.act.relay(c.clock.Now(), p.FertPump, "pump", true, sourceDispense)
		pumpOn = true
		if err := c.sleep(ctx, pumpFor); err != nil {
			return err
		}
		c.act.relay(c.clock.Now(), p.FertPump, "pump", false, sourceDispense)
		pumpOn = false
		c.act.relay(c.clock.Now(), p.TapWater, "tap", true, sourceDispense)
		tapOn = true
		return c.sleep(ctx, c.cfg.DispenseFlush)
	}()

	now := c.clock.Now()
	if pumpOn {
		c.act.relay(now, p.FertPump, "pump", false, sourceDispense)
	}
	if tapOn {
		c.act.relay(now, p.TapWater, "tap", false, sourceDispense)
	}
	c.act.relay(now, p.FertValve, "fertvalve", false, sourceDispense)

	elapsed := time.Duration(now.Epoch-started.Epoch) * time.Second
	if err != nil {
		c.logf("dispense: run %s aborted after %s: %v", runID, elapsed, err)
		c.notifyDispense(runID, started, messages.CycleAborted)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("dispense interrupted: %w", err)
		}
		return err
	}
	c.logf("dispense: run %s done in %s", runID, elapsed)
	c.notifyDispense(runID, started, messages.CycleFinished)
	c.publishSnapshot(now)
	return nil
}

func (c *Controller) notifyDispense(runID string, started Instant, status string) {
	c.act.notifier.Notify(formatTopic(TopicCycle, c.cfg.FieldID, messages.CycleDispense), messages.CycleEvent{
		FieldID:   c.cfg.FieldID,
		Cycle:     messages.CycleDispense,
		RunID:     runID,
		Status:    status,
		Trigger:   triggerManual,
		StartedAt: epochTime(started.Epoch),
		Timestamp: epochTime(c.clock.Now().Epoch),
	})
}
