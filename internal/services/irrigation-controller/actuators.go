package irrigation_controller

import (
	"log"
	"time"

	"github.com/LeonardoBeccarini/garden_controller/internal/model/entities"
	"github.com/LeonardoBeccarini/garden_controller/internal/model/messages"
)

const (
	sourceWatering    = "watering"
	sourceFertilizing = "fertilizing"
	sourceHack        = "hack"
	sourceManual      = "manual"
	sourceDispense    = "dispense"
)

// actuators is the shared handle the cycles use to move lines and relays.
type actuators struct {
	fieldID   string
	pins      PinMap
	gate      *RelayGate
	solenoids *SolenoidController
	notifier  Notifier
}

func (a *actuators) drive(now Instant, l entities.Line, open bool, source string, d time.Duration) {
	if err := a.solenoids.SetDesired(l, open); err != nil {
		log.Printf("%s: drive %s: %v", source, l, err)
		return
	}
	a.notifier.Notify(formatTopic(TopicStateChange, a.fieldID, l.String()), messages.StateChangeEvent{
		FieldID:   a.fieldID,
		Line:      int(l),
		NewState:  entities.StateOf(open),
		Duration:  d,
		Source:    source,
		Timestamp: epochTime(now.Epoch),
	})
}

func (a *actuators) relay(now Instant, pin Pin, name string, on bool, source string) {
	if err := a.gate.Write(pin, on); err != nil {
		log.Printf("%s: relay %s -> %s: %v", source, name, entities.StateOf(on), err)
	}
	a.notifier.Notify(formatTopic(TopicStateChange, a.fieldID, name), messages.StateChangeEvent{
		FieldID:   a.fieldID,
		Line:      -1,
		NewState:  entities.StateOf(on),
		Source:    source,
		Timestamp: epochTime(now.Epoch),
	})
}

func epochTime(epoch int64) time.Time { return time.Unix(epoch, 0).UTC() }

func seconds(n int64) time.Duration { return time.Duration(n) * time.Second }
