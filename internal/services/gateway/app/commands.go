package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/LeonardoBeccarini/garden_controller/internal/model"
	"github.com/LeonardoBeccarini/garden_controller/pkg/dedup"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// CommandTopicPrefix is followed by the command name, e.g. cmd/garden/override.
const CommandTopicPrefix = "cmd/garden/"

const (
	CmdSetAutomation = "set-automation"
	CmdOverride      = "override"
	CmdHackMode      = "hack-mode"
	CmdFertilize     = "fertilize"
	CmdDispense      = "dispense"
)

// Dispatch runs one panel command.
func Dispatch(ctx context.Context, p Panel, name string, c model.Command) error {
	switch name {
	case CmdSetAutomation:
		return p.SetAutomation(c.Flag, c.Value)
	case CmdOverride:
		return p.ManualOverride(c.Actuator, c.Value)
	case CmdHackMode:
		mode, err := model.ParseHackMode(c.Mode)
		if err != nil {
			return err
		}
		return p.SetHackTimerMode(c.Line, mode)
	case CmdFertilize:
		return p.StartManualFertilize()
	case CmdDispense:
		return p.RunDiagnosticDispense(ctx, c.ML)
	}
	return fmt.Errorf("unknown command %q", name)
}

// CommandHandler consumes commands from MQTT. A command carrying an id runs
// once per id; one without is dropped only when the broker marks it as a
// redelivery of a message already seen. A dispense runs in its own goroutine
// so the client's delivery goroutine is not held for minutes.
func CommandHandler(ctx context.Context, p Panel, d *dedup.Deduper) func(string, mqtt.Message) error {
	return func(_ string, m mqtt.Message) error {
		name := strings.TrimPrefix(m.Topic(), CommandTopicPrefix)
		var c model.Command
		if len(m.Payload()) > 0 {
			if err := json.Unmarshal(m.Payload(), &c); err != nil {
				log.Printf("panel: bad command payload on %s: %v", m.Topic(), err)
				return nil
			}
		}
		if d != nil && !firstDelivery(d, m, c.ID) {
			log.Printf("panel: duplicate command %s %s dropped", name, c.ID)
			return nil
		}
		if name == CmdDispense {
			go func() {
				if err := Dispatch(ctx, p, name, c); err != nil {
					log.Printf("panel: command %s %s: %v", name, c.ID, err)
				}
			}()
			return nil
		}
		if err := Dispatch(ctx, p, name, c); err != nil {
			log.Printf("panel: command %s %s: %v", name, c.ID, err)
			return nil
		}
		log.Printf("panel: command %s %s ok", name, c.ID)
		return nil
	}
}

func firstDelivery(d *dedup.Deduper, m mqtt.Message, id string) bool {
	if id != "" {
		return d.ShouldProcess(m.Topic() + "#id:" + id)
	}
	key := fmt.Sprintf("%s#%d#%s", m.Topic(), m.MessageID(), dedup.Key(m.Payload()))
	if m.Duplicate() {
		return d.ShouldProcess(key)
	}
	d.Mark(key)
	return true
}
