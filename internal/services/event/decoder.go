package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	msg "github.com/LeonardoBeccarini/garden_controller/internal/model/messages"
)

const (
	TypeStateChange = "valve.state_change"
	TypeDosage      = "watering.dosage"
	TypeCycle       = "cycle.status"
	TypeDayRecord   = "day.record"

	sourceController = "irrigation-controller"
)

type CommonEvent struct {
	EventType     string
	SourceService string
	FieldID       string
	Key           string // line<N>, relay name or cycle name
	Severity      string // info|warning
	Fields        map[string]interface{}
	Timestamp     time.Time
}

// MQTTHandler turns controller events into CommonEvents for the sink.
type MQTTHandler struct{ sink func(CommonEvent) }

func NewMQTTHandler(sink func(CommonEvent)) *MQTTHandler { return &MQTTHandler{sink: sink} }

func (h *MQTTHandler) Handle(_ string, m mqtt.Message) error {
	evt, ok, err := Decode(m.Topic(), m.Payload())
	if err != nil || !ok {
		return err
	}
	if h.sink != nil {
		h.sink(evt)
	}
	return nil
}

// Decode maps a topic and payload to a CommonEvent. ok is false for topics
// this service does not store.
func Decode(topic string, payload []byte) (CommonEvent, bool, error) {
	var (
		evt CommonEvent
		err error
	)
	switch {
	case strings.HasPrefix(topic, "event/StateChange/"):
		evt, err = decodeStateChange(topic, payload)
	case strings.HasPrefix(topic, "event/dosage/"):
		evt, err = decodeDosage(topic, payload)
	case strings.HasPrefix(topic, "event/cycle/"):
		evt, err = decodeCycle(topic, payload)
	case strings.HasPrefix(topic, "event/dayRecord/"):
		evt, err = decodeDayRecord(topic, payload)
	default:
		return CommonEvent{}, false, nil
	}
	if err != nil {
		return CommonEvent{}, false, fmt.Errorf("%s: %w", topic, err)
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	return evt, true, nil
}

func decodeStateChange(topic string, payload []byte) (CommonEvent, error) {
	var s msg.StateChangeEvent
	if err := json.Unmarshal(payload, &s); err != nil {
		return CommonEvent{}, err
	}
	fieldID, key := pickIDs(topic, "event/StateChange/", s.FieldID)
	if fieldID == "" || key == "" {
		return CommonEvent{}, errors.New("stateChange: missing field/key")
	}
	return CommonEvent{
		EventType:     TypeStateChange,
		SourceService: sourceController,
		FieldID:       fieldID,
		Key:           key,
		Severity:      "info",
		Fields: map[string]interface{}{
			"new_state": string(s.NewState),
			"duration":  s.Duration.Seconds(),
			"source":    s.Source,
			"line":      int64(s.Line),
		},
		Timestamp: s.Timestamp,
	}, nil
}

func decodeDosage(topic string, payload []byte) (CommonEvent, error) {
	var d msg.DosageDecisionEvent
	if err := json.Unmarshal(payload, &d); err != nil {
		return CommonEvent{}, err
	}
	fieldID, key := pickIDs(topic, "event/dosage/", d.FieldID)
	if fieldID == "" || key == "" {
		return CommonEvent{}, errors.New("dosage: missing field/key")
	}
	return CommonEvent{
		EventType:     TypeDosage,
		SourceService: sourceController,
		FieldID:       fieldID,
		Key:           key,
		Severity:      "info",
		Fields: map[string]interface{}{
			"run_id":          d.RunID,
			"rain_events":     int64(d.RainEvents),
			"max_temperature": d.MaxTemperature,
			"delta":           d.Delta,
			"tally":           d.Tally,
			"dose_seconds":    int64(d.DoseSeconds),
			"opened":          d.Opened,
		},
		Timestamp: d.Timestamp,
	}, nil
}

func decodeCycle(topic string, payload []byte) (CommonEvent, error) {
	var c msg.CycleEvent
	if err := json.Unmarshal(payload, &c); err != nil {
		return CommonEvent{}, err
	}
	fieldID, key := pickIDs(topic, "event/cycle/", c.FieldID)
	if key == "" {
		key = c.Cycle
	}
	if fieldID == "" || key == "" {
		return CommonEvent{}, errors.New("cycle: missing field/cycle")
	}
	sev := "info"
	if strings.EqualFold(c.Status, msg.CycleAborted) {
		sev = "warning"
	}
	return CommonEvent{
		EventType:     TypeCycle,
		SourceService: sourceController,
		FieldID:       fieldID,
		Key:           key,
		Severity:      sev,
		Fields: map[string]interface{}{
			"status":      c.Status,
			"run_id":      c.RunID,
			"trigger":     c.Trigger,
			"repetitions": int64(c.Repetitions),
			"elapsed":     c.Timestamp.Sub(c.StartedAt).Seconds(),
		},
		Timestamp: c.Timestamp,
	}, nil
}

func decodeDayRecord(topic string, payload []byte) (CommonEvent, error) {
	var d msg.DayRecordEvent
	if err := json.Unmarshal(payload, &d); err != nil {
		return CommonEvent{}, err
	}
	fieldID, _ := pickIDs(topic, "event/dayRecord/", d.FieldID)
	if fieldID == "" {
		return CommonEvent{}, errors.New("dayRecord: missing field")
	}
	r := d.Record
	return CommonEvent{
		EventType:     TypeDayRecord,
		SourceService: sourceController,
		FieldID:       fieldID,
		Key:           r.Weekday.String(),
		Severity:      "info",
		Fields: map[string]interface{}{
			"weekday":               int64(r.Weekday),
			"max_temperature":       r.MaxTemperature,
			"rainfall_event_count":  int64(r.RainfallEventCount),
			"tank_level_raw":        int64(r.TankLevelRaw),
			"tank_level_percent":    d.TankLevelPercent,
			"total_water_dispensed": r.TotalWaterDispensed,
		},
		Timestamp: d.Timestamp,
	}, nil
}

// pickIDs takes the field from the payload or the topic "prefix/{field}/{key}";
// the key always comes from the topic.
func pickIDs(topic, prefix, fieldID string) (string, string) {
	parts := strings.Split(strings.TrimPrefix(topic, prefix), "/")
	var key string
	if len(parts) >= 2 {
		key = parts[1]
	}
	if strings.TrimSpace(fieldID) == "" {
		fieldID = parts[0]
	}
	return fieldID, key
}
