package event

import (
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const (
	MeasurementEvents    = "system_event"
	MeasurementDayRecord = "day_record"
)

// EventToPoint maps a CommonEvent to an InfluxDB point. Day records get their
// own measurement so the history query can pivot them.
func EventToPoint(evt CommonEvent) *write.Point {
	tags := map[string]string{
		"event_type":     evt.EventType,
		"source_service": evt.SourceService,
		"severity":       evt.Severity,
	}
	if evt.FieldID != "" {
		tags["field_id"] = evt.FieldID
	}
	if evt.Key != "" {
		tags["key"] = evt.Key
	}

	fields := make(map[string]interface{}, len(evt.Fields)+1)
	for k, v := range evt.Fields {
		fields[k] = v
	}
	if _, ok := fields["count"]; !ok {
		fields["count"] = int64(1)
	}

	measurement := MeasurementEvents
	if evt.EventType == TypeDayRecord {
		measurement = MeasurementDayRecord
	}
	return influxdb2.NewPoint(measurement, tags, fields, evt.Timestamp)
}
