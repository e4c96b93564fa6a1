// Package telemetry turns completed ticks into time-series points: one
// point each for sensors, energy and wifi, tagged with the session id.
package telemetry

import (
	"context"
	"time"

	"github.com/nerrad567/homesim-core/internal/home"
)

// Measurement names.
const (
	MeasurementSensors = "sensors"
	MeasurementEnergy  = "energy"
	MeasurementWifi    = "wifi"

	tagSession = "session_id"
	tagNetwork = "network"
)

// PointWriter accepts points for asynchronous delivery.
// *influxdb.Client satisfies it.
type PointWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time)
}

// Recorder is a session sink that writes tick telemetry.
type Recorder struct {
	writer PointWriter
}

// NewRecorder creates a Recorder writing to w.
func NewRecorder(w PointWriter) *Recorder {
	return &Recorder{writer: w}
}

// HandleEvents writes the telemetry of every tick event. Activity and
// alert events are ignored.
func (r *Recorder) HandleEvents(_ context.Context, sessionID string, events []home.Event) {
	for _, ev := range events {
		if ev.Kind != home.EventTick || ev.Telemetry == nil {
			continue
		}
		r.record(sessionID, ev.Telemetry)
	}
}

func (r *Recorder) record(sessionID string, t *home.Telemetry) {
	tags := map[string]string{tagSession: sessionID}

	r.writer.WritePointWithTime(MeasurementSensors, tags, map[string]any{
		"temperature": t.Sensors.Temperature,
		"humidity":    t.Sensors.Humidity,
		"motion":      t.Sensors.Motion,
	}, t.Timestamp)

	r.writer.WritePointWithTime(MeasurementEnergy, tags, map[string]any{
		"daily":   t.Energy.Daily,
		"weekly":  t.Energy.Weekly,
		"monthly": t.Energy.Monthly,
	}, t.Timestamp)

	wifiTags := map[string]string{tagSession: sessionID}
	if t.Wifi.Network != "" {
		wifiTags[tagNetwork] = t.Wifi.Network
	}
	r.writer.WritePointWithTime(MeasurementWifi, wifiTags, map[string]any{
		"signal":    t.Wifi.Signal,
		"connected": t.Wifi.State == home.WifiConnected,
	}, t.Timestamp)
}
