package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementPosition = "cube_position"
	MeasurementSession  = "cube_session"
	MeasurementBattery  = "cube_battery"
)

// WriteCubePosition records one decoded ID-information reading.
// x, y and angle are ignored for the "missed" kinds; value is only used
// by standard_id readings.
func (c *Client) WriteCubePosition(cubeID, kind string, x, y, angle, value int, at time.Time) {
	fields := map[string]interface{}{"detected": true}
	switch kind {
	case "position_id":
		fields["x"] = x
		fields["y"] = y
		fields["angle"] = angle
	case "standard_id":
		fields["value"] = value
		fields["angle"] = angle
	default:
		fields["detected"] = false
	}
	c.write(MeasurementPosition, map[string]string{"cube_id": cubeID, "kind": kind}, fields, at)
}

// WriteCubeSession records a connect (connected=true) or disconnect event.
func (c *Client) WriteCubeSession(cubeID, deviceID string, connected bool, at time.Time) {
	c.write(MeasurementSession,
		map[string]string{"cube_id": cubeID, "device_id": deviceID},
		map[string]interface{}{"connected": connected},
		at)
}

// WriteBatteryLevel records a battery percentage reading.
func (c *Client) WriteBatteryLevel(cubeID string, level int, at time.Time) {
	c.write(MeasurementBattery,
		map[string]string{"cube_id": cubeID},
		map[string]interface{}{"level": level},
		at)
}

func (c *Client) write(measurement string, tags map[string]string, fields map[string]interface{}, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(write.NewPoint(measurement, tags, fields, at))
}
