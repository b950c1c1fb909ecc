// Package influxdb writes cube telemetry to InfluxDB v2.
//
// Measurements:
//
//	cube_position  tags: cube_id, kind        fields: x, y, angle, value, detected
//	cube_session   tags: cube_id, device_id   fields: connected
//	cube_battery   tags: cube_id              fields: level
//
// Writes go through the non-blocking WriteAPI; points are batched and
// flushed on the configured interval and on Close.
package influxdb
