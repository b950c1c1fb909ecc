// Package telemetry fans cube notifications and session events out to
// the bridge's observation back-ends.
//
// A Fanout sits between the cube registry and a set of Sinks. It is a
// cube.Observer (session events) and its Notify method is a
// cube.Callback (decoded notifications). Deliveries are queued so the
// BLE stack's goroutine never waits on a slow back-end; notifications
// that do not fit in the queue are dropped and counted.
//
// Sinks in this package:
//
//   - LogSink: structured log lines
//   - MQTTSink: JSON on toio/cube/<cube_id>/{position,button,battery,session}
//   - InfluxSink: cube_position, cube_battery and cube_session points
//   - JournalSink: SQLite journal via the history package
//
// The status API adds a websocket sink of its own.
//
// HealthReporter publishes retained bridge health to MQTT on an interval.
package telemetry
