// Package history keeps a SQLite journal of cube sessions and position
// readings.
//
// The journal is written by the telemetry fan-out and read by the local
// status API. It is optional: the bridge runs without it when the
// database section of the configuration is disabled.
//
// Timestamps are stored as fixed-width UTC text so that string
// comparison in SQL orders them correctly.
package history
