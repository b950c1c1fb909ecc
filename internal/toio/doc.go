// Package toio speaks the toio Core Cube BLE protocol.
//
// It owns the service and characteristic UUIDs, encodes command packets
// (motor, target moves, indicator light, sound effects, MIDI), decodes
// sensor values (ID information, button, battery, motion), and exposes a
// Cube handle that sends them over any Link. The BLE transport lives in
// package ble; tests use in-memory links.
//
// Multi-byte fields are little-endian. Durations travel in 10 ms units
// and are clamped to one byte (2.55 s).
package toio
