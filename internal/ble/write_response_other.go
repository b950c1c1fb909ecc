//go:build !darwin && !windows

package ble

import "tinygo.org/x/bluetooth"

// writeWithResponse falls back to WriteWithoutResponse, the only write the
// BlueZ and baremetal backends expose.
//
// On BlueZ the call passes no write type, so the daemon sends a write
// request for characteristics that advertise one: light, sound, sensor and
// configuration on the cube. Only motor is write-without-response, and it
// never takes this path.
func writeWithResponse(c *bluetooth.DeviceCharacteristic, p []byte) (int, error) {
	return c.WriteWithoutResponse(p)
}
