//go:build darwin || windows

package ble

import "tinygo.org/x/bluetooth"

// writeWithResponse issues a GATT write request.
func writeWithResponse(c *bluetooth.DeviceCharacteristic, p []byte) (int, error) {
	return c.Write(p)
}
