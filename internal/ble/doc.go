// Package ble connects the bridge to toio cubes over Bluetooth Low Energy.
//
// Adapter uses the host stack through tinygo.org/x/bluetooth (BlueZ on
// Linux, CoreBluetooth on macOS, WinRT on Windows). Scan filters
// advertisements on the toio service UUID; Dial connects, resolves the
// cube characteristics and returns a toio.Link.
//
// Simulator serves virtual cubes with the same Scan/Dial surface. It
// backs "ble.adapter: simulator" and the tests of the layers above.
package ble
