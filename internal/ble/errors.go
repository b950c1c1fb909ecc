package ble

import "errors"

// Domain-specific errors for BLE operations.
var (
	// ErrAdapterUnavailable is returned when the host adapter cannot be enabled.
	ErrAdapterUnavailable = errors.New("ble: adapter unavailable")

	// ErrScanFailed is returned when the host stack aborts a scan.
	ErrScanFailed = errors.New("ble: scan failed")

	// ErrUnknownAddress is returned when dialing an address no scan reported.
	ErrUnknownAddress = errors.New("ble: address not seen in any scan")

	// ErrConnectFailed is returned when connecting or service discovery fails.
	ErrConnectFailed = errors.New("ble: connect failed")

	// ErrNoCharacteristic is returned for a characteristic the cube lacks.
	ErrNoCharacteristic = errors.New("ble: characteristic not available")

	// ErrLinkClosed is returned when using a closed link.
	ErrLinkClosed = errors.New("ble: link closed")
)
