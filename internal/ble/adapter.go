package ble

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/nerrad567/toio-bridge/internal/toio"
)

var serviceUUID = must(bluetooth.ParseUUID(toio.ServiceUUID))

// characteristicUUIDs maps parsed UUIDs back to protocol characteristics.
var characteristicUUIDs = func() map[bluetooth.UUID]toio.Characteristic {
	m := make(map[bluetooth.UUID]toio.Characteristic)
	for _, ch := range toio.Characteristics() {
		m[must(bluetooth.ParseUUID(ch.UUID()))] = ch
	}
	return m
}()

// Adapter discovers and connects toio cubes through the host Bluetooth stack.
//
// Only one scan runs at a time; the host controller does not support
// overlapping scans.
type Adapter struct {
	adapter *bluetooth.Adapter
	logger  Logger

	enableOnce sync.Once
	enableErr  error

	scanMu sync.Mutex

	// seen remembers advertised addresses so Dial can connect by string id.
	mu   sync.Mutex
	seen map[string]bluetooth.Address
}

// Logger interface for optional logging support.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// NewAdapter wraps the default host adapter. The adapter is enabled on
// first use.
func NewAdapter(logger Logger) *Adapter {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Adapter{
		adapter: bluetooth.DefaultAdapter,
		logger:  logger,
		seen:    make(map[string]bluetooth.Address),
	}
}

func (a *Adapter) enable() error {
	a.enableOnce.Do(func() {
		if err := a.adapter.Enable(); err != nil {
			a.enableErr = fmt.Errorf("%w: %w", ErrAdapterUnavailable, err)
		}
	})
	return a.enableErr
}

// Scan listens for toio advertisements until num distinct cubes are seen,
// timeout elapses, or ctx ends. Reaching the timeout is not an error.
//
// Parameters:
//   - ctx: Cancels the scan early
//   - num: Number of distinct cubes to wait for
//   - timeout: Maximum scan duration
//
// Returns:
//   - []toio.Advertisement: Cubes seen, in discovery order
//   - error: Adapter failures or ctx.Err() on cancellation
func (a *Adapter) Scan(ctx context.Context, num int, timeout time.Duration) ([]toio.Advertisement, error) {
	if err := a.enable(); err != nil {
		return nil, err
	}

	a.scanMu.Lock()
	defer a.scanMu.Unlock()

	var (
		mu      sync.Mutex
		found   []toio.Advertisement
		indexed = make(map[string]bool)
		full    = make(chan struct{})
	)

	done := make(chan error, 1)
	go func() {
		done <- a.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !result.HasServiceUUID(serviceUUID) {
				return
			}
			addr := result.Address.String()

			mu.Lock()
			defer mu.Unlock()
			if indexed[addr] || len(found) >= num {
				return
			}
			indexed[addr] = true
			found = append(found, toio.Advertisement{
				Address: addr,
				Name:    result.LocalName(),
				RSSI:    int(result.RSSI),
			})
			a.remember(addr, result.Address)
			if len(found) == num {
				close(full)
			}
		})
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var scanErr error
	select {
	case err := <-done:
		// Scan only returns on its own when the stack aborts it.
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanFailed, err)
		}
		return nil, ErrScanFailed
	case <-full:
	case <-timer.C:
	case <-ctx.Done():
		scanErr = ctx.Err()
	}

	if err := a.adapter.StopScan(); err != nil {
		a.logger.Warn("stopping scan failed", "error", err)
	}
	<-done

	if scanErr != nil {
		return nil, scanErr
	}

	mu.Lock()
	defer mu.Unlock()
	a.logger.Debug("scan finished", "found", len(found), "wanted", num)
	return append([]toio.Advertisement(nil), found...), nil
}

func (a *Adapter) remember(addr string, address bluetooth.Address) {
	a.mu.Lock()
	a.seen[addr] = address
	a.mu.Unlock()
}

// Dial connects to a cube seen by an earlier Scan and resolves all
// cube characteristics.
func (a *Adapter) Dial(ctx context.Context, address string) (toio.Link, error) {
	if err := a.enable(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	addr, ok := a.seen[address]
	a.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAddress, address)
	}

	dev, err := a.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	services, err := dev.DiscoverServices([]bluetooth.UUID{serviceUUID})
	if err != nil || len(services) == 0 {
		dev.Disconnect() //nolint:errcheck // best effort on error path
		return nil, fmt.Errorf("%w: toio service not found: %v", ErrConnectFailed, err)
	}

	chars, err := services[0].DiscoverCharacteristics(nil)
	if err != nil {
		dev.Disconnect() //nolint:errcheck // best effort on error path
		return nil, fmt.Errorf("%w: discovering characteristics: %w", ErrConnectFailed, err)
	}

	link := &gattLink{
		chars:      make(map[toio.Characteristic]*bluetooth.DeviceCharacteristic, len(chars)),
		disconnect: dev.Disconnect,
	}
	for i := range chars {
		if ch, ok := characteristicUUIDs[chars[i].UUID()]; ok {
			link.chars[ch] = &chars[i]
		}
	}
	for _, ch := range []toio.Characteristic{toio.CharIDInformation, toio.CharMotor, toio.CharLight} {
		if _, ok := link.chars[ch]; !ok {
			dev.Disconnect() //nolint:errcheck // best effort on error path
			return nil, fmt.Errorf("%w: characteristic %s missing", ErrConnectFailed, ch)
		}
	}

	return link, nil
}

func must[T any](value T, err error) T {
	if err != nil {
		panic(err)
	}
	return value
}
