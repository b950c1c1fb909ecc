package ble

import (
	"context"
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/nerrad567/toio-bridge/internal/toio"
)

// readBufferSize fits the largest cube characteristic value.
const readBufferSize = 32

// gattLink is a toio.Link over a connected tinygo device.
// GATT operations are serialised; the host stacks do not queue them.
// Characteristics are held by pointer: on Linux the notification watcher
// lives in the DeviceCharacteristic value itself.
type gattLink struct {
	mu         sync.Mutex
	chars      map[toio.Characteristic]*bluetooth.DeviceCharacteristic
	disconnect func() error
	closed     bool
}

func (l *gattLink) characteristic(ch toio.Characteristic) (*bluetooth.DeviceCharacteristic, error) {
	if l.closed {
		return nil, ErrLinkClosed
	}
	c, ok := l.chars[ch]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoCharacteristic, ch)
	}
	return c, nil
}

func (l *gattLink) Write(ctx context.Context, ch toio.Characteristic, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	c, err := l.characteristic(ch)
	if err != nil {
		return err
	}
	if ch.WithoutResponse() {
		_, err = c.WriteWithoutResponse(data)
	} else {
		_, err = writeWithResponse(c, data)
	}
	return err
}

func (l *gattLink) Read(ctx context.Context, ch toio.Characteristic) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	c, err := l.characteristic(ch)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, readBufferSize)
	n, err := c.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (l *gattLink) Subscribe(ch toio.Characteristic, fn func([]byte)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, err := l.characteristic(ch)
	if err != nil {
		return err
	}
	return c.EnableNotifications(func(buf []byte) {
		// The stack reuses buf after the callback returns.
		fn(append([]byte(nil), buf...))
	})
}

func (l *gattLink) Unsubscribe(ch toio.Characteristic) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, err := l.characteristic(ch)
	if err != nil {
		return err
	}
	return c.EnableNotifications(nil)
}

func (l *gattLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.disconnect()
}
