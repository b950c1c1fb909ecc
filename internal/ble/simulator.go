package ble

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/toio-bridge/internal/toio"
)

// Simulator is an in-memory stand-in for the host adapter. It serves
// virtual cubes so the bridge can run without Bluetooth hardware
// (ble.adapter: simulator) and so higher layers can be tested.
type Simulator struct {
	mu        sync.Mutex
	cubes     []*SimCube
	scans     int
	dials     int
	dialDelay time.Duration
	scanErr   error
}

// NewSimulator creates a simulator advertising the given cubes.
func NewSimulator(cubes ...*SimCube) *Simulator {
	return &Simulator{cubes: cubes}
}

// Add makes another cube visible to later scans.
func (s *Simulator) Add(c *SimCube) {
	s.mu.Lock()
	s.cubes = append(s.cubes, c)
	s.mu.Unlock()
}

// SetDialDelay slows every Dial down, to widen race windows in tests.
func (s *Simulator) SetDialDelay(d time.Duration) {
	s.mu.Lock()
	s.dialDelay = d
	s.mu.Unlock()
}

// SetScanError makes every Scan fail with err (nil restores scanning).
func (s *Simulator) SetScanError(err error) {
	s.mu.Lock()
	s.scanErr = err
	s.mu.Unlock()
}

// Scans returns how many scans have been performed.
func (s *Simulator) Scans() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scans
}

// Dials returns how many connections have been opened.
func (s *Simulator) Dials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

// Scan reports up to num advertising cubes. It never waits for timeout
// because every virtual cube is visible immediately.
func (s *Simulator) Scan(ctx context.Context, num int, _ time.Duration) ([]toio.Advertisement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans++
	if s.scanErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanFailed, s.scanErr)
	}

	var out []toio.Advertisement
	for _, c := range s.cubes {
		if len(out) == num {
			break
		}
		out = append(out, c.advertisement())
	}
	return out, nil
}

// Dial opens a link to the cube with the given address.
func (s *Simulator) Dial(ctx context.Context, address string) (toio.Link, error) {
	s.mu.Lock()
	delay := s.dialDelay
	var target *SimCube
	for _, c := range s.cubes {
		if c.Address == address {
			target = c
			break
		}
	}
	s.dials++
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAddress, address)
	}

	target.mu.Lock()
	target.connected = true
	target.mu.Unlock()
	return &simLink{cube: target}, nil
}

// SimWrite is one packet a virtual cube received.
type SimWrite struct {
	Char toio.Characteristic
	Data []byte
}

// SimCube is a virtual toio Core Cube.
type SimCube struct {
	Address string
	Name    string
	RSSI    int

	mu        sync.Mutex
	values    map[toio.Characteristic][]byte
	handlers  map[toio.Characteristic]func([]byte)
	writes    []SimWrite
	connected bool
	closeErr  error
	ioErr     error
}

// NewSimCube creates a virtual cube that is off the mat, released,
// still and at 90% battery.
func NewSimCube(address, name string, rssi int) *SimCube {
	return &SimCube{
		Address: address,
		Name:    name,
		RSSI:    rssi,
		values: map[toio.Characteristic][]byte{
			toio.CharIDInformation: {0x03},
			toio.CharButton:        {0x01, 0x00},
			toio.CharBattery:       {90},
			toio.CharSensor:        {0x01, 0x01, 0x00, 0x00, 0x01, 0x00},
		},
		handlers: make(map[toio.Characteristic]func([]byte)),
	}
}

func (c *SimCube) advertisement() toio.Advertisement {
	return toio.Advertisement{Address: c.Address, Name: c.Name, RSSI: c.RSSI}
}

// SetValue sets the raw value a read of ch returns.
func (c *SimCube) SetValue(ch toio.Characteristic, data []byte) {
	c.mu.Lock()
	c.values[ch] = append([]byte(nil), data...)
	c.mu.Unlock()
}

// SetCloseError makes closing the link fail with err.
func (c *SimCube) SetCloseError(err error) {
	c.mu.Lock()
	c.closeErr = err
	c.mu.Unlock()
}

// SetIOError makes every read, write and (un)subscribe fail with err.
func (c *SimCube) SetIOError(err error) {
	c.mu.Lock()
	c.ioErr = err
	c.mu.Unlock()
}

// Notify delivers data to the handler subscribed on ch.
// It reports whether a handler was installed.
func (c *SimCube) Notify(ch toio.Characteristic, data []byte) bool {
	c.mu.Lock()
	fn := c.handlers[ch]
	c.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(append([]byte(nil), data...))
	return true
}

// Subscribed reports whether a notification handler is installed on ch.
func (c *SimCube) Subscribed(ch toio.Characteristic) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handlers[ch] != nil
}

// Connected reports whether a link to the cube is open.
func (c *SimCube) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Writes returns every packet received so far.
func (c *SimCube) Writes() []SimWrite {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]SimWrite(nil), c.writes...)
}

// LastWrite returns the most recent packet written to ch, or nil.
func (c *SimCube) LastWrite(ch toio.Characteristic) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.writes) - 1; i >= 0; i-- {
		if c.writes[i].Char == ch {
			return c.writes[i].Data
		}
	}
	return nil
}

type simLink struct {
	cube *SimCube
}

func (l *simLink) guard() error {
	if !l.cube.connected {
		return ErrLinkClosed
	}
	return l.cube.ioErr
}

func (l *simLink) Write(ctx context.Context, ch toio.Characteristic, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := l.cube
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := l.guard(); err != nil {
		return err
	}
	c.writes = append(c.writes, SimWrite{Char: ch, Data: append([]byte(nil), data...)})
	return nil
}

func (l *simLink) Read(ctx context.Context, ch toio.Characteristic) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := l.cube
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := l.guard(); err != nil {
		return nil, err
	}
	v, ok := c.values[ch]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoCharacteristic, ch)
	}
	return append([]byte(nil), v...), nil
}

func (l *simLink) Subscribe(ch toio.Characteristic, fn func([]byte)) error {
	c := l.cube
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := l.guard(); err != nil {
		return err
	}
	c.handlers[ch] = fn
	return nil
}

func (l *simLink) Unsubscribe(ch toio.Characteristic) error {
	c := l.cube
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := l.guard(); err != nil {
		return err
	}
	delete(c.handlers, ch)
	return nil
}

func (l *simLink) Close() error {
	c := l.cube
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	clear(c.handlers)
	return c.closeErr
}
