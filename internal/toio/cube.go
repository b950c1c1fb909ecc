package toio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Advertisement is one cube seen during a discovery scan.
type Advertisement struct {
	// Address is the BLE hardware address; it is the discovery identifier.
	Address string `json:"device_id"`
	Name    string `json:"name"`
	RSSI    int    `json:"rssi"`
}

// Link is a GATT connection to one cube.
//
// Implementations must be safe for concurrent use; the cube issues
// requests from tool calls and notification callbacks at the same time.
type Link interface {
	// Write sends data to a characteristic.
	Write(ctx context.Context, ch Characteristic, data []byte) error

	// Read returns the current value of a characteristic.
	Read(ctx context.Context, ch Characteristic) ([]byte, error)

	// Subscribe installs fn as the notification handler for ch,
	// replacing any previous handler.
	Subscribe(ch Characteristic, fn func([]byte)) error

	// Unsubscribe removes the notification handler for ch.
	Unsubscribe(ch Characteristic) error

	// Close terminates the connection.
	Close() error
}

// Cube is a connected toio Core Cube.
//
// It turns typed commands into protocol packets and sends them over its
// Link. It holds no session state of its own.
type Cube struct {
	link      Link
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	controlID atomic.Uint32
}

// NewCube wraps an established link.
func NewCube(link Link) *Cube {
	return &Cube{link: link}
}

func (c *Cube) write(ctx context.Context, ch Characteristic, data []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := c.link.Write(ctx, ch, data); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrLinkFailure, ch, err)
	}
	return nil
}

func (c *Cube) read(ctx context.Context, ch Characteristic) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	b, err := c.link.Read(ctx, ch)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrLinkFailure, ch, err)
	}
	return b, nil
}

// Drive sets both wheel speeds. A zero duration runs until the next
// motor instruction.
func (c *Cube) Drive(ctx context.Context, left, right int, duration time.Duration) error {
	pkt, err := EncodeMotor(left, right, duration)
	if err != nil {
		return err
	}
	return c.write(ctx, CharMotor, pkt)
}

// Stop halts both motors.
func (c *Cube) Stop(ctx context.Context) error {
	return c.Drive(ctx, 0, 0, 0)
}

// MoveTo starts an autonomous move to a mat coordinate. The call returns
// once the instruction is accepted, not when the cube arrives.
func (c *Cube) MoveTo(ctx context.Context, t Target) error {
	id := uint8(c.controlID.Add(1))
	pkt, err := EncodeMotorTarget(id, t)
	if err != nil {
		return err
	}
	return c.write(ctx, CharMotor, pkt)
}

// SetIndicator lights the indicator LED.
func (c *Cube) SetIndicator(ctx context.Context, color Color, duration time.Duration) error {
	return c.write(ctx, CharLight, EncodeLightOn(color, duration))
}

// IndicatorOff turns the indicator LED off.
func (c *Cube) IndicatorOff(ctx context.Context) error {
	return c.write(ctx, CharLight, EncodeLightOff())
}

// PlayLightScenario hands a colour sequence to the cube to play itself.
func (c *Cube) PlayLightScenario(ctx context.Context, steps []LightStep, repeat uint8) error {
	pkt, err := EncodeLightScenario(steps, repeat)
	if err != nil {
		return err
	}
	return c.write(ctx, CharLight, pkt)
}

// PlaySoundEffect plays a built-in sound effect.
func (c *Cube) PlaySoundEffect(ctx context.Context, id, volume uint8) error {
	pkt, err := EncodeSoundEffect(id, volume)
	if err != nil {
		return err
	}
	return c.write(ctx, CharSound, pkt)
}

// PlayMIDI plays a note sequence.
func (c *Cube) PlayMIDI(ctx context.Context, notes []Note, repeat uint8) error {
	pkt, err := EncodeMIDI(notes, repeat)
	if err != nil {
		return err
	}
	return c.write(ctx, CharSound, pkt)
}

// StopSound stops any sound playing.
func (c *Cube) StopSound(ctx context.Context) error {
	return c.write(ctx, CharSound, EncodeSoundStop())
}

// Position reads the ID-information characteristic.
func (c *Cube) Position(ctx context.Context) (IDInformation, error) {
	b, err := c.read(ctx, CharIDInformation)
	if err != nil {
		return IDInformation{}, err
	}
	return DecodeIDInformation(b)
}

// Button reads the button state.
func (c *Cube) Button(ctx context.Context) (ButtonState, error) {
	b, err := c.read(ctx, CharButton)
	if err != nil {
		return "", err
	}
	return DecodeButton(b)
}

// Battery reads the battery level in percent.
func (c *Cube) Battery(ctx context.Context) (int, error) {
	b, err := c.read(ctx, CharBattery)
	if err != nil {
		return 0, err
	}
	return DecodeBattery(b)
}

// Motion requests a fresh motion-sensor value and reads it.
func (c *Cube) Motion(ctx context.Context) (MotionState, error) {
	if err := c.write(ctx, CharSensor, EncodeMotionQuery()); err != nil {
		return MotionState{}, err
	}
	b, err := c.read(ctx, CharSensor)
	if err != nil {
		return MotionState{}, err
	}
	return DecodeMotion(b)
}

// Subscribe installs a raw notification handler on ch.
func (c *Cube) Subscribe(ch Characteristic, fn func([]byte)) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := c.link.Subscribe(ch, fn); err != nil {
		return fmt.Errorf("%w: subscribe %s: %w", ErrLinkFailure, ch, err)
	}
	return nil
}

// Unsubscribe removes the notification handler on ch.
func (c *Cube) Unsubscribe(ch Characteristic) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := c.link.Unsubscribe(ch); err != nil {
		return fmt.Errorf("%w: unsubscribe %s: %w", ErrLinkFailure, ch, err)
	}
	return nil
}

// Close terminates the link. Later calls return the first result.
func (c *Cube) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if err := c.link.Close(); err != nil {
			c.closeErr = fmt.Errorf("%w: close: %w", ErrLinkFailure, err)
		}
	})
	return c.closeErr
}
