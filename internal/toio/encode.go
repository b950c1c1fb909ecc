package toio

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Protocol encoding constants.
const (
	// MaxMotorSpeed is the largest speed instruction value per motor.
	MaxMotorSpeed = 115

	// MinTargetSpeed is the smallest max-speed a target move accepts.
	MinTargetSpeed = 10

	// MaxSoundEffect is the highest built-in sound effect id.
	MaxSoundEffect = 10

	// NoteRest is the MIDI note number the cube treats as silence.
	NoteRest = 128

	// maxOperations bounds light scenarios and MIDI sequences.
	maxOperations = 29

	// durationUnit is the resolution of every duration field.
	durationUnit = 10 * time.Millisecond

	// maxDurationUnits is the largest duration byte (2.55 s).
	maxDurationUnits = 255

	// angleMask keeps the 13 angle bits of a target angle word.
	angleMask = 0x1fff

	motorDirForward  = 0x01
	motorDirBackward = 0x02
	motorIDLeft      = 0x01
	motorIDRight     = 0x02
)

// Command type bytes.
const (
	opMotorControl      = 0x01
	opMotorTimed        = 0x02
	opMotorTarget       = 0x03
	opLightOff          = 0x01
	opLightOn           = 0x03
	opLightScenario     = 0x04
	opSoundStop         = 0x01
	opSoundEffect       = 0x02
	opSoundMIDI         = 0x03
	opSensorMotionQuery = 0x81
)

// Color is an RGB indicator colour.
type Color struct {
	R, G, B uint8
}

// LightStep is one step of an indicator scenario.
type LightStep struct {
	Color    Color
	Duration time.Duration
}

// Note is one step of a MIDI sequence.
type Note struct {
	Number   uint8
	Duration time.Duration
	Volume   uint8
}

// MovementType selects the path a target move takes.
type MovementType uint8

// Movement types.
const (
	MoveCurve MovementType = iota
	MoveCurveNoReverse
	MoveLinear
)

// SpeedChange selects the acceleration profile of a target move.
type SpeedChange uint8

// Speed change profiles.
const (
	SpeedConstant SpeedChange = iota
	SpeedAccelerate
	SpeedDecelerate
	SpeedAccelerateDecelerate
)

// Target describes an absolute move on the position mat.
type Target struct {
	X, Y uint16

	// Angle is the final heading in degrees (0-359).
	Angle uint16

	// MaxSpeed is the speed ceiling (MinTargetSpeed..MaxMotorSpeed).
	MaxSpeed uint8

	// Timeout is how long the cube keeps trying before giving up.
	// It is sent in whole seconds; zero lets the cube use its 10 s default.
	Timeout time.Duration

	Movement    MovementType
	SpeedChange SpeedChange
}

// EncodeMotor encodes a motor speed instruction for both wheels.
//
// Parameters:
//   - left, right: Signed speeds in -MaxMotorSpeed..MaxMotorSpeed; negative reverses
//   - duration: Run time; zero runs until the next instruction
//
// Returns:
//   - []byte: Packet for the motor characteristic
//   - error: ErrInvalidArgument when a speed is out of range
func EncodeMotor(left, right int, duration time.Duration) ([]byte, error) {
	ldir, lspeed, err := motorValue(left)
	if err != nil {
		return nil, fmt.Errorf("left motor: %w", err)
	}
	rdir, rspeed, err := motorValue(right)
	if err != nil {
		return nil, fmt.Errorf("right motor: %w", err)
	}

	if duration <= 0 {
		return []byte{opMotorControl, motorIDLeft, ldir, lspeed, motorIDRight, rdir, rspeed}, nil
	}
	return []byte{opMotorTimed, motorIDLeft, ldir, lspeed, motorIDRight, rdir, rspeed, durationUnits(duration)}, nil
}

func motorValue(speed int) (dir, magnitude byte, err error) {
	if speed < -MaxMotorSpeed || speed > MaxMotorSpeed {
		return 0, 0, fmt.Errorf("%w: speed %d outside -%d..%d", ErrInvalidArgument, speed, MaxMotorSpeed, MaxMotorSpeed)
	}
	if speed < 0 {
		return motorDirBackward, byte(-speed), nil
	}
	return motorDirForward, byte(speed), nil
}

// EncodeMotorTarget encodes a "move to target position" instruction.
//
// controlID is echoed back by the cube in its completion response.
func EncodeMotorTarget(controlID uint8, t Target) ([]byte, error) {
	if t.MaxSpeed < MinTargetSpeed || t.MaxSpeed > MaxMotorSpeed {
		return nil, fmt.Errorf("%w: max speed %d outside %d..%d", ErrInvalidArgument, t.MaxSpeed, MinTargetSpeed, MaxMotorSpeed)
	}
	if t.Angle > 359 {
		return nil, fmt.Errorf("%w: angle %d outside 0..359", ErrInvalidArgument, t.Angle)
	}
	if t.Movement > MoveLinear || t.SpeedChange > SpeedAccelerateDecelerate {
		return nil, fmt.Errorf("%w: unknown movement or speed profile", ErrInvalidArgument)
	}

	timeout := (t.Timeout + time.Second - 1) / time.Second
	if timeout > 255 {
		timeout = 255
	}

	b := make([]byte, 13)
	b[0] = opMotorTarget
	b[1] = controlID
	b[2] = byte(timeout)
	b[3] = byte(t.Movement)
	b[4] = t.MaxSpeed
	b[5] = byte(t.SpeedChange)
	// b[6] reserved
	binary.LittleEndian.PutUint16(b[7:], t.X)
	binary.LittleEndian.PutUint16(b[9:], t.Y)
	// Rotation type 0 (absolute, shortest direction) occupies the top 3 bits.
	binary.LittleEndian.PutUint16(b[11:], t.Angle&angleMask)
	return b, nil
}

// EncodeLightOn turns the indicator on with one colour.
// A zero duration keeps it lit until the next light instruction.
func EncodeLightOn(c Color, duration time.Duration) []byte {
	return []byte{opLightOn, durationUnits(duration), 0x01, 0x01, c.R, c.G, c.B}
}

// EncodeLightOff turns the indicator off.
func EncodeLightOff() []byte {
	return []byte{opLightOff}
}

// EncodeLightScenario encodes a sequence of colours the cube plays by itself.
// repeat 0 loops until the next light instruction.
func EncodeLightScenario(steps []LightStep, repeat uint8) ([]byte, error) {
	if len(steps) == 0 || len(steps) > maxOperations {
		return nil, fmt.Errorf("%w: scenario needs 1..%d steps, got %d", ErrInvalidArgument, maxOperations, len(steps))
	}
	b := make([]byte, 0, 3+len(steps)*6)
	b = append(b, opLightScenario, repeat, byte(len(steps)))
	for _, s := range steps {
		b = append(b, durationUnits(s.Duration), 0x01, 0x01, s.Color.R, s.Color.G, s.Color.B)
	}
	return b, nil
}

// EncodeSoundEffect plays one of the built-in sound effects.
func EncodeSoundEffect(id, volume uint8) ([]byte, error) {
	if id > MaxSoundEffect {
		return nil, fmt.Errorf("%w: sound effect %d outside 0..%d", ErrInvalidArgument, id, MaxSoundEffect)
	}
	return []byte{opSoundEffect, id, volume}, nil
}

// EncodeMIDI encodes a note sequence. repeat 0 loops forever.
func EncodeMIDI(notes []Note, repeat uint8) ([]byte, error) {
	if len(notes) == 0 || len(notes) > maxOperations {
		return nil, fmt.Errorf("%w: MIDI sequence needs 1..%d notes, got %d", ErrInvalidArgument, maxOperations, len(notes))
	}
	b := make([]byte, 0, 3+len(notes)*3)
	b = append(b, opSoundMIDI, repeat, byte(len(notes)))
	for _, n := range notes {
		if n.Number > NoteRest {
			return nil, fmt.Errorf("%w: note %d outside 0..%d", ErrInvalidArgument, n.Number, NoteRest)
		}
		d := durationUnits(n.Duration)
		if d == 0 {
			d = 1
		}
		b = append(b, d, n.Number, n.Volume)
	}
	return b, nil
}

// EncodeSoundStop stops any sound playing.
func EncodeSoundStop() []byte {
	return []byte{opSoundStop}
}

// EncodeMotionQuery asks the cube to refresh its motion sensor value.
func EncodeMotionQuery() []byte {
	return []byte{opSensorMotionQuery}
}

// durationUnits converts d to the protocol's 10 ms units, clamped to one byte.
// Non-zero durations shorter than one unit round up to one unit.
func durationUnits(d time.Duration) byte {
	if d <= 0 {
		return 0
	}
	units := (d + durationUnit - 1) / durationUnit
	if units > maxDurationUnits {
		return maxDurationUnits
	}
	return byte(units)
}
