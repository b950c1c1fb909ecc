package toio

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// IDKind classifies an ID-information reading.
type IDKind string

// ID-information kinds.
const (
	KindPositionID       IDKind = "position_id"
	KindStandardID       IDKind = "standard_id"
	KindPositionIDMissed IDKind = "position_id_missed"
	KindStandardIDMissed IDKind = "standard_id_missed"
)

// ID-information type bytes.
const (
	idPositionID       = 0x01
	idStandardID       = 0x02
	idPositionIDMissed = 0x03
	idStandardIDMissed = 0x04

	positionIDLen = 13
	standardIDLen = 7
)

// PositionID is a reading taken over a position mat.
type PositionID struct {
	CenterX     uint16 `json:"center_x"`
	CenterY     uint16 `json:"center_y"`
	CenterAngle uint16 `json:"center_angle"`
	SensorX     uint16 `json:"sensor_x"`
	SensorY     uint16 `json:"sensor_y"`
	SensorAngle uint16 `json:"sensor_angle"`
}

// StandardID is a reading taken over a printed card or sticker.
type StandardID struct {
	Value uint32 `json:"value"`
	Angle uint16 `json:"angle"`
}

// IDInformation is the decoded value of the ID-information characteristic.
// Exactly one of Position or Standard is set for the detected kinds;
// both are nil for the missed kinds.
type IDInformation struct {
	Kind     IDKind
	Position *PositionID
	Standard *StandardID
}

// MarshalJSON flattens the reading into {"type": kind, ...fields}.
func (i IDInformation) MarshalJSON() ([]byte, error) {
	switch {
	case i.Position != nil:
		return json.Marshal(struct {
			Type IDKind `json:"type"`
			PositionID
		}{i.Kind, *i.Position})
	case i.Standard != nil:
		return json.Marshal(struct {
			Type IDKind `json:"type"`
			StandardID
		}{i.Kind, *i.Standard})
	default:
		return json.Marshal(struct {
			Type IDKind `json:"type"`
		}{i.Kind})
	}
}

// DecodeIDInformation parses an ID-information read or notification.
func DecodeIDInformation(b []byte) (IDInformation, error) {
	if len(b) == 0 {
		return IDInformation{}, fmt.Errorf("%w: empty id information", ErrMalformedPacket)
	}

	switch b[0] {
	case idPositionID:
		if len(b) < positionIDLen {
			return IDInformation{}, fmt.Errorf("%w: position id needs %d bytes, got %d", ErrMalformedPacket, positionIDLen, len(b))
		}
		return IDInformation{Kind: KindPositionID, Position: &PositionID{
			CenterX:     binary.LittleEndian.Uint16(b[1:]),
			CenterY:     binary.LittleEndian.Uint16(b[3:]),
			CenterAngle: binary.LittleEndian.Uint16(b[5:]),
			SensorX:     binary.LittleEndian.Uint16(b[7:]),
			SensorY:     binary.LittleEndian.Uint16(b[9:]),
			SensorAngle: binary.LittleEndian.Uint16(b[11:]),
		}}, nil
	case idStandardID:
		if len(b) < standardIDLen {
			return IDInformation{}, fmt.Errorf("%w: standard id needs %d bytes, got %d", ErrMalformedPacket, standardIDLen, len(b))
		}
		return IDInformation{Kind: KindStandardID, Standard: &StandardID{
			Value: binary.LittleEndian.Uint32(b[1:]),
			Angle: binary.LittleEndian.Uint16(b[5:]),
		}}, nil
	case idPositionIDMissed:
		return IDInformation{Kind: KindPositionIDMissed}, nil
	case idStandardIDMissed:
		return IDInformation{Kind: KindStandardIDMissed}, nil
	default:
		return IDInformation{}, fmt.Errorf("%w: unknown id information type 0x%02x", ErrMalformedPacket, b[0])
	}
}

// ButtonState is the state of the cube's single button.
type ButtonState string

// Button states.
const (
	ButtonPressed  ButtonState = "pressed"
	ButtonReleased ButtonState = "released"
)

const (
	buttonFunction = 0x01
	buttonDown     = 0x80
)

// DecodeButton parses a button read or notification.
func DecodeButton(b []byte) (ButtonState, error) {
	if len(b) < 2 || b[0] != buttonFunction {
		return "", fmt.Errorf("%w: button packet % x", ErrMalformedPacket, b)
	}
	if b[1] == buttonDown {
		return ButtonPressed, nil
	}
	return ButtonReleased, nil
}

// DecodeBattery parses the battery level percentage.
func DecodeBattery(b []byte) (int, error) {
	if len(b) < 1 || b[0] > 100 {
		return 0, fmt.Errorf("%w: battery packet % x", ErrMalformedPacket, b)
	}
	return int(b[0]), nil
}

// MotionState is the decoded motion-detection sensor value.
type MotionState struct {
	Flat      bool `json:"flat"`
	Collision bool `json:"collision"`
	DoubleTap bool `json:"double_tap"`

	// Posture is 1..6: top, bottom, rear, front, right, left side up.
	Posture int `json:"posture"`

	// Shake is the shake level, 0 when still.
	Shake int `json:"shake"`
}

const (
	motionDetection = 0x01
	motionLen       = 6
)

// DecodeMotion parses a motion-detection sensor packet.
func DecodeMotion(b []byte) (MotionState, error) {
	if len(b) < motionLen-1 || b[0] != motionDetection {
		return MotionState{}, fmt.Errorf("%w: motion packet % x", ErrMalformedPacket, b)
	}
	m := MotionState{
		Flat:      b[1] == 0x01,
		Collision: b[2] == 0x01,
		DoubleTap: b[3] == 0x01,
		Posture:   int(b[4]),
	}
	// Firmware before 2.1.0 omits the shake byte.
	if len(b) >= motionLen {
		m.Shake = int(b[5])
	}
	return m, nil
}
