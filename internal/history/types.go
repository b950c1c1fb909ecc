package history

import "time"

// SessionRecord is one journalled cube session.
type SessionRecord struct {
	ID              int64      `json:"id"`
	SessionID       string     `json:"cube_id"`
	DeviceID        string     `json:"device_id"`
	Name            string     `json:"name"`
	ConnectedAt     time.Time  `json:"connected_at"`
	DisconnectedAt  *time.Time `json:"disconnected_at,omitempty"`
	DisconnectError string     `json:"disconnect_error,omitempty"`
}

// Open reports whether the session had not ended when it was read.
func (s SessionRecord) Open() bool {
	return s.DisconnectedAt == nil
}

// PositionRecord is one journalled ID-information reading.
//
// X and Y are set for position_id readings, Value for standard_id
// readings, Angle for both. The missed kinds carry none of them.
type PositionRecord struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"cube_id"`
	Kind      string    `json:"kind"`
	X         *int      `json:"x,omitempty"`
	Y         *int      `json:"y,omitempty"`
	Angle     *int      `json:"angle,omitempty"`
	Value     *int      `json:"value,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
