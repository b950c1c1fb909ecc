package cube

import (
	"context"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/nerrad567/toio-bridge/internal/toio"
)

// Session link states.
const (
	StateConnected     = "connected"
	StateDisconnecting = "disconnecting"
	StateDisconnected  = "disconnected"
)

const (
	eventClose  = "close"
	eventClosed = "closed"
)

// SessionInfo is a snapshot of one session for observers and the status API.
type SessionInfo struct {
	ID          string    `json:"cube_id"`
	DeviceID    string    `json:"device_id"`
	Name        string    `json:"name"`
	ConnectedAt time.Time `json:"connected_at"`
	State       string    `json:"state"`
}

// session is one live cube connection.
type session struct {
	id          string
	seq         uint64
	deviceID    string
	name        string
	connectedAt time.Time
	cube        *toio.Cube
	state       *fsm.FSM

	// ioMu serialises notification installs and teardown on this cube.
	ioMu sync.Mutex
}

func newSession(id string, seq uint64, adv toio.Advertisement, c *toio.Cube, logger Logger) *session {
	s := &session{
		id:          id,
		seq:         seq,
		deviceID:    adv.Address,
		name:        adv.Name,
		connectedAt: time.Now().UTC(),
		cube:        c,
	}
	s.state = fsm.NewFSM(
		StateConnected,
		fsm.Events{
			{Name: eventClose, Src: []string{StateConnected}, Dst: StateDisconnecting},
			{Name: eventClosed, Src: []string{StateDisconnecting}, Dst: StateDisconnected},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.Debug("cube session state changed", "cube_id", id, "from", e.Src, "to", e.Dst)
			},
		},
	)
	return s
}

// transition moves the session along its lifecycle. The link state must
// follow the teardown even when the caller's ctx is already done, so the
// event ignores its cancellation. The only remaining failure is an
// out-of-order event, which is logged.
func (s *session) transition(ctx context.Context, event string, logger Logger) {
	if err := s.state.Event(context.WithoutCancel(ctx), event); err != nil {
		logger.Warn("cube session transition rejected", "cube_id", s.id, "event", event, "error", err)
	}
}

func (s *session) info() SessionInfo {
	return SessionInfo{
		ID:          s.id,
		DeviceID:    s.deviceID,
		Name:        s.name,
		ConnectedAt: s.connectedAt,
		State:       s.state.Current(),
	}
}
