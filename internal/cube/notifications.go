package cube

import (
	"context"
	"time"

	"github.com/nerrad567/toio-bridge/internal/toio"
)

// Topic names a notification stream of a cube.
type Topic string

// Notification topics.
const (
	TopicPosition Topic = "position"
	TopicButton   Topic = "button"
	TopicBattery  Topic = "battery"
)

func (t Topic) characteristic() toio.Characteristic {
	switch t {
	case TopicButton:
		return toio.CharButton
	case TopicBattery:
		return toio.CharBattery
	default:
		return toio.CharIDInformation
	}
}

func (t Topic) valid() bool {
	return t == TopicPosition || t == TopicButton || t == TopicBattery
}

// decode turns a raw notification into the topic's typed payload:
// toio.IDInformation, toio.ButtonState or a battery percentage (int).
func (t Topic) decode(b []byte) (any, error) {
	switch t {
	case TopicButton:
		return toio.DecodeButton(b)
	case TopicBattery:
		return toio.DecodeBattery(b)
	default:
		return toio.DecodeIDInformation(b)
	}
}

// Notification is one decoded value pushed by a cube.
type Notification struct {
	SessionID string    `json:"cube_id"`
	Topic     Topic     `json:"topic"`
	Payload   any       `json:"payload"`
	At        time.Time `json:"at"`
}

// Callback receives notifications. It runs on the BLE stack's goroutine
// and must return quickly.
type Callback func(Notification)

type handlerKey struct {
	sessionID string
	topic     Topic
}

type registration struct {
	callback Callback
	since    time.Time
}

// Register installs callback for (sessionID, topic).
//
// A handler already registered for the pair is uninstalled on the cube
// first, then the new one is installed, so at most one handler per pair
// is ever active.
//
// Returns:
//   - error: *Error of KindNotFound for an unknown session,
//     KindInvalidArgument for an unknown topic, KindDevice when the cube
//     rejects the subscription (the table is then left without an entry)
func (r *Registry) Register(ctx context.Context, sessionID string, topic Topic, callback Callback) error {
	if !topic.valid() {
		return InvalidArgument("unknown notification topic %q", topic)
	}
	if callback == nil {
		return InvalidArgument("callback is required")
	}

	s, ok := r.session(sessionID)
	if !ok {
		return CubeNotFound(sessionID)
	}
	logger, _ := r.hooks()

	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	key := handlerKey{sessionID: sessionID, topic: topic}

	r.mu.RLock()
	live := r.sessions[sessionID] == s && s.state.Is(StateConnected)
	_, replacing := r.handlers[key]
	r.mu.RUnlock()
	if !live {
		return CubeNotFound(sessionID)
	}

	ch := topic.characteristic()
	if replacing {
		if err := s.cube.Unsubscribe(ch); err != nil {
			logger.Warn("removing previous notification handler failed", "cube_id", sessionID, "topic", topic, "error", err)
		}
		r.mu.Lock()
		delete(r.handlers, key)
		r.mu.Unlock()
	}

	if err := s.cube.Subscribe(ch, r.dispatch(sessionID, topic, callback, logger)); err != nil {
		return DeviceError("Failed to register notification handler: "+err.Error(), err)
	}

	r.mu.Lock()
	if r.sessions[sessionID] != s {
		// Disconnected while we were installing.
		r.mu.Unlock()
		_ = s.cube.Unsubscribe(ch) //nolint:errcheck // link is being closed
		return CubeNotFound(sessionID)
	}
	r.handlers[key] = &registration{callback: callback, since: time.Now()}
	r.mu.Unlock()

	logger.Debug("notification handler registered", "cube_id", sessionID, "topic", topic)
	return nil
}

// dispatch adapts a typed callback to the raw notification stream.
func (r *Registry) dispatch(sessionID string, topic Topic, callback Callback, logger Logger) func([]byte) {
	return func(raw []byte) {
		payload, err := topic.decode(raw)
		if err != nil {
			logger.Warn("dropping undecodable notification", "cube_id", sessionID, "topic", topic, "error", err)
			return
		}
		callback(Notification{SessionID: sessionID, Topic: topic, Payload: payload, At: time.Now().UTC()})
	}
}

// Unregister removes the handler for (sessionID, topic).
//
// The table entry is removed even when the cube fails to uninstall the
// handler; that failure is still reported as KindDevice.
//
// Returns:
//   - error: *Error of KindNotRegistered when nothing is registered
func (r *Registry) Unregister(ctx context.Context, sessionID string, topic Topic) error {
	s, ok := r.session(sessionID)
	if !ok {
		return NotRegistered(sessionID)
	}
	logger, _ := r.hooks()

	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	key := handlerKey{sessionID: sessionID, topic: topic}
	r.mu.Lock()
	_, found := r.handlers[key]
	delete(r.handlers, key)
	r.mu.Unlock()
	if !found {
		return NotRegistered(sessionID)
	}

	if err := s.cube.Unsubscribe(topic.characteristic()); err != nil {
		return DeviceError("Failed to unregister notification handler: "+err.Error(), err)
	}

	logger.Debug("notification handler unregistered", "cube_id", sessionID, "topic", topic)
	return nil
}

// Registered reports whether a handler is installed for (sessionID, topic).
func (r *Registry) Registered(sessionID string, topic Topic) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[handlerKey{sessionID: sessionID, topic: topic}]
	return ok
}

func (r *Registry) session(sessionID string) (*session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}
