package cube

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nerrad567/toio-bridge/internal/toio"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Discoverer finds cubes and opens links to them.
type Discoverer interface {
	Scan(ctx context.Context, num int, timeout time.Duration) ([]toio.Advertisement, error)
	Dial(ctx context.Context, address string) (toio.Link, error)
}

// Observer is told about session lifecycle changes. Calls happen outside
// the registry lock and must not block for long.
type Observer interface {
	SessionOpened(info SessionInfo)
	SessionClosed(info SessionInfo, err error)
}

// Options bounds the scan Connect performs to locate a device.
type Options struct {
	ConnectScanNum     int
	ConnectScanTimeout time.Duration

	// Watch lists topics registered on every new session, delivered to
	// OnNotification. Ignored when OnNotification is nil.
	Watch          []Topic
	OnNotification Callback
}

// Default connect scan window.
const (
	DefaultConnectScanNum     = 10
	DefaultConnectScanTimeout = 5 * time.Second

	// DefaultDialTimeout bounds dialing a cube once the scan has found it.
	DefaultDialTimeout = 10 * time.Second
)

// Registry owns every live cube connection and its session identifier.
//
// Session identifiers have the form cube_<n> where n comes from a counter
// that only grows, so an identifier is never reused within a process.
// A discovery identifier maps to at most one session at a time.
//
// The session maps, the notification table and the counter share one
// RWMutex. Scanning, dialing, closing and handler installation happen
// outside it.
//
// All public methods are thread-safe.
type Registry struct {
	discoverer Discoverer
	opts       Options

	mu       sync.RWMutex
	sessions map[string]*session // by session id
	byDevice map[string]string   // discovery id -> session id
	handlers map[handlerKey]*registration
	next     uint64

	connects singleflight.Group

	logger   Logger
	observer Observer
}

// NewRegistry creates an empty registry.
func NewRegistry(d Discoverer, opts Options) *Registry {
	if opts.ConnectScanNum <= 0 {
		opts.ConnectScanNum = DefaultConnectScanNum
	}
	if opts.ConnectScanTimeout <= 0 {
		opts.ConnectScanTimeout = DefaultConnectScanTimeout
	}
	return &Registry{
		discoverer: d,
		opts:       opts,
		sessions:   make(map[string]*session),
		byDevice:   make(map[string]string),
		handlers:   make(map[handlerKey]*registration),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// SetObserver sets the session lifecycle observer.
func (r *Registry) SetObserver(o Observer) {
	r.mu.Lock()
	r.observer = o
	r.mu.Unlock()
}

func (r *Registry) hooks() (Logger, Observer) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.logger, r.observer
}

// Scan reports cubes currently advertising.
//
// Parameters:
//   - ctx: Cancels the scan
//   - num: Stop after this many distinct cubes
//   - timeout: Maximum scan duration
//
// Returns:
//   - []toio.Advertisement: Cubes found, possibly fewer than num
//   - error: *Error of KindDiscoveryTimeout or KindDevice
func (r *Registry) Scan(ctx context.Context, num int, timeout time.Duration) ([]toio.Advertisement, error) {
	if num < 1 {
		return nil, InvalidArgument("num must be at least 1, got %d", num)
	}
	if timeout <= 0 {
		return nil, InvalidArgument("timeout must be positive")
	}

	found, err := r.discoverer.Scan(ctx, num, timeout)
	if err != nil {
		return nil, classifyScanError(err)
	}
	return found, nil
}

func classifyScanError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindDiscoveryTimeout, Message: "Discovery timed out", Err: err}
	}
	return DeviceError(fmt.Sprintf("Discovery failed: %v", err), err)
}

// Connect returns the session for deviceID, opening one if needed.
//
// An already-connected device returns its existing session without any
// device I/O. Otherwise the registry scans for the device, dials it and
// assigns the next session identifier. Concurrent calls for the same
// device share one scan and one dial and all receive the same identifier.
// A caller whose ctx ends stops waiting; the shared attempt carries on for
// the others, bounded by the scan window and DefaultDialTimeout.
//
// Returns:
//   - string: Session identifier (cube_<n>)
//   - error: *Error of KindNotFound when no scan reports the device,
//     KindDiscoveryTimeout or KindDevice otherwise
func (r *Registry) Connect(ctx context.Context, deviceID string) (string, error) {
	if deviceID == "" {
		return "", InvalidArgument("device_id is required")
	}
	if id, ok := r.lookupDevice(deviceID); ok {
		return id, nil
	}

	// The flight runs detached from any one caller, so a caller giving up
	// does not fail the others waiting on the same device.
	flight := r.connects.DoChan(deviceID, func() (any, error) {
		// A previous flight may have finished between the lookup and DoChan.
		if id, ok := r.lookupDevice(deviceID); ok {
			return id, nil
		}
		openCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.ConnectScanTimeout+time.Second+DefaultDialTimeout)
		defer cancel()
		return r.open(openCtx, deviceID)
	})

	select {
	case res := <-flight:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", DeviceError(fmt.Sprintf("Connecting to device %s abandoned: %v", deviceID, ctx.Err()), ctx.Err())
	}
}

func (r *Registry) lookupDevice(deviceID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byDevice[deviceID]
	return id, ok
}

// open scans for, dials and registers deviceID. Called inside the
// per-device singleflight.
func (r *Registry) open(ctx context.Context, deviceID string) (string, error) {
	logger, observer := r.hooks()

	scanCtx, cancel := context.WithTimeout(ctx, r.opts.ConnectScanTimeout+time.Second)
	adverts, err := r.discoverer.Scan(scanCtx, r.opts.ConnectScanNum, r.opts.ConnectScanTimeout)
	cancel()
	if err != nil {
		logger.Warn("connect scan failed", "device_id", deviceID, "error", err)
		return "", classifyScanError(err)
	}

	var adv *toio.Advertisement
	for i := range adverts {
		if adverts[i].Address == deviceID {
			adv = &adverts[i]
			break
		}
	}
	if adv == nil {
		return "", DeviceNotFound(deviceID)
	}

	link, err := r.discoverer.Dial(ctx, deviceID)
	if err != nil {
		logger.Warn("connecting cube failed", "device_id", deviceID, "error", err)
		return "", DeviceError(fmt.Sprintf("Failed to connect to device %s: %v", deviceID, err), err)
	}

	r.mu.Lock()
	r.next++
	seq := r.next
	id := fmt.Sprintf("cube_%d", seq)
	s := newSession(id, seq, *adv, toio.NewCube(link), r.logger)
	r.sessions[id] = s
	r.byDevice[deviceID] = id
	r.mu.Unlock()

	logger.Info("cube connected", "cube_id", id, "device_id", deviceID, "name", adv.Name)
	if observer != nil {
		observer.SessionOpened(s.info())
	}
	r.watch(ctx, id, logger)
	return id, nil
}

// watch registers the configured topics on a new session. A failure is
// logged and leaves the session connected.
func (r *Registry) watch(ctx context.Context, id string, logger Logger) {
	if r.opts.OnNotification == nil {
		return
	}
	for _, topic := range r.opts.Watch {
		if err := r.Register(ctx, id, topic, r.opts.OnNotification); err != nil {
			logger.Warn("watching cube notifications failed", "cube_id", id, "topic", topic, "error", err)
		}
	}
}

// Disconnect closes the session and forgets it.
//
// The session disappears from Get and List before the link is closed, so
// no caller can obtain a handle that is being torn down. Every
// notification handler of the session is removed as well.
//
// Returns true when the session existed and its link closed cleanly;
// false for an unknown identifier or a failed close (which is logged).
func (r *Registry) Disconnect(ctx context.Context, sessionID string) bool {
	found, err := r.disconnect(ctx, sessionID)
	return found && err == nil
}

func (r *Registry) disconnect(ctx context.Context, sessionID string) (bool, error) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return false, nil
	}
	delete(r.sessions, sessionID)
	delete(r.byDevice, s.deviceID)
	var topics []Topic
	for key := range r.handlers {
		if key.sessionID == sessionID {
			topics = append(topics, key.topic)
			delete(r.handlers, key)
		}
	}
	logger, observer := r.logger, r.observer
	r.mu.Unlock()

	s.transition(ctx, eventClose, logger)

	s.ioMu.Lock()
	for _, topic := range topics {
		if err := s.cube.Unsubscribe(topic.characteristic()); err != nil {
			logger.Warn("removing notification handler failed", "cube_id", sessionID, "topic", topic, "error", err)
		}
	}
	err := s.cube.Close()
	s.ioMu.Unlock()

	s.transition(ctx, eventClosed, logger)

	if err != nil {
		logger.Error("closing cube link failed", "cube_id", sessionID, "device_id", s.deviceID, "error", err)
	} else {
		logger.Info("cube disconnected", "cube_id", sessionID, "device_id", s.deviceID)
	}
	if observer != nil {
		observer.SessionClosed(s.info(), err)
	}
	return true, err
}

// DisconnectAll disconnects every session, one at a time. A failure on
// one session does not stop the others. The registry is empty afterwards
// and the returned error joins every close failure.
func (r *Registry) DisconnectAll(ctx context.Context) error {
	var errs []error
	for _, id := range r.List() {
		if _, err := r.disconnect(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Get returns the cube for a session identifier.
func (r *Registry) Get(sessionID string) (*toio.Cube, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return s.cube, true
}

// List returns the identifiers of all live sessions in connect order.
func (r *Registry) List() []string {
	infos := r.snapshot()
	ids := make([]string, len(infos))
	for i, s := range infos {
		ids[i] = s.id
	}
	return ids
}

// Sessions returns a snapshot of all live sessions in connect order.
func (r *Registry) Sessions() []SessionInfo {
	infos := r.snapshot()
	out := make([]SessionInfo, len(infos))
	for i, s := range infos {
		out[i] = s.info()
	}
	return out
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) snapshot() []*session {
	r.mu.RLock()
	out := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}
