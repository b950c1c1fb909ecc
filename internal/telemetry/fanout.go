package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/toio-bridge/internal/cube"
)

const (
	// DefaultQueueSize bounds the deliveries waiting for the worker.
	DefaultQueueSize = 256

	// sinkTimeout bounds one sink call.
	sinkTimeout = 2 * time.Second
)

type delivery struct {
	notification *cube.Notification
	session      *SessionEvent
}

// Fanout delivers every event to every sink from a single worker.
// A failing or slow sink delays the others but never stops them.
type Fanout struct {
	sinks  []Sink
	queue  chan delivery
	logger Logger

	dropped atomic.Uint64

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewFanout creates a fan-out with the given queue size (DefaultQueueSize
// when size is not positive). Call Start before events arrive.
func NewFanout(size int, sinks ...Sink) *Fanout {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Fanout{
		sinks:  sinks,
		queue:  make(chan delivery, size),
		logger: noopLogger{},
		done:   make(chan struct{}),
	}
}

// SetLogger sets the logger. Call before Start.
func (f *Fanout) SetLogger(logger Logger) {
	f.logger = logger
}

// Add appends a sink. Call before Start.
func (f *Fanout) Add(s Sink) {
	f.sinks = append(f.sinks, s)
}

// Sinks returns the names of the configured sinks.
func (f *Fanout) Sinks() []string {
	names := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		names[i] = s.Name()
	}
	return names
}

// Start launches the delivery worker. Later calls do nothing.
func (f *Fanout) Start(ctx context.Context) {
	f.startOnce.Do(func() {
		f.wg.Add(1)
		go f.run(context.WithoutCancel(ctx))
	})
}

// Stop delivers what is already queued and stops the worker.
// Safe to call multiple times.
func (f *Fanout) Stop() {
	f.stopOnce.Do(func() {
		close(f.done)
		f.wg.Wait()
	})
}

// Dropped returns how many notifications were discarded on a full queue.
func (f *Fanout) Dropped() uint64 {
	return f.dropped.Load()
}

// Notify queues a notification. It never blocks; the notification is
// dropped when the queue is full. Its signature matches cube.Callback.
func (f *Fanout) Notify(n cube.Notification) {
	select {
	case <-f.done:
		return
	default:
	}
	select {
	case f.queue <- delivery{notification: &n}:
	default:
		if f.dropped.Add(1) == 1 {
			f.logger.Warn("telemetry queue full, dropping notifications", "cube_id", n.SessionID)
		}
	}
}

// SessionOpened implements cube.Observer.
func (f *Fanout) SessionOpened(info cube.SessionInfo) {
	f.enqueueSession(SessionEvent{Type: SessionConnected, Session: info, At: time.Now().UTC()})
}

// SessionClosed implements cube.Observer.
func (f *Fanout) SessionClosed(info cube.SessionInfo, err error) {
	ev := SessionEvent{Type: SessionDisconnected, Session: info, At: time.Now().UTC()}
	if err != nil {
		ev.Error = err.Error()
	}
	f.enqueueSession(ev)
}

// enqueueSession waits for room; session events are not dropped.
func (f *Fanout) enqueueSession(ev SessionEvent) {
	select {
	case <-f.done:
		f.logger.Warn("session event after telemetry stop", "cube_id", ev.Session.ID, "type", ev.Type, "error", ErrStopped)
		return
	default:
	}
	select {
	case f.queue <- delivery{session: &ev}:
	case <-f.done:
		f.logger.Warn("session event after telemetry stop", "cube_id", ev.Session.ID, "type", ev.Type, "error", ErrStopped)
	}
}

func (f *Fanout) run(ctx context.Context) {
	defer f.wg.Done()
	for {
		select {
		case d := <-f.queue:
			f.deliver(ctx, d)
		case <-f.done:
			f.drain(ctx)
			return
		}
	}
}

func (f *Fanout) drain(ctx context.Context) {
	for {
		select {
		case d := <-f.queue:
			f.deliver(ctx, d)
		default:
			return
		}
	}
}

func (f *Fanout) deliver(ctx context.Context, d delivery) {
	for _, s := range f.sinks {
		callCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
		var err error
		switch {
		case d.notification != nil:
			err = s.Notification(callCtx, *d.notification)
		case d.session != nil:
			err = s.Session(callCtx, *d.session)
		}
		cancel()
		if err != nil {
			f.logger.Warn("telemetry sink failed", "sink", s.Name(), "error", err)
		}
	}
}
