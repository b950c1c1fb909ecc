package telemetry

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/toio-bridge/internal/infrastructure/mqtt"
)

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates every configured back-end is reachable.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates a back-end check failed. Cubes still work.
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is the retained health document.
// Topic: toio/bridge/<bridge_id>/health
type HealthMessage struct {
	Bridge         string            `json:"bridge"`
	Version        string            `json:"version"`
	Status         HealthStatus      `json:"status"`
	Reason         string            `json:"reason,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
	UptimeSeconds  int64             `json:"uptime_seconds"`
	ConnectedCubes int               `json:"connected_cubes"`
	Checks         map[string]string `json:"checks,omitempty"`
}

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// CubeCounter reports how many cubes are connected.
type CubeCounter interface {
	Count() int
}

// HealthCheck probes one back-end.
type HealthCheck func(ctx context.Context) error

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	BridgeID string
	Version  string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	// Publisher may be nil; Snapshot still works for the status API.
	Publisher HealthPublisher

	Cubes CubeCounter

	// Checks are run on every report, keyed by back-end name.
	Checks map[string]HealthCheck
}

// HealthReporter manages periodic health status reporting.
type HealthReporter struct {
	bridgeID  string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	cubes     CubeCounter
	checks    map[string]HealthCheck

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

const healthCheckTimeout = 3 * time.Second

// NewHealthReporter creates a new health reporter.
//
// Parameters:
//   - cfg: Configuration for the health reporter
//
// Returns:
//   - *HealthReporter: Ready to start (call Start to begin reporting)
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &HealthReporter{
		bridgeID:  cfg.BridgeID,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		cubes:     cfg.Cubes,
		checks:    cfg.Checks,
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting. Call Stop to shut down.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop stops reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		msg := h.message(HealthStopping, "bridge stopping", nil)
		//nolint:errcheck // Best-effort during shutdown
		h.publish(msg)
	})
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publish(h.message(HealthStarting, "bridge starting", nil))
}

// PublishNow evaluates and publishes the current status immediately.
func (h *HealthReporter) PublishNow(ctx context.Context) error {
	return h.publish(h.Snapshot(ctx))
}

// Snapshot evaluates the current status without publishing it.
func (h *HealthReporter) Snapshot(ctx context.Context) HealthMessage {
	results := make(map[string]string, len(h.checks)+1)
	var failed []string

	if h.publisher != nil {
		if h.publisher.IsConnected() {
			results["mqtt"] = "ok"
		} else {
			results["mqtt"] = "disconnected"
			failed = append(failed, "mqtt")
		}
	}
	for name, check := range h.checks {
		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := check(checkCtx)
		cancel()
		if err != nil {
			results[name] = err.Error()
			failed = append(failed, name)
			continue
		}
		results[name] = "ok"
	}

	if len(failed) == 0 {
		return h.message(HealthHealthy, "", results)
	}
	sort.Strings(failed)
	reason := failed[0] + " unavailable"
	if len(failed) > 1 {
		reason = "backends unavailable"
	}
	return h.message(HealthDegraded, reason, results)
}

func (h *HealthReporter) message(status HealthStatus, reason string, checks map[string]string) HealthMessage {
	count := 0
	if h.cubes != nil {
		count = h.cubes.Count()
	}
	return HealthMessage{
		Bridge:         h.bridgeID,
		Version:        h.version,
		Status:         status,
		Reason:         reason,
		Timestamp:      time.Now().UTC(),
		UptimeSeconds:  int64(time.Since(h.startTime).Seconds()),
		ConnectedCubes: count,
		Checks:         checks,
	}
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(ctx); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(ctx); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

func (h *HealthReporter) publish(msg HealthMessage) error {
	if h.publisher == nil {
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return h.publisher.Publish(mqtt.Topics{}.BridgeHealth(h.bridgeID), payload, 1, true)
}

func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
