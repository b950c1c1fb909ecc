package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/toio-bridge/internal/infrastructure/config"
)

// Client is a publish-only MQTT connection for bridge telemetry.
//
// It announces the bridge as online on every (re)connect, registers a
// Last Will so the broker marks the bridge offline on a crash, and
// publishes a graceful offline status on Close.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client   pahomqtt.Client
	cfg      config.MQTTConfig
	bridgeID string

	mu        sync.RWMutex
	connected bool
	logger    Logger
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Connect establishes a connection to the MQTT broker.
//
// Parameters:
//   - ctx: Bounds the initial connection attempt
//   - cfg: MQTT configuration from config.yaml
//   - bridgeID: Identifies this bridge in status topics and payloads
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: If initial connection fails within timeout
func Connect(ctx context.Context, cfg config.MQTTConfig, bridgeID string) (*Client, error) {
	c := &Client{cfg: cfg, bridgeID: bridgeID}

	opts := buildClientOptions(cfg)
	configureLWT(opts, bridgeID)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleConnectionLost(err) })

	c.client = pahomqtt.NewClient(opts)
	if err := wait(ctx, c.client.Connect(), defaultConnectTimeout); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect callback is asynchronous; mark connected now so the
	// first Publish after Connect does not race it.
	c.setConnected(true)
	return c, nil
}

// newWithClient wraps an existing paho client. Used by tests.
func newWithClient(client pahomqtt.Client, cfg config.MQTTConfig, bridgeID string) *Client {
	return &Client{client: client, cfg: cfg, bridgeID: bridgeID, connected: client.IsConnected()}
}

func (c *Client) handleConnect() {
	c.setConnected(true)
	token := c.client.Publish(Topics{}.BridgeStatus(c.bridgeID), byte(c.cfg.QoS), true, buildOnlinePayload(c.bridgeID))
	go func() {
		if token.WaitTimeout(defaultPublishTimeout) && token.Error() != nil {
			c.logWarn("publishing online status failed", "error", token.Error())
		}
	}()
}

func (c *Client) handleConnectionLost(err error) {
	c.setConnected(false)
	c.logWarn("mqtt connection lost", "error", err)
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

// Close publishes a graceful offline status and disconnects.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.client.Publish(Topics{}.BridgeStatus(c.bridgeID), byte(c.cfg.QoS), true, buildOfflinePayload(c.bridgeID))
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)
	c.setConnected(false)
	return nil
}

// HealthCheck reports whether the broker connection is up.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// QoS returns the configured default QoS level.
func (c *Client) QoS() byte {
	return byte(c.cfg.QoS)
}

// SetLogger sets a logger for connection warnings.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) logWarn(msg string, args ...any) {
	c.mu.RLock()
	logger := c.logger
	c.mu.RUnlock()
	if logger != nil {
		logger.Warn(msg, args...)
	}
}

// wait blocks until the token completes, the timeout elapses or ctx ends.
func wait(ctx context.Context, token pahomqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
