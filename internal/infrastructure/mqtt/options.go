package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/toio-bridge/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is in milliseconds, as paho expects.
	defaultDisconnectQuiesce = 500

	defaultKeepAlive = 60 * time.Second
	maxQoS           = 2

	// maxPayloadSize caps a single telemetry message.
	maxPayloadSize = 256 << 10
)

// buildClientOptions creates paho options from the bridge config.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	return opts
}

// configureLWT makes the broker publish an offline status for this bridge
// if the connection drops without a graceful Close.
func configureLWT(opts *pahomqtt.ClientOptions, bridgeID string) {
	opts.SetWill(Topics{}.BridgeStatus(bridgeID), string(statusPayload(bridgeID, "offline", "unexpected_disconnect")), 1, true)
}

func buildOnlinePayload(bridgeID string) []byte {
	return statusPayload(bridgeID, "online", "")
}

func buildOfflinePayload(bridgeID string) []byte {
	return statusPayload(bridgeID, "offline", "graceful_shutdown")
}

func statusPayload(bridgeID, status, reason string) []byte {
	if reason == "" {
		return fmt.Appendf(nil, `{"status":%q,"bridge_id":%q,"timestamp":%q}`,
			status, bridgeID, time.Now().UTC().Format(time.RFC3339))
	}
	return fmt.Appendf(nil, `{"status":%q,"bridge_id":%q,"reason":%q,"timestamp":%q}`,
		status, bridgeID, reason, time.Now().UTC().Format(time.RFC3339))
}
