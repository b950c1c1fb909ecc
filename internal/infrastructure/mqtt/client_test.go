package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/toio-bridge/internal/infrastructure/config"
)

// fakeToken is a completed paho token.
type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakePaho records publishes instead of talking to a broker.
type fakePaho struct {
	mu           sync.Mutex
	connected    bool
	publishErr   error
	messages     []published
	disconnected bool
}

func (f *fakePaho) IsConnected() bool      { f.mu.Lock(); defer f.mu.Unlock(); return f.connected }
func (f *fakePaho) IsConnectionOpen() bool { return f.IsConnected() }
func (f *fakePaho) Connect() pahomqtt.Token {
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return &fakeToken{}
}
func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	f.connected = false
	f.disconnected = true
	f.mu.Unlock()
}
func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, _ := payload.([]byte)
	f.messages = append(f.messages, published{topic: topic, qos: qos, retained: retained, payload: b})
	return &fakeToken{err: f.publishErr}
}
func (f *fakePaho) Subscribe(string, byte, pahomqtt.MessageHandler) pahomqtt.Token {
	return &fakeToken{}
}
func (f *fakePaho) SubscribeMultiple(map[string]byte, pahomqtt.MessageHandler) pahomqtt.Token {
	return &fakeToken{}
}
func (f *fakePaho) Unsubscribe(...string) pahomqtt.Token     { return &fakeToken{} }
func (f *fakePaho) AddRoute(string, pahomqtt.MessageHandler) {}
func (f *fakePaho) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.ClientOptionsReader{}
}

func (f *fakePaho) sent() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.messages...)
}

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "toio-test"},
		QoS:    1,
	}
}

func newTestClient(connected bool) (*Client, *fakePaho) {
	fake := &fakePaho{connected: connected}
	return newWithClient(fake, testConfig(), "desk"), fake
}

func TestPublish(t *testing.T) {
	c, fake := newTestClient(true)

	if err := c.Publish("toio/cube/cube_1/position", []byte(`{"x":1}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	msgs := fake.sent()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	if msgs[0].topic != "toio/cube/cube_1/position" || msgs[0].qos != 1 || msgs[0].retained {
		t.Errorf("published %+v", msgs[0])
	}
}

func TestPublish_Validation(t *testing.T) {
	tests := []struct {
		name      string
		connected bool
		topic     string
		qos       byte
		payload   []byte
		wantErr   error
	}{
		{name: "empty topic", connected: true, topic: "", qos: 0, wantErr: ErrInvalidTopic},
		{name: "invalid qos", connected: true, topic: "t", qos: 3, wantErr: ErrInvalidQoS},
		{name: "oversize payload", connected: true, topic: "t", payload: make([]byte, maxPayloadSize+1), wantErr: ErrPublishFailed},
		{name: "disconnected", connected: false, topic: "t", wantErr: ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, fake := newTestClient(tt.connected)
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
			if len(fake.sent()) != 0 {
				t.Error("rejected publish reached the broker")
			}
		})
	}
}

func TestPublish_BrokerError(t *testing.T) {
	c, fake := newTestClient(true)
	fake.publishErr = errors.New("not authorised")

	err := c.Publish("t", []byte("x"), 0, false)
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish() error = %v, want ErrPublishFailed", err)
	}
}

func TestPublishJSON(t *testing.T) {
	c, fake := newTestClient(true)

	if err := c.PublishJSON(Topics{}.CubeSession("cube_2"), map[string]string{"event": "connected"}, true); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}
	msgs := fake.sent()
	if len(msgs) != 1 || !msgs[0].retained || msgs[0].qos != 1 {
		t.Fatalf("published %+v", msgs)
	}
	var body map[string]string
	if err := json.Unmarshal(msgs[0].payload, &body); err != nil || body["event"] != "connected" {
		t.Errorf("payload = %s (err %v)", msgs[0].payload, err)
	}
}

func TestClose_PublishesOfflineStatus(t *testing.T) {
	c, fake := newTestClient(true)

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	msgs := fake.sent()
	if len(msgs) != 1 || msgs[0].topic != "toio/bridge/desk/status" || !msgs[0].retained {
		t.Fatalf("published %+v, want one retained status", msgs)
	}
	if !strings.Contains(string(msgs[0].payload), `"graceful_shutdown"`) {
		t.Errorf("offline payload = %s", msgs[0].payload)
	}
	if !fake.disconnected || c.IsConnected() {
		t.Error("client still connected after Close()")
	}
}

func TestClose_Nil(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

func TestHandleConnect_PublishesOnline(t *testing.T) {
	c, fake := newTestClient(true)
	c.handleConnect()

	msgs := fake.sent()
	if len(msgs) != 1 || !strings.Contains(string(msgs[0].payload), `"online"`) {
		t.Fatalf("published %+v, want online status", msgs)
	}
}

func TestHealthCheck(t *testing.T) {
	c, fake := newTestClient(true)
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() with cancelled context returned nil")
	}

	c.handleConnectionLost(errors.New("eof"))
	fake.Disconnect(0)
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() after loss error = %v, want ErrNotConnected", err)
	}
}

func TestTopics(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"bridge status", Topics{}.BridgeStatus("desk"), "toio/bridge/desk/status"},
		{"bridge health", Topics{}.BridgeHealth("desk"), "toio/bridge/desk/health"},
		{"cube position", Topics{}.CubePosition("cube_1"), "toio/cube/cube_1/position"},
		{"cube session", Topics{}.CubeSession("cube_9"), "toio/cube/cube_9/session"},
		{"cube button", Topics{}.CubeButton("cube_2"), "toio/cube/cube_2/button"},
		{"cube battery", Topics{}.CubeBattery("cube_2"), "toio/cube/cube_2/battery"},
		{"all cubes", Topics{}.AllCubes(), "toio/cube/#"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestStatusPayload(t *testing.T) {
	var body map[string]string
	if err := json.Unmarshal(statusPayload("desk", "offline", "unexpected_disconnect"), &body); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if body["status"] != "offline" || body["bridge_id"] != "desk" || body["reason"] != "unexpected_disconnect" {
		t.Errorf("payload = %v", body)
	}
	if _, err := time.Parse(time.RFC3339, body["timestamp"]); err != nil {
		t.Errorf("timestamp %q: %v", body["timestamp"], err)
	}
}
