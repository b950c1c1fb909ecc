package mqtt

import "fmt"

// TopicPrefix is the root of every topic the bridge publishes.
const TopicPrefix = "toio"

// Topics provides builders for bridge MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.CubePosition("cube_1") // "toio/cube/cube_1/position"
type Topics struct{}

// BridgeStatus is the retained online/offline topic (also the Last Will topic).
//
// Example: toio/bridge/desk/status
func (Topics) BridgeStatus(bridgeID string) string {
	return fmt.Sprintf("%s/bridge/%s/status", TopicPrefix, bridgeID)
}

// BridgeHealth is the retained periodic health report topic.
//
// Example: toio/bridge/desk/health
func (Topics) BridgeHealth(bridgeID string) string {
	return fmt.Sprintf("%s/bridge/%s/health", TopicPrefix, bridgeID)
}

// CubePosition carries decoded ID-information notifications.
//
// Example: toio/cube/cube_1/position
func (Topics) CubePosition(cubeID string) string {
	return fmt.Sprintf("%s/cube/%s/position", TopicPrefix, cubeID)
}

// CubeSession carries connect and disconnect events.
//
// Example: toio/cube/cube_1/session
func (Topics) CubeSession(cubeID string) string {
	return fmt.Sprintf("%s/cube/%s/session", TopicPrefix, cubeID)
}

// CubeButton carries button notifications.
func (Topics) CubeButton(cubeID string) string {
	return fmt.Sprintf("%s/cube/%s/button", TopicPrefix, cubeID)
}

// CubeBattery carries battery notifications.
func (Topics) CubeBattery(cubeID string) string {
	return fmt.Sprintf("%s/cube/%s/battery", TopicPrefix, cubeID)
}

// AllCubes matches every per-cube topic.
func (Topics) AllCubes() string {
	return TopicPrefix + "/cube/#"
}
