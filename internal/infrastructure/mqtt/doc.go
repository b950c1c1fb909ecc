// Package mqtt publishes bridge telemetry to an MQTT broker.
//
// The bridge never subscribes; MCP is its only command surface. MQTT
// carries the bridge online/offline status (with a Last Will), periodic
// health reports, and per-cube position and session events.
//
// Topic layout:
//
//	toio/bridge/{bridge_id}/status    retained, online/offline
//	toio/bridge/{bridge_id}/health    retained, periodic
//	toio/cube/{cube_id}/position      decoded position notifications
//	toio/cube/{cube_id}/session       connect/disconnect events
//
// Usage:
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT, cfg.Bridge.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	err = client.PublishJSON(mqtt.Topics{}.CubePosition("cube_1"), reading, false)
package mqtt
