// Package api implements the bridge's local status API.
//
// It is a read-only observation surface next to the MCP tools:
//   - GET /api/v1/health reports bridge health
//   - GET /api/v1/cubes lists live cube sessions
//   - GET /api/v1/cubes/{id}/positions and /api/v1/sessions read the journal
//   - GET /api/v1/ws streams cube notifications and session events
//
// Commands never go through this package; cubes are driven over MCP only.
//
// # Security
//
// When security.jwt.secret is set every route except /health requires an
// HS256 bearer token signed with it. WebSocket clients that cannot set
// headers may pass the token in the "token" query parameter instead.
//
// # WebSocket feed
//
// The Hub is a telemetry sink. Clients send
//
//	{"type": "subscribe", "id": "1", "payload": {"channels": ["cube.position"]}}
//
// and then receive "event" messages for the channels they chose:
// cube.position, cube.button, cube.battery and cube.session.
//
// The server is disabled unless api.enabled is true.
package api
