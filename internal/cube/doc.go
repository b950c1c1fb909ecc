// Package cube tracks connected toio cubes for the tool surface.
//
// The Registry maps discovery identifiers (BLE addresses) to session
// identifiers of the form cube_<n>, owns each session's toio.Cube and
// its notification handlers, and reports failures as *Error values
// carrying a Kind the tool layer turns into its error envelope.
//
// Connect is idempotent per device and safe under concurrency: calls for
// the same device share one scan and one dial. Disconnect removes the
// session before closing the link. DisconnectAll never stops early.
//
// Each session carries a small state machine (connected, disconnecting,
// disconnected) that observers see in SessionInfo.State.
package cube
