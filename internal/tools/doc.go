// Package tools exposes the cube registry as MCP tools.
//
// Each tool decodes its arguments, looks up the referenced session,
// forwards the call to the cube and answers with a small fixed-key JSON
// object. Failures never escape as protocol errors: they are returned as
// a tool result with IsError set and the body
//
//	{"error": "Cube with ID cube_9 not found", "kind": "not_found"}
//
// where kind is one of the cube.Kind values.
//
// Tools that only read or command a cube hold no state here; the
// registry owns every connection.
package tools
