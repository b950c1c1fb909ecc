package tools

import (
	"encoding/json"
	"strconv"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool names.
const (
	ToolScanCubes           = "scan_cubes"
	ToolConnectCube         = "connect_cube"
	ToolDisconnectCube      = "disconnect_cube"
	ToolGetConnectedCubes   = "get_connected_cubes"
	ToolMotorControl        = "motor_control"
	ToolMotorStop           = "motor_stop"
	ToolMotorControlTarget  = "motor_control_target"
	ToolSetIndicator        = "set_indicator"
	ToolTurnOffIndicator    = "turn_off_indicator"
	ToolSetIndicatorPattern = "set_indicator_pattern"
	ToolGetPosition         = "get_position"
	ToolRegisterPosition    = "register_position_notification"
	ToolUnregisterPosition  = "unregister_position_notification"
	ToolPlaySoundEffect     = "play_sound_effect"
	ToolPlayMIDI            = "play_midi"
	ToolStopSound           = "stop_sound"
	ToolGetButtonState      = "get_button_state"
	ToolGetBatteryLevel     = "get_battery_level"
	ToolGetMotionState      = "get_motion_state"
)

func objectSchema(required []string, props map[string]*jsonschema.Schema) *jsonschema.Schema {
	if props == nil {
		props = map[string]*jsonschema.Schema{}
	}
	return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
}

func stringProp(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description}
}

func intProp(description string, lo, hi int) *jsonschema.Schema {
	minimum, maximum := float64(lo), float64(hi)
	return &jsonschema.Schema{Type: "integer", Description: description, Minimum: &minimum, Maximum: &maximum}
}

func intPropDefault(description string, lo, hi, def int) *jsonschema.Schema {
	s := intProp(description, lo, hi)
	s.Default = json.RawMessage(strconv.Itoa(def))
	return s
}

var cubeIDProp = stringProp("Cube ID returned by connect_cube, e.g. cube_1")

// cubeOnly is the schema of tools whose only argument is the cube.
func cubeOnly(description string) *jsonschema.Schema {
	return objectSchema([]string{"cube_id"}, map[string]*jsonschema.Schema{"cube_id": stringProp(description)})
}

// definitions returns every tool the server exposes, in listing order.
func definitions(scanNum int, scanTimeout float64) []*mcp.Tool {
	scanTimeoutDefault := json.RawMessage(strconv.FormatFloat(scanTimeout, 'f', -1, 64))
	zero := 0.0

	return []*mcp.Tool{
		{
			Name:        ToolScanCubes,
			Description: "Scan for nearby toio Core Cubes. Returns their device IDs, names and signal strength.",
			InputSchema: objectSchema(nil, map[string]*jsonschema.Schema{
				"num": intPropDefault("Stop after this many cubes", 1, 20, scanNum),
				"timeout": {
					Type:             "number",
					Description:      "Maximum scan time in seconds",
					ExclusiveMinimum: &zero,
					Default:          scanTimeoutDefault,
				},
			}),
		},
		{
			Name:        ToolConnectCube,
			Description: "Connect to a toio Core Cube found by scan_cubes. Connecting an already connected cube returns its existing cube ID.",
			InputSchema: objectSchema([]string{"device_id"}, map[string]*jsonschema.Schema{
				"device_id": stringProp("Device ID (BLE address) reported by scan_cubes"),
			}),
		},
		{
			Name:        ToolDisconnectCube,
			Description: "Disconnect from a toio Core Cube",
			InputSchema: cubeOnly("Cube ID to disconnect"),
		},
		{
			Name:        ToolGetConnectedCubes,
			Description: "List the IDs of all connected cubes",
			InputSchema: objectSchema(nil, nil),
		},
		{
			Name:        ToolMotorControl,
			Description: "Set the speed of both motors of a cube. Negative speeds drive backwards.",
			InputSchema: objectSchema([]string{"cube_id", "left", "right"}, map[string]*jsonschema.Schema{
				"cube_id":     cubeIDProp,
				"left":        intProp("Left motor speed", -115, 115),
				"right":       intProp("Right motor speed", -115, 115),
				"duration_ms": intPropDefault("Run time in milliseconds (0 runs until the next motor command, max 2550)", 0, 2550, 0),
			}),
		},
		{
			Name:        ToolMotorStop,
			Description: "Stop both motors of a cube",
			InputSchema: cubeOnly("Cube ID to stop"),
		},
		{
			Name:        ToolMotorControlTarget,
			Description: "Move a cube to a target position on the mat. Returns once the cube accepts the instruction.",
			InputSchema: objectSchema([]string{"cube_id", "x", "y"}, map[string]*jsonschema.Schema{
				"cube_id": cubeIDProp,
				"x":       intProp("Target X coordinate", 0, 65535),
				"y":       intProp("Target Y coordinate", 0, 65535),
				"angle":   intPropDefault("Target angle in degrees", -360, 360, 0),
				"speed":   intPropDefault("Maximum speed", 10, 115, 100),
				"timeout": intPropDefault("Give up after this many milliseconds", 0, 255000, 5000),
			}),
		},
		{
			Name:        ToolSetIndicator,
			Description: "Set the LED colour of a cube",
			InputSchema: objectSchema([]string{"cube_id", "r", "g", "b"}, map[string]*jsonschema.Schema{
				"cube_id":     cubeIDProp,
				"r":           intProp("Red component", 0, 255),
				"g":           intProp("Green component", 0, 255),
				"b":           intProp("Blue component", 0, 255),
				"duration_ms": intPropDefault("How long to stay lit in milliseconds (0 for continuous, max 2550)", 0, 2550, 0),
			}),
		},
		{
			Name:        ToolTurnOffIndicator,
			Description: "Turn the LED of a cube off",
			InputSchema: cubeOnly("Cube ID returned by connect_cube"),
		},
		{
			Name:        ToolSetIndicatorPattern,
			Description: "Play an LED pattern on a cube: 1 rainbow, 2 breathing, 3 blink. The call returns when the pattern has finished.",
			InputSchema: objectSchema([]string{"cube_id", "pattern"}, map[string]*jsonschema.Schema{
				"cube_id": cubeIDProp,
				"pattern": intProp("Pattern ID", 1, 3),
				"repeat":  intPropDefault("Number of cycles (0 plays one cycle)", 0, maxPatternRepeat, 0),
			}),
		},
		{
			Name:        ToolGetPosition,
			Description: "Read the position of a cube on the mat, or the ID of the card under it",
			InputSchema: cubeOnly("Cube ID returned by connect_cube"),
		},
		{
			Name:        ToolRegisterPosition,
			Description: "Start streaming position updates from a cube to the bridge's telemetry",
			InputSchema: cubeOnly("Cube ID returned by connect_cube"),
		},
		{
			Name:        ToolUnregisterPosition,
			Description: "Stop streaming position updates from a cube",
			InputSchema: cubeOnly("Cube ID returned by connect_cube"),
		},
		{
			Name:        ToolPlaySoundEffect,
			Description: "Play a built-in sound effect on a cube",
			InputSchema: objectSchema([]string{"cube_id", "sound_id"}, map[string]*jsonschema.Schema{
				"cube_id":  cubeIDProp,
				"sound_id": intProp("Sound effect ID", 0, 10),
				"volume":   intPropDefault("Volume", 0, 255, 255),
			}),
		},
		{
			Name:        ToolPlayMIDI,
			Description: "Play a MIDI note on a cube",
			InputSchema: objectSchema([]string{"cube_id", "note", "duration_ms"}, map[string]*jsonschema.Schema{
				"cube_id":     cubeIDProp,
				"note":        intProp("MIDI note number (128 is a rest)", 0, 128),
				"duration_ms": intProp("Note length in milliseconds (max 2550)", 1, 2550),
				"volume":      intPropDefault("Volume", 0, 255, 255),
				"repeat":      intPropDefault("Repetitions (0 repeats until stop_sound)", 0, 255, 0),
			}),
		},
		{
			Name:        ToolStopSound,
			Description: "Stop any sound playing on a cube",
			InputSchema: cubeOnly("Cube ID returned by connect_cube"),
		},
		{
			Name:        ToolGetButtonState,
			Description: "Read whether the button of a cube is pressed",
			InputSchema: cubeOnly("Cube ID returned by connect_cube"),
		},
		{
			Name:        ToolGetBatteryLevel,
			Description: "Read the battery level of a cube in percent",
			InputSchema: cubeOnly("Cube ID returned by connect_cube"),
		},
		{
			Name:        ToolGetMotionState,
			Description: "Read the motion sensor of a cube: flat, collision, double tap, posture and shake",
			InputSchema: cubeOnly("Cube ID returned by connect_cube"),
		},
	}
}
