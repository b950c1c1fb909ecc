package tools

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/nerrad567/toio-bridge/internal/cube"
)

// arguments is a decoded tool argument object.
type arguments map[string]any

func parseArguments(raw json.RawMessage) (arguments, error) {
	args := arguments{}
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return args, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&args); err != nil {
		return nil, cube.InvalidArgument("arguments must be a JSON object: %v", err)
	}
	return args, nil
}

func (a arguments) str(name string) (string, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return "", cube.InvalidArgument("missing required argument %q", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", cube.InvalidArgument("argument %q must be a string", name)
	}
	if s == "" {
		return "", cube.InvalidArgument("argument %q must not be empty", name)
	}
	return s, nil
}

func (a arguments) integer(name string) (int, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return 0, cube.InvalidArgument("missing required argument %q", name)
	}
	return toInt(name, v)
}

func (a arguments) integerOr(name string, def int) (int, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return def, nil
	}
	return toInt(name, v)
}

func (a arguments) numberOr(name string, def float64) (float64, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return def, nil
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, cube.InvalidArgument("argument %q must be a number", name)
	}
	f, err := n.Float64()
	if err != nil {
		return 0, cube.InvalidArgument("argument %q must be a number", name)
	}
	return f, nil
}

// toInt accepts integral JSON numbers, including forms like 50.0.
func toInt(name string, v any) (int, error) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, cube.InvalidArgument("argument %q must be an integer", name)
	}
	if i, err := n.Int64(); err == nil {
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, cube.InvalidArgument("argument %q must be an integer", name)
	}
	return int(f), nil
}

// inRange checks lo <= v <= hi.
func inRange(name string, v, lo, hi int) error {
	if v < lo || v > hi {
		return cube.InvalidArgument("%s must be between %d and %d, got %d", name, lo, hi, v)
	}
	return nil
}
