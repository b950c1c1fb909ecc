package tools

import (
	"context"
	"time"

	"github.com/nerrad567/toio-bridge/internal/cube"
	"github.com/nerrad567/toio-bridge/internal/toio"
)

const maxDurationMS = 2550

func (s *Server) handlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		ToolScanCubes:           s.scanCubes,
		ToolConnectCube:         s.connectCube,
		ToolDisconnectCube:      s.disconnectCube,
		ToolGetConnectedCubes:   s.getConnectedCubes,
		ToolMotorControl:        s.motorControl,
		ToolMotorStop:           s.motorStop,
		ToolMotorControlTarget:  s.motorControlTarget,
		ToolSetIndicator:        s.setIndicator,
		ToolTurnOffIndicator:    s.turnOffIndicator,
		ToolSetIndicatorPattern: s.setIndicatorPattern,
		ToolGetPosition:         s.getPosition,
		ToolRegisterPosition:    s.registerPosition,
		ToolUnregisterPosition:  s.unregisterPosition,
		ToolPlaySoundEffect:     s.playSoundEffect,
		ToolPlayMIDI:            s.playMIDI,
		ToolStopSound:           s.stopSound,
		ToolGetButtonState:      s.getButtonState,
		ToolGetBatteryLevel:     s.getBatteryLevel,
		ToolGetMotionState:      s.getMotionState,
	}
}

func (s *Server) scanCubes(ctx context.Context, args arguments) (object, error) {
	num, err := args.integerOr("num", s.opts.ScanNum)
	if err != nil {
		return nil, err
	}
	if num < 1 {
		return nil, cube.InvalidArgument("num must be at least 1, got %d", num)
	}
	seconds, err := args.numberOr("timeout", s.opts.ScanTimeout.Seconds())
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(seconds * float64(time.Second))
	if timeout <= 0 || timeout > maxScanTimeout {
		return nil, cube.InvalidArgument("timeout must be between 0 and %.0f seconds, got %g", maxScanTimeout.Seconds(), seconds)
	}

	found, err := s.registry.Scan(ctx, num, timeout)
	if err != nil {
		return nil, err
	}
	devices := make([]object, len(found))
	for i, adv := range found {
		devices[i] = object{"device_id": adv.Address, "name": adv.Name, "rssi": adv.RSSI}
	}
	return object{"devices": devices}, nil
}

func (s *Server) connectCube(ctx context.Context, args arguments) (object, error) {
	deviceID, err := args.str("device_id")
	if err != nil {
		return nil, err
	}
	id, err := s.registry.Connect(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return object{"cube_id": id}, nil
}

func (s *Server) disconnectCube(ctx context.Context, args arguments) (object, error) {
	id, err := args.str("cube_id")
	if err != nil {
		return nil, err
	}
	return object{"disconnected": s.registry.Disconnect(ctx, id)}, nil
}

func (s *Server) getConnectedCubes(_ context.Context, _ arguments) (object, error) {
	return object{"cubes": s.registry.List()}, nil
}

func (s *Server) motorControl(ctx context.Context, args arguments) (object, error) {
	_, c, err := s.cube(args)
	if err != nil {
		return nil, err
	}
	left, err := args.integer("left")
	if err != nil {
		return nil, err
	}
	right, err := args.integer("right")
	if err != nil {
		return nil, err
	}
	duration, err := durationArg(args, "duration_ms", 0)
	if err != nil {
		return nil, err
	}
	if err := c.Drive(ctx, left, right, duration); err != nil {
		return nil, err
	}
	return object{"controlled": true}, nil
}

func (s *Server) motorStop(ctx context.Context, args arguments) (object, error) {
	_, c, err := s.cube(args)
	if err != nil {
		return nil, err
	}
	if err := c.Stop(ctx); err != nil {
		return nil, err
	}
	return object{"stopped": true}, nil
}

func (s *Server) motorControlTarget(ctx context.Context, args arguments) (object, error) {
	_, c, err := s.cube(args)
	if err != nil {
		return nil, err
	}
	x, err := args.integer("x")
	if err != nil {
		return nil, err
	}
	y, err := args.integer("y")
	if err != nil {
		return nil, err
	}
	angle, err := args.integerOr("angle", 0)
	if err != nil {
		return nil, err
	}
	speed, err := args.integerOr("speed", 100)
	if err != nil {
		return nil, err
	}
	timeoutMS, err := args.integerOr("timeout", 5000)
	if err != nil {
		return nil, err
	}
	for _, check := range []error{
		inRange("x", x, 0, 65535),
		inRange("y", y, 0, 65535),
		inRange("speed", speed, toio.MinTargetSpeed, toio.MaxMotorSpeed),
		inRange("timeout", timeoutMS, 0, 255000),
	} {
		if check != nil {
			return nil, check
		}
	}

	target := toio.Target{
		X:        uint16(x),
		Y:        uint16(y),
		Angle:    uint16(((angle % 360) + 360) % 360),
		MaxSpeed: uint8(speed),
		Timeout:  time.Duration(timeoutMS) * time.Millisecond,
		Movement: toio.MoveCurve,
	}
	if err := c.MoveTo(ctx, target); err != nil {
		return nil, err
	}
	return object{"controlled": true}, nil
}

func (s *Server) setIndicator(ctx context.Context, args arguments) (object, error) {
	_, c, err := s.cube(args)
	if err != nil {
		return nil, err
	}
	color, err := colorArg(args)
	if err != nil {
		return nil, err
	}
	duration, err := durationArg(args, "duration_ms", 0)
	if err != nil {
		return nil, err
	}
	if err := c.SetIndicator(ctx, color, duration); err != nil {
		return nil, err
	}
	return object{"set": true}, nil
}

func (s *Server) turnOffIndicator(ctx context.Context, args arguments) (object, error) {
	_, c, err := s.cube(args)
	if err != nil {
		return nil, err
	}
	if err := c.IndicatorOff(ctx); err != nil {
		return nil, err
	}
	return object{"set": false}, nil
}

func (s *Server) setIndicatorPattern(ctx context.Context, args arguments) (object, error) {
	_, c, err := s.cube(args)
	if err != nil {
		return nil, err
	}
	pattern, err := args.integer("pattern")
	if err != nil {
		return nil, err
	}
	repeat, err := args.integerOr("repeat", 0)
	if err != nil {
		return nil, err
	}
	if err := inRange("repeat", repeat, 0, maxPatternRepeat); err != nil {
		return nil, err
	}
	frames, err := patternFrames(pattern)
	if err != nil {
		return nil, err
	}
	if err := playPattern(ctx, c, frames, max(repeat, 1), s.sleep); err != nil {
		return nil, err
	}
	return object{"set": true}, nil
}

func (s *Server) getPosition(ctx context.Context, args arguments) (object, error) {
	_, c, err := s.cube(args)
	if err != nil {
		return nil, err
	}
	info, err := c.Position(ctx)
	if err != nil {
		return nil, err
	}
	return positionObject(info), nil
}

// positionObject flattens a reading into the get_position result shape.
func positionObject(info toio.IDInformation) object {
	body := object{"type": string(info.Kind)}
	switch {
	case info.Position != nil:
		p := info.Position
		body["center_x"] = int(p.CenterX)
		body["center_y"] = int(p.CenterY)
		body["center_angle"] = int(p.CenterAngle)
		body["sensor_x"] = int(p.SensorX)
		body["sensor_y"] = int(p.SensorY)
		body["sensor_angle"] = int(p.SensorAngle)
	case info.Standard != nil:
		body["value"] = int(info.Standard.Value)
		body["angle"] = int(info.Standard.Angle)
	}
	return body
}

func (s *Server) registerPosition(ctx context.Context, args arguments) (object, error) {
	id, _, err := s.cube(args)
	if err != nil {
		return nil, err
	}
	sink := s.opts.PositionSink
	if sink == nil {
		sink = s.logPosition
	}
	if err := s.registry.Register(ctx, id, cube.TopicPosition, sink); err != nil {
		return nil, err
	}
	return object{"registered": true}, nil
}

func (s *Server) unregisterPosition(ctx context.Context, args arguments) (object, error) {
	id, _, err := s.cube(args)
	if err != nil {
		return nil, err
	}
	if err := s.registry.Unregister(ctx, id, cube.TopicPosition); err != nil {
		return nil, err
	}
	return object{"unregistered": true}, nil
}

func (s *Server) playSoundEffect(ctx context.Context, args arguments) (object, error) {
	_, c, err := s.cube(args)
	if err != nil {
		return nil, err
	}
	soundID, err := args.integer("sound_id")
	if err != nil {
		return nil, err
	}
	volume, err := args.integerOr("volume", 255)
	if err != nil {
		return nil, err
	}
	if err := inRange("sound_id", soundID, 0, toio.MaxSoundEffect); err != nil {
		return nil, err
	}
	if err := inRange("volume", volume, 0, 255); err != nil {
		return nil, err
	}
	if err := c.PlaySoundEffect(ctx, uint8(soundID), uint8(volume)); err != nil {
		return nil, err
	}
	return object{"played": true}, nil
}

func (s *Server) playMIDI(ctx context.Context, args arguments) (object, error) {
	_, c, err := s.cube(args)
	if err != nil {
		return nil, err
	}
	note, err := args.integer("note")
	if err != nil {
		return nil, err
	}
	ms, err := args.integer("duration_ms")
	if err != nil {
		return nil, err
	}
	volume, err := args.integerOr("volume", 255)
	if err != nil {
		return nil, err
	}
	repeat, err := args.integerOr("repeat", 0)
	if err != nil {
		return nil, err
	}
	for _, check := range []error{
		inRange("note", note, 0, toio.NoteRest),
		inRange("duration_ms", ms, 1, maxDurationMS),
		inRange("volume", volume, 0, 255),
		inRange("repeat", repeat, 0, 255),
	} {
		if check != nil {
			return nil, check
		}
	}

	notes := []toio.Note{{Number: uint8(note), Duration: time.Duration(ms) * time.Millisecond, Volume: uint8(volume)}}
	if err := c.PlayMIDI(ctx, notes, uint8(repeat)); err != nil {
		return nil, err
	}
	return object{"played": true}, nil
}

func (s *Server) stopSound(ctx context.Context, args arguments) (object, error) {
	_, c, err := s.cube(args)
	if err != nil {
		return nil, err
	}
	if err := c.StopSound(ctx); err != nil {
		return nil, err
	}
	return object{"stopped": true}, nil
}

func (s *Server) getButtonState(ctx context.Context, args arguments) (object, error) {
	_, c, err := s.cube(args)
	if err != nil {
		return nil, err
	}
	state, err := c.Button(ctx)
	if err != nil {
		return nil, err
	}
	return object{"state": string(state)}, nil
}

func (s *Server) getBatteryLevel(ctx context.Context, args arguments) (object, error) {
	_, c, err := s.cube(args)
	if err != nil {
		return nil, err
	}
	level, err := c.Battery(ctx)
	if err != nil {
		return nil, err
	}
	return object{"level": level}, nil
}

func (s *Server) getMotionState(ctx context.Context, args arguments) (object, error) {
	_, c, err := s.cube(args)
	if err != nil {
		return nil, err
	}
	m, err := c.Motion(ctx)
	if err != nil {
		return nil, err
	}
	return object{
		"flat":       m.Flat,
		"collision":  m.Collision,
		"double_tap": m.DoubleTap,
		"posture":    m.Posture,
		"shake":      m.Shake,
	}, nil
}

func colorArg(args arguments) (toio.Color, error) {
	var rgb [3]uint8
	for i, name := range []string{"r", "g", "b"} {
		v, err := args.integer(name)
		if err != nil {
			return toio.Color{}, err
		}
		if err := inRange(name, v, 0, 255); err != nil {
			return toio.Color{}, err
		}
		rgb[i] = uint8(v)
	}
	return toio.Color{R: rgb[0], G: rgb[1], B: rgb[2]}, nil
}

// durationArg reads a millisecond argument. Values above the protocol's
// 2550 ms ceiling are clamped; negative values are rejected.
func durationArg(args arguments, name string, def int) (time.Duration, error) {
	ms, err := args.integerOr(name, def)
	if err != nil {
		return 0, err
	}
	if ms < 0 {
		return 0, cube.InvalidArgument("%s must not be negative, got %d", name, ms)
	}
	return time.Duration(min(ms, maxDurationMS)) * time.Millisecond, nil
}
