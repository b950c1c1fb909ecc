package tools

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nerrad567/toio-bridge/internal/cube"
	"github.com/nerrad567/toio-bridge/internal/toio"
)

// Logger is the logging interface used by the tool server.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the part of *cube.Registry the tools use.
type Registry interface {
	Scan(ctx context.Context, num int, timeout time.Duration) ([]toio.Advertisement, error)
	Connect(ctx context.Context, deviceID string) (string, error)
	Disconnect(ctx context.Context, sessionID string) bool
	List() []string
	Get(sessionID string) (*toio.Cube, bool)
	Register(ctx context.Context, sessionID string, topic cube.Topic, callback cube.Callback) error
	Unregister(ctx context.Context, sessionID string, topic cube.Topic) error
}

// Options configures the tool server.
type Options struct {
	Name    string
	Version string

	// ScanNum and ScanTimeout are the scan_cubes defaults.
	ScanNum     int
	ScanTimeout time.Duration

	// PositionSink receives readings from register_position_notification.
	// Nil logs them instead.
	PositionSink cube.Callback
}

const (
	defaultName        = "toio-mcp"
	defaultScanNum     = 1
	defaultScanTimeout = 5 * time.Second
	maxScanTimeout     = 60 * time.Second
)

// handlerFunc implements one tool.
type handlerFunc func(ctx context.Context, args arguments) (object, error)

// Server is the MCP tool server.
type Server struct {
	registry Registry
	opts     Options
	mcp      *mcp.Server
	logger   Logger
	sleep    func(context.Context, time.Duration) error
}

// New creates a tool server over registry with every tool registered.
func New(registry Registry, opts Options) *Server {
	if opts.Name == "" {
		opts.Name = defaultName
	}
	if opts.ScanNum <= 0 {
		opts.ScanNum = defaultScanNum
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = defaultScanTimeout
	}

	s := &Server{
		registry: registry,
		opts:     opts,
		logger:   noopLogger{},
		sleep:    sleepContext,
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{Name: opts.Name, Version: opts.Version},
		&mcp.ServerOptions{Instructions: "Control toio Core Cubes: scan_cubes, then connect_cube, then use the returned cube_id with the other tools."},
	)

	handlers := s.handlers()
	for _, tool := range definitions(opts.ScanNum, opts.ScanTimeout.Seconds()) {
		h, ok := handlers[tool.Name]
		if !ok {
			panic("tools: no handler for " + tool.Name)
		}
		s.mcp.AddTool(tool, s.wrap(tool.Name, h))
	}
	return s
}

// SetLogger sets the logger. Call before Run.
func (s *Server) SetLogger(logger Logger) {
	s.logger = logger
}

// MCP returns the underlying MCP server.
func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// Run serves tools over transport until the client goes away or ctx ends.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("mcp server starting", "name", s.opts.Name, "version", s.opts.Version)
	return s.mcp.Run(ctx, transport)
}

// wrap turns a handlerFunc into an MCP tool handler: arguments are
// decoded, failures become the error envelope and panics are contained.
func (s *Server) wrap(name string, h handlerFunc) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (result *mcp.CallToolResult, _ error) {
		start := time.Now()
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error("tool panicked", "tool", name, "panic", p, "stack", string(debug.Stack()))
				result = failure(&cube.Error{Kind: cube.KindInternal, Message: fmt.Sprintf("internal error in %s", name)})
			}
		}()

		args, err := parseArguments(req.Params.Arguments)
		if err != nil {
			return failure(err), nil
		}

		body, err := h(ctx, args)
		if err != nil {
			s.logger.Error("tool failed", "tool", name, "kind", cube.KindOf(err), "error", err, "duration", time.Since(start))
			return failure(err), nil
		}
		s.logger.Debug("tool completed", "tool", name, "duration", time.Since(start))
		return success(body), nil
	}
}

// cube resolves the cube_id argument.
func (s *Server) cube(args arguments) (string, *toio.Cube, error) {
	id, err := args.str("cube_id")
	if err != nil {
		return "", nil, err
	}
	c, ok := s.registry.Get(id)
	if !ok {
		return id, nil, cube.CubeNotFound(id)
	}
	return id, c, nil
}

// logPosition is the position sink used when none is configured.
func (s *Server) logPosition(n cube.Notification) {
	s.logger.Info("position notification", "cube_id", n.SessionID, "reading", n.Payload)
}
