// toio bridge - MCP server for toio Core Cubes
//
// This is the main entry point for the toio bridge. It speaks the Model
// Context Protocol on stdin/stdout and drives toio Core Cubes over
// Bluetooth Low Energy. Optional back-ends mirror cube telemetry to an
// MQTT broker, InfluxDB, a SQLite journal and a local status API.
//
// stdout carries the MCP stream; every log line goes to stderr.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	_ "github.com/nerrad567/toio-bridge/migrations"

	"github.com/nerrad567/toio-bridge/internal/api"
	"github.com/nerrad567/toio-bridge/internal/ble"
	"github.com/nerrad567/toio-bridge/internal/cube"
	"github.com/nerrad567/toio-bridge/internal/history"
	"github.com/nerrad567/toio-bridge/internal/infrastructure/config"
	"github.com/nerrad567/toio-bridge/internal/infrastructure/database"
	"github.com/nerrad567/toio-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/toio-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/toio-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/toio-bridge/internal/telemetry"
	"github.com/nerrad567/toio-bridge/internal/tools"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// simulatorAdapter selects the in-memory cube simulator instead of the host
// Bluetooth stack.
const simulatorAdapter = "simulator"

// disconnectTimeout bounds closing every cube link on shutdown.
const disconnectTimeout = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns when the MCP client closes the stream or ctx is cancelled.
func run(ctx context.Context) error {
	return runWith(ctx, &mcp.StdioTransport{})
}

func runWith(ctx context.Context, transport mcp.Transport) error { //nolint:gocognit,gocyclo // startup wiring reads top to bottom
	configPath, explicit := getConfigPath()
	cfg, err := config.Load(configPath, !explicit)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, version)
	log.Info("starting toio bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", configPath,
	)

	checks := make(map[string]telemetry.HealthCheck)

	// Session journal (optional)
	var journal *history.Repository
	if cfg.Database.Enabled {
		db, err := openJournal(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		journal = history.NewRepository(db.DB)
		checks["database"] = db.HealthCheck

		if err := tidyJournal(ctx, cfg, journal, log); err != nil {
			return err
		}
	} else {
		log.Info("session journal disabled")
	}

	// MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(ctx, cfg.MQTT, cfg.Bridge.ID)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		mqttClient.SetLogger(log)
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		checks["influxdb"] = influxClient.HealthCheck
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Telemetry fan-out
	fanout := telemetry.NewFanout(telemetry.DefaultQueueSize, telemetry.NewLogSink(log))
	fanout.SetLogger(log)
	if mqttClient != nil {
		fanout.Add(telemetry.NewMQTTSink(mqttClient))
	}
	if influxClient != nil {
		fanout.Add(telemetry.NewInfluxSink(influxClient))
	}
	if journal != nil {
		fanout.Add(telemetry.NewJournalSink(journal))
	}

	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log)
		fanout.Add(hub)
		go hub.Run(ctx)
	}

	registry := cube.NewRegistry(newDiscoverer(cfg, log), cube.Options{
		ConnectScanNum:     cfg.BLE.ConnectScanNum,
		ConnectScanTimeout: cfg.ConnectScanWindow(),
		Watch:              watchTopics(cfg.BLE.Watch),
		OnNotification:     fanout.Notify,
	})
	registry.SetLogger(log)
	registry.SetObserver(fanout)
	fanout.Start(ctx)
	defer func() {
		fanout.Stop()
		if dropped := fanout.Dropped(); dropped > 0 {
			log.Warn("telemetry notifications dropped", "count", dropped)
		}
	}()
	log.Info("telemetry fan-out started", "sinks", fanout.Sinks())

	// Health reporter
	healthCfg := telemetry.HealthReporterConfig{
		BridgeID: cfg.Bridge.ID,
		Version:  version,
		Interval: time.Duration(cfg.Bridge.HealthInterval) * time.Second,
		Cubes:    registry,
		Checks:   checks,
	}
	if mqttClient != nil {
		// Left nil otherwise: a typed nil would look like a publisher.
		healthCfg.Publisher = mqttClient
	}
	health := telemetry.NewHealthReporter(healthCfg)
	health.SetLogger(log)
	if mqttClient != nil {
		if err := health.PublishStarting(); err != nil {
			log.Warn("failed to publish starting health", "error", err)
		}
		health.Start(ctx)
		defer health.Stop()
	}

	// Local status API (optional)
	if cfg.API.Enabled {
		apiServer, err := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log,
			Cubes:    registry,
			Journal:  journalOrNil(journal),
			Health:   health,
			Hub:      hub,
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating status API: %w", err)
		}
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting status API: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing status API", "error", closeErr)
			}
		}()
	}

	// Registered last so it runs first: sessions close while every sink
	// is still up to record it.
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disconnectTimeout)
		defer cancel()
		if err := registry.DisconnectAll(closeCtx); err != nil {
			log.Warn("errors while disconnecting cubes", "error", err)
		}
	}()

	server := tools.New(registry, tools.Options{
		Name:         cfg.MCP.Name,
		Version:      cfg.MCP.Version,
		ScanNum:      cfg.BLE.ScanNum,
		ScanTimeout:  cfg.ScanWindow(),
		PositionSink: fanout.Notify,
	})
	server.SetLogger(log)

	log.Info("serving MCP on stdio", "server", cfg.MCP.Name)
	if err := server.Run(ctx, transport); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serving MCP: %w", err)
	}

	log.Info("toio bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path and whether it was
// chosen explicitly through TOIO_BRIDGE_CONFIG.
func getConfigPath() (string, bool) {
	if path := os.Getenv("TOIO_BRIDGE_CONFIG"); path != "" {
		return path, true
	}
	return defaultConfigPath, false
}

func openJournal(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database connected", "path", cfg.Database.Path)
	return db, nil
}

// tidyJournal closes sessions a previous process left open and applies the
// retention window.
func tidyJournal(ctx context.Context, cfg *config.Config, journal *history.Repository, log *logging.Logger) error {
	closed, err := journal.CloseDangling(ctx, time.Now(), "bridge restarted")
	if err != nil {
		return fmt.Errorf("closing dangling sessions: %w", err)
	}
	if closed > 0 {
		log.Info("closed sessions left open by a previous run", "count", closed)
	}

	if cfg.Database.RetentionDays > 0 {
		pruned, err := journal.Prune(ctx, time.Duration(cfg.Database.RetentionDays)*24*time.Hour)
		if err != nil {
			return fmt.Errorf("pruning journal: %w", err)
		}
		log.Info("journal pruned", "rows", pruned, "retention_days", cfg.Database.RetentionDays)
	}
	return nil
}

// journalOrNil keeps a nil repository from becoming a non-nil interface.
func journalOrNil(r *history.Repository) api.Journal {
	if r == nil {
		return nil
	}
	return r
}

func watchTopics(names []string) []cube.Topic {
	topics := make([]cube.Topic, 0, len(names))
	for _, n := range names {
		topics = append(topics, cube.Topic(n))
	}
	return topics
}

// newDiscoverer returns the host Bluetooth adapter, or the simulator when
// ble.adapter is "simulator".
func newDiscoverer(cfg *config.Config, log *logging.Logger) cube.Discoverer {
	if cfg.BLE.Adapter == simulatorAdapter {
		log.Warn("using simulated cubes; no Bluetooth hardware will be touched")
		return ble.NewSimulator(
			ble.NewSimCube("SIM:00:00:00:00:01", "toio Core Cube-sim1", -40),
			ble.NewSimCube("SIM:00:00:00:00:02", "toio Core Cube-sim2", -60),
		)
	}
	if cfg.BLE.Adapter != "" {
		log.Warn("ble.adapter is ignored; using the default host adapter", "adapter", cfg.BLE.Adapter)
	}
	return ble.NewAdapter(log)
}
