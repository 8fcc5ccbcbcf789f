// ionode is a button/LED I/O node bridged to MQTT.
//
// It supervises the wireless link, keeps an MQTT session on top of it,
// drives the LED from commands on the command topic and publishes
// debounced button transitions on the state topic.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/ionode/internal/api"
	"github.com/nerrad567/ionode/internal/infrastructure/config"
	"github.com/nerrad567/ionode/internal/infrastructure/database"
	"github.com/nerrad567/ionode/internal/infrastructure/gpio"
	"github.com/nerrad567/ionode/internal/infrastructure/influxdb"
	"github.com/nerrad567/ionode/internal/infrastructure/logging"
	"github.com/nerrad567/ionode/internal/node"
	"github.com/nerrad567/ionode/internal/wifi"
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

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting ionode",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database opened", "path", cfg.Database.Path)

	pins, err := openGPIO(cfg.GPIO)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := pins.Close(); closeErr != nil {
			log.Error("error closing gpio", "error", closeErr)
		}
	}()
	log.Info("gpio ready", "driver", cfg.GPIO.Driver, "led_pin", cfg.GPIO.LEDPin, "button_pin", cfg.GPIO.ButtonPin)

	// InfluxDB is optional. Keep the interface nil when disabled.
	var telemetry node.Telemetry
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.New(cfg.InfluxDB, cfg.Device.Name)
		if err != nil {
			return fmt.Errorf("creating InfluxDB exporter: %w", err)
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
		telemetry = influxClient
		log.Info("InfluxDB export enabled", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	n, err := node.New(node.Deps{
		Config:    cfg,
		Logger:    log,
		Version:   version,
		DB:        db,
		Link:      wifi.New(cfg.Link, log.Component("wifi")),
		GPIO:      pins,
		Telemetry: telemetry,
	})
	if err != nil {
		return fmt.Errorf("creating node: %w", err)
	}
	defer func() {
		log.Info("stopping node")
		if stopErr := n.Stop(); stopErr != nil {
			log.Error("error stopping node", "error", stopErr)
		}
	}()

	// The status API comes up first so a node stuck waiting for its link
	// can still be inspected.
	if cfg.API.Enabled {
		checks := map[string]api.HealthCheck{
			"database": db.HealthCheck,
			"link":     n.LinkHealth,
			"session":  n.SessionHealth,
		}
		if influxClient != nil {
			checks["influxdb"] = influxClient.HealthCheck
		}

		srv, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log.Component("api"),
			Tracker: n.Tracker(),
			Checks:  checks,
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
		log.Info("API server listening", "addr", srv.Addr())
	}

	if err := n.Start(ctx); err != nil {
		return fmt.Errorf("starting node: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse: API, node, InfluxDB, GPIO, database.
	return nil
}

// getConfigPath returns the configuration file path.
// Uses IONODE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("IONODE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openGPIO returns the pin driver selected by cfg.Driver.
func openGPIO(cfg config.GPIOConfig) (gpio.Driver, error) {
	switch cfg.Driver {
	case "memory":
		return gpio.NewMemory(), nil
	default:
		chip, err := gpio.OpenChip(cfg.Chip)
		if err != nil {
			return nil, fmt.Errorf("opening gpio chip %s: %w", cfg.Chip, err)
		}
		return chip, nil
	}
}
