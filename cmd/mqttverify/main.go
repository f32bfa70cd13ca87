// mqtt-verify answers whether a telemetry device is alive right now.
//
// Each uncached check opens a short-lived MQTT connection, subscribes to the
// device's report topic and waits for the first message. Outcomes are cached,
// optionally recorded to SQLite and written to InfluxDB, and served over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/mqtt-verify/migrations"

	"github.com/nerrad567/mqtt-verify/internal/api"
	"github.com/nerrad567/mqtt-verify/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-verify/internal/infrastructure/database"
	"github.com/nerrad567/mqtt-verify/internal/infrastructure/influxdb"
	"github.com/nerrad567/mqtt-verify/internal/infrastructure/logging"
	"github.com/nerrad567/mqtt-verify/internal/verify"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"
	configEnvVar      = "MQTTVERIFY_CONFIG"

	hoursPerDay = 24
)

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
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting mqtt-verify",
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

	opts := verify.Options{
		Cache:          verify.NewCache(cfg.Verify.TTL()),
		TopicPrefix:    cfg.MQTT.TopicPrefix,
		ClientIDPrefix: cfg.MQTT.ClientIDPrefix,
		DefaultTimeout: cfg.Verify.DefaultTimeout(),
		ConnectTimeout: time.Duration(cfg.MQTT.ConnectTimeout) * time.Second,
		SingleFlight:   cfg.Verify.SingleFlight,
	}

	// Verification history (optional)
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database connected", "path", cfg.Database.Path)

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database migrations complete")

		history := verify.NewSQLiteHistory(db.DB)
		if cfg.Database.RetentionDays > 0 {
			retention := time.Duration(cfg.Database.RetentionDays) * hoursPerDay * time.Hour
			pruned, pruneErr := history.Prune(ctx, retention)
			if pruneErr != nil {
				return fmt.Errorf("pruning verification history: %w", pruneErr)
			}
			log.Info("verification history pruned",
				"removed", pruned,
				"retention_days", cfg.Database.RetentionDays,
			)
		}
		opts.History = history
	} else {
		log.Info("verification history disabled")
	}

	// Outcome metrics (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, connectErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if connectErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connectErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		opts.Metrics = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	mqttLog := log.Component("mqtt")
	opts.Broker = verify.NewMQTTBroker(cfg.MQTT, mqttLog)

	verifier, err := verify.New(opts)
	if err != nil {
		return fmt.Errorf("creating verifier: %w", err)
	}
	verifier.SetLogger(log.Component("verify"))
	defer func() {
		log.Info("flushing verification records")
		if closeErr := verifier.Close(); closeErr != nil {
			log.Error("error closing verifier", "error", closeErr)
		}
	}()
	log.Info("verifier ready",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"topic_prefix", cfg.MQTT.TopicPrefix,
		"cache_ttl", cfg.Verify.TTL().String(),
		"single_flight", cfg.Verify.SingleFlight,
	)

	server, err := api.New(api.Deps{
		Config:   cfg.API,
		Verify:   cfg.Verify,
		Logger:   log.Component("api"),
		Verifier: verifier,
		DB:       db,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	if db != nil {
		if healthErr := db.HealthCheck(ctx); healthErr != nil {
			return fmt.Errorf("health check failed: database: %w", healthErr)
		}
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, InfluxDB (if enabled), database (if enabled)

	log.Info("mqtt-verify stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses MQTTVERIFY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}
