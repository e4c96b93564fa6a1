// homesim - simulated smart-home backend
//
// This is the main entry point for homesim. Each login gets its own
// simulated home that is ticked on a fixed interval, exposed over a REST
// and WebSocket API, journaled to SQLite, and optionally mirrored to MQTT
// and InfluxDB.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	_ "github.com/nerrad567/homesim-core/migrations"

	"github.com/nerrad567/homesim-core/internal/api"
	"github.com/nerrad567/homesim-core/internal/audit"
	"github.com/nerrad567/homesim-core/internal/auth"
	"github.com/nerrad567/homesim-core/internal/bridge"
	"github.com/nerrad567/homesim-core/internal/infrastructure/config"
	"github.com/nerrad567/homesim-core/internal/infrastructure/database"
	"github.com/nerrad567/homesim-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/homesim-core/internal/infrastructure/logging"
	"github.com/nerrad567/homesim-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/homesim-core/internal/scheduler"
	"github.com/nerrad567/homesim-core/internal/session"
	"github.com/nerrad567/homesim-core/internal/telemetry"
)

// Build metadata, overridden with
// -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// options are the command-line flags.
type options struct {
	configPath   string
	hashPassword bool
	showVersion  bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("homesim", pflag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to config.yaml (default $HOMESIM_CONFIG or "+config.DefaultPath+")")
	fs.BoolVar(&opts.hashPassword, "hash-password", false, "read a password from stdin and print its argon2id hash for security.login.password_hash")
	fs.BoolVarP(&opts.showVersion, "version", "v", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	switch {
	case opts.showVersion:
		fmt.Printf("homesim %s (commit %s, built %s)\n", version, commit, date)
		return
	case opts.hashPassword:
		if err := printPasswordHash(os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, config.ResolvePath(opts.configPath)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// printPasswordHash hashes the first line of r.
func printPasswordHash(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		return fmt.Errorf("no password on stdin")
	}
	password := strings.TrimRight(scanner.Text(), "\r")
	if password == "" {
		return fmt.Errorf("password must not be empty")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, hash)
	return err
}

// run is the actual application logic, separated from main for testability.
// It blocks until ctx is cancelled and returns nil on clean shutdown.
func run(ctx context.Context, configPath string) error { //nolint:gocognit,gocyclo // linear start-up sequence
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting homesim",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	authn, err := auth.NewAuthenticator(cfg.Security.Login)
	if err != nil {
		return fmt.Errorf("configuring login: %w", err)
	}

	// Open database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path, "memory", database.IsMemory(cfg.Database.Path))

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Session manager and its sinks
	sessions := session.NewManager(session.Config{
		Seed:        cfg.Home.Seed,
		TTL:         cfg.GetSessionTTL(),
		MaxSessions: cfg.Home.MaxSessions,
	})
	sessions.SetLogger(log.Component("session"))

	journal := audit.NewJournal(db.DB)
	journal.SetLogger(log.Component("journal"))
	sessions.AddSink(journal)
	sessions.OnRemove(func(ctx context.Context, sessionID string) {
		sessLog := log.ForSession(sessionID)
		n, purgeErr := journal.Purge(ctx, sessionID)
		if purgeErr != nil {
			sessLog.Warn("purging journal failed", "error", purgeErr)
			return
		}
		sessLog.Debug("journal purged", "rows", n)
	})

	// Connect to InfluxDB (optional)
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
		sessions.AddSink(telemetry.NewRecorder(influxClient))
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		mqttBridge := bridge.New(mqttClient, sessions, byte(cfg.MQTT.QoS)) //nolint:gosec // validated 0-2
		mqttBridge.SetLogger(log.Component("bridge"))
		sessions.AddSink(mqttBridge)
		sessions.OnRemove(mqttBridge.ClearSession)
		if startErr := mqttBridge.Start(ctx); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping MQTT bridge")
			if stopErr := mqttBridge.Stop(); stopErr != nil {
				log.Error("error stopping MQTT bridge", "error", stopErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
			"topic_prefix", mqttClient.Topics().Prefix,
		)
	} else {
		log.Info("MQTT disabled")
	}

	sched := scheduler.New(sessions, scheduler.Config{TickInterval: cfg.GetTickInterval()})
	sched.SetLogger(log.Component("scheduler"))

	// API server
	deps := api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Security:  cfg.Security,
		Logger:    log.Component("api"),
		Sessions:  sessions,
		Auth:      authn,
		Journal:   journal,
		DB:        db,
		Scheduler: sched,
		Version:   version,
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	if influxClient != nil {
		deps.Influx = influxClient
	}
	apiServer, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	sessions.AddSink(apiServer.Hub())
	sessions.OnRemove(apiServer.Hub().CloseSession)

	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Driving loop
	schedDone := make(chan error, 1)
	go func() { schedDone <- sched.Run(ctx) }()

	log.Info("initialisation complete, waiting for shutdown signal", "api_address", apiServer.Addr())

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	if schedErr := <-schedDone; schedErr != nil {
		log.Error("scheduler error", "error", schedErr)
	}

	// Deferred Close() calls run in reverse order:
	// API server, MQTT bridge, MQTT, InfluxDB, database.

	log.Info("homesim stopped", "sessions_created", sessions.Stats().Created)
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
