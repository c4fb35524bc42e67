package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/nerrad567/presence-core/internal/api"
	"github.com/nerrad567/presence-core/internal/eventlog"
	"github.com/nerrad567/presence-core/internal/infrastructure/config"
	"github.com/nerrad567/presence-core/internal/infrastructure/database"
	"github.com/nerrad567/presence-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/presence-core/internal/infrastructure/logging"
	"github.com/nerrad567/presence-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/presence-core/internal/intake"
	"github.com/nerrad567/presence-core/internal/presence"
	"github.com/nerrad567/presence-core/migrations"
)

func newServeCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the presence engine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), path)
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", configPath(), "path to the YAML configuration file")
	return cmd
}

// run wires every component and blocks until ctx is cancelled. Components
// are closed in reverse order of creation.
func run(ctx context.Context, path string) error { //nolint:gocognit,gocyclo // linear bootstrap sequence
	log := logging.Default()
	log.Info("starting presence engine",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", path,
		"site", cfg.Site.ID,
		"level", cfg.Logging.Level,
	)

	store := presence.NewStore(presenceConfig(cfg.Presence))
	store.SetLogger(log.Component("presence"))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	manager := intake.NewManager(store, intake.ConfigFrom(cfg))
	manager.SetLogger(log.Component("intake"))
	manager.SetMetrics(intake.NewMetrics(registry, store.Len))

	health := make(map[string]api.HealthChecker)
	var events api.EventLog

	// Event log (optional)
	if cfg.EventLog.Enabled {
		db, openErr := database.Open(ctx, cfg.Database)
		if openErr != nil {
			return fmt.Errorf("opening database: %w", openErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database ready", "path", cfg.Database.Path)

		eventLog := eventlog.New(db)
		eventLog.SetLogger(log.Component("eventlog"))
		go eventLog.Run(ctx, cfg.EventLog.Retention)

		manager.AddSink(eventLog)
		events = eventLog
		health["database"] = db
	} else {
		log.Info("event log disabled")
	}

	// MQTT (optional)
	if cfg.MQTT.Enabled {
		mqttClient, connErr := mqtt.Connect(ctx, cfg.MQTT)
		if connErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", connErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()

		mqttLog := log.Component("mqtt")
		mqttClient.SetLogger(mqttLog)
		mqttClient.SetOnConnect(func() { mqttLog.Info("MQTT connected") })
		mqttClient.SetOnDisconnect(func(err error) { mqttLog.Warn("MQTT disconnected", "error", err) })

		bridge := mqtt.NewBridge(mqttClient, mqttClient.Topics(), mqttClient.QoS(), manager)
		if startErr := bridge.Start(); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		manager.AddSink(bridge)
		health["mqtt"] = mqttClient

		log.Info("MQTT bridge started",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"root", mqttClient.Topics().Root(),
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Site.ID)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()

		influxLog := log.Component("influxdb")
		influxClient.SetOnError(func(err error) {
			influxLog.Error("InfluxDB write error", "error", err)
		})
		manager.AddSink(influxClient)
		health["influxdb"] = influxClient

		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// API server
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log.Component("api"),
		Store:    store,
		Intake:   manager,
		EventLog: events,
		Gatherer: registry,
		Health:   health,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	manager.AddSink(server.Hub())

	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("presence engine running",
		"api", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	if runErr := manager.Run(ctx); runErr != nil {
		return fmt.Errorf("running intake: %w", runErr)
	}

	log.Info("shutting down")
	return nil
}

// presenceConfig maps the configured windows onto the store configuration.
func presenceConfig(c config.PresenceConfig) presence.Config {
	return presence.Config{
		Delay:               c.Delay,
		DecodingCompilation: c.DecodingCompilation,
		PacketCompilation:   c.PacketCompilation,
		History:             c.History,
		KeepAlive:           c.KeepAlive,
		Disappearance:       c.Disappearance,
		MinRearm:            c.MinRearm,
		AttributeRetention:  c.AttributeRetention,
	}
}
