package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-gridsim/internal/api"
	"github.com/nerrad567/gray-logic-gridsim/internal/history"
	"github.com/nerrad567/gray-logic-gridsim/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gridsim/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-gridsim/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-gridsim/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-gridsim/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-gridsim/internal/metrics"
	"github.com/nerrad567/gray-logic-gridsim/internal/network"
	"github.com/nerrad567/gray-logic-gridsim/internal/powerflow"
	"github.com/nerrad567/gray-logic-gridsim/internal/simulation"
	"github.com/nerrad567/gray-logic-gridsim/migrations"
)

// run is the simulation process, separated from main for testability.
//
// Configuration and topology errors are returned (exit status 1); a
// topology error is logged first like any routine failure. Once the
// network is loaded, every failure of the simulation routine is logged
// here and run returns nil, as does an interrupt.
//
// Parameters:
//   - ctx: Cancelled on SIGINT/SIGTERM
//   - configPath: YAML config file, or "" for defaults plus environment
//
// Returns:
//   - error: nil once the routine has ended, or a startup error
func run(ctx context.Context, configPath string) error {
	log := logging.Default()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("starting grid simulator",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", configPathLabel(configPath),
	)

	net, err := loadNetwork(cfg.Network)
	if err != nil {
		loadErr := &simulation.CycleError{
			Stage: simulation.StageLoadNetwork,
			Err:   fmt.Errorf("loading network: %w", err),
		}
		reportOutcome(log, loadErr)
		return loadErr
	}
	pMW, qMVAr := net.TotalLoad()
	log.Info("network loaded",
		"name", net.Name,
		"buses", net.BusCount(),
		"lines", len(net.Lines),
		"transformers", len(net.Transformers),
		"loads", len(net.Loads),
		"load_p_mw", pMW,
		"load_q_mvar", qMVAr,
	)

	runID := uuid.NewString()
	log = log.With("run_id", runID)
	m := metrics.New()
	observer := observers{m}
	checks := make(map[string]api.HealthChecker)
	var recorders []simulation.Recorder
	var hist *historyRecorder

	// Secondary sinks are best-effort: a failure here is logged and the
	// simulation runs without them.
	if cfg.Database.Enabled {
		h, closeDB, dbErr := openHistory(ctx, cfg.Database, log)
		if dbErr != nil {
			log.Warn("cycle history disabled", "error", dbErr)
		} else {
			defer closeDB()
			hist = h
			recorders = append(recorders, h)
			checks["database"] = h
		}
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if influxErr != nil {
			log.Warn("InfluxDB export disabled", "error", influxErr)
		} else {
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			influxClient.SetOnError(func(err error) {
				log.Warn("InfluxDB write error", "error", err)
			})
			recorders = append(recorders, influxRecorder{client: influxClient})
			observer = append(observer, influxObserver{client: influxClient, runID: runID})
			checks["influxdb"] = influxClient
			log.Info("InfluxDB connected",
				"url", cfg.InfluxDB.URL,
				"org", cfg.InfluxDB.Org,
				"bucket", cfg.InfluxDB.Bucket,
			)
		}
	}

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		observer.ObserveFailure(simulation.StageConnect)
		reportOutcome(log, &simulation.CycleError{
			Stage: simulation.StageConnect,
			Err:   fmt.Errorf("%w: %w", simulation.ErrConnectFailed, err),
		})
		return nil
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected, next publish will fail", "error", err)
	})
	checks["mqtt"] = mqttClient
	log.Info("MQTT connected",
		"broker", cfg.BrokerAddress(),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	sim, err := simulation.New(simulation.Options{
		Network:   net,
		Solver:    powerflow.NewSolver(cfg.Network.Solver),
		Publisher: mqttClient,
		Policy:    simulation.NewPolicy(cfg.Simulation),
		Topic:     cfg.Simulation.Topic,
		QoS:       byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0-2
		MaxCycles: cfg.Simulation.MaxCycles,
		RunID:     runID,
		Recorders: recorders,
		Observer:  observer,
		Logger:    log.With("component", "simulation"),
	})
	if err != nil {
		return fmt.Errorf("creating simulator: %w", err)
	}

	if cfg.API.Enabled {
		deps := api.Deps{
			Config:    cfg.API,
			Logger:    log.With("component", "api"),
			Network:   net,
			Snapshots: sim,
			Metrics:   m,
			Checks:    checks,
			RunID:     runID,
			Version:   version,
		}
		if hist != nil {
			deps.History = hist
		}
		stop := startAPI(ctx, deps, log)
		defer stop()
	}

	if err := healthCheck(ctx, checks); err != nil {
		log.Warn("health check failed before first cycle", "error", err)
	} else {
		log.Info("all health checks passed")
	}

	log.Info("simulation started",
		"topic", cfg.Simulation.Topic,
		"qos", cfg.MQTT.QoS,
		"load_scaling_min", cfg.Simulation.LoadScaling.Min,
		"load_scaling_max", cfg.Simulation.LoadScaling.Max,
		"interval_min", cfg.Simulation.Interval.Min,
		"interval_max", cfg.Simulation.Interval.Max,
	)

	reportOutcome(log, sim.Run(ctx))
	log.Info("grid simulator stopped", "cycles", sim.Cycles())
	return nil
}

// reportOutcome logs how the simulation routine ended. It is the single
// place where a terminal cycle error is reported.
func reportOutcome(log *logging.Logger, err error) {
	var cycleErr *simulation.CycleError
	switch {
	case err == nil:
		log.Info("simulation finished")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Info("simulation stopped by user")
	case errors.As(err, &cycleErr):
		log.Error("simulation terminated",
			"stage", string(cycleErr.Stage),
			"cycle", cycleErr.Cycle,
			"error", cycleErr.Err,
		)
	default:
		log.Error("simulation terminated", "error", err)
	}
}

// loadNetwork returns the configured model file, or the embedded CIGRE MV
// benchmark when none is set.
func loadNetwork(cfg config.NetworkConfig) (*network.Network, error) {
	if cfg.ModelFile == "" {
		return network.CIGREMV()
	}
	return network.LoadFile(cfg.ModelFile)
}

// openHistory opens and migrates the history database, then prunes
// cycles past the retention window.
func openHistory(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) (*historyRecorder, func(), error) {
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	repo := history.NewRepository(db.DB)
	if cfg.Retention > 0 {
		pruned, pruneErr := repo.Prune(ctx, cfg.Retention)
		if pruneErr != nil {
			log.Warn("pruning cycle history failed", "error", pruneErr)
		} else if pruned > 0 {
			log.Info("pruned cycle history", "rows", pruned, "retention", cfg.Retention)
		}
	}

	log.Info("database connected", "path", db.Path())
	return &historyRecorder{Repository: repo, db: db}, closeDB, nil
}

// startAPI starts the status API. A bind failure is logged and the
// simulation continues without it. The returned func stops the server.
func startAPI(ctx context.Context, deps api.Deps, log *logging.Logger) func() {
	srv, err := api.New(deps)
	if err == nil {
		err = srv.Start(ctx)
	}
	if err != nil {
		log.Warn("status API disabled", "error", err)
		return func() {}
	}

	return func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}
}

// healthCheck runs every component check and returns the first failure.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for name, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func configPathLabel(path string) string {
	if path == "" {
		return "(defaults)"
	}
	return path
}
