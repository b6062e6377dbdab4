package main

import (
	"PredictLedger/internal/config"
	"PredictLedger/internal/core"
	"PredictLedger/internal/event"
	"PredictLedger/internal/ingestion"
	"PredictLedger/internal/observability"
	"PredictLedger/internal/persistence"
	"PredictLedger/internal/server"
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	snapshotCheckEvery = 10 * time.Second
	shutdownTimeout    = 30 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to TOML configuration file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot := observability.NewLogger("predictledger")
		boot.Fatal().Err(err).Msg("load config")
	}

	log := observability.NewLoggerWithLevel("predictledger", observability.ParseLogLevel(cfg.LogLevel))
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("predictledger stopped")
	}
	log.Info().Msg("predictledger shutdown complete")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	log.Info().Msg("predictledger starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	health := observability.NewHealthChecker()

	// --- Postgres ---
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer db.Close()

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		return err
	}
	health.AddCheck("postgres", db.PingContext)
	log.Info().Msg("postgres connected")

	applied, err := persistence.NewMigrator(db, cfg.MigrationsDir, log.With().Str("component", "migrator").Logger()).Up(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("applied", applied).Msg("migrations up to date")

	// --- Engine ---
	persistChan := make(chan core.CoreOutput, cfg.PersistChanSize)
	var publishChan chan core.CoreOutput
	if cfg.PublishEnabled && cfg.NATSURL != "" {
		publishChan = make(chan core.CoreOutput, cfg.PublishChanSize)
	}

	dbChecker := persistence.NewPostgresIdempotencyChecker(db)
	coreLog := log.With().Str("component", "core").Logger()
	engineCfg := core.Config{
		Admin:         cfg.Admin(),
		DedupCapacity: cfg.IdempotencyLRUCapacity,
		DBChecker:     dbChecker,
		Metrics:       metrics,
		Logger:        &coreLog,
		PersistChan:   persistChan,
		PublishChan:   publishChan,
	}
	engine := core.NewEngine(engineCfg)

	// --- Recovery ---
	snapMgr := persistence.NewSnapshotManager(db)
	res, err := persistence.Recover(ctx, engine, snapMgr, log.With().Str("component", "recovery").Logger())
	if err != nil {
		return err
	}

	keys, err := dbChecker.RecentKeys(ctx, event.EventTypeDepositCredited.String(), cfg.IdempotencyLRUCapacity)
	if err != nil {
		log.Warn().Err(err).Msg("dedup warm-up failed")
	} else {
		engine.WarmDedup(keys)
		log.Info().Int("keys", len(keys)).Msg("dedup cache warmed")
	}

	// --- Background workers; they outlive the front ends so nothing is lost on shutdown ---
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	persistWorker := persistence.NewPersistenceWorker(
		persistence.NewEventLogWriter(db),
		persistChan,
		cfg.PersistBatchSize,
		cfg.PersistFlushTimeout.Duration,
		metrics,
		log.With().Str("component", "persistence").Logger(),
	)
	persistDone := make(chan error, 1)
	go func() { persistDone <- persistWorker.Run(workerCtx) }()

	// Everything before the recovered tip is already in the log
	recovered := res.NextSequence - 1
	persisted := func() int64 {
		if last := persistWorker.LastSequence(); last > recovered {
			return last
		}
		return recovered
	}
	snapshotter := persistence.NewSnapshotter(engine, snapMgr, persisted, metrics, log.With().Str("component", "snapshot").Logger())

	// --- Front ends ---
	g, gctx := errgroup.WithContext(ctx)

	var (
		subscriber  *ingestion.NATSSubscriber
		publishDone chan error
	)
	if cfg.NATSURL != "" {
		natsLog := log.With().Str("component", "nats").Logger()
		nc, js, err := ingestion.ConnectNATS(cfg.NATSURL, natsLog)
		if err != nil {
			return err
		}
		defer nc.Close()
		health.AddCheck("nats", func(context.Context) error {
			if !nc.IsConnected() {
				return errors.New("nats not connected")
			}
			return nil
		})

		if err := ingestion.EnsureStreams(ctx, js, natsLog); err != nil {
			return err
		}

		rawChan := make(chan ingestion.RawEvent, 4096)
		subscriber = ingestion.NewNATSSubscriber(js, rawChan, natsLog)
		if err := subscriber.Subscribe(gctx, ingestion.DefaultSubjects()); err != nil {
			return err
		}
		ingestor := ingestion.NewDepositIngestor(engine, metrics, log.With().Str("component", "ingest").Logger())
		g.Go(func() error {
			ingestor.Run(gctx, rawChan)
			return nil
		})

		if publishChan != nil {
			publisher := ingestion.NewOutboundPublisher(js, publishChan, metrics, log.With().Str("component", "publisher").Logger())
			publishDone = make(chan error, 1)
			go func() { publishDone <- publisher.Run(workerCtx) }()
		}
	} else {
		log.Warn().Msg("nats_url empty, deposit ingestion runs over HTTP only")
	}

	api := server.NewAPI(engine, health, metrics, log.With().Str("component", "http").Logger())
	handler, err := api.Handler()
	if err != nil {
		return err
	}
	g.Go(func() error {
		return server.ServeHTTP(gctx, cfg.HTTPAddr, handler, log.With().Str("component", "http").Logger())
	})

	grpcServer := server.NewGRPCServer(cfg.GRPCAddr, log.With().Str("component", "grpc").Logger())
	g.Go(func() error { return grpcServer.Serve(gctx) })

	if cfg.MetricsAddr != "" {
		g.Go(func() error { return serveMetrics(gctx, cfg.MetricsAddr, log) })
	}

	g.Go(func() error {
		snapshotter.Run(gctx, cfg.SnapshotInterval, snapshotCheckEvery)
		return nil
	})

	health.SetReady(true)
	grpcServer.SetServing(true)
	log.Info().
		Int64("sequence", engine.GetSequence()).
		Str("http", cfg.HTTPAddr).
		Str("grpc", cfg.GRPCAddr).
		Str("metrics", cfg.MetricsAddr).
		Msg("predictledger ready")

	// --- Shutdown ---
	<-gctx.Done()
	log.Info().Msg("shutting down")
	health.SetReady(false)
	grpcServer.SetServing(false)
	if subscriber != nil {
		subscriber.Stop()
	}

	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	// No front end can reach the engine any more; drain the workers.
	close(persistChan)
	if err := <-persistDone; err != nil {
		log.Error().Err(err).Msg("persistence worker")
	}
	if publishChan != nil {
		close(publishChan)
		if publishDone != nil {
			<-publishDone
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if seq, err := snapshotter.Take(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("final snapshot failed")
	} else if seq > 0 {
		log.Info().Int64("sequence", seq).Msg("final snapshot saved")
	}

	if err := engine.VerifyLedger(); err != nil {
		log.Error().Err(err).Msg("ledger verification failed at shutdown")
	}
	return runErr
}

func serveMetrics(ctx context.Context, addr string, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
