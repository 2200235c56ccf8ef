package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"tealindex/internal/carimport"
	"tealindex/internal/config"
	"tealindex/internal/cursorstore"
	"tealindex/internal/dispatch"
	"tealindex/internal/firehose"
	"tealindex/internal/identity"
	"tealindex/internal/ingest"
	"tealindex/internal/logging"
	"tealindex/internal/store"
	"tealindex/internal/store/pgxstore"
	"tealindex/internal/store/sqlitestore"
	"tealindex/internal/tracing"
)

func main() {
	runImporter := flag.Bool("car-importer", true, "Run the CAR-import job worker alongside the firehose consumer")
	sqlitePath := flag.String("sqlite-path", "./tealindex.db", "Path to the sqlite database, used when DATABASE_URL is unset")
	flag.Parse()

	cfg := config.FromEnv()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTLPEndpoint != "" {
		tp, err := tracing.Init(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize tracing")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("tracer shutdown failed")
			}
		}()
	}

	recordStore, closeStore, err := openStore(ctx, cfg, *sqlitePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open record store")
	}
	defer closeStore()

	cursorDB, err := cursorstore.Open(cursorstore.Options{Path: cfg.CursorFile})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open cursor store")
	}
	defer cursorDB.Close()

	registry := dispatch.NewRegistry()
	registry.Register(ingest.NewPlayIngestor(recordStore))
	registry.Register(ingest.NewProfileIngestor(recordStore, identity.NewResolver(cfg.AppHost)))
	registry.Register(ingest.NewStatusIngestor(recordStore))

	cursor := dispatch.NewCursor(cursorDB.Get())
	dispatcher := dispatch.NewDispatcher(registry, cursor)
	persister := dispatch.NewCursorPersister(cursor, cursorDB)

	firehoseConfig := firehose.DefaultConfig()
	consumer, err := firehose.NewConsumer(firehoseConfig, cursor.Func())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct firehose consumer")
	}

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.Handler(),
	}

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("starting metrics server")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		return consumer.Run(gctx)
	})

	group.Go(func() error {
		return dispatcher.Run(gctx, consumer.Messages())
	})

	group.Go(func() error {
		return persister.Run(gctx)
	})

	if *runImporter {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Str("redis_url", cfg.RedisURL).Msg("invalid REDIS_URL")
		}
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()

		queue := carimport.NewQueue(redisClient)
		worker := carimport.NewWorker(queue, identity.NewResolver(cfg.AppHost), registry)

		group.Go(func() error {
			log.Info().Msg("starting CAR import worker")
			return worker.Run(gctx)
		})
	}

	log.Info().Msg("tealindex started")

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("metrics server shutdown error")
	}

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Warn().Err(err).Msg("tealindex exited with error")
	}

	log.Info().Msg("tealindex stopped")
}

func openStore(ctx context.Context, cfg config.Config, sqlitePath string) (store.Store, func(), error) {
	if cfg.DatabaseURL != "" {
		s, err := pgxstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}

	s, err := sqlitestore.Open(sqlitePath)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}
