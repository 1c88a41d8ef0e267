package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/StudyingHUYANG/VisionMark/internal/config"
	"github.com/StudyingHUYANG/VisionMark/internal/db"
	"github.com/StudyingHUYANG/VisionMark/internal/handler"
	"github.com/StudyingHUYANG/VisionMark/internal/metrics"
	"github.com/StudyingHUYANG/VisionMark/internal/middleware"
	"github.com/StudyingHUYANG/VisionMark/internal/repository"
	"github.com/StudyingHUYANG/VisionMark/internal/router"
	"github.com/StudyingHUYANG/VisionMark/internal/service"
)

// stores bundles the persistence interfaces the services need.
type stores struct {
	segments   repository.SegmentStore
	submitters repository.SubmitterStore
	stats      repository.StatsStore
	keys       service.KeyLister
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		middleware.InitLogger("info", "visionmark-api")
		middleware.Logger.Fatal().Err(err).Msg("invalid configuration")
	}
	middleware.InitLogger(cfg.LogLevel, "visionmark-api")
	logger := middleware.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	var st stores
	switch cfg.Store {
	case config.StoreMemory:
		mem := repository.NewMemoryStore()
		st = stores{segments: mem, submitters: mem, stats: mem, keys: mem}
		logger.Warn().Msg("using in-memory store, data is lost on restart")
	default:
		pool, err = db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxRetries: 10, RetryInterval: 2 * time.Second}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("failed to apply schema")
		}
		metrics.RegisterPool(pool)

		segRepo := repository.NewSegmentRepo(pool)
		st = stores{
			segments:   segRepo,
			submitters: repository.NewUserRepo(pool),
			stats:      repository.NewStatsRepo(pool),
			keys:       segRepo,
		}
	}

	cache := service.NewCacheService(cfg.RedisURL, cfg.ActiveSetCacheTTL, logger)
	defer cache.Close()

	policy := service.Policy{
		Threshold:        cfg.Consensus.ConfidenceThreshold,
		MinVotes:         cfg.Consensus.MinVotes,
		Z:                cfg.Consensus.WilsonZ,
		PriorUpvotes:     cfg.Consensus.PriorUpvotes,
		ProvisionalTrust: cfg.Consensus.ProvisionalTrust,
	}
	if !policy.ProvisionalTrust {
		logger.Info().Msg("provisional trust disabled, new submissions stay hidden until corroborated")
	}

	engine := service.NewSegmentService(st.segments, cache, policy, cfg.Consensus.PointsPerSubmission, logger)
	worker := service.NewResolveWorker(pool, st.keys, engine, cfg.ResolveBatchWindow, logger)

	app := fiber.New(fiber.Config{
		AppName:      "VisionMark API",
		ServerHeader: "VisionMark",
	})
	router.Setup(app, &router.Handlers{
		Segment: handler.NewSegmentHandler(engine, cfg.IPHashSalt),
		User:    handler.NewUserHandler(service.NewUserService(st.submitters)),
		Stats:   handler.NewStatsHandler(service.NewStatsService(st.stats)),
		Health:  handler.NewHealthHandler(pool, cache.Client()),
	}, cfg.CORSOrigins)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return worker.Start(gctx)
	})

	g.Go(func() error {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Environment).
			Str("store", cfg.Store).
			Msg("VisionMark backend starting")
		return app.Listen(":"+cfg.Port, fiber.ListenConfig{DisableStartupMessage: true})
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}
