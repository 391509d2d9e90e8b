package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/goconsolidation/internal/adapter/http"
	"github.com/iho/goconsolidation/internal/adapter/http/handler"
	"github.com/iho/goconsolidation/internal/adapter/http/middleware"
	"github.com/iho/goconsolidation/internal/adapter/messaging/redisstream"
	"github.com/iho/goconsolidation/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/goconsolidation/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/goconsolidation/internal/adapter/repository/redis"
	"github.com/iho/goconsolidation/internal/infrastructure/config"
	"github.com/iho/goconsolidation/internal/infrastructure/metrics"
	"github.com/iho/goconsolidation/internal/infrastructure/postgres"
	"github.com/iho/goconsolidation/internal/infrastructure/redis"
	"github.com/iho/goconsolidation/internal/infrastructure/retention"
	"github.com/iho/goconsolidation/internal/usecase"
)

// processedEvents is the processed events ledger plus its retention hook.
type processedEvents interface {
	usecase.ProcessedEventRepository
	retention.EventPurger
}

// storage is the balance store selected by STORE_DRIVER.
type storage struct {
	txManager usecase.TransactionManager
	balances  usecase.DailyBalanceRepository
	processed processedEvents
	pinger    handler.Pinger
	close     func()
}

func openStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*storage, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn().Msg("using in-memory balance store, projections are lost on restart")
		return memoryStorage(memory.NewStore()), nil
	}

	if cfg.RunMigrations {
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, logger); err != nil {
			return nil, err
		}
	}

	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info().Msg("connected to postgres")

	return postgresStorage(pool), nil
}

func memoryStorage(store *memory.Store) *storage {
	return &storage{
		txManager: store,
		balances:  memory.NewDailyBalanceRepository(store),
		processed: memory.NewProcessedEventRepository(store),
		close:     func() {},
	}
}

func postgresStorage(pool *pgxpool.Pool) *storage {
	return &storage{
		txManager: postgresRepo.NewTxManager(pool),
		balances:  postgresRepo.NewDailyBalanceRepository(pool),
		processed: postgresRepo.NewProcessedEventRepository(pool),
		pinger:    pool,
		close:     pool.Close,
	}
}

// app is the wired service, ready to be started.
type app struct {
	cfg         *config.Config
	logger      zerolog.Logger
	router      http.Handler
	consumer    *redisstream.Consumer
	purger      *retention.Purger
	rateLimiter *middleware.RateLimiter
}

// newApp wires use cases, adapters and HTTP around store. redisClient may be
// nil, which disables the stream consumer, caches and HTTP idempotency.
func newApp(cfg *config.Config, logger zerolog.Logger, store *storage, redisClient *goredis.Client, m *metrics.Metrics, gatherer prometheus.Gatherer) *app {
	idGen := postgresRepo.NewULIDGenerator()

	projectionCfg := usecase.ProjectionConfig{
		TxManager: store.txManager,
		Balances:  store.balances,
		Processed: store.processed,
		Retrier: postgresRepo.NewRetrier(postgresRepo.RetrierConfig{
			MaxRetries:      cfg.ProjectionMaxRetries,
			InitialInterval: cfg.ProjectionInitialInterval,
			MaxInterval:     cfg.ProjectionMaxInterval,
			MaxElapsedTime:  cfg.ProjectionMaxElapsed,
			Logger:          logger,
		}),
		Observer:  m,
		Logger:    logger,
		DedupTTL:  cfg.DedupTTL,
		CacheTTL:  cfg.BalanceCacheTTL,
		TxTimeout: cfg.ProjectionTxTimeout,
	}

	var (
		cache       usecase.BalanceCache
		idempotency usecase.IdempotencyStore
		consumer    *redisstream.Consumer
		checks      = map[string]handler.Pinger{"postgres": store.pinger}
	)

	if redisClient != nil {
		balanceCache := redisRepo.NewBalanceCache(redisClient)
		cache = balanceCache
		projectionCfg.Cache = balanceCache
		projectionCfg.Dedup = redisRepo.NewEventDeduplicator(redisClient)
		idempotency = redisRepo.NewIdempotencyStore(redisClient)
		checks["redis"] = handler.PingerFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	projectionUC := usecase.NewProjectionUseCase(projectionCfg)
	queryUC := usecase.NewBalanceQueryUseCase(store.balances, cache, cfg.BalanceCacheTTL, m, logger)

	if redisClient != nil && cfg.EventsEnabled {
		consumer = redisstream.NewConsumer(redisstream.Config{
			Client:           redisClient,
			Handler:          projectionUC,
			Observer:         m,
			Logger:           logger,
			Stream:           cfg.EventsStream,
			Group:            cfg.EventsGroup,
			Consumer:         cfg.EventsConsumer,
			DeadLetterStream: cfg.EventsDeadLetter,
			Workers:          cfg.EventsWorkers,
			BatchSize:        cfg.EventsBatchSize,
			Block:            cfg.EventsBlock,
			ClaimInterval:    cfg.EventsClaimInterval,
			MinIdle:          cfg.EventsMinIdle,
			MaxDeliveries:    cfg.EventsMaxDeliveries,
		})
	}

	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	var metricsHandler http.Handler
	if gatherer != nil {
		metricsHandler = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		BalanceHandler:   handler.NewBalanceHandler(queryUC, cfg.ReportMaxDays),
		EventHandler:     handler.NewEventHandler(projectionUC, idGen),
		HealthHandler:    handler.NewHealthHandler(checks),
		IdempotencyStore: idempotency,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		RateLimiter:      rateLimiter,
		IDGenerator:      idGen,
		Logger:           logger,
		MetricsHandler:   metricsHandler,

		ReconciliationHandler: handler.NewReconciliationHandler(
			usecase.NewReconciliationUseCase(store.balances, logger),
			cfg.ReportMaxDays,
		),
	})

	return &app{
		cfg:    cfg,
		logger: logger,
		router: router,
		purger: retention.NewPurger(retention.Config{
			Repo:      store.processed,
			Logger:    logger,
			Retention: cfg.ProcessedEventsRetention,
			Interval:  cfg.PurgeInterval,
		}),
		consumer:    consumer,
		rateLimiter: rateLimiter,
	}
}

// start runs every background loop and the HTTP server until ctx is done.
func (a *app) start(ctx context.Context) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", a.cfg.HTTPPort),
		Handler:      a.router,
		ReadTimeout:  a.cfg.HTTPReadTimeout,
		WriteTimeout: a.cfg.HTTPWriteTimeout,
		IdleTimeout:  a.cfg.HTTPIdleTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info().Str("port", a.cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTPShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if a.consumer != nil {
		g.Go(func() error {
			return a.consumer.Start(ctx)
		})
	}

	g.Go(func() error {
		return ignoreCanceled(a.purger.Start(ctx))
	})

	if a.rateLimiter != nil {
		g.Go(func() error {
			ticker := time.NewTicker(a.cfg.RateLimitIdle)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if n := a.rateLimiter.Cleanup(a.cfg.RateLimitIdle); n > 0 {
						a.logger.Debug().Int("removed", n).Msg("idle rate limiters dropped")
					}
				}
			}
		})
	}

	return g.Wait()
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer redisClient.Close()
		logger.Info().Msg("connected to redis")
	}

	a := newApp(cfg, logger, store, redisClient, metrics.New(), nil)
	return a.start(ctx)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
