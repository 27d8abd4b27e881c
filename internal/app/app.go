package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/shopease/internal/auth"
	"github.com/utafrali/shopease/internal/client"
	"github.com/utafrali/shopease/internal/config"
	"github.com/utafrali/shopease/internal/event"
	"github.com/utafrali/shopease/internal/gate"
	handler "github.com/utafrali/shopease/internal/handler/http"
	"github.com/utafrali/shopease/internal/repository"
	esrepo "github.com/utafrali/shopease/internal/repository/elasticsearch"
	"github.com/utafrali/shopease/internal/repository/memory"
	"github.com/utafrali/shopease/internal/repository/postgres"
	redisrepo "github.com/utafrali/shopease/internal/repository/redis"
	"github.com/utafrali/shopease/internal/service"
	"github.com/utafrali/shopease/pkg/database"
	"github.com/utafrali/shopease/pkg/health"
	"github.com/utafrali/shopease/pkg/httpclient"
	pkgkafka "github.com/utafrali/shopease/pkg/kafka"
	"github.com/utafrali/shopease/pkg/middleware"
	"github.com/utafrali/shopease/pkg/tracing"
)

const (
	serviceName    = "storefront"
	serviceVersion = "0.1.0"
)

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	rdb            *redis.Client
	search         *esrepo.ProductRepository
	producer       *pkgkafka.Producer
	stockConsumer  *pkgkafka.Consumer
	loginLimiter   *middleware.RateLimiter
	httpServer     *http.Server
	tracerShutdown tracing.ShutdownFunc
}

// stores is the repository set for the configured backends.
type stores struct {
	products repository.ProductRepository
	users    repository.UserRepository
	orders   repository.OrderRepository
	carts    repository.CartRepository
	targets  gate.TargetStore
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	if err := a.init(ctx); err != nil {
		a.closeResources()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	// Initialize OpenTelemetry tracing.
	tracingCfg := cfg.Tracing
	tracingCfg.ServiceName = serviceName
	tracingCfg.ServiceVersion = serviceVersion
	tracingCfg.Environment = cfg.Environment
	tracerShutdown, err := tracing.Init(ctx, tracingCfg)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	healthHandler := health.NewHandler()

	st, err := a.openStores(ctx, healthHandler)
	if err != nil {
		return err
	}

	// Initialize Kafka producer. Without brokers events are dropped.
	var publisher event.Publisher
	if cfg.KafkaEnabled() {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = a.producer
		if err := a.producer.Ping(ctx); err != nil {
			logger.Warn("kafka brokers unreachable, continuing in degraded mode",
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
		}
		producer := a.producer
		healthHandler.Register("kafka", func(ctx context.Context) error {
			return producer.Ping(ctx)
		})
	} else {
		logger.Info("kafka disabled, domain events will not be published")
	}
	eventProducer := event.NewProducer(publisher, logger)

	// Build the dependency graph.
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL())
	g := gate.New(st.targets)

	catalogService := service.NewCatalogService(st.products, logger)
	cartService := service.NewCartService(st.carts, catalogService, eventProducer, logger, cfg.CartTTLDuration())
	authService := service.NewAuthService(st.users, tokens, g, logger)
	orderService := service.NewOrderService(st.orders, cartService, a.orderBackend(), eventProducer, logger)
	dashboardService := service.NewDashboardService(st.products, st.orders, st.users)
	sessions := service.NewSessionResolver(
		service.ClaimsIdentity{},
		service.NewUserRoleSource(st.users, cfg.RoleLookupTimeout),
		g,
		logger,
	)

	if err := catalogService.EnsureSeed(ctx); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	if a.search != nil {
		if err := a.search.Reindex(ctx); err != nil {
			logger.Warn("failed to rebuild search index, searches fall back to the store",
				slog.String("error", err.Error()),
			)
		}
	}
	if err := authService.EnsureAdmins(ctx, cfg.AdminEmails, cfg.AdminPassword); err != nil {
		return fmt.Errorf("ensure admins: %w", err)
	}

	// Stock updates from the inventory service.
	if cfg.KafkaEnabled() {
		var idempotency pkgkafka.IdempotencyStore = pkgkafka.NewMemoryIdempotencyStore(cfg.KafkaIdempotencyTTL)
		if a.rdb != nil {
			idempotency = pkgkafka.NewRedisIdempotencyStore(a.rdb, "storefront:events:", cfg.KafkaIdempotencyTTL)
		}
		a.stockConsumer = event.NewStockConsumer(event.StockConsumerConfig{
			Brokers:     cfg.KafkaBrokers,
			GroupID:     cfg.KafkaGroupID,
			Idempotency: idempotency,
			DeadLetter:  a.producer,
		}, catalogService, logger)
	}

	a.loginLimiter = middleware.NewRateLimiter(cfg.LoginRateRPS, cfg.LoginRateBurst, logger)

	// HTTP router.
	router := handler.NewRouter(handler.Services{
		Catalog:   catalogService,
		Carts:     cartService,
		Auth:      authService,
		Orders:    orderService,
		Dashboard: dashboardService,
		Sessions:  sessions,
	}, healthHandler, handler.RouterConfig{
		ServiceName: serviceName,
		Tokens:      tokens.Validator(),
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Environment:    cfg.Environment,
		},
		LoginLimiter: a.loginLimiter,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return nil
}

// openStores connects the configured backends and registers their health
// checks.
func (a *App) openStores(ctx context.Context, healthHandler *health.Handler) (*stores, error) {
	cfg, logger := a.cfg, a.logger
	st := &stores{}

	switch cfg.DataStore {
	case config.StorePostgres:
		pool, err := database.NewPostgresPool(ctx, &cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.pool = pool
		logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.Postgres.Host),
			slog.Int("port", cfg.Postgres.Port),
			slog.String("database", cfg.Postgres.DBName),
		)
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
			logger.Warn("failed to register pool metrics", slog.String("error", err.Error()))
		}
		if err := database.RunMigrations(ctx, pool, postgres.Migrations(), logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)

		st.products = postgres.NewProductRepository(pool)
		st.users = postgres.NewUserRepository(pool)
		st.orders = postgres.NewOrderRepository(pool)
		healthHandler.Register("postgres", func(ctx context.Context) error {
			return pool.Ping(ctx)
		})
	default:
		st.products = memory.NewProductRepository()
		st.users = memory.NewUserRepository()
		st.orders = memory.NewOrderRepository()
	}

	if cfg.SearchURL != "" {
		client, err := esrepo.NewClient(cfg.SearchURL)
		if err != nil {
			return nil, err
		}
		search := esrepo.NewProductRepository(st.products, client, cfg.SearchIndex, logger)
		if err := search.EnsureIndex(ctx); err != nil {
			return nil, fmt.Errorf("connect to elasticsearch: %w", err)
		}
		a.search = search
		st.products = search
		logger.Info("catalog search served by Elasticsearch",
			slog.String("url", cfg.SearchURL),
			slog.String("index", cfg.SearchIndex),
		)
		healthHandler.Register("elasticsearch", search.Ping)
	}

	switch cfg.CartStore {
	case config.StoreRedis:
		rdb, err := database.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.rdb = rdb
		logger.Info("connected to Redis",
			slog.String("addr", cfg.Redis.Addr),
			slog.Int("db", cfg.Redis.DB),
		)

		st.carts = redisrepo.NewCartRepository(rdb, cfg.CartTTLDuration())
		st.targets = redisrepo.NewTargetStore(rdb, cfg.LoginTargetTTL)
		healthHandler.Register("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	default:
		st.carts = memory.NewCartRepository()
		st.targets = gate.NewMemory(cfg.LoginTargetTTL)
	}

	logger.Info("stores ready",
		slog.String("data_store", cfg.DataStore),
		slog.String("cart_store", cfg.CartStore),
	)
	return st, nil
}

// orderBackend returns the remote order client, or nil when orders stay in
// the local store.
func (a *App) orderBackend() service.OrderSubmitter {
	if a.cfg.OrderBackendURL == "" {
		return nil
	}

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = a.cfg.OrderBackendTimeout
	breaker := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpCfg),
		httpclient.DefaultCircuitBreakerConfig("order-backend"),
		a.logger,
	)

	a.logger.Info("forwarding orders to remote backend", slog.String("url", a.cfg.OrderBackendURL))
	return client.NewOrderClient(breaker, a.cfg.OrderBackendURL, a.logger)
}

// Run starts the HTTP server and the stock consumer, then blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if a.stockConsumer != nil {
		go func() {
			if err := a.stockConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("stock consumer: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.closeResources()

	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(shutdownCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}

	a.logger.Info("application shutdown complete")
	return nil
}

// closeResources releases whatever init managed to open.
func (a *App) closeResources() {
	if a.stockConsumer != nil {
		if err := a.stockConsumer.Close(); err != nil {
			a.logger.Error("stock consumer close error", slog.String("error", err.Error()))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
