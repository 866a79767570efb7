package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/peer-review-service/internal/api/http"
	"github.com/spec-kit/peer-review-service/internal/api/http/handlers"
	"github.com/spec-kit/peer-review-service/internal/auth"
	"github.com/spec-kit/peer-review-service/internal/config"
	"github.com/spec-kit/peer-review-service/internal/events"
	"github.com/spec-kit/peer-review-service/internal/observability"
	"github.com/spec-kit/peer-review-service/internal/persistence"
	"github.com/spec-kit/peer-review-service/internal/ratelimit"
	"github.com/spec-kit/peer-review-service/internal/repository"
	"github.com/spec-kit/peer-review-service/internal/service"
	"github.com/spec-kit/peer-review-service/internal/worker"
)

// store is the selected persistence backend.
type store struct {
	identities repository.IdentityRepository
	reviews    repository.ReviewRepository
	pinger     repository.Pinger
	close      func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := openStore(ctx, cfg, logger)
	defer st.close()

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	dispatcher := events.NewInMemoryDispatcher(logger)
	metrics := observability.NewMetrics()

	var publisher events.Publisher
	if cfg.Notification.Enabled() {
		kafka := events.NewKafkaPublisher(cfg.Notification, logger)
		defer kafka.Close() //nolint:errcheck
		publisher = kafka
	} else {
		logger.Info("no notification broker configured; new identities are verified on registration")
	}
	notificationService := service.NewNotificationService(dispatcher, publisher, logger)
	worker.StartNotificationWorker(dispatcher, notificationService, metrics)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	revocations := auth.NewRedisRevocationStore(redis.Client)

	reviewService := service.NewReviewService(service.ReviewDependencies{
		IdentityRepo: st.identities,
		ReviewRepo:   st.reviews,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	identityService := service.NewIdentityService(service.IdentityDependencies{
		IdentityRepo:  st.identities,
		ReviewRepo:    st.reviews,
		ReviewService: reviewService,
		Logger:        logger,
	})
	adminService := service.NewAdminService(service.AdminDependencies{
		IdentityRepo:  st.identities,
		ReviewRepo:    st.reviews,
		ReviewService: reviewService,
		Dispatcher:    dispatcher,
		Logger:        logger,
		BcryptCost:    cfg.Auth.BcryptCost,
	})
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		IdentityRepo: st.identities,
		Tokens:       tokens,
		Revocations:  revocations,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	if err := authService.EnsureAdmin(ctx, cfg.Admin); err != nil {
		logger.Fatal("failed to seed administrator", zap.Error(err))
	}

	authMiddleware := auth.NewAuthMiddleware(tokens, st.identities, revocations, logger)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:          handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, cfg.Store.Driver, st.pinger, redis),
		Auth:            handlers.NewAuthHandler(authService),
		Reviews:         handlers.NewReviewsHandler(reviewService),
		Identities:      handlers.NewIdentitiesHandler(identityService),
		Admin:           handlers.NewAdminHandler(adminService, reviewService),
		AuthMiddleware:  authMiddleware,
		Metrics:         metrics,
		RegisterLimiter: limiter("register", cfg.RateLimit.RegisterPerMinute, redis, metrics, logger),
		LoginLimiter:    limiter("login", cfg.RateLimit.LoginPerMinute, redis, metrics, logger),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) store {
	switch cfg.Store.Driver {
	case config.StoreDriverMongo:
		m, err := persistence.NewMongo(ctx, cfg.Mongo, logger)
		if err != nil {
			logger.Fatal("failed to connect mongo", zap.Error(err))
		}
		if err := repository.EnsureMongoIndexes(ctx, m.DB); err != nil {
			logger.Fatal("failed to ensure mongo indexes", zap.Error(err))
		}
		return store{
			identities: repository.NewMongoIdentityRepository(m.DB),
			reviews:    repository.NewMongoReviewRepository(m.DB),
			pinger:     m,
			close:      func() { m.Close(context.Background()) },
		}
	case config.StoreDriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		mem := repository.NewMemoryStore()
		return store{identities: mem.Identities(), reviews: mem.Reviews(), pinger: mem, close: func() {}}
	default:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		pool := pg.PoolHandle()
		return store{
			identities: repository.NewIdentityRepository(pool),
			reviews:    repository.NewReviewRepository(pool),
			pinger:     pg,
			close:      pg.Close,
		}
	}
}

// limiter prefers the shared Redis window and falls back to a per-process
// bucket while Redis is unreachable.
func limiter(scope string, perMinute int, redis *persistence.Redis, metrics *observability.Metrics, logger *zap.Logger) fiber.Handler {
	if perMinute <= 0 {
		return nil
	}
	primary := ratelimit.NewRedisLimiter(redis.Client, scope, perMinute, time.Minute)
	fallback := ratelimit.NewLocalLimiter(perMinute, time.Minute)
	return ratelimit.Middleware(scope, primary, fallback, metrics, logger)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
