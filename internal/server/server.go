package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"catalog-service/internal/cache"
	"catalog-service/internal/config"
	"catalog-service/internal/events"
	custommiddleware "catalog-service/internal/middleware"
	"catalog-service/internal/repository"
	"catalog-service/internal/repository/memory"
	"catalog-service/internal/service"
	"catalog-service/internal/transport"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redis.Client

	notifier      *events.Notifier
	subscriptions []events.Subscription

	Categories service.CategoryService
	Products   service.ProductService
}

// repositories picks the storage backend named by cfg.Database.Driver.
func repositories(cfg *config.Config, pool *pgxpool.Pool) (repository.CategoryRepository, repository.ProductRepository, error) {
	switch cfg.Database.Driver {
	case "memory":
		return memory.NewCategoryRepository(), memory.NewProductRepository(), nil
	case "", "postgres":
		if pool == nil {
			return nil, nil, errors.New("postgres driver selected but no pool was provided")
		}
		return repository.NewCategoryRepository(pool), repository.NewProductRepository(pool), nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// NewServer wires repositories, services and handlers. pool may be nil with
// the memory driver; redisClient may be nil, which disables the product cache
// and rate limiting and keeps change events in process.
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger, pool *pgxpool.Pool, redisClient *redis.Client) (*Server, error) {
	categoryRepo, productRepo, err := repositories(cfg, pool)
	if err != nil {
		return nil, err
	}

	s := &Server{config: cfg, logger: logger, pool: pool, redis: redisClient}

	var bus events.Bus = events.NewLocalBus(logger)
	if redisClient != nil {
		bus = events.NewRedisBus(redisClient, logger)
	}
	s.notifier = events.NewNotifier(bus, logger)

	// a nil *cache.Bucket must not end up inside the interface
	var productCache service.ProductCache
	if redisClient != nil {
		bucket := cache.NewStore(redisClient, cfg.Cache.ProductsTTL).Bucket("products")
		productCache = bucket

		sub, err := cache.NewProductInvalidator(bucket, logger).Subscribe(ctx, bus, cfg.Bus.ProductsChannel)
		if err != nil {
			return nil, fmt.Errorf("failed to subscribe product cache invalidation: %w", err)
		}
		s.subscriptions = append(s.subscriptions, sub)
	}

	// Initialize services
	tree := service.NewCategoryTree(categoryRepo, logger)
	linker := service.NewVariantLinker(productRepo, logger)
	s.Categories = service.NewCategoryService(tree, productRepo, logger)
	s.Products = service.NewProductService(productRepo, tree, linker, s.notifier, productCache, service.ProductServiceConfig{
		MaxCategoriesPerProduct: cfg.Catalog.MaxCategoriesPerProduct,
		ProductsChannel:         cfg.Bus.ProductsChannel,
	}, logger)

	// Create router
	router := chi.NewRouter()
	for _, mw := range custommiddleware.DefaultMiddlewareStack(logger, "/health") {
		router.Use(mw)
	}
	router.Use(custommiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.Server.Env == "development"))

	// Health check endpoint
	router.Get("/health", s.health)

	router.Route("/api", func(r chi.Router) {
		if redisClient != nil {
			r.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
				RequestsPerWindow: cfg.RateLimit.Requests,
				Window:            cfg.RateLimit.Window,
				KeyPrefix:         "catalog_rate_limit",
			}, logger))
		}
		transport.NewCategoryHandler(s.Categories, logger).RegisterRoutes(r)
		transport.NewProductHandler(s.Products, logger).RegisterRoutes(r)
	})

	s.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s, nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	code := http.StatusOK

	if s.pool != nil {
		if err := s.pool.Ping(r.Context()); err != nil {
			status["database"] = "down"
			code = http.StatusServiceUnavailable
		}
	}
	if s.redis != nil {
		if err := s.redis.Ping(r.Context()).Err(); err != nil {
			status["redis"] = "down"
			code = http.StatusServiceUnavailable
		}
	}
	if code != http.StatusOK {
		status["status"] = "degraded"
	}

	custommiddleware.RespondWithJSON(w, code, status)
}

// Close stops event delivery and releases the connections the server owns.
func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	for _, sub := range s.subscriptions {
		if err := sub.Close(); err != nil {
			s.logger.Error("Failed to close subscription", zap.Error(err))
		}
	}
	s.notifier.Close()

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}

	s.logger.Sync()
	return nil
}
