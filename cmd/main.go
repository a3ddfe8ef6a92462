package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iCADcl/IDEFWeb/internal/cart"
	"github.com/iCADcl/IDEFWeb/internal/catalog"
	"github.com/iCADcl/IDEFWeb/internal/checkout"
	"github.com/iCADcl/IDEFWeb/internal/gateway"
	h "github.com/iCADcl/IDEFWeb/internal/http"
	"github.com/iCADcl/IDEFWeb/internal/orderapi"
	"github.com/iCADcl/IDEFWeb/internal/publisher"
	"github.com/iCADcl/IDEFWeb/internal/repository"
)

type Config struct {
	HTTPPort         string
	RedisAddr        string
	OrderAPIURL      string
	GatewayURL       string
	GatewaySecretKey string
	KafkaBrokers     []string
	DBPath           string
	MigrationsPath   string
	RequestTimeout   time.Duration
	UpstreamTimeout  time.Duration
	ShutdownTimeout  time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		OrderAPIURL:      getEnv("ORDER_API_URL", "http://localhost:8000"),
		GatewayURL:       getEnv("PAYMENT_GATEWAY_URL", "https://api.stripe.com"),
		GatewaySecretKey: getEnv("PAYMENT_GATEWAY_SECRET_KEY", ""),
		KafkaBrokers:     strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		DBPath:           getEnv("DB_PATH", "checkout.db"),
		MigrationsPath:   getEnv("MIGRATIONS_PATH", "./migrations"),
		RequestTimeout:   30 * time.Second,
		UpstreamTimeout:  10 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	pingCancel()

	repo, err := repository.NewRepository(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open checkout database", zap.Error(err))
	}
	defer repo.Close()
	if err := repo.RunMigrations(cfg.MigrationsPath); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	sessions := cart.NewSessions(cart.NewRedisStorage(redisClient), logger.Named("cart"))
	catalogClient := catalog.NewClient(cfg.OrderAPIURL, cfg.UpstreamTimeout)
	orderClient := orderapi.NewClient(cfg.OrderAPIURL, cfg.UpstreamTimeout, logger.Named("orderapi"))
	gatewayClient := gateway.NewClient(cfg.GatewayURL, cfg.GatewaySecretKey, cfg.UpstreamTimeout)

	orchestrator := checkout.NewOrchestrator(repo, orderClient, gatewayClient, logger.Named("checkout"))

	pollerCtx, stopPoller := context.WithCancel(context.Background())
	poller := publisher.NewOutboxPoller(repo, orderClient, logger.Named("publisher"), cfg.KafkaBrokers...)
	go poller.Run(pollerCtx)

	cartHandler := h.NewCartHandler(sessions, catalogClient, cfg.RequestTimeout, logger.Named("http"))
	checkoutHandler := h.NewCheckoutHandler(sessions, orchestrator, cfg.RequestTimeout, logger.Named("http"))
	productHandler := h.NewProductHandler(catalogClient, cfg.RequestTimeout, logger.Named("http"))

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(h.RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(h.SessionMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
			r.Delete("/", cartHandler.ClearCart)
		})
		r.Post("/checkout", checkoutHandler.Checkout)
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.GetProducts)
			r.Get("/{slug}", productHandler.GetProductBySlug)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("storefront starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stopPoller()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}
