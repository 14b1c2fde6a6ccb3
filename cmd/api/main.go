package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"github.com/flicky/go-storefront-api/internal/config"
	"github.com/flicky/go-storefront-api/internal/handler"
	"github.com/flicky/go-storefront-api/internal/middleware"
	"github.com/flicky/go-storefront-api/internal/migrations"
	"github.com/flicky/go-storefront-api/internal/oauth"
	"github.com/flicky/go-storefront-api/internal/payment"
	"github.com/flicky/go-storefront-api/internal/repository"
	"github.com/flicky/go-storefront-api/internal/service"
	"github.com/flicky/go-storefront-api/internal/worker"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}
	if cfg.Stripe.SecretKey == "" {
		log.Error("STRIPE_SECRET_KEY is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
	if cfg.DB.AutoMigrate {
		if err := migrations.Up(cfg.DB.MigrateURL()); err != nil {
			log.Error("apply migrations", "error", err)
			os.Exit(1)
		}
		log.Info("database schema up to date")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN())
	if err != nil {
		log.Error("parse db config", "error", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = cfg.DB.MaxConns

	dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		log.Error("ping database", "error", err)
		os.Exit(1)
	}
	log.Info("connected to PostgreSQL")

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Redis")

	// RabbitMQ. The consumer and the publisher get separate channels.
	amqpConn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		log.Error("connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()

	consumeCh, err := amqpConn.Channel()
	if err != nil {
		log.Error("open RabbitMQ channel", "error", err)
		os.Exit(1)
	}
	defer consumeCh.Close()

	if err := worker.SetupRabbitMQ(consumeCh); err != nil {
		log.Error("setup RabbitMQ", "error", err)
		os.Exit(1)
	}

	publishCh, err := amqpConn.Channel()
	if err != nil {
		log.Error("open RabbitMQ publish channel", "error", err)
		os.Exit(1)
	}
	defer publishCh.Close()
	log.Info("connected to RabbitMQ")

	// Payments
	gateway := payment.NewBreakerGateway(
		payment.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.Timeout),
		payment.BreakerSettings{MaxFailures: cfg.Stripe.MaxFailures, OpenTimeout: cfg.Stripe.OpenTimeout},
		log,
	)

	// Repositories
	userRepo := repository.NewUserRepository(dbPool)
	productRepo := repository.NewProductRepository(dbPool)
	cartRepo := repository.NewCartRepository(dbPool)
	orderRepo := repository.NewOrderRepository(dbPool)

	// Services
	authSvc := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	if cfg.Google.ClientID != "" {
		verifier, err := oauth.NewGoogleVerifier(ctx, cfg.Google.ClientID, cfg.Google.Timeout)
		if err != nil {
			log.Error("setup google sign-in", "error", err)
			os.Exit(1)
		}
		authSvc.WithGoogle(verifier)
		log.Info("google sign-in enabled")
	}
	userSvc := service.NewUserService(userRepo)
	productSvc := service.NewProductService(productRepo, redisClient)
	cartSvc := service.NewCartService(cartRepo, productRepo)
	checkoutSvc := service.NewCheckoutService(orderRepo, gateway, worker.NewPublisher(publishCh), cfg.Stripe.Currency, log)
	orderSvc := service.NewOrderService(orderRepo)

	// Worker
	orderWorker := worker.NewOrderWorker(consumeCh, orderRepo, productRepo, redisClient, log)

	router := handler.NewRouter(handler.Handlers{
		Auth:     handler.NewAuthHandler(authSvc),
		User:     handler.NewUserHandler(userSvc),
		Product:  handler.NewProductHandler(productSvc),
		Cart:     handler.NewCartHandler(cartSvc),
		Checkout: handler.NewCheckoutHandler(checkoutSvc),
		Order:    handler.NewOrderHandler(orderSvc),
		Health: handler.NewHealthHandler(map[string]handler.HealthCheck{
			"postgres": dbPool.Ping,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
			"rabbitmq": func(context.Context) error {
				if amqpConn.IsClosed() {
					return amqp.ErrClosed
				}
				return nil
			},
		}),
	}, handler.RouterConfig{
		JWTSecret:   cfg.JWT.Secret,
		Users:       userRepo,
		AuthLimiter: middleware.NewRateLimiter(cfg.RateLimit.AuthRPS, cfg.RateLimit.AuthBurst),
		Log:         log,
	})

	if err := orderWorker.Start(ctx); err != nil {
		log.Error("start order worker", "error", err)
		os.Exit(1)
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(router)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      corsHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}

	orderWorker.Stop()
	time.Sleep(500 * time.Millisecond)
	cancel()
	log.Info("server stopped")
}
