package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/villa-stay/service-booking/internal/adapter"
	"github.com/villa-stay/service-booking/internal/application"
	"github.com/villa-stay/service-booking/internal/config"
	"github.com/villa-stay/service-booking/internal/events"
	"github.com/villa-stay/service-booking/internal/handler"
	"github.com/villa-stay/service-booking/internal/platform/database"
	"github.com/villa-stay/service-booking/internal/platform/health"
	"github.com/villa-stay/service-booking/internal/platform/kafka"
	"github.com/villa-stay/service-booking/internal/platform/logger"
	"github.com/villa-stay/service-booking/internal/platform/middleware"
	"github.com/villa-stay/service-booking/internal/repository"
	"github.com/villa-stay/service-booking/migrations"
)

const serviceName = "service-booking"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("starting "+serviceName,
		zap.String("port", cfg.Port),
		zap.String("env", cfg.AppEnv),
		zap.String("provider", cfg.Provider.Name),
	)

	// Connect to database
	db, err := database.Connect(cfg.DBConfig, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.IsDevelopment() {
		if err := db.AutoMigrate(&repository.BookingModel{}, &repository.CouponModel{}); err != nil {
			zapLogger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		zapLogger.Info("database migration completed (dev auto-migrate)")
	} else if err := database.RunMigrations(cfg.DBConfig.DatabaseURL(), migrations.FS, ".", zapLogger); err != nil {
		zapLogger.Fatal("failed to run migrations", zap.Error(err))
	}

	// Initialize repositories
	bookingRepo := repository.NewBookingRepository(db)
	couponRepo := repository.NewGormCouponRepository(db)

	// Initialize payment provider
	var provider adapter.PaymentProvider
	if cfg.Provider.Name == "mock" {
		provider = adapter.NewMockProvider(cfg.Provider.BaseURL, zapLogger)
	} else {
		provider = adapter.NewKomojuClient(adapter.KomojuConfig{
			APIKey:               cfg.Provider.APIKey,
			MerchantUUID:         cfg.Provider.MerchantUUID,
			Endpoint:             cfg.Provider.Endpoint,
			BaseURL:              cfg.Provider.BaseURL,
			Locale:               cfg.Provider.Locale,
			DefaultPaymentMethod: cfg.Provider.DefaultPaymentMethod,
			Timeout:              cfg.Provider.RequestTimeout,
		}, zapLogger)
	}
	verifier := adapter.NewWebhookVerifier(cfg.Provider.WebhookSecret, cfg.Provider.SkipSignatureVerify)
	if cfg.Provider.SkipSignatureVerify {
		zapLogger.Warn("webhook signature verification is disabled")
	}

	// Initialize Kafka producer
	var publisher application.EventPublisher = events.NopPublisher{}
	if len(cfg.KafkaConfig.Brokers) > 0 {
		kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, zapLogger)
		defer kafkaProducer.Close()
		publisher = events.NewBookingEventPublisher(kafkaProducer, cfg.KafkaConfig.BookingTopic, zapLogger)
	} else {
		zapLogger.Info("no kafka brokers configured, booking events are not published")
	}

	// Initialize application services
	bookingService := application.NewBookingService(bookingRepo, couponRepo, publisher, cfg.StoreRetry, zapLogger)
	checkoutService := application.NewCheckoutService(bookingRepo, provider, publisher, application.CheckoutConfig{
		StoreRetry:      cfg.StoreRetry,
		ProviderRetry:   cfg.ProvRetry,
		ProviderTimeout: cfg.Provider.RequestTimeout,
	}, zapLogger)
	reconciler := application.NewReconciler(bookingRepo, verifier, publisher, cfg.StoreRetry, zapLogger)
	couponService := application.NewCouponService(couponRepo, zapLogger)

	// Background workers stop with this context
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	// Start Kafka consumer for relayed provider events
	if cfg.KafkaConfig.ConsumeProvider {
		providerConsumer := events.NewProviderEventConsumer(
			cfg.KafkaConfig.Brokers,
			cfg.KafkaConfig.GroupPrefix+serviceName,
			cfg.KafkaConfig.ProviderEventsTopic,
			reconciler,
			zapLogger,
		)
		defer providerConsumer.Close()

		go func() {
			zapLogger.Info("starting provider event consumer")
			if err := providerConsumer.Start(workerCtx); err != nil {
				if workerCtx.Err() == nil {
					zapLogger.Error("provider event consumer failed", zap.Error(err))
				}
			}
		}()
	}

	// Setup Gin router
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware(cfg.HTTP.CORSOrigins))
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	health.NewHandler(db, serviceName).RegisterRoutes(router)

	// Register API routes
	rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitPerMin, cfg.HTTP.RateLimitBurst)
	go rateLimiter.Run(workerCtx, time.Minute)
	limiter := rateLimiter.Middleware(zapLogger)
	apiV1 := router.Group("/api/v1")
	handler.NewBookingHandler(bookingService).RegisterRoutes(apiV1, limiter)
	handler.NewPaymentHandler(checkoutService, reconciler, cfg.Provider.SignatureHeader, zapLogger).RegisterRoutes(apiV1, limiter)
	handler.NewCouponHandler(couponService).RegisterRoutes(apiV1, limiter)
	handler.NewAdminHandler(bookingService, couponService).RegisterRoutes(apiV1, cfg.AdminAPIKey)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("HTTP server starting", zap.String("addr", cfg.Port), zap.Duration("write_timeout", srv.WriteTimeout))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down " + serviceName + "...")

	// Stop the Kafka consumer and limiter cleanup
	workerCancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info(serviceName + " stopped")
}
