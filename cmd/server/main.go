package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"seryvo/internal/core/services"
	httphandlers "seryvo/internal/handlers/http"
	"seryvo/internal/infrastructure/middleware"
	"seryvo/internal/infrastructure/monitoring"
	"seryvo/internal/infrastructure/realtime"
	repositories "seryvo/internal/infrastructure/repositories"
	"seryvo/pkg/config"
	"seryvo/pkg/logger"
	"seryvo/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/seryvo/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	// Tracing
	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "seryvo",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	// Stores
	// Closed explicitly in the shutdown path below.
	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}

	bookingStore := repoFactory.CreateBookingStore()
	driverStore := repoFactory.CreateDriverStore()

	// Metrics
	var metrics realtime.Metrics = realtime.NopMetrics{}
	var domainMetrics services.Metrics
	if cfg.Monitoring.PrometheusEnabled {
		collector := monitoring.NewPrometheusCollector()
		metrics = collector
		domainMetrics = collector
	}

	// Realtime core
	registry := realtime.NewRegistry(log)
	broker := realtime.NewBroker(registry, metrics, log)
	authService := services.NewAuthService(cfg.Auth.JWTSecret)
	wsServer := realtime.NewServer(registry, broker, authService, metrics, cfg, log)

	// Services
	dispatcher := services.NewDispatcher(driverStore, registry, broker, log).WithMetrics(domainMetrics)
	lifecycle := services.NewBookingLifecycle(bookingStore, dispatcher, log).
		WithMetrics(domainMetrics).
		WithDriverProfiles(driverStore)

	// Handlers
	bookingHandler := httphandlers.NewBookingHandler(lifecycle, dispatcher, bookingStore, log)
	driverHandler := httphandlers.NewDriverHandler(driverStore, log)
	realtimeHandler := httphandlers.NewRealtimeHandler(registry)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	// WebSocket endpoint, authenticated by token query param inside the
	// handler so browsers without header support can connect.
	router.GET("/ws", gin.WrapF(wsServer.HandleWebSocket))

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(authService))
	api.Use(middleware.ErrorHandlerMiddleware(log))
	{
		bookingHandler.SetupRoutes(api)
		driverHandler.SetupRoutes(api)
		realtimeHandler.SetupRoutes(api)
	}

	// Health endpoints
	health := monitoring.NewHealthChecker()
	health.Register("stores", repoFactory.HealthCheck)
	router.GET("/health", health.Handler())

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting Seryvo dispatch server on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down Seryvo dispatch server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down tracer provider", "error", err)
	}

	if err := repoFactory.Close(); err != nil {
		log.Errorw("Error closing repository factory", "error", err)
	}

	log.Info("Seryvo dispatch server stopped")
}
