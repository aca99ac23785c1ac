package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	identityapp "github.com/tesis/backend/internal/application/identity"
	thesisapp "github.com/tesis/backend/internal/application/thesis"
	"github.com/tesis/backend/internal/infrastructure/auth"
	"github.com/tesis/backend/internal/infrastructure/cache"
	"github.com/tesis/backend/internal/infrastructure/config"
	"github.com/tesis/backend/internal/infrastructure/export"
	"github.com/tesis/backend/internal/infrastructure/llm"
	"github.com/tesis/backend/internal/infrastructure/logger"
	"github.com/tesis/backend/internal/infrastructure/migration"
	"github.com/tesis/backend/internal/infrastructure/persistence"
	"github.com/tesis/backend/internal/infrastructure/scheduler"
	"github.com/tesis/backend/internal/infrastructure/storage"
	"github.com/tesis/backend/internal/infrastructure/telemetry"
	"github.com/tesis/backend/internal/interfaces/http/handler"
	"github.com/tesis/backend/internal/interfaces/http/middleware"
	"github.com/tesis/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	var (
		configPath string
		migrate    bool
	)
	flag.StringVar(&configPath, "config", "", "Path to a config file (default: ./config.toml and TESIS_* env)")
	flag.BoolVar(&migrate, "migrate", true, "Apply pending migrations before serving")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting Tesis Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx := context.Background()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected", zap.String("driver", db.Driver))

	dbSystem := "sqlite"
	if db.Driver == "postgres" {
		dbSystem = "postgresql"
	}
	if err := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:  cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		DBSystem: dbSystem,
	}, log).Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	if migrate {
		if err := applyMigrations(db, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	// Cache: Redis when configured, in-memory otherwise
	store, err := cache.NewStoreFactory(cfg.Redis, cache.WithLogger(log)).CreateStore()
	if err != nil {
		log.Fatal("Failed to create cache store", zap.Error(err))
	}
	defer store.Close()

	// Identity
	jwtService := auth.NewJWTService(cfg.JWT)
	blacklist := auth.NewStoreTokenBlacklist(store)
	userRepo := persistence.NewGormUserRepository(db.DB)
	authService := identityapp.NewAuthService(userRepo, jwtService, blacklist, log)

	// LLM providers
	registry, err := llm.RegistryFromConfig(ctx, cfg.LLM, log)
	if err != nil {
		log.Fatal("Failed to configure LLM providers", zap.Error(err))
	}
	prompts, err := llm.NewPromptBuilder(nil)
	if err != nil {
		log.Fatal("Failed to load prompt templates", zap.Error(err))
	}
	catalogue := llm.NewModelCatalogue(registry, store, cfg.LLM.ModelCacheTTL, log)

	// Export and storage
	pdf := export.NewChromedpRenderer(export.ChromedpConfig{
		RemoteURL:  cfg.Export.ChromeRemoteURL,
		ChromePath: cfg.Export.ChromePath,
		NoSandbox:  cfg.Export.NoSandbox,
		Timeout:    cfg.Export.Timeout,
		Logger:     log,
	})
	defer pdf.Close()
	exporter, err := export.NewExporter(pdf)
	if err != nil {
		log.Fatal("Failed to load document templates", zap.Error(err))
	}
	objects, err := storage.New(ctx, &cfg.Storage, log)
	if err != nil {
		log.Warn("Export archive storage unavailable; archiving is disabled", zap.Error(err))
		objects = nil
	}

	// Services
	metricsRegistry := telemetry.NewRegistry()
	thesisRepo := persistence.NewGormThesisRepository(db.DB)
	thesisService := thesisapp.NewThesisService(thesisRepo, log)
	generationService := thesisapp.NewGenerationService(thesisRepo, registry, prompts,
		telemetry.NewGenerationMetrics(metricsRegistry),
		thesisapp.GenerationConfig{
			Temperature:     cfg.LLM.Temperature,
			MaxOutputTokens: cfg.LLM.MaxOutputTokens,
			StaleAfter:      cfg.Maintenance.StaleAfter,
		}, log)
	exportService := thesisapp.NewExportService(thesisRepo, exporter, objects, log)
	stopMaintenance := startMaintenance(ctx, cfg.Maintenance, generationService, objects,
		telemetry.NewMaintenanceMetrics(metricsRegistry), log)

	// Handlers
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version)
	handlers := router.Handlers{
		Auth:       handler.NewAuthHandler(authService),
		Thesis:     handler.NewThesisHandler(thesisService),
		Generation: handler.NewGenerationHandler(generationService, cfg.HTTP.SSEHeartbeat),
		Export:     handler.NewExportHandler(exportService),
		LLM:        handler.NewLLMHandler(registry, catalogue),
		System:     systemHandler,
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware order:
	// 1. RequestID  2. Recovery  3. Logger  4. Tracing + span status
	// 5. HTTP metrics  6. Security headers  7. CORS  8. Body limit  9. Rate limit
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log, "/health", "/metrics"))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		Registerer: metricsRegistry,
		Enabled:    true,
		SkipPaths:  []string{"/metrics", "/health"},
	}))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	stopLimiters := make(chan struct{})
	defer close(stopLimiters)
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		go limiter.Run(stopLimiters)
		engine.Use(middleware.RateLimitByKey(limiter, middleware.UserOrIPKey))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}
	var authLimit gin.HandlerFunc
	if cfg.HTTP.AuthRateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.AuthRateLimitRequests, cfg.HTTP.AuthRateLimitWindow)
		go limiter.Run(stopLimiters)
		authLimit = middleware.AuthRateLimit(limiter)
	}

	// Outside the versioned API
	engine.GET("/health", systemHandler.Health(map[string]handler.Pinger{"database": db}))
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{Registry: metricsRegistry})))
	if cfg.Storage.Driver == "" || cfg.Storage.Driver == "fs" {
		engine.Static(cfg.Storage.BaseURL, cfg.Storage.BasePath)
	}

	jwtConfig := middleware.DefaultJWTConfig(jwtService)
	jwtConfig.TokenBlacklist = blacklist
	jwtConfig.Logger = log

	router.NewRouter(engine, router.WithAPIVersion("v1")).
		Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig)).
		Register(router.ThesisAPI(handlers, authLimit)...).
		Setup()

	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
		BaseContext:    func(net.Listener) context.Context { return baseCtx },
	}
	// SSE streams never go idle on their own; cancelling their context ends
	// the generation, which then marks the thesis FAILED "cancelled"
	srv.RegisterOnShutdown(cancelRequests)

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	stopMaintenance(shutdownCtx)
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// applyMigrations runs the embedded migrations on the server's own
// connection pool. The migrator is not closed: that would close the pool.
func applyMigrations(db *persistence.Database, log *zap.Logger) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, db.Driver, log)
	if err != nil {
		return err
	}
	return m.Up()
}

// startMaintenance runs the stale-generation reset and export cleanup jobs
// in the background. The returned func stops them.
func startMaintenance(
	ctx context.Context,
	cfg config.MaintenanceConfig,
	generations *thesisapp.GenerationService,
	objects storage.ObjectStorage,
	metrics *telemetry.MaintenanceMetrics,
	log *zap.Logger,
) func(context.Context) {
	if !cfg.Enabled {
		log.Info("Maintenance jobs disabled")
		return func(context.Context) {}
	}

	var cleaner storage.Cleaner
	if c, ok := objects.(storage.Cleaner); ok {
		cleaner = c
	} else if cfg.ExportRetention > 0 {
		log.Warn("Export retention is set but the storage driver cannot expire objects")
	}
	executor := scheduler.NewMaintenanceExecutor(generations, cleaner, cfg.ExportRetention)

	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		MaxConcurrentJobs: cfg.Workers,
	}, executor, log.Named("maintenance"))
	sched.OnJobDone(func(j *scheduler.Job) {
		metrics.JobFinished(string(j.Kind), string(j.Status), j.Affected)
	})
	trigger, err := scheduler.NewIntervalTrigger(scheduler.IntervalTriggerConfig{
		Interval:   cfg.Interval,
		Kinds:      executor.Kinds(),
		RunOnStart: true,
	}, sched, log.Named("maintenance"))
	if err != nil {
		log.Error("Invalid maintenance configuration; jobs disabled", zap.Error(err))
		return func(context.Context) {}
	}

	_ = sched.Start(ctx)
	_ = trigger.Start(ctx)
	return func(ctx context.Context) {
		if err := trigger.Stop(ctx); err != nil {
			log.Warn("Maintenance trigger stop timed out", zap.Error(err))
		}
		if err := sched.Stop(ctx); err != nil {
			log.Warn("Maintenance scheduler stop timed out", zap.Error(err))
		}
	}
}
