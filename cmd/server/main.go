package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appreconcile "github.com/subsync/backend/internal/application/reconcile"
	"github.com/subsync/backend/internal/domain/reconcile"
	"github.com/subsync/backend/internal/infrastructure/auth"
	"github.com/subsync/backend/internal/infrastructure/billing"
	"github.com/subsync/backend/internal/infrastructure/cache"
	"github.com/subsync/backend/internal/infrastructure/config"
	"github.com/subsync/backend/internal/infrastructure/ecommerce"
	"github.com/subsync/backend/internal/infrastructure/logger"
	"github.com/subsync/backend/internal/infrastructure/persistence"
	"github.com/subsync/backend/internal/infrastructure/telemetry"
	"github.com/subsync/backend/internal/interfaces/http/handler"
	"github.com/subsync/backend/internal/interfaces/http/middleware"
	"github.com/subsync/backend/internal/interfaces/http/router"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx := context.Background()

	// Telemetry: traces, metrics, then the log bridge teed into the logger
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	log = logger.Tee(log, telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		LoggerProvider: lp,
		Level:          zapcore.InfoLevel,
	}))

	log.Info("Starting subscription sync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("ledger", cfg.Ledger.Backend),
	)

	// Database with zap-backed GORM logger and statement tracing
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

	dbSystem := "postgresql"
	if cfg.Database.Driver == config.DriverSQLite {
		dbSystem = "sqlite"
		// sqlite deployments have no migrate step
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
	}
	tracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        dbSystem,
	}, log)
	if err := tracing.RegisterOtelGorm(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	// Idempotency ledger
	ledger, err := newLedger(cfg, db, log)
	if err != nil {
		log.Fatal("Failed to initialize idempotency ledger", zap.Error(err))
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			log.Error("Error closing ledger", zap.Error(err))
		}
	}()

	// External systems
	gateway, err := billing.NewStripeGateway(&billing.StripeConfig{
		SecretKey:      cfg.Stripe.SecretKey,
		WebhookSecret:  cfg.Stripe.WebhookSecret,
		APIBase:        cfg.Stripe.APIBase,
		TimeoutSeconds: cfg.Stripe.TimeoutSeconds,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize Stripe gateway", zap.Error(err))
	}
	wooCfg := ecommerce.NewWooCommerceConfig(cfg.WooCommerce.SiteURL, cfg.WooCommerce.ConsumerKey, cfg.WooCommerce.ConsumerSecret)
	wooCfg.WebhookSecret = cfg.WooCommerce.WebhookSecret
	wooCfg.TimeoutSeconds = cfg.WooCommerce.TimeoutSeconds
	commerce, err := ecommerce.NewWooCommerceAdapter(wooCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize WooCommerce adapter", zap.Error(err))
	}
	commerceVerifier, err := ecommerce.NewWebhookVerifier(cfg.WooCommerce.WebhookSecret)
	if err != nil {
		log.Fatal("Failed to initialize WooCommerce webhook verifier", zap.Error(err))
	}
	gatewayVerifier := billing.NewStripeEventVerifier(cfg.Stripe.WebhookSecret, log)

	// Application services
	metrics, err := telemetry.NewReconcileMetrics(mp)
	if err != nil {
		log.Fatal("Failed to create reconciliation metrics", zap.Error(err))
	}
	if mem, ok := ledger.(*cache.InMemoryLedger); ok {
		if err := metrics.ObserveLedgerSize(config.LedgerBackendMemory, mem.Size); err != nil {
			log.Warn("Ledger size gauge unavailable", zap.Error(err))
		}
	}
	if err := metrics.ObserveDBPool(db.Stats); err != nil {
		log.Warn("Database pool metrics unavailable", zap.Error(err))
	}
	auditStore := persistence.NewGormAuditLogRepository(db.DB)
	audit := appreconcile.NewAuditLogger(auditStore, log)

	forward := appreconcile.NewForwardReconciler(appreconcile.ForwardReconcilerConfig{
		Commerce: commerce,
		Audit:    audit,
		Metrics:  metrics,
		Logger:   log,
	})
	reverse := appreconcile.NewReverseReconciler(gateway, metrics, log)
	ingress := appreconcile.NewIngressService(appreconcile.IngressServiceConfig{
		GatewayVerifier:  gatewayVerifier,
		CommerceVerifier: commerceVerifier,
		Ledger:           ledger,
		Forward:          forward,
		Reverse:          reverse,
		Metrics:          metrics,
		Logger:           log,
	})
	cancellation := appreconcile.NewCancellationService(commerce, gateway, audit, log)
	orderDetails := appreconcile.NewOrderDetailsService(commerce)
	auditQuery := appreconcile.NewAuditQueryService(auditStore)

	// HTTP engine
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSOrigins

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		logger.GinMiddleware(log, "/health", "/health/ready"),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tp.IsEnabled(),
		}),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(mp),
		middleware.Secure(),
		middleware.CORSWithConfig(corsCfg),
		middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
			MaxBytes:   cfg.HTTP.MaxBodySize,
			PathLimits: map[string]int64{"/webhooks/": handler.MaxWebhookPayloadSize},
		}),
	)

	checks := []handler.ReadinessCheck{{Name: "database", Pinger: db}}
	if redisLedger, ok := ledger.(*cache.RedisLedger); ok {
		checks = append(checks, handler.ReadinessCheck{Name: "redis", Pinger: redisLedger})
	}

	var adminAuth gin.HandlerFunc
	if cfg.Admin.Enabled() {
		tokens, err := auth.NewTokenService(cfg.Admin)
		if err != nil {
			log.Fatal("Failed to initialize admin token service", zap.Error(err))
		}
		adminAuth = middleware.AdminAuth(tokens, log)
	} else {
		log.Warn("admin.jwt_secret is not set, admin API is disabled")
	}

	routes := router.RegisterRoutes(engine, router.Handlers{
		Webhook:      handler.NewWebhookHandler(ingress),
		AuditLog:     handler.NewAuditLogHandler(auditQuery),
		Subscription: handler.NewSubscriptionHandler(cancellation),
		Order:        handler.NewOrderHandler(orderDetails),
		System:       handler.NewSystemHandler(cfg.App.Name, telemetry.ServiceVersion, checks...),
	}, adminAuth)
	for _, route := range routes.Routes() {
		log.Debug("Route registered",
			zap.String("method", route.Method),
			zap.String("path", route.Path),
			zap.String("group", route.Group),
			zap.Bool("admin", route.Versioned),
		)
	}

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// Flush telemetry after in-flight requests have finished
	for name, shutdown := range map[string]func(context.Context) error{
		"tracer": tp.Shutdown,
		"meter":  mp.Shutdown,
		"logger": lp.Shutdown,
	} {
		if err := shutdown(shutdownCtx); err != nil {
			log.Error("Telemetry shutdown failed", zap.String("provider", name), zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}

// newLedger builds the configured idempotency ledger. The redis backend
// falls back to memory outside production.
func newLedger(cfg *config.Config, db *persistence.Database, log *zap.Logger) (reconcile.Ledger, error) {
	switch cfg.Ledger.Backend {
	case config.LedgerBackendRedis:
		factory := cache.NewLedgerFactory(
			cache.RedisConfig{
				Host:     cfg.Redis.Host,
				Port:     cfg.Redis.Port,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			},
			reconcile.LedgerConfig{TTL: cfg.Ledger.TTL},
			cache.WithLogger(log),
			cache.WithKeyPrefix(cfg.Ledger.KeyPrefix),
			cache.WithInMemoryFallback(!cfg.App.IsProduction()),
		)
		return factory.CreateLedger()
	case config.LedgerBackendMemory:
		log.Warn("Using in-memory idempotency ledger; processed ids are lost on restart")
		return cache.NewInMemoryLedger(cfg.Ledger.TTL), nil
	default:
		return persistence.NewGormProcessedEventRepository(db.DB), nil
	}
}
