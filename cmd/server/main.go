package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/perimeterhq/gatehouse/internal/config"
	"github.com/perimeterhq/gatehouse/internal/database"
	"github.com/perimeterhq/gatehouse/internal/events"
	"github.com/perimeterhq/gatehouse/internal/handlers"
	"github.com/perimeterhq/gatehouse/internal/logger"
	"github.com/perimeterhq/gatehouse/internal/middleware"
	"github.com/perimeterhq/gatehouse/internal/origin"
	"github.com/perimeterhq/gatehouse/internal/policy"
	"github.com/perimeterhq/gatehouse/internal/ratelimit"
	"github.com/perimeterhq/gatehouse/internal/telemetry"
	"github.com/perimeterhq/gatehouse/internal/ws"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		if syncErr := zapLogger.Sync(); syncErr != nil {
			// Ignore sync errors in production
			_ = syncErr
		}
	}()

	upstream, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		zapLogger.Fatal("invalid_upstream_url", zap.Error(err))
	}

	zapLogger.Info("starting_gateway",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("upstream", upstream.Host),
		zap.String("environment", cfg.Environment),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// OpenTelemetry if enabled
	var tracerProvider interface{ Shutdown(context.Context) error }
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracerProvider = tp
				zapLogger.Info("otel_tracer_initialized",
					zap.String("endpoint", cfg.OTELEndpoint),
				)
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	// Quotas and the origin allow-list come from env defaults, the
	// optional policy file, then stored overrides, in that order. They
	// are read once; a config change means a restart.
	limits, err := cfg.Limits()
	if err != nil {
		zapLogger.Fatal("invalid_rate_limit_configuration", zap.Error(err))
	}
	allowList := origin.FromEnv(cfg.AllowedOrigins, cfg.DevMode())

	var db *database.DB
	if cfg.DatabaseURL != "" {
		db, err = database.New(cfg.DatabaseURL)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
		}
		defer func() {
			if err := db.Close(); err != nil {
				zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
			}
		}()
		zapLogger.Info("connected_to_database")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		overrides, err := database.NewPolicyConfigRepository(db).List(ctx)
		if err != nil {
			zapLogger.Fatal("failed_to_load_policy_overrides", zap.Error(err))
		}
		limits = database.ApplyOverrides(limits, overrides)

		storedOrigins, err := database.NewOriginRepository(db).List(ctx)
		cancel()
		if err != nil {
			zapLogger.Fatal("failed_to_load_stored_origins", zap.Error(err))
		}
		if len(storedOrigins) > 0 {
			allowList = origin.NewAllowList(storedOrigins, cfg.DevMode())
		}
	}

	zapLogger.Info("rate_limit_policies_configured",
		zap.Int("api_limit", limits.API.Limit),
		zap.Int("login_limit", limits.Login.Limit),
		zap.Int("form_limit", limits.Form.Limit),
	)

	// Counter store: Redis when configured, otherwise per-process memory.
	var store ratelimit.Store
	var pinger handlers.Pinger
	if cfg.RedisURL != "" {
		redisStore, err := ratelimit.NewRedisStore(cfg.RedisURL)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
		}
		store = redisStore
		pinger = redisStore
		zapLogger.Info("connected_to_redis")
	} else {
		memStore := ratelimit.NewMemoryStore(ratelimit.DefaultSweepInterval)
		store = memStore
		pinger = memStore
		zapLogger.Info("using_in_memory_rate_limit_store")
	}
	limiter := ratelimit.New(store)
	defer func() {
		if err := limiter.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rate_limit_store", zap.Error(err))
		}
	}()

	// Security events always go to the log; RabbitMQ fan-out is optional.
	var sink events.Sink = events.NewLogSink(zapLogger)
	if cfg.RabbitMQURL != "" {
		amqpSink, err := events.NewAMQPSink(cfg.RabbitMQURL, zapLogger)
		if err != nil {
			zapLogger.Warn("failed_to_connect_to_rabbitmq_events_log_only", zap.Error(err))
		} else {
			sink = events.Multi(sink, amqpSink)
			zapLogger.Info("connected_to_rabbitmq")
			defer func() {
				if err := amqpSink.Close(); err != nil {
					zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
				}
			}()
		}
	}

	registry := policy.NewRegistry(limits)
	healthChecker := handlers.NewHealthChecker(db, pinger)
	wsHandler := ws.NewHandler(allowList, sink, zapLogger)
	proxy := handlers.NewProxy(upstream, zapLogger)

	r := mux.NewRouter()

	// Middleware runs in registration order: outermost first.
	if cfg.OTELEnabled && tracerProvider != nil {
		r.Use(telemetry.Middleware())
		zapLogger.Info("otel_middleware_enabled")
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.CORS(allowList, sink, zapLogger))
	r.Use(middleware.RequestID)
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.Logging(zapLogger))
	r.Use(middleware.Session([]byte(cfg.SessionSecret), cfg.SessionCookieName, zapLogger))
	r.Use(middleware.RateLimit(registry, limiter, sink, zapLogger))
	r.Use(middleware.Sanitize)

	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/version", handlers.VersionInfo).Methods("GET")
	r.Handle("/ws", wsHandler)

	// Everything else is the upstream's.
	r.PathPrefix("/").Handler(proxy)

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB max header size
	}

	go func() {
		zapLogger.Info("gateway_listening",
			zap.String("port", cfg.ServerPort),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("gateway_shutting_down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("graceful_shutdown_failed", zap.Error(err))
	}

	zapLogger.Info("gateway_stopped")
}
