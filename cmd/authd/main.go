package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/stroyhub/authd/pkg/audit"
	"github.com/stroyhub/authd/pkg/authz"
	"github.com/stroyhub/authd/pkg/config"
	"github.com/stroyhub/authd/pkg/httputil"
	"github.com/stroyhub/authd/pkg/middleware"
	"github.com/stroyhub/authd/pkg/observability"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithField("store", cfg.Store.Type).Info("starting authd")

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("authd exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var providers *observability.OTelProviders
	if cfg.Observability.OTelEnabled {
		var err error
		providers, err = observability.InitOTel(ctx, observability.OTelConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		}, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := providers.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Warn("tracer shutdown failed")
			}
		}()
	}

	var db *sql.DB
	if cfg.Store.Type == "postgres" {
		var err error
		db, err = openDatabase(cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	var redisClient *redis.Client
	if cfg.Cache.Type == "redis" {
		opts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			return err
		}
		opts.Password = cfg.Cache.RedisPassword
		opts.DB = cfg.Cache.RedisDB
		opts.PoolSize = cfg.Cache.RedisPoolSize
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
		logger.Info("connected to redis")
	}

	auditLogger, err := buildAuditLogger(cfg, db)
	if err != nil {
		return err
	}
	defer auditLogger.Close()

	metrics := observability.NewMetrics(nil)

	manager, catalog, err := buildManager(ctx, cfg, db, redisClient, auditLogger, logger, metrics)
	if err != nil {
		return err
	}

	health := observability.NewHealthChecker(db, redisClient)

	apiServer := buildAPIServer(cfg, manager, logger, metrics)
	opsServer := buildOpsServer(cfg, metrics, health)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("api server listening")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		logger.WithField("addr", opsServer.Addr).Info("ops server listening")
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if catalog != nil && cfg.Store.CatalogWatch {
		if err := catalog.Watch(groupCtx, func(err error) {
			logger.WithError(err).Warn("catalog reload failed")
		}); err != nil {
			return err
		}
		logger.WithField("dir", cfg.Store.CatalogDir).Info("watching role catalog")
	}

	scheduler := cron.New()
	if db != nil {
		_, err := scheduler.AddFunc(cfg.Store.CleanupSchedule, func() {
			sweepCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			removed, err := manager.CleanupExpired(sweepCtx)
			if err != nil {
				logger.WithError(err).Warn("expired assignment sweep failed")
				return
			}
			if removed > 0 {
				logger.WithField("removed", removed).Info("swept expired assignments")
			}
		})
		if err != nil {
			return err
		}
		_, err = scheduler.AddFunc("@every 30s", func() {
			refreshGauges(db, manager, metrics, logger)
		})
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		logger.Info("shutting down")
		apiErr := apiServer.Shutdown(shutdownCtx)
		opsErr := opsServer.Shutdown(shutdownCtx)
		if apiErr != nil {
			return apiErr
		}
		return opsErr
	})

	return group.Wait()
}

func openDatabase(cfg *config.Config, logger *observability.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Store.PostgresURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.Store.PostgresMaxConns)
	db.SetMaxIdleConns(cfg.Store.PostgresMinConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("connected to postgres")
	return db, nil
}

func buildAuditLogger(cfg *config.Config, db *sql.DB) (audit.Logger, error) {
	switch cfg.Audit.Type {
	case "db":
		return audit.NewDBLogger(db)
	case "file":
		return audit.NewFileLogger(audit.FileLoggerConfig{
			Path:    cfg.Audit.FilePath,
			MaxSize: cfg.Audit.FileMaxSize,
		})
	default:
		return audit.NoopLogger{}, nil
	}
}

func refreshGauges(db *sql.DB, manager *authz.Manager, metrics *observability.Metrics, logger *observability.Logger) {
	dbStats := db.Stats()
	metrics.DBConnectionsActive.Set(float64(dbStats.InUse))
	metrics.DBConnectionsIdle.Set(float64(dbStats.Idle))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	counts, err := manager.Stats(ctx)
	if err != nil {
		logger.WithError(err).Warn("stats refresh failed")
		return
	}
	metrics.RolesTotal.Set(float64(counts["roles"]))
	metrics.AssignmentsTotal.Set(float64(counts["assignments"]))
}

func buildManager(ctx context.Context, cfg *config.Config, db *sql.DB, redisClient *redis.Client, auditLogger audit.Logger, logger *observability.Logger, metrics *observability.Metrics) (*authz.Manager, *authz.FileCatalog, error) {
	authzCfg := authz.Config{
		CacheSize:   cfg.Cache.MemorySize,
		Redis:       redisClient,
		SeedBuiltIn: cfg.Store.SeedBuiltIn,
		Metrics:     metrics,
	}
	if cfg.Cache.Type != "none" {
		authzCfg.CacheTTL = cfg.Cache.TTL
	}

	if cfg.Store.Type == "file" {
		catalog, err := authz.NewFileCatalog(cfg.Store.CatalogDir)
		if err != nil {
			return nil, nil, err
		}
		return authz.NewFileManager(catalog, auditLogger, logger, authzCfg), catalog, nil
	}

	manager := authz.NewManager(db, auditLogger, logger, authzCfg)
	if err := manager.Initialize(ctx); err != nil {
		return nil, nil, err
	}
	return manager, nil, nil
}

func buildAPIServer(cfg *config.Config, manager *authz.Manager, logger *observability.Logger, metrics *observability.Metrics) *http.Server {
	router := mux.NewRouter()

	chain := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware(logger),
		httputil.MetricsMiddleware(metrics),
		httputil.MaxBytesMiddleware(cfg.Server.MaxBodyBytes),
		middleware.PrincipalMiddleware,
	)
	router.Use(chain)
	if store := manager.Store(); store != nil {
		router.Use(middleware.ScopeMiddleware(store))
	}

	manager.RegisterRoutes(router)

	var handler http.Handler = router
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "authd.api")
	}

	return &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

func buildOpsServer(cfg *config.Config, metrics *observability.Metrics, health *observability.HealthChecker) *http.Server {
	opsRouter := mux.NewRouter()
	opsRouter.Handle("/healthz", health.Handler()).Methods("GET")
	opsRouter.Handle("/metrics", metrics.Handler()).Methods("GET")

	return &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler:      opsRouter,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
