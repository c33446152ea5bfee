// Package observability provides structured logging, Prometheus metrics
// and OpenTelemetry tracing for the authorization service.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("user_id", 42).Info("check denied")
//
// # Prometheus Metrics
//
// Initialize metrics on a registry and record decisions:
//
//	metrics := observability.NewMetrics(nil)
//	metrics.ObserveCheck("module", false, "insufficient_permissions", elapsed)
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	mux.Handle("/healthz", checker.Handler())
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer providers.Shutdown(ctx)
package observability
