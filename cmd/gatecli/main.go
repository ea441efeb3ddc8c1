// Command gatecli is a demonstration harness for gateclient: it loads its
// settings from the environment, builds a Client pointed at one upstream
// group, serves a loopback-only admin server exposing Prometheus metrics
// and a debug view of current rate-limit state, and issues one sample
// request so the gateway has something to report.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arcbridge/gateclient"
	"github.com/arcbridge/gateclient/internal/gatewayenv"
	"github.com/arcbridge/gateclient/internal/gwmetrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := gatewayenv.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newLogger(env.LogLevel)
	slog.SetDefault(logger)
	logger.Info("gatecli starting",
		"admin_bind", env.AdminBindAddress,
		"admin_port", env.AdminPort,
		"upstream_url", env.UpstreamURL,
	)

	registry := prometheus.NewRegistry()
	metrics := gwmetrics.New(registry)

	resolver := gateclient.NewGroupResolverOrdered(
		map[string]string{},
		nil,
		"",
	)

	client := gateclient.NewClient(
		gateclient.WithLogger(logger),
		gateclient.WithMetrics(metrics),
		gateclient.WithResolver(resolver),
		gateclient.WithQueueCapacity(env.QueueCapacity),
		gateclient.WithDefaultConfig(gateclient.Config{
			Timeout:       env.RequestTimeout,
			MaxDeferralMs: env.MaxDeferralMs,
			MaxRetries:    env.MaxRetries,
		}),
	)

	admin := newAdminServer(env, registry, client, logger)
	go func() {
		logger.Info("admin server listening", "addr", admin.Addr)
		if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin server stopped", "error", err)
		}
	}()

	requestID := uuid.NewString()
	cfg := gateclient.Config{
		Headers: http.Header{"X-Request-Id": []string{requestID}},
	}
	future, err := client.Get(env.UpstreamURL, cfg)
	if err != nil {
		logger.Error("send rejected synchronously", "error", err, "request_id", requestID)
	} else {
		go reportDemoRequest(ctx, future, logger, requestID)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return admin.Shutdown(shutdownCtx)
}

func reportDemoRequest(ctx context.Context, future *gateclient.Future, logger *slog.Logger, requestID string) {
	resp, err := future.Wait(ctx)
	if err != nil {
		logger.Warn("demo request failed", "error", err, "request_id", requestID)
		return
	}
	logger.Info("demo request completed", "status", resp.Status(), "request_id", requestID)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
