package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/bme-companion/cmd/mainconfig"
	"github.com/wolfman30/bme-companion/internal/api/router"
	"github.com/wolfman30/bme-companion/internal/app/bootstrap"
	appconfig "github.com/wolfman30/bme-companion/internal/config"
	"github.com/wolfman30/bme-companion/internal/conversation"
	observemetrics "github.com/wolfman30/bme-companion/internal/observability/metrics"
	"github.com/wolfman30/bme-companion/pkg/logging"
)

func main() {
	// .env is optional; real deployments inject the environment.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	logger.Info("starting bme companion API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"llm_provider", cfg.LLMProvider,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	metricsHandler, metrics := setupCompanionMetrics()

	deps := bootstrap.Deps{Metrics: metrics}
	if needsAWS(cfg) {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		deps.AWS = &awsCfg
	}
	if redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true); redisClient != nil {
		deps.Redis = redisClient
		defer redisClient.Close()
	}

	companion, err := bootstrap.BuildCompanionService(ctx, cfg, deps, logger)
	if err != nil {
		logger.Error("failed to build companion service", "error", err)
		os.Exit(1)
	}
	defer companion.Close()

	srv := newHTTPServer(ctx, cfg, logger, companion.Service, companion.Provider, metricsHandler)

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func needsAWS(cfg *appconfig.Config) bool {
	if strings.TrimSpace(cfg.BedrockModelID) == "" {
		return false
	}
	return cfg.LLMProvider != bootstrap.ProviderGemini
}

func setupCompanionMetrics() (http.Handler, *observemetrics.CompanionMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observemetrics.NewCompanionMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics
}

func newHTTPServer(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, service conversation.Service, provider string, metricsHandler http.Handler) *http.Server {
	r := router.New(&router.Config{
		Context:             ctx,
		Logger:              logger,
		ConversationHandler: conversation.NewHandler(service, logger),
		MetricsHandler:      metricsHandler,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitRPS:        cfg.RateLimitRPS,
		RateLimitBurst:      cfg.RateLimitBurst,
		LLMProvider:         provider,
	})

	// A turn may run several generations and checks.
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
