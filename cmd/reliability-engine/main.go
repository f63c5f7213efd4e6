package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/glowlens/glowlens-reliability/internal/alerting"
	"github.com/glowlens/glowlens-reliability/internal/api"
	"github.com/glowlens/glowlens-reliability/internal/cache"
	"github.com/glowlens/glowlens-reliability/internal/config"
	"github.com/glowlens/glowlens-reliability/internal/engine"
	"github.com/glowlens/glowlens-reliability/internal/metrics"
	"github.com/glowlens/glowlens-reliability/internal/models"
	"github.com/glowlens/glowlens-reliability/internal/monitor"
	"github.com/glowlens/glowlens-reliability/internal/recovery"
	"github.com/glowlens/glowlens-reliability/internal/repo"
	"github.com/glowlens/glowlens-reliability/internal/services"
	"github.com/glowlens/glowlens-reliability/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting glowlens-reliability",
		slog.String("grpc", cfg.Server.GRPCAddress),
		slog.String("http", cfg.Server.HTTPAddress))

	if err := metrics.RegisterProm(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	var redisCloser cache.Provider
	if cfg.Redis.Enabled && cfg.Redis.Addr != "" {
		provider, err := cache.NewRedisProvider(cache.RedisConfig{
			Addr:         cfg.Redis.Addr,
			Username:     cfg.Redis.Username,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			MaxRetries:   cfg.Redis.MaxRetries,
			TLS:          cfg.Redis.TLS,
		})
		if err != nil {
			logger.Warn("redis cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
			redisCloser = provider
		}
	}
	if redisCloser != nil {
		defer redisCloser.Close()
	}

	visionClient := repo.NewVisionClient(
		cfg.Clients.Vision.BaseURL,
		cfg.Clients.Vision.AnalyzePath,
		cfg.Clients.Vision.ClassifyPath,
		cfg.Clients.Vision.HealthPath,
		cfg.Clients.Vision.Timeout,
	)

	vectorStore := repo.NewVectorStore(
		cfg.Clients.VectorStore.Endpoint,
		cfg.Clients.VectorStore.APIKey,
		cfg.Clients.VectorStore.Timeout,
		cacheProvider,
		cfg.Clients.VectorStore.SearchTTL,
	)

	recoveryMgr := recovery.NewManager(logger)
	for _, service := range []string{
		services.ServiceVisionAnalysis,
		services.ServiceVectorSearch,
		services.ServiceClassifier,
		services.ServiceDemographicSearch,
	} {
		recoveryMgr.RegisterService(service, cfg.RecoveryFor(service))
	}
	// Search fallbacks return empty match sets so a degraded index never
	// blocks the rest of the analysis pipeline.
	recoveryMgr.RegisterFallback(services.ServiceVectorSearch, func(ctx context.Context) (any, error) {
		return []models.SearchMatch{}, nil
	})
	recoveryMgr.RegisterFallback(services.ServiceDemographicSearch, func(ctx context.Context) (any, error) {
		return []models.SearchMatch{}, nil
	})
	recoveryMgr.RegisterDegradedResult(services.ServiceClassifier, models.Classification{
		Label:    "unclassified",
		Degraded: true,
	})

	weightCache := cache.NewDemographicWeightingCache(cfg.Caches.DemographicSize, cfg.Caches.DemographicTTL)
	searchCache := cache.NewSearchResultCache(cfg.Caches.SearchSize, cacheProvider, cfg.Caches.SearchRemoteTTL, logger)
	vectorCache := cache.NewVectorSimilarityCache(cfg.Caches.VectorSize, cfg.Caches.VectorTTL)

	collector := metrics.NewCollector(logger, 0)

	visionMon := monitor.NewServiceMonitor(services.ServiceVisionAnalysis, collector, logger)
	searchMon := monitor.NewServiceMonitor(services.ServiceVectorSearch, collector, logger)
	classifierMon := monitor.NewServiceMonitor(services.ServiceClassifier, collector, logger)
	demoMon := monitor.NewServiceMonitor(services.ServiceDemographicSearch, collector, logger)

	rules := alerting.DefaultRules()
	if loaded, err := alerting.LoadRules(cfg.Alerts.RulesPath, logger); err != nil {
		logger.Warn("alert rule pack unavailable, using defaults",
			slog.String("path", cfg.Alerts.RulesPath), slog.Any("error", err))
	} else if len(loaded) > 0 {
		rules = loaded
	}
	alertMgr := alerting.NewManager(logger, collector, rules)

	visionSvc := services.NewVisionService(logger, visionClient, recoveryMgr, visionMon)
	searchSvc := services.NewSearchService(logger, vectorStore, recoveryMgr, searchMon, searchCache)
	classifierSvc := services.NewClassifierService(logger, visionClient, recoveryMgr, classifierMon)
	demoSvc := services.NewDemographicService(logger, vectorStore, recoveryMgr, demoMon, weightCache)

	stack := services.NewStack(logger, visionSvc, searchSvc, classifierSvc, demoSvc,
		collector, alertMgr, recoveryMgr, vectorCache)

	pipeline := engine.NewPipeline(logger, visionSvc, searchSvc, classifierSvc, demoSvc, vectorStore, vectorCache)

	server, err := api.NewServer(cfg.Server)
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := monitor.NewRunner(logger, collector, alertMgr,
		[]*monitor.ServiceMonitor{visionMon, searchMon, classifierMon, demoMon},
		cfg.Monitor.CheckInterval)
	go func() {
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("monitor loop exited", slog.Any("error", err))
		}
	}()

	// Mirror the aggregated health onto the gRPC health surface so load
	// balancers stop routing when every wrapped service is down.
	go func() {
		ticker := time.NewTicker(cfg.Monitor.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				server.SetOverallHealth(collector.ServiceHealthSummary().OverallStatus)
			}
		}
	}()

	handler := api.NewHandler(logger, stack, pipeline)
	httpServer := &http.Server{
		Addr:         cfg.Server.HTTPAddress,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		logger.Info("http server listening", slog.String("address", cfg.Server.HTTPAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited", slog.Any("error", err))
			stop()
		}
	}()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	httpCtx, cancelHTTP := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	if err := httpServer.Shutdown(httpCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("http server shutdown", slog.Any("error", err))
	}
	cancelHTTP()

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("glowlens-reliability stopped")
}
