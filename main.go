package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"loanscore/config"
	lhttp "loanscore/http"
	"loanscore/logging"
	"loanscore/ml"
	"loanscore/monitoring"
	"loanscore/predictor"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the yaml config (optional)")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}
	logger := logging.New(cfg.Log)
	defer logger.Sync()

	// 2. Load artifacts, frozen for the lifetime of the process
	artifacts, err := ml.LoadArtifacts(cfg.Artifacts.Dir)
	if err != nil {
		logger.Fatal("failed to load model artifacts", zap.String("dir", cfg.Artifacts.Dir), zap.Error(err))
	}
	svc, err := predictor.NewService(artifacts, predictor.WithCacheSize(cfg.Predictor.CacheSize))
	if err != nil {
		logger.Fatal("invalid model artifacts", zap.Error(err))
	}
	logger.Info("model loaded",
		zap.String("dir", cfg.Artifacts.Dir),
		zap.Float64("train_accuracy", artifacts.Info.TrainAccuracy),
		zap.Float64("test_accuracy", artifacts.Info.TestAccuracy),
	)

	metrics := monitoring.NewMetrics()
	metrics.SetModelAccuracy(artifacts.Info.TrainAccuracy, artifacts.Info.TestAccuracy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Watch artifacts; changes only take effect after a restart
	watcher, err := monitoring.NewArtifactWatcher(cfg.Artifacts.Dir, ml.ArtifactFiles(), logger, metrics.RecordArtifactChange)
	if err != nil {
		logger.Warn("artifact watcher disabled", zap.Error(err))
	} else {
		defer watcher.Close()
		go watcher.Run(ctx)
	}

	// 4. Start HTTP server
	server := lhttp.NewServer(lhttp.ServerConfigFrom(cfg.HTTP), svc, metrics, logger)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// 5. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down", zap.Stringer("signal", sig))
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	if err := server.Stop(); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exiting")
}
