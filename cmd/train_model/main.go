package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"loanscore/config"
	"loanscore/logging"
	"loanscore/ml"
	"loanscore/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("train_model", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", config.DefaultPath, "path to the yaml config (optional)")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	logger := logging.New(cfg.Log)
	defer logger.Sync()

	source, path := datasetSource(cfg)
	records, err := source.Load(ctx)
	if errors.Is(err, pipeline.ErrDatasetNotFound) {
		fmt.Fprintf(stdout, "Error: Dataset not found at %s\n", path)
		fmt.Fprintf(stdout, "Please ensure %s is in the %s directory\n", filepath.Base(path), filepath.Dir(path))
		return 1
	}
	if err != nil {
		logger.Error("failed to load dataset", zap.Stringer("source", source), zap.Error(err))
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	logger.Info("dataset loaded", zap.Stringer("source", source), zap.Int("rows", len(records)))

	training := cfg.TrainingConfig()
	fmt.Fprintln(stdout, "Training Random Forest model...")
	start := time.Now()
	result, err := ml.Train(ctx, records, training)
	if err != nil {
		logger.Error("training failed", zap.Error(err))
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	logger.Info("training finished",
		zap.Int("trees", result.Model.NumTrees()),
		zap.Int("max_depth", training.Forest.MaxDepth),
		zap.Duration("elapsed", time.Since(start)),
	)

	printReport(stdout, result.Info)

	if err := ml.SaveArtifacts(cfg.Artifacts.Dir, result); err != nil {
		logger.Error("failed to save artifacts", zap.String("dir", cfg.Artifacts.Dir), zap.Error(err))
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, "\nModel and encoders saved successfully!")
	fmt.Fprintf(stdout, "Files created: %s\n", strings.Join(ml.ArtifactFiles(), ", "))
	return 0
}

func datasetSource(cfg *config.Config) (pipeline.Source, string) {
	if cfg.Dataset.SQLitePath != "" {
		return pipeline.SQLiteSource{Path: cfg.Dataset.SQLitePath, Table: cfg.Dataset.SQLiteTable}, cfg.Dataset.SQLitePath
	}
	path := cfg.CSVPath()
	return pipeline.CSVSource{Path: path}, path
}

func printReport(w io.Writer, info ml.ModelInfo) {
	fmt.Fprintf(w, "Training Accuracy: %.4f\n", info.TrainAccuracy)
	fmt.Fprintf(w, "Testing Accuracy: %.4f\n", info.TestAccuracy)
	fmt.Fprintf(w, "\nTop %d Most Important Features:\n", len(info.FeatureImportance))
	for _, fs := range info.FeatureImportance {
		fmt.Fprintf(w, "%s: %.4f\n", fs.Name, fs.Score)
	}
}
