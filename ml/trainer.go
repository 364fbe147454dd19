package ml

import (
	"context"
	"errors"
	"fmt"
)

type TrainingConfig struct {
	Forest      ForestParams
	TestRatio   float64
	TopFeatures int
}

func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Forest:      DefaultForestParams(),
		TestRatio:   0.2,
		TopFeatures: 10,
	}
}

// TrainingResult is everything a training run produces.
type TrainingResult struct {
	Model    *RandomForest
	Encoders EncoderSet
	Info     ModelInfo
}

// Train fits encoders, builds the feature matrix, splits, fits the forest
// and evaluates it.
func Train(ctx context.Context, records []LoanRecord, config TrainingConfig) (*TrainingResult, error) {
	if len(records) == 0 {
		return nil, errors.New("no training records")
	}

	encoders, err := FitEncoders(records)
	if err != nil {
		return nil, fmt.Errorf("fit encoders: %w", err)
	}
	features, labels, err := BuildMatrix(records, encoders)
	if err != nil {
		return nil, fmt.Errorf("build features: %w", err)
	}

	trainX, trainY, testX, testY, err := SplitDataset(features, labels, config.TestRatio, config.Forest.Seed)
	if err != nil {
		return nil, fmt.Errorf("split dataset: %w", err)
	}

	model := NewRandomForest(config.Forest)
	if err := model.TrainContext(ctx, trainX, trainY); err != nil {
		return nil, fmt.Errorf("train model: %w", err)
	}

	trainAccuracy, err := Accuracy(model, trainX, trainY)
	if err != nil {
		return nil, fmt.Errorf("train accuracy: %w", err)
	}
	testAccuracy, err := Accuracy(model, testX, testY)
	if err != nil {
		return nil, fmt.Errorf("test accuracy: %w", err)
	}

	names := FeatureNames()
	top, err := RankImportances(names, model.FeatureImportances(), config.TopFeatures)
	if err != nil {
		return nil, err
	}

	return &TrainingResult{
		Model:    model,
		Encoders: encoders,
		Info: ModelInfo{
			Features:          names,
			TrainAccuracy:     trainAccuracy,
			TestAccuracy:      testAccuracy,
			FeatureImportance: top,
		},
	}, nil
}
