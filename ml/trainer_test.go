package ml

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainProducesModelInfo(t *testing.T) {
	result, err := Train(context.Background(), syntheticRecords(500, 5), fastTrainingConfig())
	require.NoError(t, err)

	assert.Equal(t, FeatureNames(), result.Info.Features)
	assert.Greater(t, result.Info.TrainAccuracy, 0.8)
	assert.Greater(t, result.Info.TestAccuracy, 0.7)
	assert.LessOrEqual(t, result.Info.TestAccuracy, 1.0)
	assert.Len(t, result.Info.FeatureImportance, 10)
	for i := 1; i < len(result.Info.FeatureImportance); i++ {
		assert.GreaterOrEqual(t, result.Info.FeatureImportance[i-1].Score, result.Info.FeatureImportance[i].Score)
	}
	require.NoError(t, result.Encoders.Validate())
}

func TestTrainIsReproducible(t *testing.T) {
	records := syntheticRecords(400, 9)
	first, err := Train(context.Background(), records, fastTrainingConfig())
	require.NoError(t, err)
	second, err := Train(context.Background(), records, fastTrainingConfig())
	require.NoError(t, err)

	assert.Equal(t, first.Info, second.Info)
	assert.Equal(t, first.Encoders.Vocabulary(), second.Encoders.Vocabulary())
}

func TestTrainRejectsEmptyInput(t *testing.T) {
	_, err := Train(context.Background(), nil, fastTrainingConfig())
	assert.Error(t, err)
}

func TestArtifactsRoundTrip(t *testing.T) {
	records := syntheticRecords(300, 13)
	result, err := Train(context.Background(), records, fastTrainingConfig())
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "artifacts")
	require.NoError(t, SaveArtifacts(dir, result))
	for _, name := range ArtifactFiles() {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, len(ArtifactFiles()), "temp files must not be left behind")

	loaded, err := LoadArtifacts(dir)
	require.NoError(t, err)
	assert.Equal(t, result.Info, loaded.Info)
	assert.Equal(t, result.Encoders.Vocabulary(), loaded.Encoders.Vocabulary())

	onDisk, err := os.ReadFile(filepath.Join(dir, ModelInfoFile))
	require.NoError(t, err)
	assert.Equal(t, onDisk, loaded.RawInfo)

	for _, record := range records[:30] {
		vector, err := FeatureVector(record.LoanApplication, loaded.Encoders)
		require.NoError(t, err)
		want, err := result.Model.PredictProba(vector)
		require.NoError(t, err)
		got, err := loaded.Model.PredictProba(vector)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestLoadArtifactsFailures(t *testing.T) {
	_, err := LoadArtifacts(t.TempDir())
	assert.Error(t, err)

	result, err := Train(context.Background(), syntheticRecords(200, 2), fastTrainingConfig())
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, SaveArtifacts(dir, result))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "le_purpose.json"), []byte(`{"field":"gender","classes":["x"]}`), 0o644))
	_, err = LoadArtifacts(dir)
	assert.ErrorContains(t, err, "le_purpose.json")

	require.NoError(t, os.Remove(filepath.Join(dir, "le_purpose.json")))
	_, err = LoadArtifacts(dir)
	assert.ErrorContains(t, err, "loan_purpose")

	require.NoError(t, os.WriteFile(filepath.Join(dir, ModelFile), []byte("not gzip"), 0o644))
	_, err = LoadArtifacts(dir)
	assert.ErrorContains(t, err, "load model")
}

func TestSaveArtifactsFailureKeepsPreviousSet(t *testing.T) {
	dir := t.TempDir()
	first, err := Train(context.Background(), syntheticRecords(200, 2), fastTrainingConfig())
	require.NoError(t, err)
	require.NoError(t, SaveArtifacts(dir, first))

	before := make(map[string][]byte)
	for _, name := range ArtifactFiles() {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		before[name] = data
	}

	second, err := Train(context.Background(), syntheticRecords(250, 7), fastTrainingConfig())
	require.NoError(t, err)
	// model_info.json is staged last; a NaN score makes it unencodable.
	second.Info.FeatureImportance[0].Score = math.NaN()
	require.Error(t, SaveArtifacts(dir, second))

	for name, want := range before {
		got, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, want, got, "%s was replaced by a failed save", name)
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, len(ArtifactFiles()), "temp files must not be left behind")

	loaded, err := LoadArtifacts(dir)
	require.NoError(t, err)
	top := first.Info.FeatureImportance[0]
	score, ok := loaded.Info.FeatureImportance.Get(top.Name)
	require.True(t, ok)
	assert.Equal(t, top.Score, score)
}
