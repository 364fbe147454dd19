package main

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanscore/config"
	"loanscore/ml"
	"loanscore/pipeline"
)

func writeDataset(t *testing.T, path string, rows int) {
	t.Helper()
	rng := rand.New(rand.NewSource(11))
	columns := pipeline.RequiredColumns()

	var buf strings.Builder
	buf.WriteString(strings.Join(columns, ",") + "\n")
	for i := 0; i < rows; i++ {
		credit := 500 + rng.Float64()*350
		dti := rng.Float64()
		label := 0
		if credit > 680 && dti < 0.6 {
			label = 1
		}
		values := make([]string, len(columns))
		for j, column := range columns {
			switch column {
			case ml.FieldGender:
				values[j] = []string{"Male", "Female"}[rng.Intn(2)]
			case ml.FieldMaritalStatus:
				values[j] = []string{"Single", "Married"}[rng.Intn(2)]
			case ml.FieldEducationLevel:
				values[j] = []string{"High School", "Master's"}[rng.Intn(2)]
			case ml.FieldEmploymentStatus:
				values[j] = "Employed"
			case ml.FieldLoanPurpose:
				values[j] = []string{"Car", "Home", "Other"}[rng.Intn(3)]
			case "credit_score":
				values[j] = fmt.Sprintf("%.0f", credit)
			case "debt_to_income_ratio":
				values[j] = fmt.Sprintf("%.3f", dti)
			case ml.LabelColumn:
				values[j] = fmt.Sprint(label)
			default:
				values[j] = fmt.Sprintf("%.2f", rng.Float64()*100)
			}
		}
		buf.WriteString(strings.Join(values, ",") + "\n")
	}
	require.NoError(t, os.WriteFile(path, []byte(buf.String()), 0o644))
}

func writeTrainerConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf(`
artifacts:
  dir: %s
training:
  trees: 8
  max_depth: 6
log:
  file: %s
`, dir, filepath.Join(dir, "train.log"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRunMissingDataset(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.EnvArtifactDir, dir)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", filepath.Join(dir, "absent.yaml")}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	want := "Error: Dataset not found at " + filepath.Join(dir, "loan_dataset_20000.csv")
	assert.Contains(t, stdout.String(), want)
	assert.Contains(t, stdout.String(), "Please ensure loan_dataset_20000.csv is in the")
	for _, name := range ml.ArtifactFiles() {
		assert.NoFileExists(t, filepath.Join(dir, name))
	}
}

func TestRunTrainsAndWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, filepath.Join(dir, "loan_dataset_20000.csv"), 300)
	configPath := writeTrainerConfig(t, dir)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", configPath}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "Training Accuracy: 0.")
	assert.Contains(t, out, "Testing Accuracy: ")
	assert.Contains(t, out, "Top 10 Most Important Features:")
	assert.Contains(t, out, "Model and encoders saved successfully!")
	assert.Contains(t, out, "Files created: loan_model.json.gz, le_gender.json")

	artifacts, err := ml.LoadArtifacts(dir)
	require.NoError(t, err)
	assert.Len(t, artifacts.Info.FeatureImportance, 10)
	assert.Equal(t, ml.FeatureNames(), artifacts.Info.Features)

	for _, fs := range artifacts.Info.FeatureImportance {
		assert.Contains(t, out, fmt.Sprintf("%s: %.4f", fs.Name, fs.Score))
	}
}

func TestRunIsDeterministic(t *testing.T) {
	read := func() []byte {
		dir := t.TempDir()
		writeDataset(t, filepath.Join(dir, "loan_dataset_20000.csv"), 200)
		var stdout, stderr bytes.Buffer
		require.Equal(t, 0, run(context.Background(), []string{"-config", writeTrainerConfig(t, dir)}, &stdout, &stderr))
		info, err := os.ReadFile(filepath.Join(dir, ml.ModelInfoFile))
		require.NoError(t, err)
		return info
	}
	assert.Equal(t, string(read()), string(read()))
}

func TestRunBadFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(context.Background(), []string{"-nope"}, &stdout, &stderr))
}
