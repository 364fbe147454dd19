package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitDataset(t *testing.T) {
	features := make([][]float64, 101)
	labels := make([]int, 101)
	for i := range features {
		features[i] = []float64{float64(i)}
		labels[i] = i % 2
	}

	trainX, trainY, testX, testY, err := SplitDataset(features, labels, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, testX, 21)
	assert.Len(t, testY, 21)
	assert.Len(t, trainX, 80)
	assert.Len(t, trainY, 80)

	seen := map[float64]bool{}
	for i, row := range append(append([][]float64{}, trainX...), testX...) {
		assert.False(t, seen[row[0]], "row %d duplicated", i)
		seen[row[0]] = true
	}
	assert.Len(t, seen, 101)
	for i, row := range testX {
		assert.Equal(t, int(row[0])%2, testY[i])
	}

	againTrain, _, againTest, _, err := SplitDataset(features, labels, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, trainX, againTrain)
	assert.Equal(t, testX, againTest)
}

func TestSplitDatasetErrors(t *testing.T) {
	_, _, _, _, err := SplitDataset([][]float64{{1}}, []int{0, 1}, 0.2, 1)
	assert.Error(t, err)
	_, _, _, _, err = SplitDataset([][]float64{{1}, {2}}, []int{0, 1}, 1.5, 1)
	assert.Error(t, err)
	_, _, _, _, err = SplitDataset([][]float64{{1}}, []int{0}, 0.2, 1)
	assert.Error(t, err)
}

type constantModel struct{ label int }

func (c constantModel) Predict([]float64) (int, float64, error) { return c.label, 1, nil }
func (c constantModel) PredictProba([]float64) ([]float64, error) {
	proba := []float64{0, 0}
	proba[c.label] = 1
	return proba, nil
}

func TestAccuracy(t *testing.T) {
	features := [][]float64{{0}, {0}, {0}, {0}}
	accuracy, err := Accuracy(constantModel{label: 1}, features, []int{1, 1, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.75, accuracy)

	_, err = Accuracy(constantModel{}, nil, nil)
	assert.Error(t, err)
}
