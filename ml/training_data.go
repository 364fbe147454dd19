package ml

import (
	"errors"
	"math"
	"math/rand"
)

// SplitDataset shuffles with seed and holds out ceil(n*testRatio) rows for
// testing. The same seed and input always give the same partition.
func SplitDataset(features [][]float64, labels []int, testRatio float64, seed int64) (trainX [][]float64, trainY []int, testX [][]float64, testY []int, err error) {
	if len(features) != len(labels) {
		return nil, nil, nil, nil, errors.New("features and labels size mismatch")
	}
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, nil, nil, errors.New("test ratio must be in (0, 1)")
	}
	n := len(features)
	testSize := int(math.Ceil(float64(n) * testRatio))
	if testSize < 1 || n-testSize < 1 {
		return nil, nil, nil, nil, errors.New("not enough rows to split")
	}

	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(n)

	testX = make([][]float64, 0, testSize)
	testY = make([]int, 0, testSize)
	trainX = make([][]float64, 0, n-testSize)
	trainY = make([]int, 0, n-testSize)
	for i, idx := range indices {
		if i < testSize {
			testX = append(testX, features[idx])
			testY = append(testY, labels[idx])
		} else {
			trainX = append(trainX, features[idx])
			trainY = append(trainY, labels[idx])
		}
	}
	return trainX, trainY, testX, testY, nil
}

// Accuracy is the fraction of rows the model labels correctly.
func Accuracy(model Classifier, features [][]float64, labels []int) (float64, error) {
	if len(features) == 0 {
		return 0, errors.New("features is empty")
	}
	if len(features) != len(labels) {
		return 0, errors.New("features and labels size mismatch")
	}
	correct := 0
	for i, row := range features {
		label, _, err := model.Predict(row)
		if err != nil {
			return 0, err
		}
		if label == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(features)), nil
}
