package ml

type MLModel interface {
	Train(features [][]float64, labels []int) error
	Predict(features []float64) (int, float64, error)
	Save(path string) error
	Load(path string) error
}

// Classifier is the read-only view used at inference time.
type Classifier interface {
	Predict(features []float64) (int, float64, error)
	PredictProba(features []float64) ([]float64, error)
}

var (
	_ MLModel    = (*RandomForest)(nil)
	_ Classifier = (*RandomForest)(nil)
	_ Classifier = (*DecisionTree)(nil)
)
