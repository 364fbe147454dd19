package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"runtime"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"
)

type ForestParams struct {
	NTrees          int   `json:"n_estimators"`
	MaxDepth        int   `json:"max_depth"`
	MaxFeatures     int   `json:"max_features"` // 0 means floor(sqrt(n_features))
	MinSamplesSplit int   `json:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf"`
	Seed            int64 `json:"random_state"`
	Workers         int   `json:"-"`
}

func DefaultForestParams() ForestParams {
	return ForestParams{
		NTrees:          100,
		MaxDepth:        15,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Seed:            42,
	}
}

// RandomForest is a bagged ensemble of gini trees. It is immutable once
// trained or loaded and safe for concurrent prediction.
type RandomForest struct {
	params      ForestParams
	trees       []*DecisionTree
	numFeatures int
	numClasses  int
}

func NewRandomForest(params ForestParams) *RandomForest {
	return &RandomForest{params: params}
}

func (rf *RandomForest) Params() ForestParams {
	return rf.params
}

func (rf *RandomForest) Train(features [][]float64, labels []int) error {
	return rf.TrainContext(context.Background(), features, labels)
}

// TrainContext fits every tree on its own bootstrap sample. Tree seeds are
// drawn in order from the forest seed, so the result does not depend on
// scheduling.
func (rf *RandomForest) TrainContext(ctx context.Context, features [][]float64, labels []int) error {
	numClasses, err := validateTrainingSet(features, labels)
	if err != nil {
		return err
	}
	if rf.params.NTrees <= 0 {
		return errors.New("n_estimators must be positive")
	}

	numFeatures := len(features[0])
	treeParams := TreeParams{
		MaxDepth:        rf.params.MaxDepth,
		MaxFeatures:     rf.params.MaxFeatures,
		MinSamplesSplit: rf.params.MinSamplesSplit,
		MinSamplesLeaf:  rf.params.MinSamplesLeaf,
	}
	if treeParams.MaxFeatures <= 0 {
		treeParams.MaxFeatures = max(1, int(math.Sqrt(float64(numFeatures))))
	}

	master := rand.New(rand.NewSource(rf.params.Seed))
	seeds := make([]int64, rf.params.NTrees)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	workers := rf.params.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]*DecisionTree, rf.params.NTrees)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seeds[i]))
			samples := make([]int, len(features))
			for j := range samples {
				samples[j] = rng.Intn(len(features))
			}
			tree := &DecisionTree{}
			tree.fit(features, labels, samples, numClasses, treeParams, rng)
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	rf.trees = trees
	rf.numFeatures = numFeatures
	rf.numClasses = numClasses
	return nil
}

// PredictProba averages the leaf class fractions of every tree.
func (rf *RandomForest) PredictProba(features []float64) ([]float64, error) {
	if len(rf.trees) == 0 {
		return nil, errors.New("model not trained")
	}
	if len(features) != rf.numFeatures {
		return nil, fmt.Errorf("expected %d features, got %d", rf.numFeatures, len(features))
	}
	proba := make([]float64, rf.numClasses)
	for _, tree := range rf.trees {
		leaf, err := tree.leaf(features)
		if err != nil {
			return nil, err
		}
		for i, v := range leaf.Value {
			proba[i] += v
		}
	}
	for i := range proba {
		proba[i] /= float64(len(rf.trees))
	}
	return proba, nil
}

func (rf *RandomForest) Predict(features []float64) (int, float64, error) {
	proba, err := rf.PredictProba(features)
	if err != nil {
		return 0, 0, err
	}
	label := argmax(proba)
	return label, proba[label], nil
}

// FeatureImportances is the mean of the per-tree normalised importances.
func (rf *RandomForest) FeatureImportances() []float64 {
	total := make([]float64, rf.numFeatures)
	for _, tree := range rf.trees {
		for i, v := range tree.FeatureImportances() {
			total[i] += v
		}
	}
	return normalize(total)
}

func (rf *RandomForest) NumTrees() int {
	return len(rf.trees)
}

type forestJSON struct {
	Params      ForestParams      `json:"params"`
	NumFeatures int               `json:"num_features"`
	NumClasses  int               `json:"num_classes"`
	Trees       []json.RawMessage `json:"trees"`
}

func (rf *RandomForest) MarshalJSON() ([]byte, error) {
	payload := forestJSON{
		Params:      rf.params,
		NumFeatures: rf.numFeatures,
		NumClasses:  rf.numClasses,
		Trees:       make([]json.RawMessage, len(rf.trees)),
	}
	for i, tree := range rf.trees {
		raw, err := json.Marshal(tree)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		payload.Trees[i] = raw
	}
	return json.Marshal(payload)
}

func (rf *RandomForest) UnmarshalJSON(data []byte) error {
	var payload forestJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if len(payload.Trees) == 0 {
		return errors.New("forest has no trees")
	}
	trees := make([]*DecisionTree, len(payload.Trees))
	for i, raw := range payload.Trees {
		tree := &DecisionTree{}
		if err := json.Unmarshal(raw, tree); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
		if tree.numFeatures != payload.NumFeatures || tree.numClasses != payload.NumClasses {
			return fmt.Errorf("tree %d: shape mismatch", i)
		}
		trees[i] = tree
	}
	rf.params = payload.Params
	rf.numFeatures = payload.NumFeatures
	rf.numClasses = payload.NumClasses
	rf.trees = trees
	return nil
}

// Save writes the forest as gzip-compressed JSON.
func (rf *RandomForest) Save(path string) error {
	if len(rf.trees) == 0 {
		return errors.New("model not trained")
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(file)
	if err := json.NewEncoder(zw).Encode(rf); err != nil {
		zw.Close()
		file.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func (rf *RandomForest) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("open model %s: %w", path, err)
	}
	defer zr.Close()
	return json.NewDecoder(zr).Decode(rf)
}
