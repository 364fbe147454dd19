package ml

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"slices"
)

type DecisionTree struct {
	nodes       []TreeNode
	numFeatures int
	numClasses  int
	importances []float64
}

// TreeNode is one node of the flattened tree. Child indices are absolute.
type TreeNode struct {
	FeatureIdx int       `json:"feature_idx"`
	Threshold  float64   `json:"threshold"`
	LeftChild  int       `json:"left_child"`
	RightChild int       `json:"right_child"`
	Value      []float64 `json:"value"`
	Samples    int       `json:"samples"`
	IsLeaf     bool      `json:"is_leaf"`
}

// TreeParams controls tree growth. Zero values fall back to the defaults
// noted on each field.
type TreeParams struct {
	MaxDepth        int // 3
	MaxFeatures     int // all features
	MinSamplesSplit int // 2
	MinSamplesLeaf  int // 1
}

func (p TreeParams) withDefaults(numFeatures int) TreeParams {
	if p.MaxDepth <= 0 {
		p.MaxDepth = 3
	}
	if p.MaxFeatures <= 0 || p.MaxFeatures > numFeatures {
		p.MaxFeatures = numFeatures
	}
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = 1
	}
	return p
}

func (dt *DecisionTree) Train(features [][]float64, labels []int, maxDepth int) error {
	numClasses, err := validateTrainingSet(features, labels)
	if err != nil {
		return err
	}
	samples := make([]int, len(features))
	for i := range samples {
		samples[i] = i
	}
	dt.fit(features, labels, samples, numClasses, TreeParams{MaxDepth: maxDepth}, nil)
	return nil
}

func (dt *DecisionTree) Predict(features []float64) (int, float64, error) {
	proba, err := dt.PredictProba(features)
	if err != nil {
		return 0, 0, err
	}
	label := argmax(proba)
	return label, proba[label], nil
}

func (dt *DecisionTree) PredictProba(features []float64) ([]float64, error) {
	leaf, err := dt.leaf(features)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), leaf.Value...), nil
}

// FeatureImportances returns the normalised total gini decrease per feature.
func (dt *DecisionTree) FeatureImportances() []float64 {
	return normalize(dt.importances)
}

func (dt *DecisionTree) leaf(features []float64) (*TreeNode, error) {
	if len(dt.nodes) == 0 {
		return nil, errors.New("model not trained")
	}
	if len(features) != dt.numFeatures {
		return nil, fmt.Errorf("expected %d features, got %d", dt.numFeatures, len(features))
	}
	idx := 0
	for {
		node := &dt.nodes[idx]
		if node.IsLeaf {
			return node, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return nil, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.nodes) {
			return nil, errors.New("invalid tree state")
		}
	}
}

type treeJSON struct {
	NumFeatures int        `json:"num_features"`
	NumClasses  int        `json:"num_classes"`
	Importances []float64  `json:"importances"`
	Nodes       []TreeNode `json:"nodes"`
}

func (dt *DecisionTree) MarshalJSON() ([]byte, error) {
	return json.Marshal(treeJSON{
		NumFeatures: dt.numFeatures,
		NumClasses:  dt.numClasses,
		Importances: dt.importances,
		Nodes:       dt.nodes,
	})
}

func (dt *DecisionTree) UnmarshalJSON(data []byte) error {
	var payload treeJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if len(payload.Nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	for i, node := range payload.Nodes {
		if node.IsLeaf {
			if len(node.Value) != payload.NumClasses {
				return fmt.Errorf("node %d: expected %d class values, got %d", i, payload.NumClasses, len(node.Value))
			}
			continue
		}
		if node.LeftChild <= i || node.RightChild <= i || node.LeftChild >= len(payload.Nodes) || node.RightChild >= len(payload.Nodes) {
			return fmt.Errorf("node %d: invalid children", i)
		}
	}
	dt.numFeatures = payload.NumFeatures
	dt.numClasses = payload.NumClasses
	dt.importances = payload.Importances
	dt.nodes = payload.Nodes
	return nil
}

func (dt *DecisionTree) Save(path string) error {
	if len(dt.nodes) == 0 {
		return errors.New("model not trained")
	}
	payload, err := json.Marshal(dt)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func (dt *DecisionTree) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, dt)
}

// fit grows the tree over samples, which may repeat indices (bootstrap).
// A nil rng considers every feature at every split.
func (dt *DecisionTree) fit(features [][]float64, labels []int, samples []int, numClasses int, params TreeParams, rng *rand.Rand) {
	dt.numFeatures = len(features[0])
	dt.numClasses = numClasses
	dt.nodes = nil
	dt.importances = make([]float64, dt.numFeatures)

	b := &treeBuilder{
		tree:     dt,
		features: features,
		labels:   labels,
		params:   params.withDefaults(dt.numFeatures),
		rng:      rng,
		buf:      make([]valueLabel, len(samples)),
	}
	b.build(samples, 0)
}

type valueLabel struct {
	value float64
	label int
}

type split struct {
	feature   int
	threshold float64
	impurity  float64
}

type treeBuilder struct {
	tree     *DecisionTree
	features [][]float64
	labels   []int
	params   TreeParams
	rng      *rand.Rand
	buf      []valueLabel
}

func (b *treeBuilder) build(samples []int, depth int) int {
	counts := b.classCounts(samples)
	idx := len(b.tree.nodes)
	b.tree.nodes = append(b.tree.nodes, TreeNode{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		Value:      fractions(counts, len(samples)),
		Samples:    len(samples),
		IsLeaf:     true,
	})

	if depth >= b.params.MaxDepth || len(samples) < b.params.MinSamplesSplit || isPure(counts) {
		return idx
	}

	best, ok := b.bestSplit(samples)
	if !ok {
		return idx
	}

	left := make([]int, 0, len(samples))
	right := make([]int, 0, len(samples))
	for _, s := range samples {
		if b.features[s][best.feature] <= best.threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return idx
	}

	n := float64(len(samples))
	b.tree.importances[best.feature] += n*gini(counts, len(samples)) - n*best.impurity

	leftIdx := b.build(left, depth+1)
	rightIdx := b.build(right, depth+1)

	node := &b.tree.nodes[idx]
	node.FeatureIdx = best.feature
	node.Threshold = best.threshold
	node.LeftChild = leftIdx
	node.RightChild = rightIdx
	node.IsLeaf = false
	return idx
}

// featureOrder is the order features are visited at a split and how many
// non-constant ones to evaluate before stopping.
func (b *treeBuilder) featureOrder() ([]int, int) {
	numFeatures := b.tree.numFeatures
	if b.rng == nil || b.params.MaxFeatures >= numFeatures {
		all := make([]int, numFeatures)
		for i := range all {
			all[i] = i
		}
		return all, numFeatures
	}
	return b.rng.Perm(numFeatures), b.params.MaxFeatures
}

// bestSplit sweeps the sorted values of each candidate feature and keeps the
// threshold with the lowest weighted gini impurity. Features that are
// constant within the node are skipped and do not count toward MaxFeatures.
func (b *treeBuilder) bestSplit(samples []int) (split, bool) {
	numClasses := b.tree.numClasses
	total := len(samples)
	minLeaf := b.params.MinSamplesLeaf
	best := split{feature: -1}
	found := false

	leftCounts := make([]int, numClasses)
	rightCounts := make([]int, numClasses)
	pairs := b.buf[:total]

	order, limit := b.featureOrder()
	evaluated := 0
	for _, feature := range order {
		if evaluated >= limit {
			break
		}
		for i, s := range samples {
			pairs[i] = valueLabel{value: b.features[s][feature], label: b.labels[s]}
		}
		slices.SortFunc(pairs, func(a, c valueLabel) int {
			return cmp.Compare(a.value, c.value)
		})
		if pairs[0].value == pairs[total-1].value {
			continue
		}
		evaluated++

		clear(leftCounts)
		clear(rightCounts)
		for _, p := range pairs {
			rightCounts[p.label]++
		}

		for i := 0; i < total-1; i++ {
			leftCounts[pairs[i].label]++
			rightCounts[pairs[i].label]--
			if pairs[i].value == pairs[i+1].value {
				continue
			}
			nLeft := i + 1
			nRight := total - nLeft
			if nLeft < minLeaf || nRight < minLeaf {
				continue
			}
			impurity := (float64(nLeft)*gini(leftCounts, nLeft) + float64(nRight)*gini(rightCounts, nRight)) / float64(total)
			if !found || impurity < best.impurity {
				threshold := pairs[i].value + (pairs[i+1].value-pairs[i].value)/2
				if threshold >= pairs[i+1].value {
					threshold = pairs[i].value
				}
				best = split{feature: feature, threshold: threshold, impurity: impurity}
				found = true
			}
		}
	}
	return best, found
}

func (b *treeBuilder) classCounts(samples []int) []int {
	counts := make([]int, b.tree.numClasses)
	for _, s := range samples {
		counts[b.labels[s]]++
	}
	return counts
}

func validateTrainingSet(features [][]float64, labels []int) (int, error) {
	if len(features) == 0 || len(labels) == 0 {
		return 0, errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return 0, errors.New("features and labels size mismatch")
	}
	width := len(features[0])
	if width == 0 {
		return 0, errors.New("feature vectors are empty")
	}
	maxLabel := 0
	for i, row := range features {
		if len(row) != width {
			return 0, fmt.Errorf("row %d: expected %d features, got %d", i, width, len(row))
		}
		if labels[i] < 0 {
			return 0, fmt.Errorf("row %d: negative label %d", i, labels[i])
		}
		if labels[i] > maxLabel {
			maxLabel = labels[i]
		}
	}
	return max(maxLabel+1, 2), nil
}

func gini(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	impurity := 1.0
	for _, count := range counts {
		prob := float64(count) / float64(total)
		impurity -= prob * prob
	}
	return impurity
}

func fractions(counts []int, total int) []float64 {
	out := make([]float64, len(counts))
	if total == 0 {
		return out
	}
	for i, count := range counts {
		out[i] = float64(count) / float64(total)
	}
	return out
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, count := range counts {
		if count > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

// argmax breaks ties towards the lower class.
func argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

func normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	total := 0.0
	for _, v := range values {
		total += v
	}
	if total <= 0 {
		return out
	}
	for i, v := range values {
		out[i] = v / total
	}
	return out
}
