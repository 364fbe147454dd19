package ml

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ModelInfo is the summary written next to the model and served as-is.
type ModelInfo struct {
	Features          []string    `json:"features"`
	TrainAccuracy     float64     `json:"train_accuracy"`
	TestAccuracy      float64     `json:"test_accuracy"`
	FeatureImportance Importances `json:"feature_importance"`
}

type FeatureScore struct {
	Name  string
	Score float64
}

// Importances is a ranked name -> score mapping. It encodes as a JSON object
// whose key order follows the ranking.
type Importances []FeatureScore

func (im Importances) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fs := range im {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(fs.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(fs.Score)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (im *Importances) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("feature_importance must be an object")
	}
	out := Importances{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected key %v", tok)
		}
		var score float64
		if err := dec.Decode(&score); err != nil {
			return fmt.Errorf("feature_importance[%s]: %w", name, err)
		}
		out = append(out, FeatureScore{Name: name, Score: score})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*im = out
	return nil
}

// Get looks a feature up by name.
func (im Importances) Get(name string) (float64, bool) {
	for _, fs := range im {
		if fs.Name == name {
			return fs.Score, true
		}
	}
	return 0, false
}

// RankImportances pairs names with scores, sorts descending (stable on ties)
// and keeps the first k.
func RankImportances(names []string, scores []float64, k int) (Importances, error) {
	if len(names) != len(scores) {
		return nil, errors.New("names and scores length mismatch")
	}
	ranked := make(Importances, len(names))
	for i := range names {
		ranked[i] = FeatureScore{Name: names[i], Score: scores[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if k >= 0 && k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked, nil
}
