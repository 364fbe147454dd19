// Package predictor turns a loan application into an approval decision
// using artifacts loaded once at startup.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"

	"loanscore/ml"
	"loanscore/risk"
)

const positiveClass = 1

type Prediction struct {
	Approved            bool     `json:"approved"`
	ApprovalProbability float64  `json:"approval_probability"`
	RiskLevel           string   `json:"risk_level"`
	Recommendation      string   `json:"recommendation"`
	Suggestions         []string `json:"suggestions"`
	ModelAccuracy       float64  `json:"model_accuracy"`
}

// Service is read-only after construction and safe for concurrent use.
type Service struct {
	model    ml.Classifier
	encoders ml.EncoderSet
	info     ml.ModelInfo
	rawInfo  []byte
	cache    *lru.Cache[ml.LoanApplication, Prediction]
}

type Option func(*Service) error

// WithCacheSize memoizes up to size predictions keyed by the raw
// application. Zero disables the cache.
func WithCacheSize(size int) Option {
	return func(s *Service) error {
		if size <= 0 {
			return nil
		}
		cache, err := lru.New[ml.LoanApplication, Prediction](size)
		if err != nil {
			return err
		}
		s.cache = cache
		return nil
	}
}

func NewService(artifacts *ml.Artifacts, opts ...Option) (*Service, error) {
	if artifacts == nil || artifacts.Model == nil {
		return nil, errors.New("no model loaded")
	}
	if err := artifacts.Encoders.Validate(); err != nil {
		return nil, err
	}
	raw := artifacts.RawInfo
	if len(raw) == 0 {
		return nil, errors.New("model info is empty")
	}
	svc := &Service{
		model:    artifacts.Model,
		encoders: artifacts.Encoders,
		info:     artifacts.Info,
		rawInfo:  raw,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

func (s *Service) Predict(ctx context.Context, app ml.LoanApplication) (*Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.cache != nil {
		if cached, ok := s.cache.Get(app); ok {
			return clonePrediction(cached), nil
		}
	}

	features, err := ml.FeatureVector(app, s.encoders)
	if err != nil {
		if errors.Is(err, ml.ErrUnknownCategory) {
			return nil, WrapError(ErrInvalidInput, "encode application", err)
		}
		return nil, WrapError(ErrInternal, "encode application", err)
	}

	label, _, err := s.model.Predict(features)
	if err != nil {
		return nil, WrapError(ErrInternal, "classify", err)
	}
	proba, err := s.model.PredictProba(features)
	if err != nil {
		return nil, WrapError(ErrInternal, "classify", err)
	}
	if len(proba) <= positiveClass {
		return nil, WrapError(ErrInternal, "classify", fmt.Errorf("model returned %d class probabilities", len(proba)))
	}

	percent := risk.ApprovalPercent(proba[positiveClass])
	tier := risk.Classify(percent)
	prediction := Prediction{
		Approved:            label == positiveClass,
		ApprovalProbability: percent,
		RiskLevel:           string(tier.Level),
		Recommendation:      tier.Recommendation,
		Suggestions:         risk.Suggestions(app),
		ModelAccuracy:       s.info.TestAccuracy,
	}
	if s.cache != nil {
		s.cache.Add(app, prediction)
	}
	return clonePrediction(prediction), nil
}

func clonePrediction(p Prediction) *Prediction {
	p.Suggestions = slices.Clone(p.Suggestions)
	return &p
}

// CacheLen reports how many predictions are memoized.
func (s *Service) CacheLen() int {
	if s.cache == nil {
		return 0
	}
	return s.cache.Len()
}

// ModelInfo returns model_info.json exactly as it was read from disk.
func (s *Service) ModelInfo() []byte {
	return s.rawInfo
}

func (s *Service) Info() ml.ModelInfo {
	return s.info
}
