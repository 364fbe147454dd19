// Package risk holds the post-prediction business rules: approval
// percentage, risk tier and improvement suggestions.
package risk

import (
	"github.com/shopspring/decimal"
)

// Level is a coarse bucket of approval probability.
type Level string

const (
	LevelLow        Level = "Low"
	LevelMedium     Level = "Medium"
	LevelMediumHigh Level = "Medium-High"
	LevelHigh       Level = "High"
)

// Tier pairs a risk level with the message shown to the applicant.
type Tier struct {
	Level          Level
	Recommendation string
}

var tiers = []struct {
	floor float64
	tier  Tier
}{
	{80, Tier{LevelLow, "Excellent! You have a high chance of loan approval."}},
	{60, Tier{LevelMedium, "Good chances of approval. Consider improving your credit profile."}},
	{40, Tier{LevelMediumHigh, "Moderate chances. We recommend improving your financial metrics."}},
}

var highRisk = Tier{LevelHigh, "Low approval chances. Please work on improving your credit score and reducing debt."}

// Classify buckets an approval percentage. Boundary values belong to the
// higher tier.
func Classify(percent float64) Tier {
	for _, t := range tiers {
		if percent >= t.floor {
			return t.tier
		}
	}
	return highRisk
}

// ApprovalPercent scales a positive-class probability to a percentage with
// two decimals, rounding half away from zero, clamped to [0, 100].
func ApprovalPercent(probability float64) float64 {
	percent := decimal.NewFromFloat(probability).Mul(decimal.NewFromInt(100)).Round(2)
	if percent.IsNegative() {
		return 0
	}
	if percent.GreaterThan(decimal.NewFromInt(100)) {
		return 100
	}
	return percent.InexactFloat64()
}
