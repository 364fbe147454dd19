package risk

import "loanscore/ml"

type rule struct {
	applies    func(ml.LoanApplication) bool
	suggestion string
}

// rules run in this order and independently of each other.
var rules = []rule{
	{func(a ml.LoanApplication) bool { return a.CreditScore < 700 }, "Improve your credit score to above 700"},
	{func(a ml.LoanApplication) bool { return a.DebtToIncomeRatio > 0.4 }, "Reduce your debt-to-income ratio below 40%"},
	{func(a ml.LoanApplication) bool { return a.DelinquencyHistory > 0 }, "Clear any existing delinquencies"},
	{func(a ml.LoanApplication) bool { return a.NumOfDelinquencies > 2 }, "Work on reducing the number of delinquencies"},
}

// Suggestions lists the improvements that apply to the raw application.
// The result is never nil.
func Suggestions(app ml.LoanApplication) []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		if r.applies(app) {
			out = append(out, r.suggestion)
		}
	}
	return out
}
