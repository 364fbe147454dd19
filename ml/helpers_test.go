package ml

import "math/rand"

var (
	testGenders    = []string{"Female", "Male", "Other"}
	testMarital    = []string{"Single", "Married", "Divorced", "Widowed"}
	testEducation  = []string{"High School", "Bachelor's", "Master's", "PhD", "Other"}
	testEmployment = []string{"Employed", "Self-employed", "Unemployed", "Retired", "Student"}
	testPurposes   = []string{"Debt consolidation", "Car", "Home", "Education", "Business", "Medical", "Vacation", "Other"}
)

// syntheticRecords builds a dataset whose label is driven mostly by credit
// score and debt-to-income ratio.
func syntheticRecords(n int, seed int64) []LoanRecord {
	rnd := rand.New(rand.NewSource(seed))
	records := make([]LoanRecord, n)
	for i := range records {
		income := 20000 + rnd.Float64()*130000
		credit := 450 + rnd.Float64()*400
		dti := rnd.Float64() * 0.7
		amount := 1000 + rnd.Float64()*40000
		rate := 5 + rnd.Float64()*20
		delinquencies := float64(rnd.Intn(5))

		paid := 0
		if credit > 640 && dti < 0.45 {
			paid = 1
		}
		if rnd.Float64() < 0.05 {
			paid = 1 - paid
		}

		records[i] = LoanRecord{
			LoanApplication: LoanApplication{
				Age:                float64(21 + rnd.Intn(50)),
				Gender:             testGenders[rnd.Intn(len(testGenders))],
				MaritalStatus:      testMarital[rnd.Intn(len(testMarital))],
				EducationLevel:     testEducation[rnd.Intn(len(testEducation))],
				AnnualIncome:       income,
				MonthlyIncome:      income / 12,
				EmploymentStatus:   testEmployment[rnd.Intn(len(testEmployment))],
				DebtToIncomeRatio:  dti,
				CreditScore:        credit,
				LoanAmount:         amount,
				LoanPurpose:        testPurposes[rnd.Intn(len(testPurposes))],
				InterestRate:       rate,
				LoanTerm:           float64([]int{36, 60}[rnd.Intn(2)]),
				Installment:        amount / 36,
				NumOfOpenAccounts:  float64(rnd.Intn(15)),
				TotalCreditLimit:   5000 + rnd.Float64()*95000,
				CurrentBalance:     rnd.Float64() * 50000,
				DelinquencyHistory: float64(rnd.Intn(3)),
				PublicRecords:      float64(rnd.Intn(2)),
				NumOfDelinquencies: delinquencies,
			},
			LoanPaidBack: paid,
		}
	}
	return records
}

func fastTrainingConfig() TrainingConfig {
	config := DefaultTrainingConfig()
	config.Forest.NTrees = 15
	config.Forest.MaxDepth = 8
	return config
}
