package ml

import (
	"errors"
	"fmt"
)

// LoanApplication is the raw, pre-encoding applicant record.
type LoanApplication struct {
	Age                float64 `json:"age"`
	Gender             string  `json:"gender"`
	MaritalStatus      string  `json:"marital_status"`
	EducationLevel     string  `json:"education_level"`
	AnnualIncome       float64 `json:"annual_income"`
	MonthlyIncome      float64 `json:"monthly_income"`
	EmploymentStatus   string  `json:"employment_status"`
	DebtToIncomeRatio  float64 `json:"debt_to_income_ratio"`
	CreditScore        float64 `json:"credit_score"`
	LoanAmount         float64 `json:"loan_amount"`
	LoanPurpose        string  `json:"loan_purpose"`
	InterestRate       float64 `json:"interest_rate"`
	LoanTerm           float64 `json:"loan_term"`
	Installment        float64 `json:"installment"`
	NumOfOpenAccounts  float64 `json:"num_of_open_accounts"`
	TotalCreditLimit   float64 `json:"total_credit_limit"`
	CurrentBalance     float64 `json:"current_balance"`
	DelinquencyHistory float64 `json:"delinquency_history"`
	PublicRecords      float64 `json:"public_records"`
	NumOfDelinquencies float64 `json:"num_of_delinquencies"`
}

// LoanRecord is one labelled training row.
type LoanRecord struct {
	LoanApplication
	LoanPaidBack int `json:"loan_paid_back"`
}

const (
	FieldGender           = "gender"
	FieldMaritalStatus    = "marital_status"
	FieldEducationLevel   = "education_level"
	FieldEmploymentStatus = "employment_status"
	FieldLoanPurpose      = "loan_purpose"

	LabelColumn = "loan_paid_back"
)

// CategoricalFields lists the encoded fields in the order their encoders are fitted.
func CategoricalFields() []string {
	return []string{
		FieldGender,
		FieldMaritalStatus,
		FieldEducationLevel,
		FieldEmploymentStatus,
		FieldLoanPurpose,
	}
}

// NumericFields lists the raw numeric columns.
func NumericFields() []string {
	return []string{
		"age",
		"annual_income",
		"monthly_income",
		"debt_to_income_ratio",
		"credit_score",
		"loan_amount",
		"interest_rate",
		"loan_term",
		"installment",
		"num_of_open_accounts",
		"total_credit_limit",
		"current_balance",
		"delinquency_history",
		"public_records",
		"num_of_delinquencies",
	}
}

// FeatureNames is the exact column order the classifier is trained and queried with.
func FeatureNames() []string {
	return []string{
		"age",
		"gender_encoded",
		"marital_status_encoded",
		"education_level_encoded",
		"annual_income",
		"monthly_income",
		"employment_status_encoded",
		"debt_to_income_ratio",
		"credit_score",
		"loan_amount",
		"loan_purpose_encoded",
		"interest_rate",
		"loan_term",
		"installment",
		"num_of_open_accounts",
		"total_credit_limit",
		"current_balance",
		"delinquency_history",
		"public_records",
		"num_of_delinquencies",
	}
}

// NumFeatures is len(FeatureNames()).
const NumFeatures = 20

// Category returns the raw label of a categorical field.
func (a LoanApplication) Category(field string) (string, bool) {
	switch field {
	case FieldGender:
		return a.Gender, true
	case FieldMaritalStatus:
		return a.MaritalStatus, true
	case FieldEducationLevel:
		return a.EducationLevel, true
	case FieldEmploymentStatus:
		return a.EmploymentStatus, true
	case FieldLoanPurpose:
		return a.LoanPurpose, true
	default:
		return "", false
	}
}

// SetNumeric assigns a numeric column by its column name.
func (a *LoanApplication) SetNumeric(field string, value float64) error {
	switch field {
	case "age":
		a.Age = value
	case "annual_income":
		a.AnnualIncome = value
	case "monthly_income":
		a.MonthlyIncome = value
	case "debt_to_income_ratio":
		a.DebtToIncomeRatio = value
	case "credit_score":
		a.CreditScore = value
	case "loan_amount":
		a.LoanAmount = value
	case "interest_rate":
		a.InterestRate = value
	case "loan_term":
		a.LoanTerm = value
	case "installment":
		a.Installment = value
	case "num_of_open_accounts":
		a.NumOfOpenAccounts = value
	case "total_credit_limit":
		a.TotalCreditLimit = value
	case "current_balance":
		a.CurrentBalance = value
	case "delinquency_history":
		a.DelinquencyHistory = value
	case "public_records":
		a.PublicRecords = value
	case "num_of_delinquencies":
		a.NumOfDelinquencies = value
	default:
		return fmt.Errorf("unknown numeric field %q", field)
	}
	return nil
}

// SetCategory assigns a categorical column by its column name.
func (a *LoanApplication) SetCategory(field, label string) error {
	switch field {
	case FieldGender:
		a.Gender = label
	case FieldMaritalStatus:
		a.MaritalStatus = label
	case FieldEducationLevel:
		a.EducationLevel = label
	case FieldEmploymentStatus:
		a.EmploymentStatus = label
	case FieldLoanPurpose:
		a.LoanPurpose = label
	default:
		return fmt.Errorf("unknown categorical field %q", field)
	}
	return nil
}

// FeatureVector encodes the application into the FeatureNames order.
func FeatureVector(app LoanApplication, encoders EncoderSet) ([]float64, error) {
	if encoders == nil {
		return nil, errors.New("encoders not loaded")
	}
	codes := make(map[string]float64, len(CategoricalFields()))
	for _, field := range CategoricalFields() {
		encoder, ok := encoders[field]
		if !ok {
			return nil, fmt.Errorf("missing encoder for %s", field)
		}
		label, _ := app.Category(field)
		code, err := encoder.Transform(label)
		if err != nil {
			return nil, err
		}
		codes[field] = float64(code)
	}

	return []float64{
		app.Age,
		codes[FieldGender],
		codes[FieldMaritalStatus],
		codes[FieldEducationLevel],
		app.AnnualIncome,
		app.MonthlyIncome,
		codes[FieldEmploymentStatus],
		app.DebtToIncomeRatio,
		app.CreditScore,
		app.LoanAmount,
		codes[FieldLoanPurpose],
		app.InterestRate,
		app.LoanTerm,
		app.Installment,
		app.NumOfOpenAccounts,
		app.TotalCreditLimit,
		app.CurrentBalance,
		app.DelinquencyHistory,
		app.PublicRecords,
		app.NumOfDelinquencies,
	}, nil
}

// BuildMatrix turns labelled records into the training matrix and label column.
func BuildMatrix(records []LoanRecord, encoders EncoderSet) ([][]float64, []int, error) {
	if len(records) == 0 {
		return nil, nil, errors.New("records is empty")
	}
	features := make([][]float64, len(records))
	labels := make([]int, len(records))
	for i, record := range records {
		vector, err := FeatureVector(record.LoanApplication, encoders)
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", i, err)
		}
		if record.LoanPaidBack != 0 && record.LoanPaidBack != 1 {
			return nil, nil, fmt.Errorf("row %d: label must be 0 or 1, got %d", i, record.LoanPaidBack)
		}
		features[i] = vector
		labels[i] = record.LoanPaidBack
	}
	return features, labels, nil
}
