package ml

import "errors"

// FitEncoders builds the five categorical encoders from the training rows.
func FitEncoders(records []LoanRecord) (EncoderSet, error) {
	if len(records) == 0 {
		return nil, errors.New("records is empty")
	}

	encoders := make(EncoderSet, len(CategoricalFields()))
	for _, field := range CategoricalFields() {
		labels := make([]string, len(records))
		for i, record := range records {
			labels[i], _ = record.Category(field)
		}
		encoder := NewLabelEncoder(field)
		encoder.Fit(labels)
		encoders[field] = encoder
	}
	return encoders, nil
}

// Vocabulary returns a copy of every encoder's classes keyed by field.
func (s EncoderSet) Vocabulary() map[string][]string {
	if s == nil {
		return nil
	}
	vocab := make(map[string][]string, len(s))
	for field, encoder := range s {
		vocab[field] = encoder.Classes()
	}
	return vocab
}
