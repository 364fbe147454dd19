package ml

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownCategory marks a label that was never seen while fitting.
var ErrUnknownCategory = errors.New("unknown category")

// UnknownCategoryError names the field and label that failed to encode.
type UnknownCategoryError struct {
	Field string
	Label string
	Known []string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown %s %q (known: %v)", e.Field, e.Label, e.Known)
}

func (e *UnknownCategoryError) Unwrap() error {
	return ErrUnknownCategory
}

// LabelEncoder maps string labels to integer codes in first-seen order.
type LabelEncoder struct {
	field   string
	classes []string
	index   map[string]int
}

func NewLabelEncoder(field string) *LabelEncoder {
	return &LabelEncoder{field: field, index: make(map[string]int)}
}

// Fit adds every label not yet known, keeping earlier codes stable.
func (e *LabelEncoder) Fit(labels []string) {
	if e.index == nil {
		e.index = make(map[string]int)
	}
	for _, label := range labels {
		if _, ok := e.index[label]; ok {
			continue
		}
		e.index[label] = len(e.classes)
		e.classes = append(e.classes, label)
	}
}

func (e *LabelEncoder) Transform(label string) (int, error) {
	code, ok := e.index[label]
	if !ok {
		return 0, &UnknownCategoryError{Field: e.field, Label: label, Known: e.Classes()}
	}
	return code, nil
}

func (e *LabelEncoder) Field() string {
	return e.field
}

func (e *LabelEncoder) Classes() []string {
	return append([]string(nil), e.classes...)
}

type encoderJSON struct {
	Field   string   `json:"field"`
	Classes []string `json:"classes"`
}

func (e *LabelEncoder) MarshalJSON() ([]byte, error) {
	return json.Marshal(encoderJSON{Field: e.field, Classes: e.classes})
}

func (e *LabelEncoder) UnmarshalJSON(data []byte) error {
	var payload encoderJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if payload.Field == "" {
		return errors.New("encoder field is empty")
	}
	if len(payload.Classes) == 0 {
		return fmt.Errorf("encoder %s has no classes", payload.Field)
	}
	e.field = payload.Field
	e.classes = nil
	e.index = make(map[string]int, len(payload.Classes))
	for _, label := range payload.Classes {
		if _, dup := e.index[label]; dup {
			return fmt.Errorf("encoder %s: duplicate class %q", payload.Field, label)
		}
		e.index[label] = len(e.classes)
		e.classes = append(e.classes, label)
	}
	return nil
}

// EncoderSet holds one encoder per categorical field.
type EncoderSet map[string]*LabelEncoder

// Validate checks that every categorical field has a non-empty encoder.
func (s EncoderSet) Validate() error {
	for _, field := range CategoricalFields() {
		encoder, ok := s[field]
		if !ok || encoder == nil {
			return fmt.Errorf("missing encoder for %s", field)
		}
		if len(encoder.classes) == 0 {
			return fmt.Errorf("encoder for %s has no classes", field)
		}
	}
	return nil
}
