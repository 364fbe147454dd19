package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	ModelFile     = "loan_model.json.gz"
	ModelInfoFile = "model_info.json"
)

// EncoderFiles maps each categorical field to its artifact file name.
func EncoderFiles() map[string]string {
	return map[string]string{
		FieldGender:           "le_gender.json",
		FieldMaritalStatus:    "le_marital.json",
		FieldEducationLevel:   "le_education.json",
		FieldEmploymentStatus: "le_employment.json",
		FieldLoanPurpose:      "le_purpose.json",
	}
}

// ArtifactFiles lists every file a training run writes.
func ArtifactFiles() []string {
	files := []string{ModelFile}
	for _, field := range CategoricalFields() {
		files = append(files, EncoderFiles()[field])
	}
	return append(files, ModelInfoFile)
}

// Artifacts is the frozen state the predictor serves from.
type Artifacts struct {
	Model    Classifier
	Encoders EncoderSet
	Info     ModelInfo
	RawInfo  []byte
}

// SaveArtifacts writes the model, the five encoders and model_info.json.
// Every file is staged as a temp file first; nothing in dir is replaced
// until all of them are written.
func SaveArtifacts(dir string, result *TrainingResult) error {
	if result == nil || result.Model == nil {
		return errors.New("nothing to save")
	}
	if err := result.Encoders.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	staged := make(map[string]string, len(ArtifactFiles()))
	defer func() {
		for _, tmp := range staged {
			os.Remove(tmp)
		}
	}()
	stage := func(name string, write func(path string) error) error {
		tmp, err := stageFile(dir, name, write)
		if err != nil {
			return err
		}
		staged[name] = tmp
		return nil
	}

	if err := stage(ModelFile, result.Model.Save); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	for field, name := range EncoderFiles() {
		payload, err := json.MarshalIndent(result.Encoders[field], "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s encoder: %w", field, err)
		}
		if err := stage(name, writeBytes(payload)); err != nil {
			return fmt.Errorf("save %s encoder: %w", field, err)
		}
	}
	info, err := json.MarshalIndent(result.Info, "", "  ")
	if err != nil {
		return fmt.Errorf("encode model info: %w", err)
	}
	if err := stage(ModelInfoFile, writeBytes(info)); err != nil {
		return fmt.Errorf("save model info: %w", err)
	}

	for _, name := range ArtifactFiles() {
		if err := os.Rename(staged[name], filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("install %s: %w", name, err)
		}
		delete(staged, name)
	}
	return nil
}

// LoadArtifacts reads everything SaveArtifacts wrote. Any missing or corrupt
// file is an error.
func LoadArtifacts(dir string) (*Artifacts, error) {
	model, err := LoadModel(ModelTypeRandomForest, filepath.Join(dir, ModelFile))
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	encoders := make(EncoderSet, len(CategoricalFields()))
	for field, name := range EncoderFiles() {
		payload, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("load %s encoder: %w", field, err)
		}
		encoder := &LabelEncoder{}
		if err := json.Unmarshal(payload, encoder); err != nil {
			return nil, fmt.Errorf("decode %s encoder: %w", field, err)
		}
		if encoder.Field() != field {
			return nil, fmt.Errorf("%s holds the %s encoder", name, encoder.Field())
		}
		encoders[field] = encoder
	}

	raw, err := os.ReadFile(filepath.Join(dir, ModelInfoFile))
	if err != nil {
		return nil, fmt.Errorf("load model info: %w", err)
	}
	var info ModelInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("decode model info: %w", err)
	}
	if len(info.Features) != NumFeatures {
		return nil, fmt.Errorf("model info lists %d features, expected %d", len(info.Features), NumFeatures)
	}
	for i, name := range FeatureNames() {
		if info.Features[i] != name {
			return nil, fmt.Errorf("feature %d is %q, expected %q", i, info.Features[i], name)
		}
	}

	return &Artifacts{
		Model:    model,
		Encoders: encoders,
		Info:     info,
		RawInfo:  raw,
	}, nil
}

func writeBytes(payload []byte) func(string) error {
	return func(path string) error {
		return os.WriteFile(path, payload, 0o644)
	}
}

func stageFile(dir, name string, write func(path string) error) (string, error) {
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	if err := write(tmpPath); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	return tmpPath, nil
}
