package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"loanscore/ml"
	"loanscore/predictor"
)

var applicationSchema = mustCompileSchema()

// mustCompileSchema 根据特征字段生成请求体的JSON Schema
// 全部20个字段必填，分类字段为字符串，其余为数字
func mustCompileSchema() *gojsonschema.Schema {
	properties := make(map[string]any)
	required := make([]string, 0, ml.NumFeatures)
	for _, field := range ml.CategoricalFields() {
		properties[field] = map[string]any{"type": "string"}
		required = append(required, field)
	}
	for _, field := range ml.NumericFields() {
		properties[field] = map[string]any{"type": "number"}
		required = append(required, field)
	}
	raw, err := json.Marshal(map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	})
	if err != nil {
		panic(err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		panic(err)
	}
	return schema
}

// DecodeApplication 校验并解析预测请求体
func DecodeApplication(body []byte) (ml.LoanApplication, error) {
	var app ml.LoanApplication
	if len(bytes.TrimSpace(body)) == 0 {
		return app, predictor.WrapError(predictor.ErrInvalidInput, "decode request", errors.New("request body is empty"))
	}

	result, err := applicationSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return app, predictor.WrapError(predictor.ErrInvalidInput, "decode request", fmt.Errorf("malformed JSON: %w", err))
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, describe(e))
		}
		sort.Strings(problems)
		return app, predictor.WrapError(predictor.ErrInvalidInput, "decode request", errors.New(strings.Join(problems, "; ")))
	}

	if err := json.Unmarshal(body, &app); err != nil {
		return app, predictor.WrapError(predictor.ErrInvalidInput, "decode request", err)
	}
	return app, nil
}

func describe(e gojsonschema.ResultError) string {
	if e.Type() == "required" {
		if property, ok := e.Details()["property"].(string); ok {
			return "missing field " + property
		}
	}
	return e.Field() + ": " + e.Description()
}
