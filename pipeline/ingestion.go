package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"loanscore/ml"
)

// ErrDatasetNotFound is returned when the training source does not exist.
var ErrDatasetNotFound = errors.New("dataset not found")

// Source yields labelled training rows.
type Source interface {
	Load(ctx context.Context) ([]ml.LoanRecord, error)
	String() string
}

// RequiredColumns lists every column a training source must provide.
func RequiredColumns() []string {
	columns := append([]string{}, ml.NumericFields()...)
	columns = append(columns, ml.CategoricalFields()...)
	return append(columns, ml.LabelColumn)
}

// CSVSource reads a header-mapped CSV file. Extra columns are ignored.
type CSVSource struct {
	Path string
}

func (s CSVSource) String() string {
	return "csv:" + s.Path
}

func (s CSVSource) Load(ctx context.Context) ([]ml.LoanRecord, error) {
	return ReadCSV(ctx, s.Path)
}

func ReadCSV(ctx context.Context, path string) ([]ml.LoanRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrDatasetNotFound, path)
		}
		return nil, err
	}
	defer file.Close()
	return ParseCSV(ctx, file)
}

// ParseCSV decodes the dataset, dropping a leading UTF-8 byte order mark.
func ParseCSV(ctx context.Context, r io.Reader) ([]ml.LoanRecord, error) {
	reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	var missing []string
	for _, column := range RequiredColumns() {
		if _, ok := index[column]; !ok {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("dataset is missing columns: %s", strings.Join(missing, ", "))
	}

	records := make([]ml.LoanRecord, 0, 1024)
	for line := 2; ; line++ {
		if line%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		var record ml.LoanRecord
		for _, column := range ml.NumericFields() {
			value, err := parseNumber(row[index[column]])
			if err != nil {
				return nil, fmt.Errorf("line %d, column %s: %w", line, column, err)
			}
			if err := record.SetNumeric(column, value); err != nil {
				return nil, err
			}
		}
		for _, column := range ml.CategoricalFields() {
			if err := record.SetCategory(column, row[index[column]]); err != nil {
				return nil, err
			}
		}
		label, err := parseLabel(row[index[ml.LabelColumn]])
		if err != nil {
			return nil, fmt.Errorf("line %d, column %s: %w", line, ml.LabelColumn, err)
		}
		record.LoanPaidBack = label
		records = append(records, record)
	}

	if len(records) == 0 {
		return nil, errors.New("dataset has no rows")
	}
	return records, nil
}

func parseNumber(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("empty value")
	}
	return strconv.ParseFloat(raw, 64)
}

func parseLabel(raw string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}
	value, err := parseNumber(raw)
	if err != nil {
		return 0, err
	}
	switch value {
	case 0:
		return 0, nil
	case 1:
		return 1, nil
	default:
		return 0, fmt.Errorf("label must be 0 or 1, got %v", value)
	}
}
