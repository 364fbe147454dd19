package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"loanscore/ml"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteSource reads training rows from a table in a SQLite file. The file
// is opened read-only.
type SQLiteSource struct {
	Path  string
	Table string
}

func (s SQLiteSource) String() string {
	return fmt.Sprintf("sqlite:%s#%s", s.Path, s.Table)
}

func (s SQLiteSource) Load(ctx context.Context) ([]ml.LoanRecord, error) {
	if !tableName.MatchString(s.Table) {
		return nil, fmt.Errorf("invalid table name %q", s.Table)
	}
	if _, err := os.Stat(s.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrDatasetNotFound, s.Path)
		}
		return nil, err
	}

	db, err := sql.Open("sqlite3", "file:"+s.Path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	defer db.Close()

	numeric := ml.NumericFields()
	categorical := ml.CategoricalFields()
	columns := make([]string, 0, len(numeric)+len(categorical)+1)
	columns = append(columns, numeric...)
	columns = append(columns, categorical...)
	columns = append(columns, ml.LabelColumn)

	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY rowid`, strings.Join(columns, ", "), s.Table)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.Table, err)
	}
	defer rows.Close()

	numbers := make([]sql.NullFloat64, len(numeric))
	labels := make([]sql.NullString, len(categorical))
	var paid sql.NullFloat64
	dest := make([]any, 0, len(columns))
	for i := range numbers {
		dest = append(dest, &numbers[i])
	}
	for i := range labels {
		dest = append(dest, &labels[i])
	}
	dest = append(dest, &paid)

	var records []ml.LoanRecord
	for rowNum := 1; rows.Next(); rowNum++ {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}
		var record ml.LoanRecord
		for i, column := range numeric {
			if !numbers[i].Valid {
				return nil, fmt.Errorf("row %d, column %s: null value", rowNum, column)
			}
			if err := record.SetNumeric(column, numbers[i].Float64); err != nil {
				return nil, err
			}
		}
		for i, column := range categorical {
			if !labels[i].Valid {
				return nil, fmt.Errorf("row %d, column %s: null value", rowNum, column)
			}
			if err := record.SetCategory(column, labels[i].String); err != nil {
				return nil, err
			}
		}
		if !paid.Valid || (paid.Float64 != 0 && paid.Float64 != 1) {
			return nil, fmt.Errorf("row %d, column %s: label must be 0 or 1", rowNum, ml.LabelColumn)
		}
		record.LoanPaidBack = int(paid.Float64)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("table %s has no rows", s.Table)
	}
	return records, nil
}
