package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// Row is one result row: the textual value of every projected column, in
// projection order. NULL is represented as "" and cannot be told apart from
// an empty string.
type Row []string

// Visitor is called once per row by QueryWithCallback.
// Returning false stops the iteration; stopping is not an error.
type Visitor func(row Row) bool

// rowScanner reads rows of one result set as text. The scan targets are
// reused between rows.
type rowScanner struct {
	dest      []any
	ptrs      []any
	declTypes []string
	format    func(v any, declType string) string
}

func newRowScanner(rows *sql.Rows, engine Engine) (*rowScanner, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	s := &rowScanner{
		dest:      make([]any, len(columns)),
		ptrs:      make([]any, len(columns)),
		declTypes: make([]string, len(columns)),
		format:    formatValue,
	}
	for i := range s.dest {
		s.ptrs[i] = &s.dest[i]
	}

	if f, ok := engine.(ValueFormatter); ok {
		types, err := rows.ColumnTypes()
		if err != nil {
			return nil, err
		}
		for i, ct := range types {
			s.declTypes[i] = ct.DatabaseTypeName()
		}
		s.format = f.FormatValue
	}
	return s, nil
}

// scan reads the current row of rows.
func (s *rowScanner) scan(rows *sql.Rows) (Row, error) {
	if err := rows.Scan(s.ptrs...); err != nil {
		return nil, err
	}

	row := make(Row, len(s.dest))
	for i, v := range s.dest {
		row[i] = s.format(v, s.declTypes[i])
	}
	return row, nil
}

// formatValue renders a driver value the way database/sql converts it into
// a string destination.
func formatValue(v any, _ string) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
