package query

import (
	"bytes"
	"context"
	"encoding/json"
	"time"
)

// Executor runs SQL text against a store and returns the result rows.
type Executor interface {
	Execute(ctx context.Context, sql string) ([]Row, error)
}

// Row is one result row. Columns keep the order the store returned them in,
// which a plain map would lose when encoded.
type Row struct {
	Columns []string
	Values  []any
}

func NewRow(columns []string, values []any) Row {
	return Row{Columns: columns, Values: normalizeValues(values)}
}

// Get returns the value of column name.
func (r Row) Get(name string) (any, bool) {
	for i, column := range r.Columns {
		if column == name {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Map returns the row as a column → value mapping.
func (r Row) Map() map[string]any {
	out := make(map[string]any, len(r.Columns))
	for i, column := range r.Columns {
		out[column] = r.Values[i]
	}
	return out
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, column := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(column)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(r.Values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		case time.Time:
			normalized[i] = normalizeTime(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

// normalizeTime renders DATE values as YYYY-MM-DD; drivers hand them back as
// midnight UTC timestamps.
func normalizeTime(value time.Time) any {
	if value.Hour() == 0 && value.Minute() == 0 && value.Second() == 0 && value.Nanosecond() == 0 && value.Location() == time.UTC {
		return value.Format("2006-01-02")
	}
	return value
}
