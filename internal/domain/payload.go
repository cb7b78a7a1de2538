package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// RowPayload is an ordered mapping of column name to string value. Column
// order follows the CSV header; setting an existing column overwrites its
// value in place without changing its position. It marshals to a JSON object
// in column order and is stored in Postgres as JSONB.
type RowPayload struct {
	columns []string
	values  map[string]string
}

// NewRowPayload returns an empty payload sized for n columns.
func NewRowPayload(n int) RowPayload {
	return RowPayload{
		columns: make([]string, 0, n),
		values:  make(map[string]string, n),
	}
}

// Set assigns a value to a column, appending the column on first use.
func (p *RowPayload) Set(column, value string) {
	if p.values == nil {
		p.values = make(map[string]string)
	}
	if _, ok := p.values[column]; !ok {
		p.columns = append(p.columns, column)
	}
	p.values[column] = value
}

// Get returns the value for a column and whether it is present.
func (p RowPayload) Get(column string) (string, bool) {
	v, ok := p.values[column]
	return v, ok
}

// Columns returns the column names in header order.
func (p RowPayload) Columns() []string {
	return p.columns
}

// Len returns the number of columns.
func (p RowPayload) Len() int {
	return len(p.columns)
}

// MarshalJSON emits a JSON object with keys in column order.
func (p RowPayload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range p.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p.values[col])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object. Key order is recovered from the raw
// token stream so a round trip preserves column order.
func (p *RowPayload) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("row payload: expected JSON object, got %v", tok)
	}

	*p = NewRowPayload(0)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("row payload: non-string key %v", keyTok)
		}

		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("row payload: value for %q: %w", key, err)
		}
		p.Set(key, value)
	}

	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// Value implements driver.Valuer for JSONB columns.
func (p RowPayload) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Scan implements sql.Scanner for JSONB columns.
func (p *RowPayload) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	case nil:
		*p = NewRowPayload(0)
		return nil
	default:
		return fmt.Errorf("row payload: cannot scan %T", src)
	}
}
