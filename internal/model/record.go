package model

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// Record maps column names to tagged values. Insert requests decode straight into it.
type Record map[string]Value

// ID returns the record's id column when it holds an integer
func (r Record) ID() (int64, bool) {
	v, ok := r["id"]
	if !ok || v.Kind != KindInteger {
		return 0, false
	}
	return v.Int, true
}

// String renders the record with sorted keys so log lines are stable
func (r Record) String() string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(r[k].String())
	}
	sb.WriteByte('}')
	return sb.String()
}

// Field is one named value of an OrderedRecord
type Field struct {
	Name  string
	Value Value
}

// OrderedRecord is a record whose fields follow a table's column order.
// It marshals to a JSON object with keys in that order.
type OrderedRecord []Field

// Get returns the value for name
func (o OrderedRecord) Get(name string) (Value, bool) {
	for _, f := range o {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Names returns the field names in order
func (o OrderedRecord) Names() []string {
	names := make([]string, len(o))
	for i, f := range o {
		names[i] = f.Name
	}
	return names
}

// Record converts back to an unordered record
func (o OrderedRecord) Record() Record {
	r := make(Record, len(o))
	for _, f := range o {
		r[f.Name] = f.Value
	}
	return r
}

func (o OrderedRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := f.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Reorder projects a decoded record onto columns by name. Columns missing from the
// record are skipped and record fields not in columns are dropped.
func Reorder(r Record, columns []string) OrderedRecord {
	out := make(OrderedRecord, 0, len(columns))
	for _, col := range columns {
		if v, ok := r[col]; ok {
			out = append(out, Field{Name: col, Value: v})
		}
	}
	return out
}
