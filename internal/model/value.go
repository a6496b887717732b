package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind tags the dynamic type carried by a Value
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInteger
	KindString
	KindFloat
	KindBool
	// KindComposite covers JSON arrays and objects, which no registered column accepts
	KindComposite
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindString:
		return "string"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindComposite:
		return "composite"
	default:
		return "unknown"
	}
}

// Value is a tagged scalar. The zero Value is Null.
type Value struct {
	Kind  ValueKind
	Int   int64
	Str   string
	Float float64
	Bool  bool
	Raw   json.RawMessage
}

func Null() Value { return Value{Kind: KindNull} }
func Int(v int64) Value { return Value{Kind: KindInteger, Int: v} }
func String(v string) Value { return Value{Kind: KindString, Str: v} }
func Float(v float64) Value { return Value{Kind: KindFloat, Float: v} }
func Bool(v bool) Value { return Value{Kind: KindBool, Bool: v} }
func (v Value) IsNull() bool { return v.Kind == KindNull }
func (v Value) Is(k ValueKind) bool { return v.Kind == k }

// Interface returns the plain Go value, used when handing rows to warehouse clients
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindInteger:
		return v.Int
	case KindString:
		return v.Str
	case KindFloat:
		return v.Float
	case KindBool:
		return v.Bool
	case KindComposite:
		return v.Raw
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindString:
		return strconv.Quote(v.Str)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindComposite:
		return string(v.Raw)
	default:
		return "null"
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindComposite:
		if len(v.Raw) == 0 {
			return []byte("null"), nil
		}
		return v.Raw, nil
	default:
		return json.Marshal(v.Interface())
	}
}

// UnmarshalJSON keeps numbers exact: integral literals become Integer, anything
// with a fraction or exponent becomes Float. No coercion between kinds happens here.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case 'n':
		*v = Null()
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
		return nil
	case '[', '{':
		*v = Value{Kind: KindComposite, Raw: append(json.RawMessage(nil), data...)}
		return nil
	}

	if i, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		*v = Int(i)
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid JSON number %q: %w", string(data), err)
	}
	*v = Float(f)
	return nil
}
