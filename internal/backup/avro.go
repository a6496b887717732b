package backup

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/linkedin/goavro/v2"

	"hiring-gateway/internal/model"
)

// Decoder turns a backup container into records
type Decoder interface {
	Decode(r io.Reader) ([]model.Record, error)
}

// AvroDecoder reads Avro object container files as exported by the warehouse
type AvroDecoder struct{}

// NewAvroDecoder creates a new Avro decoder
func NewAvroDecoder() *AvroDecoder {
	return &AvroDecoder{}
}

// Decode reads every record of an OCF stream in file order
func (d *AvroDecoder) Decode(r io.Reader) ([]model.Record, error) {
	ocf, err := goavro.NewOCFReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create OCF reader: %w", err)
	}

	records := make([]model.Record, 0)
	for ocf.Scan() {
		datum, err := ocf.Read()
		if err != nil {
			return nil, fmt.Errorf("failed to read Avro record %d: %w", len(records), err)
		}

		fields, ok := datum.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("unexpected Avro datum type %T at record %d", datum, len(records))
		}

		record := make(model.Record, len(fields))
		for name, raw := range fields {
			v, err := toValue(raw)
			if err != nil {
				return nil, fmt.Errorf("record %d field %s: %w", len(records), name, err)
			}
			record[name] = v
		}
		records = append(records, record)
	}
	if err := ocf.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan Avro container: %w", err)
	}

	return records, nil
}

// toValue maps a goavro native datum onto the tagged value model
func toValue(raw interface{}) (model.Value, error) {
	switch v := raw.(type) {
	case nil:
		return model.Null(), nil
	case int32:
		return model.Int(int64(v)), nil
	case int64:
		return model.Int(v), nil
	case int:
		return model.Int(int64(v)), nil
	case string:
		return model.String(v), nil
	case float64:
		return model.Float(v), nil
	case float32:
		return model.Float(float64(v)), nil
	case bool:
		return model.Bool(v), nil
	case []byte:
		return model.String(base64.StdEncoding.EncodeToString(v)), nil
	case time.Time:
		return model.String(formatTimestamp(v)), nil
	case time.Duration:
		return model.String(v.String()), nil
	case *big.Rat:
		return model.String(strings.TrimRight(strings.TrimRight(v.FloatString(9), "0"), ".")), nil
	case map[string]interface{}:
		// nullable columns arrive as single-branch unions, e.g. {"long": 5}
		if len(v) == 1 {
			for _, inner := range v {
				if _, nested := inner.(map[string]interface{}); !nested {
					return toValue(inner)
				}
			}
		}
		return composite(v)
	case []interface{}:
		return composite(v)
	default:
		return model.Value{}, fmt.Errorf("unsupported Avro value type %T", raw)
	}
}

func composite(v interface{}) (model.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return model.Value{}, fmt.Errorf("failed to encode composite value: %w", err)
	}
	return model.Value{Kind: model.KindComposite, Raw: raw}, nil
}

func formatTimestamp(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond() == 0 {
		return t.Format("2006-01-02 15:04:05")
	}
	return t.Format("2006-01-02 15:04:05.000000")
}

// Encoder writes records as an Avro object container file
type Encoder struct {
	// Table names the Avro record type
	Table string
}

// Encode writes rows using columns as the Avro schema. Every field is a
// nullable union, matching how the warehouse exports NULLABLE columns.
func (e *Encoder) Encode(w io.Writer, columns []model.LiveColumn, rows []model.Record) error {
	schema, branches, err := avroSchema(e.Table, columns)
	if err != nil {
		return err
	}

	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{W: w, Schema: schema})
	if err != nil {
		return fmt.Errorf("failed to create OCF writer: %w", err)
	}

	batch := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		datum := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			v, ok := row[col.Name]
			if !ok || v.IsNull() {
				datum[col.Name] = nil
				continue
			}
			datum[col.Name] = goavro.Union(branches[i], nativeFor(branches[i], v))
		}
		batch = append(batch, datum)
	}

	if err := ocf.Append(batch); err != nil {
		return fmt.Errorf("failed to append Avro records: %w", err)
	}
	return nil
}

func avroSchema(table string, columns []model.LiveColumn) (string, []string, error) {
	type field struct {
		Name    string        `json:"name"`
		Type    []interface{} `json:"type"`
		Default interface{}   `json:"default"`
	}

	name := table
	if name == "" {
		name = "Root"
	}

	fields := make([]field, len(columns))
	branches := make([]string, len(columns))
	for i, col := range columns {
		branches[i] = avroType(col.DataType)
		fields[i] = field{Name: col.Name, Type: []interface{}{"null", branches[i]}, Default: nil}
	}

	schema, err := json.Marshal(map[string]interface{}{
		"type":   "record",
		"name":   name,
		"fields": fields,
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to build Avro schema: %w", err)
	}
	return string(schema), branches, nil
}

func avroType(dataType string) string {
	switch strings.ToUpper(dataType) {
	case "INTEGER", "INT64":
		return "long"
	case "FLOAT", "FLOAT64":
		return "double"
	case "BOOL", "BOOLEAN":
		return "boolean"
	default:
		return "string"
	}
}

func nativeFor(branch string, v model.Value) interface{} {
	switch branch {
	case "long":
		if v.Kind == model.KindFloat {
			return int64(v.Float)
		}
		return v.Int
	case "double":
		if v.Kind == model.KindInteger {
			return float64(v.Int)
		}
		return v.Float
	case "boolean":
		return v.Bool
	default:
		if v.Kind == model.KindString {
			return v.Str
		}
		return strings.Trim(v.String(), `"`)
	}
}
