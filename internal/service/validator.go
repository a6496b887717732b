package service

import (
	"fmt"
	"time"

	"hiring-gateway/internal/audit"
	"hiring-gateway/internal/model"
	"hiring-gateway/internal/schema"
	"hiring-gateway/internal/utils"
)

// RecordValidator checks insert batches against the schema registry
type RecordValidator struct {
	registry schema.Registry
	invalid  audit.InvalidRecordLog
}

// NewRecordValidator creates a validator that logs rejected records to invalid
func NewRecordValidator(registry schema.Registry, invalid audit.InvalidRecordLog) *RecordValidator {
	if invalid == nil {
		invalid = audit.Discard{}
	}
	return &RecordValidator{registry: registry, invalid: invalid}
}

// Schema resolves table or fails with UNKNOWN_SCHEMA / EMPTY_SCHEMA_MAPPING
func (v *RecordValidator) Schema(table string) (model.TableSchema, error) {
	s, ok := v.registry.Lookup(table)
	if !ok {
		return model.TableSchema{}, utils.NewUnknownSchemaError(table)
	}
	if len(s.Columns) == 0 {
		return model.TableSchema{}, utils.NewErrorBuilder(utils.ErrCodeEmptySchemaMapping).
			WithMessagef("Schema for table '%s' has no columns", table).
			Build()
	}
	return s, nil
}

// Validate checks every record column by column and stops at the first
// failure. The failing record is logged before the error is returned.
func (v *RecordValidator) Validate(table string, records []model.Record) error {
	s, err := v.Schema(table)
	if err != nil {
		return err
	}

	for i, record := range records {
		for _, col := range s.Columns {
			value, ok := record[col.Name]
			if !ok || value.IsNull() || !value.Is(col.Type.Kind()) {
				reason := fmt.Sprintf("wrong type or missing field: %s", col.Name)
				v.invalid.Record(table, reason, record)
				return utils.NewErrorBuilder(utils.ErrCodeInvalidRecord).
					WithMessagef("Invalid record, error in '%s'", col.Name).
					WithDetails(fmt.Sprintf("record %d: %s", i, record.String())).
					WithData(map[string]interface{}{"index": i, "column": col.Name, "record": record}).
					Build()
			}

			if table == schema.TableHiredEmployees && col.Name == schema.HireDatetimeColumn {
				if _, err := time.Parse(schema.HireDatetimeLayout, value.Str); err != nil {
					v.invalid.Record(table, "malformed datetime", record)
					return utils.NewErrorBuilder(utils.ErrCodeMalformedTimestamp).
						WithMessage("Malformed 'datetime', use YYYY-MM-DD HH:MM:SS").
						WithDetails(fmt.Sprintf("record %d: %s", i, record.String())).
						WithData(map[string]interface{}{"index": i, "column": col.Name, "record": record}).
						Build()
				}
			}
		}
	}
	return nil
}
