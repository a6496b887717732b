// Package schema holds the static table definitions the gateway validates against.
// A table that is not registered here is rejected by ingest, backup and restore.
package schema

import (
	"sort"

	"hiring-gateway/internal/model"
)

const (
	TableDepartments    = "departments"
	TableJobs           = "jobs"
	TableHiredEmployees = "hired_employees"

	// HireDatetimeColumn must match HireDatetimeLayout on every hire event
	HireDatetimeColumn = "datetime"
	HireDatetimeLayout = "2006-01-02 15:04:05"
)

// Registry resolves logical table names to their schema
type Registry interface {
	Lookup(table string) (model.TableSchema, bool)
	Tables() []string
}

type staticRegistry struct {
	schemas map[string]model.TableSchema
}

// NewRegistry builds a registry from the given schemas. Later duplicates win.
func NewRegistry(schemas ...model.TableSchema) Registry {
	r := &staticRegistry{schemas: make(map[string]model.TableSchema, len(schemas))}
	for _, s := range schemas {
		cols := make([]model.ColumnDef, len(s.Columns))
		copy(cols, s.Columns)
		r.schemas[s.Table] = model.TableSchema{Table: s.Table, Columns: cols}
	}
	return r
}

// Default returns the registry for the hiring dataset. If the warehouse tables
// change, these definitions must change with them.
func Default() Registry {
	return NewRegistry(
		model.TableSchema{
			Table: TableDepartments,
			Columns: []model.ColumnDef{
				{Name: "id", Type: model.TypeInteger},
				{Name: "department", Type: model.TypeString},
			},
		},
		model.TableSchema{
			Table: TableJobs,
			Columns: []model.ColumnDef{
				{Name: "id", Type: model.TypeInteger},
				{Name: "job", Type: model.TypeString},
			},
		},
		model.TableSchema{
			Table: TableHiredEmployees,
			Columns: []model.ColumnDef{
				{Name: "id", Type: model.TypeInteger},
				{Name: "name", Type: model.TypeString, Nullable: true},
				{Name: HireDatetimeColumn, Type: model.TypeString, Nullable: true},
				{Name: "department_id", Type: model.TypeInteger, Nullable: true},
				{Name: "job_id", Type: model.TypeInteger, Nullable: true},
			},
		},
	)
}

func (r *staticRegistry) Lookup(table string) (model.TableSchema, bool) {
	s, ok := r.schemas[table]
	if !ok {
		return model.TableSchema{}, false
	}
	cols := make([]model.ColumnDef, len(s.Columns))
	copy(cols, s.Columns)
	return model.TableSchema{Table: s.Table, Columns: cols}, true
}

func (r *staticRegistry) Tables() []string {
	tables := make([]string, 0, len(r.schemas))
	for t := range r.schemas {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}
