package model

// SemanticType is the declared type of a registered column
type SemanticType string

const (
	TypeInteger SemanticType = "INTEGER"
	TypeString  SemanticType = "STRING"
)

// Kind returns the value kind a column of this type must carry
func (t SemanticType) Kind() ValueKind {
	switch t {
	case TypeInteger:
		return KindInteger
	case TypeString:
		return KindString
	default:
		return KindComposite
	}
}

// ColumnDef describes one registered column
type ColumnDef struct {
	Name     string       `json:"name"`
	Type     SemanticType `json:"type"`
	Nullable bool         `json:"nullable"`
}

// TableSchema is the registered, immutable definition of a logical table
type TableSchema struct {
	Table   string      `json:"table"`
	Columns []ColumnDef `json:"columns"`
}

// ColumnNames returns the registered column names in declaration order
func (s TableSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// LiveColumn is a column as introspected from the warehouse
type LiveColumn struct {
	Name     string `json:"name"`
	DataType string `json:"dataType"`
}
