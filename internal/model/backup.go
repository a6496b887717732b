package model

import "time"

// BackupArtifact is an immutable backup file in the object store
type BackupArtifact struct {
	Table     string    `json:"table"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	URI       string    `json:"uri"`
	CreatedAt time.Time `json:"createdAt"`
}

// RestoreSummary describes a completed restore
type RestoreSummary struct {
	Table       string   `json:"table"`
	Artifact    string   `json:"artifact"`
	Path        string   `json:"path"`
	RowsLoaded  int      `json:"rowsLoaded"`
	Rebuilt     bool     `json:"rebuilt"`
	ColumnOrder []string `json:"columnOrder"`
}

// LoadResult is the outcome of loading one CSV file
type LoadResult struct {
	File    string `json:"file"`
	Table   string `json:"table,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
