package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OperationKind string

const (
	OperationLoad    OperationKind = "load"
	OperationBackup  OperationKind = "backup"
	OperationRestore OperationKind = "restore"
)

type OperationStatus string

const (
	OperationRunning   OperationStatus = "running"
	OperationSucceeded OperationStatus = "succeeded"
	OperationFailed    OperationStatus = "failed"
)

// Operation is a journal entry for a load, backup or restore run
type Operation struct {
	ID         string          `gorm:"type:char(36);primaryKey" json:"id"`
	Kind       OperationKind   `gorm:"size:16;not null;index" json:"kind"`
	Table      string          `gorm:"column:table_name;size:255;not null;index" json:"table"`
	Artifact   string          `gorm:"size:1024" json:"artifact,omitempty"`
	Rows       int64           `json:"rows"`
	Rebuilt    bool            `json:"rebuilt"`
	Status     OperationStatus `gorm:"size:16;not null;default:'running'" json:"status"`
	Error      string          `gorm:"type:text" json:"error,omitempty"`
	Actor      string          `gorm:"size:255" json:"actor,omitempty"`
	StartedAt  time.Time       `gorm:"index" json:"startedAt"`
	FinishedAt *time.Time      `json:"finishedAt,omitempty"`
}

// TableName returns the table name for the Operation model
func (Operation) TableName() string {
	return "operations"
}

// BeforeCreate generates a new UUID if ID is empty
func (o *Operation) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return nil
}

// Finish stamps the terminal status of the operation
func (o *Operation) Finish(err error) {
	now := time.Now().UTC()
	o.FinishedAt = &now
	if err != nil {
		o.Status = OperationFailed
		o.Error = err.Error()
		return
	}
	o.Status = OperationSucceeded
}
