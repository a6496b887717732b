package controller

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"hiring-gateway/internal/service"
)

type BackupController struct {
	backupService  service.BackupService
	restoreService service.RestoreService
}

func NewBackupController(backupService service.BackupService, restoreService service.RestoreService) *BackupController {
	return &BackupController{
		backupService:  backupService,
		restoreService: restoreService,
	}
}

// Backup godoc
// @Summary Export the table to a timestamped Avro artifact
// @Tags backup
// @Produce json
// @Param table path string true "Table name"
// @Success 200 {object} response.StandardResponse{data=model.BackupArtifact}
// @Failure 404 {object} response.StandardResponse
// @Failure 500 {object} response.StandardResponse
// @Router /backup/{table} [post]
func (bc *BackupController) Backup(c *gin.Context) {
	table := c.Param("table")

	artifact, err := bc.backupService.Backup(c.Request.Context(), table)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, fmt.Sprintf("Backup of table '%s' written to %s", table, artifact.URI), artifact)
}

// ListBackups godoc
// @Summary List the table's backup artifacts, newest first
// @Tags backup
// @Produce json
// @Param table path string true "Table name"
// @Success 200 {object} response.StandardResponse{data=[]model.BackupArtifact}
// @Router /backups/{table} [get]
func (bc *BackupController) ListBackups(c *gin.Context) {
	artifacts, err := bc.backupService.ListBackups(c.Request.Context(), c.Param("table"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", artifacts)
}

// Restore godoc
// @Summary Reload the table from its newest backup
// @Tags backup
// @Produce json
// @Param table path string true "Table name"
// @Success 200 {object} response.StandardResponse{data=model.RestoreSummary}
// @Failure 404 {object} response.StandardResponse
// @Failure 500 {object} response.StandardResponse
// @Router /restore/{table} [post]
func (bc *BackupController) Restore(c *gin.Context) {
	table := c.Param("table")

	summary, err := bc.restoreService.Restore(c.Request.Context(), table)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, fmt.Sprintf("Table '%s' restored from %s", table, summary.Artifact), summary)
}
