package controller

import (
	"github.com/gin-gonic/gin"

	"hiring-gateway/internal/model"
	"hiring-gateway/internal/repository"
	"hiring-gateway/internal/service"
	"hiring-gateway/internal/utils"
)

type operationQuery struct {
	Table  string `form:"table" binding:"omitempty,max=255"`
	Kind   string `form:"kind" binding:"omitempty,oneof=load backup restore"`
	Status string `form:"status" binding:"omitempty,oneof=running succeeded failed"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

type operationPage struct {
	Operations []*model.Operation `json:"operations"`
	Total      int64              `json:"total"`
}

type OperationController struct {
	recorder *service.OperationRecorder
}

func NewOperationController(recorder *service.OperationRecorder) *OperationController {
	return &OperationController{recorder: recorder}
}

// ListOperations godoc
// @Summary List journaled load, backup and restore operations, newest first
// @Tags operations
// @Produce json
// @Param table query string false "Table name"
// @Param kind query string false "load, backup or restore"
// @Param status query string false "running, succeeded or failed"
// @Param limit query int false "Page size (default 50)"
// @Param offset query int false "Page offset"
// @Success 200 {object} response.StandardResponse{data=operationPage}
// @Failure 400 {object} response.StandardResponse
// @Router /operations [get]
func (oc *OperationController) ListOperations(c *gin.Context) {
	var query operationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, utils.NewValidationError("Invalid operation filter", err.Error()))
		return
	}

	ops, total, err := oc.recorder.List(c.Request.Context(), repository.OperationFilter{
		Table:  query.Table,
		Kind:   model.OperationKind(query.Kind),
		Status: model.OperationStatus(query.Status),
		Limit:  query.Limit,
		Offset: query.Offset,
	})
	if err != nil {
		respondError(c, utils.NewErrorBuilder(utils.ErrCodeBackendError).
			WithMessage("Failed to list operations").
			WithCause(err).
			Build())
		return
	}
	respondOK(c, "", operationPage{Operations: ops, Total: total})
}

// GetOperation godoc
// @Summary Get one journaled operation
// @Tags operations
// @Produce json
// @Param id path string true "Operation ID"
// @Success 200 {object} response.StandardResponse{data=model.Operation}
// @Failure 400 {object} response.StandardResponse
// @Failure 404 {object} response.StandardResponse
// @Router /operations/{id} [get]
func (oc *OperationController) GetOperation(c *gin.Context) {
	op, err := oc.recorder.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", op)
}

// GetOperationStats godoc
// @Summary Count journaled operations by status
// @Tags operations
// @Produce json
// @Success 200 {object} response.StandardResponse{data=map[string]int64}
// @Router /operations/stats [get]
func (oc *OperationController) GetOperationStats(c *gin.Context) {
	stats, err := oc.recorder.Stats(c.Request.Context())
	if err != nil {
		respondError(c, utils.NewErrorBuilder(utils.ErrCodeBackendError).
			WithMessage("Failed to count operations").
			WithCause(err).
			Build())
		return
	}
	respondOK(c, "", stats)
}
