package controller

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"hiring-gateway/internal/middleware"
	"hiring-gateway/internal/model"
	"hiring-gateway/internal/service"
	"hiring-gateway/internal/utils"
)

type IngestController struct {
	ingestService service.IngestService
}

func NewIngestController(ingestService service.IngestService) *IngestController {
	return &IngestController{ingestService: ingestService}
}

// LoadTable godoc
// @Summary Load {table}.csv from the bucket into the table
// @Tags ingest
// @Produce json
// @Param table path string true "Table name"
// @Success 200 {object} response.StandardResponse{data=model.LoadResult}
// @Failure 400 {object} response.StandardResponse
// @Failure 500 {object} response.StandardResponse
// @Router /load/{table} [post]
func (ic *IngestController) LoadTable(c *gin.Context) {
	result, err := ic.ingestService.LoadTable(c.Request.Context(), c.Param("table"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result.Message, result)
}

// LoadAll godoc
// @Summary Load every .csv object under the CSV prefix
// @Tags ingest
// @Produce json
// @Success 200 {object} response.StandardResponse{data=[]model.LoadResult}
// @Failure 404 {object} response.StandardResponse
// @Router /load_all [post]
func (ic *IngestController) LoadAll(c *gin.Context) {
	results, err := ic.ingestService.LoadAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	respondOK(c, fmt.Sprintf("Processed %d files, %d failed", len(results), failed), results)
}

// Insert godoc
// @Summary Validate, deduplicate and append a batch of records
// @Tags ingest
// @Accept json
// @Produce json
// @Param table path string true "Table name"
// @Param records body []map[string]interface{} true "Records"
// @Success 200 {object} response.StandardResponse{data=service.InsertResult}
// @Failure 400 {object} response.StandardResponse
// @Failure 404 {object} response.StandardResponse
// @Failure 500 {object} response.StandardResponse
// @Router /insert/{table} [post]
func (ic *IngestController) Insert(c *gin.Context) {
	table := c.Param("table")

	var records []model.Record
	if err := c.ShouldBindJSON(&records); err != nil {
		respondError(c, utils.NewErrorBuilder(utils.ErrCodeInvalidJSON).
			WithMessage("Request body must be a JSON array of records").
			WithDetails(err.Error()).
			Build())
		return
	}

	result, err := ic.ingestService.Insert(c.Request.Context(), table, records)
	if err != nil {
		middleware.RecordInsert(table, utils.AsAppError(err).Code, len(records))
		respondError(c, err)
		return
	}

	middleware.RecordInsert(table, "success", result.Inserted)
	respondOK(c, fmt.Sprintf("Inserted %d records into %s", result.Inserted, table), result)
}
