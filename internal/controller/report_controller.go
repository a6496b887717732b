package controller

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hiring-gateway/internal/model"
	"hiring-gateway/internal/service"
	"hiring-gateway/internal/utils"
)

type reportQuery struct {
	TopN *int `form:"top_n"`
	View bool `form:"view"`
}

type ReportController struct {
	reportService service.ReportService
}

func NewReportController(reportService service.ReportService) *ReportController {
	return &ReportController{reportService: reportService}
}

// HiresByQuarter godoc
// @Summary Hires per department and job by quarter
// @Tags reports
// @Produce json,png
// @Param year path int true "Year"
// @Param top_n query int false "Keep the N pairs with most hires"
// @Param view query bool false "Render a stacked bar chart"
// @Success 200 {object} response.StandardResponse{data=[]model.QuarterlyHires}
// @Failure 400 {object} response.StandardResponse
// @Router /hires_by_quarter/{year} [get]
func (rc *ReportController) HiresByQuarter(c *gin.Context) {
	rc.serve(c, rc.reportService.HiresByQuarter)
}

// DepartmentsAboveMean godoc
// @Summary Departments that hired more than the mean
// @Tags reports
// @Produce json,png
// @Param year path int true "Year"
// @Param top_n query int false "Keep the N departments with most hires"
// @Param view query bool false "Render a bar chart"
// @Success 200 {object} response.StandardResponse{data=[]model.DepartmentHires}
// @Failure 400 {object} response.StandardResponse
// @Router /avg_plus_hires_by_department/{year} [get]
func (rc *ReportController) DepartmentsAboveMean(c *gin.Context) {
	rc.serve(c, rc.reportService.DepartmentsAboveMean)
}

type reportFunc func(ctx context.Context, req model.ReportRequest) (*model.ReportResult, error)

func (rc *ReportController) serve(c *gin.Context, run reportFunc) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		respondError(c, utils.NewValidationError("Year must be an integer", err.Error()))
		return
	}

	var query reportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, utils.NewValidationError("Invalid report parameters", err.Error()))
		return
	}

	result, err := run(c.Request.Context(), model.ReportRequest{Year: year, TopN: query.TopN, View: query.View})
	if err != nil {
		respondError(c, err)
		return
	}

	switch {
	case result.Empty:
		respondOK(c, "no data", []interface{}{})
	case result.Image != nil:
		c.Data(http.StatusOK, result.ContentType, result.Image)
	default:
		respondOK(c, "", result.Rows)
	}
}
