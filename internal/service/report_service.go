package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"hiring-gateway/internal/chart"
	"hiring-gateway/internal/model"
	"hiring-gateway/internal/utils"
	"hiring-gateway/internal/warehouse"
)

type ReportService interface {
	HiresByQuarter(ctx context.Context, req model.ReportRequest) (*model.ReportResult, error)
	DepartmentsAboveMean(ctx context.Context, req model.ReportRequest) (*model.ReportResult, error)
}

type reportService struct {
	warehouse   warehouse.Warehouse
	renderer    chart.Renderer
	validate    *validator.Validate
	callTimeout time.Duration
}

// NewReportService creates a new instance of ReportService
func NewReportService(wh warehouse.Warehouse, renderer chart.Renderer, callTimeout time.Duration) ReportService {
	return &reportService{
		warehouse:   wh,
		renderer:    renderer,
		validate:    validator.New(),
		callTimeout: callTimeout,
	}
}

func (s *reportService) check(req model.ReportRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return utils.NewValidationError("Invalid report parameters", err.Error())
	}
	return nil
}

func limitOf(req model.ReportRequest) int {
	if req.TopN == nil {
		return 0
	}
	return *req.TopN
}

func queryError(err error) error {
	return utils.NewErrorBuilder(utils.ErrCodeBackendError).
		WithMessage("Error running report query").
		WithCause(err).
		Build()
}

func renderError(err error) error {
	return utils.NewErrorBuilder(utils.ErrCodeInternalError).
		WithMessage("Error rendering chart").
		WithCause(err).
		Build()
}

// HiresByQuarter counts the year's hires per department and job by quarter.
// A chart needs top_n.
func (s *reportService) HiresByQuarter(ctx context.Context, req model.ReportRequest) (*model.ReportResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	if req.View && req.TopN == nil {
		return nil, utils.NewErrorBuilder(utils.ErrCodeChartRequiresLimit).
			WithMessage("A chart needs top_n to limit the number of department and job pairs").
			Build()
	}

	callCtx, cancel := callContext(ctx, s.callTimeout)
	defer cancel()

	rows, err := s.warehouse.QuarterlyHires(callCtx, req.Year, limitOf(req))
	if err != nil {
		return nil, queryError(err)
	}

	result := &model.ReportResult{Kind: model.ReportHiresByQuarter, Year: req.Year}
	if len(rows) == 0 {
		result.Empty = true
		return result, nil
	}

	if !req.View {
		result.Rows = rows
		return result, nil
	}

	bars := make([]chart.StackedBar, len(rows))
	for i, r := range rows {
		bars[i] = chart.StackedBar{
			Label: fmt.Sprintf("%s - %s", r.Department, r.Job),
			Segments: []chart.Bar{
				{Label: "Q1", Value: float64(r.Q1)},
				{Label: "Q2", Value: float64(r.Q2)},
				{Label: "Q3", Value: float64(r.Q3)},
				{Label: "Q4", Value: float64(r.Q4)},
			},
		}
	}
	img, err := s.renderer.StackedBars(fmt.Sprintf("Hires by quarter in %d", req.Year), bars)
	if err != nil {
		return nil, renderError(err)
	}
	result.Image = img
	result.ContentType = chart.ContentType
	return result, nil
}

// DepartmentsAboveMean lists departments that hired more than the mean department in the year
func (s *reportService) DepartmentsAboveMean(ctx context.Context, req model.ReportRequest) (*model.ReportResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	callCtx, cancel := callContext(ctx, s.callTimeout)
	defer cancel()

	rows, err := s.warehouse.DepartmentsAboveMean(callCtx, req.Year, limitOf(req))
	if err != nil {
		return nil, queryError(err)
	}

	result := &model.ReportResult{Kind: model.ReportDepartmentsAboveMean, Year: req.Year}
	if len(rows) == 0 {
		result.Empty = true
		return result, nil
	}

	if !req.View {
		result.Rows = rows
		return result, nil
	}

	bars := make([]chart.Bar, len(rows))
	for i, r := range rows {
		bars[i] = chart.Bar{Label: r.Department, Value: float64(r.Hired)}
	}
	img, err := s.renderer.Bars(fmt.Sprintf("Departments above mean hires in %d", req.Year), bars)
	if err != nil {
		return nil, renderError(err)
	}
	result.Image = img
	result.ContentType = chart.ContentType
	return result, nil
}
