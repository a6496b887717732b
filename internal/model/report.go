package model

// QuarterlyHires is one department/job row of the per-quarter hiring report
type QuarterlyHires struct {
	Department string `json:"department" bigquery:"department"`
	Job        string `json:"job" bigquery:"job"`
	Q1         int64  `json:"q1" bigquery:"q1"`
	Q2         int64  `json:"q2" bigquery:"q2"`
	Q3         int64  `json:"q3" bigquery:"q3"`
	Q4         int64  `json:"q4" bigquery:"q4"`
}

// Total returns the hires across all quarters
func (q QuarterlyHires) Total() int64 {
	return q.Q1 + q.Q2 + q.Q3 + q.Q4
}

// DepartmentHires is one row of the above-average department report
type DepartmentHires struct {
	ID         int64  `json:"id" bigquery:"id"`
	Department string `json:"department" bigquery:"department"`
	Hired      int64  `json:"hired" bigquery:"hired"`
}

// ReportKind names the supported aggregate reports
type ReportKind string

const (
	ReportHiresByQuarter       ReportKind = "hires_by_quarter"
	ReportDepartmentsAboveMean ReportKind = "avg_plus_hires_by_department"
)

// ReportRequest carries the common report parameters
type ReportRequest struct {
	Year int  `json:"year" validate:"min=1900,max=9999"`
	TopN *int `json:"topN,omitempty" validate:"omitempty,min=1,max=10000"`
	View bool `json:"view"`
}

// ReportResult is either tabular data or a rendered chart
type ReportResult struct {
	Kind        ReportKind  `json:"kind"`
	Year        int         `json:"year"`
	Empty       bool        `json:"empty"`
	Rows        interface{} `json:"rows,omitempty"`
	Image       []byte      `json:"-"`
	ContentType string      `json:"-"`
}
