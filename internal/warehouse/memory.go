package warehouse

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"hiring-gateway/internal/backup"
	"hiring-gateway/internal/model"
	"hiring-gateway/internal/schema"
	"hiring-gateway/internal/storage"
)

// Memory is an in-process Warehouse. It models the parts of BigQuery the
// gateway depends on: truncating loads, a streaming buffer that blocks DML,
// Avro extracts into the object store and all-or-nothing streaming inserts.
type Memory struct {
	mu        sync.Mutex
	store     storage.ObjectStore
	tables    map[string]*memTable
	failures  map[string]error
	calls     []string
	bufferTTL time.Duration
	now       func() time.Time
}

type memTable struct {
	columns       []model.LiveColumn
	rows          []model.Record
	buffered      bool
	bufferedUntil time.Time
}

// NewMemory creates an empty warehouse that reads and writes objects in store
func NewMemory(store storage.ObjectStore) *Memory {
	return &Memory{
		store:    store,
		tables:   make(map[string]*memTable),
		failures: make(map[string]error),
		now:      time.Now,
	}
}

// SetBufferTTL makes streamed rows leave the buffer after d. Zero keeps them
// buffered until Flush is called.
func (m *Memory) SetBufferTTL(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bufferTTL = d
}

// FailNext makes the next call of the named method return err
func (m *Memory) FailNext(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[method] = err
}

// SetBuffered marks table as having rows in the streaming buffer
func (m *Memory) SetBuffered(table string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tables[table]; ok {
		m.markBuffered(t)
	}
}

// Flush empties table's streaming buffer
func (m *Memory) Flush(table string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tables[table]; ok {
		t.buffered = false
	}
}

// Calls returns the methods invoked so far, in order
func (m *Memory) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Rows returns a copy of table's rows
func (m *Memory) Rows(table string) []model.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[table]
	if !ok {
		return nil
	}
	rows := make([]model.Record, len(t.rows))
	for i, r := range t.rows {
		rows[i] = copyRecord(r)
	}
	return rows
}

// Columns returns table's live columns in ordinal order
func (m *Memory) Columns(table string) []model.LiveColumn {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[table]
	if !ok {
		return nil
	}
	return append([]model.LiveColumn(nil), t.columns...)
}

// Seed creates or replaces table with the given columns and rows, outside the streaming buffer
func (m *Memory) Seed(table string, columns []model.LiveColumn, rows []model.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &memTable{columns: append([]model.LiveColumn(nil), columns...)}
	for _, r := range rows {
		t.rows = append(t.rows, copyRecord(r))
	}
	m.tables[table] = t
}

// enter records the call and returns any injected failure. Caller holds mu.
func (m *Memory) enter(ctx context.Context, method string) error {
	m.calls = append(m.calls, method)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := m.failures[method]; ok {
		delete(m.failures, method)
		return err
	}
	return nil
}

func (m *Memory) lookup(table string) (*memTable, error) {
	t, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("%s: %w", table, ErrTableNotFound)
	}
	return t, nil
}

func (m *Memory) markBuffered(t *memTable) {
	t.buffered = true
	if m.bufferTTL > 0 {
		t.bufferedUntil = m.now().Add(m.bufferTTL)
	}
}

func (m *Memory) isBuffered(t *memTable) bool {
	if !t.buffered {
		return false
	}
	if m.bufferTTL > 0 && !m.now().Before(t.bufferedUntil) {
		t.buffered = false
	}
	return t.buffered
}

func copyRecord(r model.Record) model.Record {
	c := make(model.Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

func liveColumns(s model.TableSchema) []model.LiveColumn {
	cols := make([]model.LiveColumn, len(s.Columns))
	for i, c := range s.Columns {
		dataType := "STRING"
		if c.Type == model.TypeInteger {
			dataType = "INT64"
		}
		cols[i] = model.LiveColumn{Name: c.Name, DataType: dataType}
	}
	return cols
}

func isIntegerType(dataType string) bool {
	switch strings.ToUpper(dataType) {
	case "INT64", "INTEGER":
		return true
	}
	return false
}

// checkRow applies the column checks a streaming insert or JSON load would
func checkRow(columns []model.LiveColumn, row model.Record) []string {
	types := make(map[string]string, len(columns))
	for _, c := range columns {
		types[c.Name] = c.DataType
	}

	var problems []string
	for name, v := range row {
		dataType, ok := types[name]
		if !ok {
			problems = append(problems, fmt.Sprintf("no such field: %s", name))
			continue
		}
		if v.IsNull() {
			continue
		}
		if isIntegerType(dataType) && v.Kind != model.KindInteger {
			problems = append(problems, fmt.Sprintf("cannot convert %s to %s for field %s", v.String(), dataType, name))
		}
	}
	sort.Strings(problems)
	return problems
}

// =============================================================================
// Tables and loads
// =============================================================================

func (m *Memory) TableExists(ctx context.Context, table string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter(ctx, "TableExists"); err != nil {
		return false, err
	}
	_, ok := m.tables[table]
	return ok, nil
}

func (m *Memory) CreateTable(ctx context.Context, s model.TableSchema) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter(ctx, "CreateTable"); err != nil {
		return err
	}
	if _, ok := m.tables[s.Table]; ok {
		return fmt.Errorf("table %s already exists", s.Table)
	}
	m.tables[s.Table] = &memTable{columns: liveColumns(s)}
	return nil
}

// LoadCSV parses the object behind uri. Empty fields load as NULL.
func (m *Memory) LoadCSV(ctx context.Context, s model.TableSchema, uri string, skipLeadingRows int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter(ctx, "LoadCSV"); err != nil {
		return err
	}

	name, ok := m.store.NameFromURI(uri)
	if !ok {
		return fmt.Errorf("source %s is outside the configured bucket", uri)
	}
	rc, err := m.store.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer rc.Close()

	columns := liveColumns(s)
	reader := csv.NewReader(rc)
	reader.FieldsPerRecord = len(columns)

	rows := make([]model.Record, 0)
	for line := int64(1); ; line++ {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to parse CSV: %w", err)
		}
		if line <= skipLeadingRows {
			continue
		}

		row := make(model.Record, len(columns))
		for i, col := range columns {
			raw := fields[i]
			switch {
			case raw == "":
				row[col.Name] = model.Null()
			case isIntegerType(col.DataType):
				n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
				if err != nil {
					return fmt.Errorf("line %d: could not parse %q as %s for field %s", line, raw, col.DataType, col.Name)
				}
				row[col.Name] = model.Int(n)
			default:
				row[col.Name] = model.String(raw)
			}
		}
		rows = append(rows, row)
	}

	t, ok := m.tables[s.Table]
	if !ok {
		t = &memTable{columns: columns}
		m.tables[s.Table] = t
	}
	t.rows = rows
	t.buffered = false
	return nil
}

// =============================================================================
// Inserts
// =============================================================================

func (m *Memory) ExistingIDs(ctx context.Context, table string, ids []int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter(ctx, "ExistingIDs"); err != nil {
		return nil, err
	}
	t, err := m.lookup(table)
	if err != nil {
		return nil, err
	}

	wanted := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	existing := make([]int64, 0)
	for _, r := range t.rows {
		if id, ok := r.ID(); ok {
			if _, hit := wanted[id]; hit {
				existing = append(existing, id)
			}
		}
	}
	return existing, nil
}

// InsertRows rejects the whole request when any row is invalid
func (m *Memory) InsertRows(ctx context.Context, table string, rows []model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter(ctx, "InsertRows"); err != nil {
		return err
	}
	t, err := m.lookup(table)
	if err != nil {
		return err
	}

	var rowErrs RowErrors
	for i, r := range rows {
		if problems := checkRow(t.columns, r); len(problems) > 0 {
			rowErrs = append(rowErrs, RowError{Index: i, Errors: problems})
		}
	}
	if len(rowErrs) > 0 {
		return rowErrs
	}

	for _, r := range rows {
		t.rows = append(t.rows, copyRecord(r))
	}
	if len(rows) > 0 {
		m.markBuffered(t)
	}
	return nil
}

// =============================================================================
// Backup and restore
// =============================================================================

// ExportTable writes the table as an Avro container into the object store
func (m *Memory) ExportTable(ctx context.Context, table string, uri string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter(ctx, "ExportTable"); err != nil {
		return err
	}
	t, err := m.lookup(table)
	if err != nil {
		return err
	}

	name, ok := m.store.NameFromURI(uri)
	if !ok {
		return fmt.Errorf("destination %s is outside the configured bucket", uri)
	}

	var buf bytes.Buffer
	enc := &backup.Encoder{Table: table}
	if err := enc.Encode(&buf, t.columns, t.rows); err != nil {
		return err
	}
	return m.store.Write(ctx, name, &buf, backup.ArtifactContentType)
}

func (m *Memory) ColumnOrder(ctx context.Context, table string, ordering ColumnOrdering) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter(ctx, "ColumnOrder"); err != nil {
		return nil, err
	}
	t, err := m.lookup(table)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		if ordering == OrdinalDescending {
			names[len(t.columns)-1-i] = c.Name
		} else {
			names[i] = c.Name
		}
	}
	return names, nil
}

func (m *Memory) ColumnTypes(ctx context.Context, table string) ([]model.LiveColumn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter(ctx, "ColumnTypes"); err != nil {
		return nil, err
	}
	t, err := m.lookup(table)
	if err != nil {
		return nil, err
	}
	return append([]model.LiveColumn(nil), t.columns...), nil
}

func (m *Memory) DeleteAllRows(ctx context.Context, table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter(ctx, "DeleteAllRows"); err != nil {
		return err
	}
	t, err := m.lookup(table)
	if err != nil {
		return err
	}
	if m.isBuffered(t) {
		return fmt.Errorf("UPDATE or DELETE statement over table %s %s: %w", table, streamingBufferMessage, ErrStreamingBuffer)
	}
	t.rows = nil
	return nil
}

func (m *Memory) DropTable(ctx context.Context, table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter(ctx, "DropTable"); err != nil {
		return err
	}
	if _, err := m.lookup(table); err != nil {
		return err
	}
	delete(m.tables, table)
	return nil
}

func (m *Memory) CreateTableFromColumns(ctx context.Context, table string, columns []model.LiveColumn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter(ctx, "CreateTableFromColumns"); err != nil {
		return err
	}
	if _, ok := m.tables[table]; ok {
		return fmt.Errorf("table %s already exists", table)
	}
	if len(columns) == 0 {
		return errors.New("table must have at least one column")
	}
	m.tables[table] = &memTable{columns: append([]model.LiveColumn(nil), columns...)}
	return nil
}

// LoadRows replaces the table's rows. Unknown fields fail the whole load.
func (m *Memory) LoadRows(ctx context.Context, table string, rows []model.OrderedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter(ctx, "LoadRows"); err != nil {
		return err
	}
	t, err := m.lookup(table)
	if err != nil {
		return err
	}

	loaded := make([]model.Record, 0, len(rows))
	for i, r := range rows {
		record := r.Record()
		if problems := checkRow(t.columns, record); len(problems) > 0 {
			return fmt.Errorf("row %d: %s", i, strings.Join(problems, "; "))
		}
		loaded = append(loaded, record)
	}
	t.rows = loaded
	t.buffered = false
	return nil
}

func (m *Memory) StreamingBufferEmpty(ctx context.Context, table string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter(ctx, "StreamingBufferEmpty"); err != nil {
		return false, err
	}
	t, err := m.lookup(table)
	if err != nil {
		return false, err
	}
	return !m.isBuffered(t), nil
}

// =============================================================================
// Reports
// =============================================================================

type hire struct {
	at           time.Time
	departmentID int64
	jobID        int64
}

// parseHireTime accepts the insert layout and the ISO-8601 form found in historical CSVs
func parseHireTime(s string) (time.Time, bool) {
	if t, err := time.Parse(schema.HireDatetimeLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// hiresIn returns hires in year with known department and job. Caller holds mu.
func (m *Memory) hiresIn(year int) ([]hire, map[int64]string, map[int64]string) {
	names := func(table, column string) map[int64]string {
		out := make(map[int64]string)
		if t, ok := m.tables[table]; ok {
			for _, r := range t.rows {
				if id, ok := r.ID(); ok {
					out[id] = r[column].Str
				}
			}
		}
		return out
	}
	departments := names(schema.TableDepartments, "department")
	jobs := names(schema.TableJobs, "job")

	hires := make([]hire, 0)
	t, ok := m.tables[schema.TableHiredEmployees]
	if !ok {
		return hires, departments, jobs
	}
	for _, r := range t.rows {
		at, ok := parseHireTime(r[schema.HireDatetimeColumn].Str)
		if !ok || at.Year() != year {
			continue
		}
		dept, job := r["department_id"], r["job_id"]
		if dept.Kind != model.KindInteger || job.Kind != model.KindInteger {
			continue
		}
		hires = append(hires, hire{at: at, departmentID: dept.Int, jobID: job.Int})
	}
	return hires, departments, jobs
}

func (m *Memory) QuarterlyHires(ctx context.Context, year int, limit int) ([]model.QuarterlyHires, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter(ctx, "QuarterlyHires"); err != nil {
		return nil, err
	}

	hires, departments, jobs := m.hiresIn(year)
	type key struct{ department, job string }
	groups := make(map[key]*model.QuarterlyHires)
	for _, h := range hires {
		dept, ok := departments[h.departmentID]
		if !ok {
			continue
		}
		job, ok := jobs[h.jobID]
		if !ok {
			continue
		}
		k := key{dept, job}
		g, ok := groups[k]
		if !ok {
			g = &model.QuarterlyHires{Department: dept, Job: job}
			groups[k] = g
		}
		switch (int(h.at.Month()) - 1) / 3 {
		case 0:
			g.Q1++
		case 1:
			g.Q2++
		case 2:
			g.Q3++
		default:
			g.Q4++
		}
	}

	rows := make([]model.QuarterlyHires, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, *g)
	}
	sort.Slice(rows, func(i, j int) bool {
		if limit > 0 && rows[i].Total() != rows[j].Total() {
			return rows[i].Total() > rows[j].Total()
		}
		if rows[i].Department != rows[j].Department {
			return rows[i].Department < rows[j].Department
		}
		return rows[i].Job < rows[j].Job
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (m *Memory) DepartmentsAboveMean(ctx context.Context, year int, limit int) ([]model.DepartmentHires, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enter(ctx, "DepartmentsAboveMean"); err != nil {
		return nil, err
	}

	hires, departments, _ := m.hiresIn(year)
	counts := make(map[int64]int64)
	for _, h := range hires {
		if _, ok := departments[h.departmentID]; ok {
			counts[h.departmentID]++
		}
	}
	if len(counts) == 0 {
		return []model.DepartmentHires{}, nil
	}

	var total int64
	for _, c := range counts {
		total += c
	}
	mean := float64(total) / float64(len(counts))

	rows := make([]model.DepartmentHires, 0)
	for id, c := range counts {
		if float64(c) > mean {
			rows = append(rows, model.DepartmentHires{ID: id, Department: departments[id], Hired: c})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Hired != rows[j].Hired {
			return rows[i].Hired > rows[j].Hired
		}
		return rows[i].Department < rows[j].Department
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enter(ctx, "Ping")
}

func (m *Memory) Close() error {
	return nil
}
