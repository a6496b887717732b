package warehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"hiring-gateway/internal/model"
	"hiring-gateway/internal/schema"
)

// BigQueryConfig holds BigQuery connection settings
type BigQueryConfig struct {
	ProjectID       string
	DatasetID       string
	Location        string
	CredentialsFile string // Falls back to application default credentials when empty
}

// BigQuery implements Warehouse on a single BigQuery dataset
type BigQuery struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	location  string
}

// NewBigQuery creates a new BigQuery warehouse
func NewBigQuery(ctx context.Context, config *BigQueryConfig) (*BigQuery, error) {
	if err := ValidateProject(config.ProjectID); err != nil {
		return nil, err
	}
	if err := ValidateName("dataset", config.DatasetID); err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}

	client, err := bigquery.NewClient(ctx, config.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}

	return &BigQuery{
		client:    client,
		projectID: config.ProjectID,
		datasetID: config.DatasetID,
		location:  config.Location,
	}, nil
}

// =============================================================================
// Helpers
// =============================================================================

func (w *BigQuery) table(name string) (*bigquery.Table, error) {
	if err := ValidateName("table", name); err != nil {
		return nil, err
	}
	return w.client.DatasetInProject(w.projectID, w.datasetID).Table(name), nil
}

func (w *BigQuery) qualified(table string) (string, error) {
	return QualifiedTable(w.projectID, w.datasetID, table)
}

// query runs sql to completion and returns its row iterator
func (w *BigQuery) query(ctx context.Context, sql string, params ...bigquery.QueryParameter) (*bigquery.RowIterator, error) {
	q := w.client.Query(sql)
	q.Location = w.location
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for job: %w", err)
	}
	if status.Err() != nil {
		return nil, fmt.Errorf("job failed: %w", status.Err())
	}

	it, err := job.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	return it, nil
}

type runner interface {
	Run(ctx context.Context) (*bigquery.Job, error)
}

// wait runs a load or extract job and blocks until it finishes
func wait(ctx context.Context, r runner) error {
	job, err := r.Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to start job: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("failed to wait for job: %w", err)
	}
	if status.Err() != nil {
		return fmt.Errorf("job failed: %w", status.Err())
	}
	return nil
}

func isNotFound(err error) bool {
	var gErr *googleapi.Error
	return errors.As(err, &gErr) && gErr.Code == http.StatusNotFound
}

func classify(err error, table string) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return fmt.Errorf("%s: %w: %v", table, ErrTableNotFound, err)
	}
	return err
}

func bigQuerySchema(s model.TableSchema) bigquery.Schema {
	fields := make(bigquery.Schema, 0, len(s.Columns))
	for _, c := range s.Columns {
		fieldType := bigquery.StringFieldType
		if c.Type == model.TypeInteger {
			fieldType = bigquery.IntegerFieldType
		}
		fields = append(fields, &bigquery.FieldSchema{
			Name:     c.Name,
			Type:     fieldType,
			Required: !c.Nullable,
		})
	}
	return fields
}

// =============================================================================
// Tables and loads
// =============================================================================

// TableExists checks table metadata, treating 404 as absent
func (w *BigQuery) TableExists(ctx context.Context, table string) (bool, error) {
	t, err := w.table(table)
	if err != nil {
		return false, err
	}
	if _, err := t.Metadata(ctx); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get table metadata: %w", err)
	}
	return true, nil
}

// CreateTable creates a table with the registered schema
func (w *BigQuery) CreateTable(ctx context.Context, s model.TableSchema) error {
	t, err := w.table(s.Table)
	if err != nil {
		return err
	}
	if err := t.Create(ctx, &bigquery.TableMetadata{Schema: bigQuerySchema(s)}); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.Table, err)
	}
	return nil
}

// LoadCSV loads a CSV object with WRITE_TRUNCATE semantics
func (w *BigQuery) LoadCSV(ctx context.Context, s model.TableSchema, uri string, skipLeadingRows int64) error {
	t, err := w.table(s.Table)
	if err != nil {
		return err
	}

	gcsRef := bigquery.NewGCSReference(uri)
	gcsRef.SourceFormat = bigquery.CSV
	gcsRef.Schema = bigQuerySchema(s)
	gcsRef.SkipLeadingRows = skipLeadingRows

	loader := t.LoaderFrom(gcsRef)
	loader.WriteDisposition = bigquery.WriteTruncate
	loader.Location = w.location

	return classify(wait(ctx, loader), s.Table)
}

// =============================================================================
// Inserts
// =============================================================================

// ExistingIDs runs one parameterized membership query over the whole id list
func (w *BigQuery) ExistingIDs(ctx context.Context, table string, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	qualified, err := w.qualified(table)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf("SELECT id FROM %s WHERE id IN UNNEST(@id_list)", qualified)
	it, err := w.query(ctx, sql, bigquery.QueryParameter{Name: "id_list", Value: ids})
	if err != nil {
		return nil, classify(err, table)
	}

	existing := make([]int64, 0)
	for {
		var row struct {
			ID int64 `bigquery:"id"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read id: %w", err)
		}
		existing = append(existing, row.ID)
	}
	return existing, nil
}

type recordSaver struct {
	record model.Record
}

// Save implements bigquery.ValueSaver. An empty insert id lets the client generate one.
func (s recordSaver) Save() (map[string]bigquery.Value, string, error) {
	row := make(map[string]bigquery.Value, len(s.record))
	for k, v := range s.record {
		row[k] = v.Interface()
	}
	return row, "", nil
}

// InsertRows streams rows through the insertAll API
func (w *BigQuery) InsertRows(ctx context.Context, table string, rows []model.Record) error {
	t, err := w.table(table)
	if err != nil {
		return err
	}

	savers := make([]recordSaver, len(rows))
	for i, r := range rows {
		savers[i] = recordSaver{record: r}
	}

	err = t.Inserter().Put(ctx, savers)
	if err == nil {
		return nil
	}

	var multi bigquery.PutMultiError
	if errors.As(err, &multi) {
		rowErrs := make(RowErrors, 0, len(multi))
		for _, rie := range multi {
			msgs := make([]string, 0, len(rie.Errors))
			for _, e := range rie.Errors {
				msgs = append(msgs, e.Error())
			}
			rowErrs = append(rowErrs, RowError{Index: rie.RowIndex, InsertID: rie.InsertID, Errors: msgs})
		}
		return rowErrs
	}
	return classify(fmt.Errorf("failed to insert rows: %w", err), table)
}

// =============================================================================
// Backup and restore
// =============================================================================

// ExportTable extracts the table to uri as Avro
func (w *BigQuery) ExportTable(ctx context.Context, table string, uri string) error {
	t, err := w.table(table)
	if err != nil {
		return err
	}

	gcsRef := bigquery.NewGCSReference(uri)
	gcsRef.DestinationFormat = bigquery.Avro

	extractor := t.ExtractorTo(gcsRef)
	extractor.Location = w.location

	return classify(wait(ctx, extractor), table)
}

// ColumnOrder reads column names from INFORMATION_SCHEMA.COLUMNS
func (w *BigQuery) ColumnOrder(ctx context.Context, table string, ordering ColumnOrdering) ([]string, error) {
	if err := ValidateName("table", table); err != nil {
		return nil, err
	}
	view, err := QualifiedInformationSchema(w.projectID, w.datasetID, "COLUMNS")
	if err != nil {
		return nil, err
	}

	direction := "ASC"
	if ordering == OrdinalDescending {
		direction = "DESC"
	}
	sql := fmt.Sprintf("SELECT column_name FROM %s WHERE table_name = @table_name ORDER BY ordinal_position %s", view, direction)

	it, err := w.query(ctx, sql, bigquery.QueryParameter{Name: "table_name", Value: table})
	if err != nil {
		return nil, err
	}

	columns := make([]string, 0)
	for {
		var row struct {
			Name string `bigquery:"column_name"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read column name: %w", err)
		}
		columns = append(columns, row.Name)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("%s: %w", table, ErrTableNotFound)
	}
	return columns, nil
}

// ColumnTypes reads column names and data types in ordinal order
func (w *BigQuery) ColumnTypes(ctx context.Context, table string) ([]model.LiveColumn, error) {
	if err := ValidateName("table", table); err != nil {
		return nil, err
	}
	view, err := QualifiedInformationSchema(w.projectID, w.datasetID, "COLUMNS")
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf("SELECT column_name, data_type FROM %s WHERE table_name = @table_name ORDER BY ordinal_position", view)
	it, err := w.query(ctx, sql, bigquery.QueryParameter{Name: "table_name", Value: table})
	if err != nil {
		return nil, err
	}

	columns := make([]model.LiveColumn, 0)
	for {
		var row struct {
			Name     string `bigquery:"column_name"`
			DataType string `bigquery:"data_type"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read column type: %w", err)
		}
		columns = append(columns, model.LiveColumn{Name: row.Name, DataType: row.DataType})
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("%s: %w", table, ErrTableNotFound)
	}
	return columns, nil
}

// DeleteAllRows runs an unconditional DML delete
func (w *BigQuery) DeleteAllRows(ctx context.Context, table string) error {
	qualified, err := w.qualified(table)
	if err != nil {
		return err
	}

	_, err = w.query(ctx, fmt.Sprintf("DELETE FROM %s WHERE TRUE", qualified))
	if err == nil {
		return nil
	}
	if IsStreamingBufferError(err) {
		return fmt.Errorf("%w: %v", ErrStreamingBuffer, err)
	}
	return classify(err, table)
}

// DropTable deletes the table
func (w *BigQuery) DropTable(ctx context.Context, table string) error {
	t, err := w.table(table)
	if err != nil {
		return err
	}
	if err := t.Delete(ctx); err != nil {
		return classify(fmt.Errorf("failed to drop table: %w", err), table)
	}
	return nil
}

// CreateTableFromColumns recreates a table with DDL from introspected types
func (w *BigQuery) CreateTableFromColumns(ctx context.Context, table string, columns []model.LiveColumn) error {
	qualified, err := w.qualified(table)
	if err != nil {
		return err
	}

	names := make([]string, len(columns))
	types := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
		types[i] = c.DataType
	}
	ddl, err := ColumnDDL(names, types)
	if err != nil {
		return err
	}

	if _, err := w.query(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", qualified, ddl)); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// LoadRows loads newline-delimited JSON with WRITE_TRUNCATE
func (w *BigQuery) LoadRows(ctx context.Context, table string, rows []model.OrderedRecord) error {
	t, err := w.table(table)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode row: %w", err)
		}
	}

	src := bigquery.NewReaderSource(&buf)
	src.SourceFormat = bigquery.JSON

	loader := t.LoaderFrom(src)
	loader.WriteDisposition = bigquery.WriteTruncate
	loader.Location = w.location

	return classify(wait(ctx, loader), table)
}

// StreamingBufferEmpty checks the table's streaming buffer statistics
func (w *BigQuery) StreamingBufferEmpty(ctx context.Context, table string) (bool, error) {
	t, err := w.table(table)
	if err != nil {
		return false, err
	}
	md, err := t.Metadata(ctx)
	if err != nil {
		return false, classify(fmt.Errorf("failed to get table metadata: %w", err), table)
	}
	return md.StreamingBuffer == nil, nil
}

// =============================================================================
// Reports
// =============================================================================

// hiresSubquery normalises hire datetimes; historical CSVs carry ISO-8601 values
const hiresSubquery = "(SELECT id, department_id, job_id, COALESCE(" +
	"SAFE.PARSE_DATETIME('%%Y-%%m-%%d %%H:%%M:%%S', `datetime`), " +
	"DATETIME(SAFE.PARSE_TIMESTAMP('%%Y-%%m-%%dT%%H:%%M:%%E*SZ', `datetime`))) AS hired_at FROM %s)"

func (w *BigQuery) reportTables() (hired, departments, jobs string, err error) {
	if hired, err = w.qualified(schema.TableHiredEmployees); err != nil {
		return
	}
	if departments, err = w.qualified(schema.TableDepartments); err != nil {
		return
	}
	jobs, err = w.qualified(schema.TableJobs)
	return
}

// QuarterlyHires counts hires per department and job for each quarter of year
func (w *BigQuery) QuarterlyHires(ctx context.Context, year int, limit int) ([]model.QuarterlyHires, error) {
	hired, departments, jobs, err := w.reportTables()
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(`SELECT d.department AS department, j.job AS job,
  COUNTIF(EXTRACT(QUARTER FROM h.hired_at) = 1) AS q1,
  COUNTIF(EXTRACT(QUARTER FROM h.hired_at) = 2) AS q2,
  COUNTIF(EXTRACT(QUARTER FROM h.hired_at) = 3) AS q3,
  COUNTIF(EXTRACT(QUARTER FROM h.hired_at) = 4) AS q4
FROM `+hiresSubquery+` h
JOIN %s d ON d.id = h.department_id
JOIN %s j ON j.id = h.job_id
WHERE EXTRACT(YEAR FROM h.hired_at) = @year
GROUP BY department, job`, hired, departments, jobs)

	params := []bigquery.QueryParameter{{Name: "year", Value: int64(year)}}
	if limit > 0 {
		sql += "\nORDER BY q1 + q2 + q3 + q4 DESC, department, job\nLIMIT @limit"
		params = append(params, bigquery.QueryParameter{Name: "limit", Value: int64(limit)})
	} else {
		sql += "\nORDER BY department, job"
	}

	it, err := w.query(ctx, sql, params...)
	if err != nil {
		return nil, err
	}

	rows := make([]model.QuarterlyHires, 0)
	for {
		var row model.QuarterlyHires
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read report row: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// DepartmentsAboveMean lists departments that hired more than the mean department in year
func (w *BigQuery) DepartmentsAboveMean(ctx context.Context, year int, limit int) ([]model.DepartmentHires, error) {
	hired, departments, _, err := w.reportTables()
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(`WITH hires AS (
  SELECT d.id AS id, d.department AS department, COUNT(*) AS hired
  FROM `+hiresSubquery+` h
  JOIN %s d ON d.id = h.department_id
  WHERE EXTRACT(YEAR FROM h.hired_at) = @year
  GROUP BY id, department
)
SELECT id, department, hired FROM hires
WHERE hired > (SELECT AVG(hired) FROM hires)
ORDER BY hired DESC, department`, hired, departments)

	params := []bigquery.QueryParameter{{Name: "year", Value: int64(year)}}
	if limit > 0 {
		sql += "\nLIMIT @limit"
		params = append(params, bigquery.QueryParameter{Name: "limit", Value: int64(limit)})
	}

	it, err := w.query(ctx, sql, params...)
	if err != nil {
		return nil, err
	}

	rows := make([]model.DepartmentHires, 0)
	for {
		var row model.DepartmentHires
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read report row: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Ping checks that the dataset is reachable
func (w *BigQuery) Ping(ctx context.Context) error {
	if _, err := w.client.DatasetInProject(w.projectID, w.datasetID).Metadata(ctx); err != nil {
		return fmt.Errorf("failed to get dataset metadata: %w", err)
	}
	return nil
}

// Close closes the BigQuery client
func (w *BigQuery) Close() error {
	return w.client.Close()
}
