// Package audit records document uploads and ingestion runs in BigQuery.
// Audit writes are advisory: the ingestion pipeline logs their failures but
// never fails a document over them.
package audit

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
)

const (
	documentsTable    = "documents"
	ingestRunsTable   = "ingest_runs"
	modelOutputsTable = "model_outputs"
)

// Recorder is the audit-trail surface consumed by the ingestion service.
type Recorder interface {
	InsertDocument(ctx context.Context, row *DocumentRow) error
	StartIngestRun(ctx context.Context, documentID, userID, modelName string) (string, error)
	MarkIngestRunFailed(ctx context.Context, ingestRunID, stage string, runErr error) error
	MarkIngestRunSucceeded(ctx context.Context, ingestRunID string, saved, failed int64) error
	InsertModelOutput(ctx context.Context, row *ModelOutputRow) error
}

// Repository is the BigQuery-backed Recorder. It holds a shared client so
// each operation does not open its own connection.
type Repository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewRepository connects to BigQuery for the given project and dataset.
func NewRepository(ctx context.Context, projectID, datasetID string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating bigquery client: %w", err)
	}
	return &Repository{client: client, projectID: projectID, datasetID: datasetID}, nil
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// InsertDocument records an uploaded document.
func (r *Repository) InsertDocument(ctx context.Context, row *DocumentRow) error {
	inserter := r.client.Dataset(r.datasetID).Table(documentsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertDocument: inserting row: %w", err)
	}
	return nil
}

// StartIngestRun inserts a RUNNING row into ingest_runs and returns the
// generated ingest_run_id.
func (r *Repository) StartIngestRun(ctx context.Context, documentID, userID, modelName string) (string, error) {
	ingestRunID := uuid.NewString()

	q := r.client.Query(fmt.Sprintf(`
		INSERT %s.%s (
			ingest_run_id,
			document_id,
			user_id,
			started_ts,
			model_name,
			status
		)
		VALUES (
			@ingest_run_id,
			@document_id,
			@user_id,
			@started_ts,
			@model_name,
			@status
		)
	`, r.datasetID, ingestRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "ingest_run_id", Value: ingestRunID},
		{Name: "document_id", Value: documentID},
		{Name: "user_id", Value: userID},
		{Name: "started_ts", Value: time.Now()},
		{Name: "model_name", Value: modelName},
		{Name: "status", Value: "RUNNING"},
	}

	if err := r.runQuery(ctx, q); err != nil {
		return "", fmt.Errorf("StartIngestRun: %w", err)
	}

	return ingestRunID, nil
}

// MarkIngestRunFailed sets status=FAILED with the failing stage and message.
func (r *Repository) MarkIngestRunFailed(ctx context.Context, ingestRunID, stage string, runErr error) error {
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
		const maxLen = 2000
		if len(errMsg) > maxLen {
			errMsg = errMsg[:maxLen]
		}
	}

	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    stage = @stage,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE ingest_run_id = @ingest_run_id
	`, r.datasetID, ingestRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: "FAILED"},
		{Name: "stage", Value: stage},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: errMsg},
		{Name: "ingest_run_id", Value: ingestRunID},
	}

	if err := r.runQuery(ctx, q); err != nil {
		return fmt.Errorf("MarkIngestRunFailed: %w", err)
	}
	return nil
}

// MarkIngestRunSucceeded sets status=SUCCESS with persistence counts.
func (r *Repository) MarkIngestRunSucceeded(ctx context.Context, ingestRunID string, saved, failed int64) error {
	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    records_saved = @records_saved,
		    records_failed = @records_failed,
		    error_message = ""
		WHERE ingest_run_id = @ingest_run_id
	`, r.datasetID, ingestRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: "SUCCESS"},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "records_saved", Value: saved},
		{Name: "records_failed", Value: failed},
		{Name: "ingest_run_id", Value: ingestRunID},
	}

	if err := r.runQuery(ctx, q); err != nil {
		return fmt.Errorf("MarkIngestRunSucceeded: %w", err)
	}
	return nil
}

// InsertModelOutput stores one model completion for a run. Uses DML INSERT to
// avoid streaming buffer issues.
func (r *Repository) InsertModelOutput(ctx context.Context, row *ModelOutputRow) error {
	q := r.client.Query(fmt.Sprintf(`
		INSERT INTO %s.%s (
			output_id, ingest_run_id, document_id,
			model_name, raw_completion, parse_status, sanitized_json, created_ts
		)
		VALUES (
			@output_id, @ingest_run_id, @document_id,
			@model_name, @raw_completion, @parse_status, @sanitized_json, @created_ts
		)
	`, r.datasetID, modelOutputsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "output_id", Value: row.OutputID},
		{Name: "ingest_run_id", Value: row.IngestRunID},
		{Name: "document_id", Value: row.DocumentID},
		{Name: "model_name", Value: row.ModelName},
		{Name: "raw_completion", Value: row.RawCompletion},
		{Name: "parse_status", Value: row.ParseStatus},
		{Name: "sanitized_json", Value: row.SanitizedJSON},
		{Name: "created_ts", Value: row.CreatedTS},
	}

	if err := r.runQuery(ctx, q); err != nil {
		return fmt.Errorf("InsertModelOutput: %w", err)
	}
	return nil
}

func (r *Repository) runQuery(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
