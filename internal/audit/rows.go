package audit

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// DocumentRow is one uploaded document in the audit dataset.
type DocumentRow struct {
	DocumentID string `bigquery:"document_id"` // REQUIRED
	UserID     string `bigquery:"user_id"`     // REQUIRED
	GCSURI     string `bigquery:"gcs_uri"`     // NULLABLE

	OriginalFilename string `bigquery:"original_filename"` // NULLABLE
	FileMimeType     string `bigquery:"file_mime_type"`    // NULLABLE
	SizeBytes        int64  `bigquery:"size_bytes"`        // NULLABLE

	UploadTS    time.Time              `bigquery:"upload_ts"`    // REQUIRED
	ProcessedTS bigquery.NullTimestamp `bigquery:"processed_ts"` // NULLABLE

	IngestStatus string `bigquery:"ingest_status"` // NULLABLE

	ChecksumSHA256 string `bigquery:"checksum_sha256"` // NULLABLE
}

// IngestRunRow tracks one ingestion attempt over a document.
type IngestRunRow struct {
	IngestRunID string `bigquery:"ingest_run_id"` // REQUIRED
	DocumentID  string `bigquery:"document_id"`   // REQUIRED
	UserID      string `bigquery:"user_id"`       // REQUIRED

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	ModelName string `bigquery:"model_name"` // NULLABLE

	Status       string `bigquery:"status"`        // NULLABLE
	Stage        string `bigquery:"stage"`         // NULLABLE
	ErrorMessage string `bigquery:"error_message"` // NULLABLE

	RecordsSaved  bigquery.NullInt64 `bigquery:"records_saved"`  // NULLABLE
	RecordsFailed bigquery.NullInt64 `bigquery:"records_failed"` // NULLABLE
}

// ModelOutputRow stores one model completion for an ingest run: the raw text
// exactly as returned, how parsing went, and the sanitized records when
// parsing succeeded.
type ModelOutputRow struct {
	OutputID    string `bigquery:"output_id"`     // REQUIRED
	IngestRunID string `bigquery:"ingest_run_id"` // REQUIRED
	DocumentID  string `bigquery:"document_id"`   // REQUIRED

	ModelName     string            `bigquery:"model_name"`     // REQUIRED
	RawCompletion string            `bigquery:"raw_completion"` // REQUIRED
	ParseStatus   string            `bigquery:"parse_status"`   // REQUIRED
	SanitizedJSON bigquery.NullJSON `bigquery:"sanitized_json"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}
