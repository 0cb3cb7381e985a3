// Package ingest runs the document ingestion pipeline: text extraction,
// model extraction with retry, validation and persistence, with an audit
// trail recorded around the run.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finsight/internal/audit"
	"github.com/dvloznov/finsight/internal/extract"
	"github.com/dvloznov/finsight/internal/pdftext"
	"github.com/dvloznov/finsight/internal/store"
)

// Pipeline stages reported on failure.
const (
	StageProcessing   = "processing"
	StageAIExtraction = "ai_extraction"
	StageValidation   = "validation"
)

// minTextLength is the smallest amount of extracted text worth sending to the
// model. Below it the document is treated as empty or unreadable.
const minTextLength = 50

// defaultMaxAttempts keeps the per-document model budget at three
// invocations: two retried attempts plus the final unconditional one.
const defaultMaxAttempts = 2

// Extractor is the model-extraction collaborator.
type Extractor interface {
	ExtractWithRetry(ctx context.Context, documentText string, maxAttempts int) (*extract.Result, error)
}

// Saver persists a sanitized extraction batch.
type Saver interface {
	SaveAll(ctx context.Context, userID string, data *extract.Extraction) *store.Report
}

// Result is the outcome of one ingestion. Pipeline failures are carried here
// as data, not as Go errors: Stage names the step that failed and Error holds
// its message.
type Result struct {
	Success    bool                `json:"success"`
	Stage      string              `json:"stage,omitempty"`
	Error      string              `json:"error,omitempty"`
	Extraction *extract.Result     `json:"extraction,omitempty"`
	Validation *extract.Validation `json:"validation,omitempty"`
	Saved      *store.Report       `json:"saved,omitempty"`
}

// Service drives the ingestion pipeline.
type Service struct {
	extractor   Extractor
	saver       Saver
	recorder    audit.Recorder
	extractText func(data []byte) (string, error)
	modelName   string
	maxAttempts int
	callTimeout time.Duration
	log         zerolog.Logger
}

// NewService creates an ingestion service. The recorder may be
// audit.NopRecorder when no audit dataset is configured.
func NewService(extractor Extractor, saver Saver, recorder audit.Recorder, modelName string, log zerolog.Logger) *Service {
	return &Service{
		extractor:   extractor,
		saver:       saver,
		recorder:    recorder,
		extractText: pdftext.Extract,
		modelName:   modelName,
		maxAttempts: defaultMaxAttempts,
		callTimeout: 2 * time.Minute,
		log:         log,
	}
}

// IngestDocument runs the full pipeline for one uploaded document. The
// returned Result always accounts for the run; the error return is reserved
// for context cancellation.
func (s *Service) IngestDocument(ctx context.Context, userID, documentID string, data []byte) (*Result, error) {
	runID := s.startRun(ctx, documentID, userID)

	text, err := s.extractText(data)
	if err == nil && len(text) < minTextLength {
		err = fmt.Errorf("document yielded %d characters of text, need at least %d", len(text), minTextLength)
	}
	if err != nil {
		s.failRun(ctx, runID, StageProcessing, err)
		return &Result{Stage: StageProcessing, Error: fmt.Sprintf("could not extract text from document: %v", err)}, ctx.Err()
	}

	extractCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	result, err := s.extractor.ExtractWithRetry(extractCtx, text, s.maxAttempts)
	cancel()
	if err != nil {
		var extractErr *extract.Error
		if errors.As(err, &extractErr) && extractErr.Raw != "" {
			s.recordModelOutput(ctx, runID, documentID, extractErr.Raw, string(extractErr.Kind), nil)
		}
		s.failRun(ctx, runID, StageAIExtraction, err)
		return &Result{Stage: StageAIExtraction, Error: err.Error()}, ctx.Err()
	}

	s.recordModelOutput(ctx, runID, documentID, result.Raw, "ok", result.Data)

	validation := extract.Validate(result.Data)
	if !validation.IsValid {
		s.failRun(ctx, runID, StageValidation, fmt.Errorf("validation failed: %v", validation.Errors))
		return &Result{
			Stage:      StageValidation,
			Error:      "extracted data failed validation",
			Extraction: result,
			Validation: validation,
		}, ctx.Err()
	}

	report := s.saver.SaveAll(ctx, userID, result.Data)

	if runID != "" {
		if err := s.recorder.MarkIngestRunSucceeded(ctx, runID, int64(report.TotalSaved), int64(report.TotalFailed)); err != nil {
			s.log.Warn().Err(err).Str("ingest_run_id", runID).Msg("Audit run completion not recorded")
		}
	}

	s.log.Info().
		Str("user_id", userID).
		Str("document_id", documentID).
		Int("saved", report.TotalSaved).
		Int("failed", report.TotalFailed).
		Msg("Document ingested")

	return &Result{
		Success:    true,
		Extraction: result,
		Validation: validation,
		Saved:      report,
	}, nil
}

func (s *Service) startRun(ctx context.Context, documentID, userID string) string {
	runID, err := s.recorder.StartIngestRun(ctx, documentID, userID, s.modelName)
	if err != nil {
		s.log.Warn().Err(err).Str("document_id", documentID).Msg("Audit run start not recorded")
		return ""
	}
	return runID
}

func (s *Service) failRun(ctx context.Context, runID, stage string, runErr error) {
	if runID == "" {
		return
	}
	if err := s.recorder.MarkIngestRunFailed(ctx, runID, stage, runErr); err != nil {
		s.log.Warn().Err(err).Str("ingest_run_id", runID).Msg("Audit run failure not recorded")
	}
}

// recordModelOutput stores the completion exactly as the model returned it.
// The sanitized records go alongside when parsing succeeded so a run can be
// replayed against either form.
func (s *Service) recordModelOutput(ctx context.Context, runID, documentID, raw, parseStatus string, data *extract.Extraction) {
	if runID == "" {
		return
	}

	row := &audit.ModelOutputRow{
		OutputID:      uuid.NewString(),
		IngestRunID:   runID,
		DocumentID:    documentID,
		ModelName:     s.modelName,
		RawCompletion: raw,
		ParseStatus:   parseStatus,
		CreatedTS:     time.Now().UTC(),
	}
	if data != nil {
		if sanitized, err := json.Marshal(data); err == nil {
			row.SanitizedJSON = bigquery.NullJSON{JSONVal: string(sanitized), Valid: true}
		} else {
			s.log.Warn().Err(err).Msg("Sanitized records not serializable for audit")
		}
	}
	if err := s.recorder.InsertModelOutput(ctx, row); err != nil {
		s.log.Warn().Err(err).Str("ingest_run_id", runID).Msg("Model output not recorded")
	}
}
