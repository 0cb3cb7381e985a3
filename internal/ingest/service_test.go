package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finsight/internal/audit"
	"github.com/dvloznov/finsight/internal/extract"
	"github.com/dvloznov/finsight/internal/models"
	"github.com/dvloznov/finsight/internal/store"
)

type fakeExtractor struct {
	result      *extract.Result
	err         error
	calls       int
	text        string
	maxAttempts int
}

func (e *fakeExtractor) ExtractWithRetry(ctx context.Context, documentText string, maxAttempts int) (*extract.Result, error) {
	e.calls++
	e.text = documentText
	e.maxAttempts = maxAttempts
	return e.result, e.err
}

type fakeSaver struct {
	report *store.Report
	calls  int
	userID string
}

func (s *fakeSaver) SaveAll(ctx context.Context, userID string, data *extract.Extraction) *store.Report {
	s.calls++
	s.userID = userID
	return s.report
}

// recordingAuditor captures run transitions so tests can assert the trail.
type recordingAuditor struct {
	audit.NopRecorder
	started     int
	failedStage string
	succeeded   bool
	outputRow   *audit.ModelOutputRow
	startErr    error
}

func (a *recordingAuditor) StartIngestRun(ctx context.Context, documentID, userID, modelName string) (string, error) {
	a.started++
	if a.startErr != nil {
		return "", a.startErr
	}
	return "run-1", nil
}

func (a *recordingAuditor) MarkIngestRunFailed(ctx context.Context, ingestRunID, stage string, runErr error) error {
	a.failedStage = stage
	return nil
}

func (a *recordingAuditor) MarkIngestRunSucceeded(ctx context.Context, ingestRunID string, saved, failed int64) error {
	a.succeeded = true
	return nil
}

func (a *recordingAuditor) InsertModelOutput(ctx context.Context, row *audit.ModelOutputRow) error {
	a.outputRow = row
	return nil
}

func validExtraction() *extract.Result {
	return &extract.Result{
		Data: &extract.Extraction{
			Transactions: []models.Transaction{
				{Date: mustDate("2024-01-15"), Amount: 500, Type: "debit", Description: "Coffee", Category: "Food"},
			},
		},
	}
}

func mustDate(s string) (t time.Time) {
	t, _ = time.Parse("2006-01-02", s)
	return t
}

func newTestService(e Extractor, s Saver, a audit.Recorder, text string, textErr error) *Service {
	svc := NewService(e, s, a, "test-model", zerolog.Nop())
	svc.extractText = func(data []byte) (string, error) { return text, textErr }
	return svc
}

func TestIngestDocumentSuccess(t *testing.T) {
	extractor := &fakeExtractor{result: validExtraction()}
	saver := &fakeSaver{report: &store.Report{TotalSaved: 1, Success: true}}
	auditor := &recordingAuditor{}
	svc := newTestService(extractor, saver, auditor, strings.Repeat("x", 200), nil)

	result, err := svc.IngestDocument(context.Background(), "user-1", "doc-1", []byte("pdf"))

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.Stage)
	assert.Equal(t, 1, result.Saved.TotalSaved)
	assert.Equal(t, "user-1", saver.userID)

	assert.Equal(t, 1, auditor.started)
	assert.True(t, auditor.succeeded)
	assert.NotNil(t, auditor.outputRow)
	assert.Equal(t, 2, extractor.maxAttempts)
}

func TestIngestDocumentAuditsRawCompletion(t *testing.T) {
	// The audited completion is the model's verbatim text. Records dropped by
	// sanitization stay visible there and only there.
	raw := "```json\n" + `{"transactions": [{"date": "2024-01-15", "amount": 500, "type": "Debit", "description": "DroppedOne"}]}` + "\n```"
	extractor := &fakeExtractor{result: &extract.Result{
		Data: validExtraction().Data,
		Raw:  raw,
	}}
	saver := &fakeSaver{report: &store.Report{TotalSaved: 1, Success: true}}
	auditor := &recordingAuditor{}
	svc := newTestService(extractor, saver, auditor, strings.Repeat("x", 200), nil)

	_, err := svc.IngestDocument(context.Background(), "user-1", "doc-1", []byte("pdf"))

	require.NoError(t, err)
	row := auditor.outputRow
	require.NotNil(t, row)
	assert.Equal(t, raw, row.RawCompletion)
	assert.Equal(t, "ok", row.ParseStatus)
	require.True(t, row.SanitizedJSON.Valid)
	assert.Contains(t, row.SanitizedJSON.JSONVal, "Coffee")
	assert.NotContains(t, row.SanitizedJSON.JSONVal, "DroppedOne")
	assert.NotEqual(t, raw, row.SanitizedJSON.JSONVal)
}

func TestIngestDocumentAuditsMalformedCompletion(t *testing.T) {
	raw := "I could not find any structured data in this statement."
	extractor := &fakeExtractor{err: &extract.Error{
		Kind: extract.KindMalformedResponse,
		Err:  errors.New("decoding model response: invalid character 'I'"),
		Raw:  raw,
	}}
	auditor := &recordingAuditor{}
	svc := newTestService(extractor, &fakeSaver{}, auditor, strings.Repeat("x", 200), nil)

	result, err := svc.IngestDocument(context.Background(), "user-1", "doc-1", []byte("pdf"))

	require.NoError(t, err)
	assert.Equal(t, StageAIExtraction, result.Stage)
	row := auditor.outputRow
	require.NotNil(t, row)
	assert.Equal(t, raw, row.RawCompletion)
	assert.Equal(t, "malformed_response", row.ParseStatus)
	assert.False(t, row.SanitizedJSON.Valid)
}

func TestIngestDocumentTooLittleText(t *testing.T) {
	extractor := &fakeExtractor{result: validExtraction()}
	saver := &fakeSaver{report: &store.Report{}}
	auditor := &recordingAuditor{}
	svc := newTestService(extractor, saver, auditor, "short", nil)

	result, err := svc.IngestDocument(context.Background(), "user-1", "doc-1", []byte("pdf"))

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, StageProcessing, result.Stage)
	assert.Contains(t, result.Error, "could not extract text")
	assert.Equal(t, 0, extractor.calls)
	assert.Equal(t, StageProcessing, auditor.failedStage)
}

func TestIngestDocumentUnreadablePDF(t *testing.T) {
	svc := newTestService(&fakeExtractor{}, &fakeSaver{}, &recordingAuditor{}, "", errors.New("opening PDF: not a PDF"))

	result, err := svc.IngestDocument(context.Background(), "user-1", "doc-1", []byte("junk"))

	require.NoError(t, err)
	assert.Equal(t, StageProcessing, result.Stage)
}

func TestIngestDocumentExtractionFailure(t *testing.T) {
	extractor := &fakeExtractor{err: &extract.Error{Kind: extract.KindModelCallFailed, Err: errors.New("quota")}}
	auditor := &recordingAuditor{}
	svc := newTestService(extractor, &fakeSaver{}, auditor, strings.Repeat("x", 200), nil)

	result, err := svc.IngestDocument(context.Background(), "user-1", "doc-1", []byte("pdf"))

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, StageAIExtraction, result.Stage)
	assert.Contains(t, result.Error, "quota")
	assert.Equal(t, StageAIExtraction, auditor.failedStage)
}

func TestIngestDocumentValidationFailure(t *testing.T) {
	// An all-empty extraction fails validation and must not reach the store.
	extractor := &fakeExtractor{result: &extract.Result{Data: &extract.Extraction{}}}
	saver := &fakeSaver{report: &store.Report{}}
	auditor := &recordingAuditor{}
	svc := newTestService(extractor, saver, auditor, strings.Repeat("x", 200), nil)

	result, err := svc.IngestDocument(context.Background(), "user-1", "doc-1", []byte("pdf"))

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, StageValidation, result.Stage)
	require.NotNil(t, result.Validation)
	assert.NotEmpty(t, result.Validation.Errors)
	assert.Equal(t, 0, saver.calls)
	assert.Equal(t, StageValidation, auditor.failedStage)
}

func TestIngestDocumentPartialSaveFailureIsStillSuccess(t *testing.T) {
	extractor := &fakeExtractor{result: validExtraction()}
	saver := &fakeSaver{report: &store.Report{TotalSaved: 2, TotalFailed: 1, Success: false}}
	svc := newTestService(extractor, saver, &recordingAuditor{}, strings.Repeat("x", 200), nil)

	result, err := svc.IngestDocument(context.Background(), "user-1", "doc-1", []byte("pdf"))

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.Stage)
	assert.Equal(t, 1, result.Saved.TotalFailed)
	assert.False(t, result.Saved.Success)
}

func TestIngestDocumentAuditFailuresAreNotFatal(t *testing.T) {
	extractor := &fakeExtractor{result: validExtraction()}
	saver := &fakeSaver{report: &store.Report{TotalSaved: 1, Success: true}}
	auditor := &recordingAuditor{startErr: errors.New("bigquery down")}
	svc := newTestService(extractor, saver, auditor, strings.Repeat("x", 200), nil)

	result, err := svc.IngestDocument(context.Background(), "user-1", "doc-1", []byte("pdf"))

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, saver.calls)
}
