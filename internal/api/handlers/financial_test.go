package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finsight/internal/api/middleware"
	"github.com/dvloznov/finsight/internal/audit"
	"github.com/dvloznov/finsight/internal/ingest"
	"github.com/dvloznov/finsight/internal/store"
)

type fakeBlobStore struct {
	uploaded map[string][]byte
	err      error
}

func (b *fakeBlobStore) Upload(ctx context.Context, objectName string, data []byte) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	if b.uploaded == nil {
		b.uploaded = map[string][]byte{}
	}
	b.uploaded[objectName] = data
	return "gs://test-bucket/" + objectName, nil
}

func (b *fakeBlobStore) Fetch(ctx context.Context, gcsURI string) ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}

type fakeIngestor struct {
	result *ingest.Result
	userID string
	data   []byte
}

func (i *fakeIngestor) IngestDocument(ctx context.Context, userID, documentID string, data []byte) (*ingest.Result, error) {
	i.userID = userID
	i.data = data
	return i.result, nil
}

type fakeDocStore struct {
	docs map[string][]store.Document
	opts store.ListOptions
}

func (s *fakeDocStore) Insert(ctx context.Context, userID, collection string, record interface{}) (string, error) {
	return "id-1", nil
}

func (s *fakeDocStore) List(ctx context.Context, userID, collection string, opts store.ListOptions) ([]store.Document, error) {
	s.opts = opts
	return s.docs[collection], nil
}

func authedRequest(r *http.Request) *http.Request {
	var captured *http.Request
	handler := middleware.Auth(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		captured = req
	}))
	r.Header.Set("X-User-ID", "user-1")
	handler.ServeHTTP(httptest.NewRecorder(), r)
	return captured
}

func multipartPDF(t *testing.T, fieldName, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(fieldName, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func TestUploadRunsPipeline(t *testing.T) {
	blobs := &fakeBlobStore{}
	ingestor := &fakeIngestor{result: &ingest.Result{Success: true, Saved: &store.Report{TotalSaved: 3, Success: true}}}
	h := NewFinancialHandler(blobs, &fakeDocStore{}, ingestor, audit.NopRecorder{}, zerolog.Nop())

	body, contentType := multipartPDF(t, "file", "statement.pdf", []byte("%PDF-1.4 fake"))
	req := httptest.NewRequest(http.MethodPost, "/api/financial/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Upload(rec, authedRequest(req))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", ingestor.userID)
	assert.Equal(t, []byte("%PDF-1.4 fake"), ingestor.data)
	assert.Len(t, blobs.uploaded, 1)

	var resp ingest.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.Saved.TotalSaved)
}

func TestUploadRejectsNonPDF(t *testing.T) {
	h := NewFinancialHandler(&fakeBlobStore{}, &fakeDocStore{}, &fakeIngestor{}, audit.NopRecorder{}, zerolog.Nop())

	body, contentType := multipartPDF(t, "file", "statement.csv", []byte("a,b,c"))
	req := httptest.NewRequest(http.MethodPost, "/api/financial/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Upload(rec, authedRequest(req))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRequiresFileField(t *testing.T) {
	h := NewFinancialHandler(&fakeBlobStore{}, &fakeDocStore{}, &fakeIngestor{}, audit.NopRecorder{}, zerolog.Nop())

	body, contentType := multipartPDF(t, "attachment", "statement.pdf", []byte("%PDF"))
	req := httptest.NewRequest(http.MethodPost, "/api/financial/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Upload(rec, authedRequest(req))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadStagedFailureIsUnprocessable(t *testing.T) {
	ingestor := &fakeIngestor{result: &ingest.Result{Stage: ingest.StageValidation, Error: "extracted data failed validation"}}
	h := NewFinancialHandler(&fakeBlobStore{}, &fakeDocStore{}, ingestor, audit.NopRecorder{}, zerolog.Nop())

	body, contentType := multipartPDF(t, "file", "statement.pdf", []byte("%PDF"))
	req := httptest.NewRequest(http.MethodPost, "/api/financial/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Upload(rec, authedRequest(req))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp ingest.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ingest.StageValidation, resp.Stage)
}

func TestTransactionsAppliesFilters(t *testing.T) {
	docs := &fakeDocStore{docs: map[string][]store.Document{
		store.CollectionTransactions: {{ID: "t1", Data: map[string]interface{}{"amount": 500.0}}},
	}}
	h := NewFinancialHandler(&fakeBlobStore{}, docs, &fakeIngestor{}, audit.NopRecorder{}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/financial/transactions?startDate=2024-01-01&endDate=2024-02-01&type=debit&category=Food&limit=25", nil)
	rec := httptest.NewRecorder()

	h.Transactions(rec, authedRequest(req))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, docs.opts.Filters, 4)
	assert.Equal(t, 25, docs.opts.Limit)
	assert.Equal(t, "date", docs.opts.OrderBy)
	assert.True(t, docs.opts.Desc)
}

func TestTransactionsRejectsBadDate(t *testing.T) {
	h := NewFinancialHandler(&fakeBlobStore{}, &fakeDocStore{}, &fakeIngestor{}, audit.NopRecorder{}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/financial/transactions?startDate=January", nil)
	rec := httptest.NewRecorder()

	h.Transactions(rec, authedRequest(req))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummaryAggregates(t *testing.T) {
	docs := &fakeDocStore{docs: map[string][]store.Document{
		store.CollectionBankAccounts: {
			{ID: "a1", Data: map[string]interface{}{"currentBalance": 50000.0}},
			{ID: "a2", Data: map[string]interface{}{"currentBalance": 25000.0}},
		},
		store.CollectionHoldings: {
			{ID: "h1", Data: map[string]interface{}{"investedValue": 10000.0, "currentValue": 12000.0}},
		},
	}}
	h := NewFinancialHandler(&fakeBlobStore{}, docs, &fakeIngestor{}, audit.NopRecorder{}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/financial/summary", nil)
	rec := httptest.NewRecorder()

	h.Summary(rec, authedRequest(req))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 75000.0, resp["totalBalance"])
	assert.Equal(t, 2000.0, resp["profitLoss"])
	assert.Equal(t, 2.0, resp["bankAccountCount"])
}

func TestAuthRejectsAnonymous(t *testing.T) {
	handler := middleware.Auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/financial/summary", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
