// Package handlers implements the HTTP endpoints for uploads, financial
// records, chat, goals, stocks and job status.
package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finsight/internal/api/middleware"
	"github.com/dvloznov/finsight/internal/audit"
	"github.com/dvloznov/finsight/internal/gcs"
	"github.com/dvloznov/finsight/internal/ingest"
	"github.com/dvloznov/finsight/internal/store"
)

// maxUploadSize caps statement uploads at 10MB.
const maxUploadSize = 10 << 20

// Ingestor runs the ingestion pipeline for one document.
type Ingestor interface {
	IngestDocument(ctx context.Context, userID, documentID string, data []byte) (*ingest.Result, error)
}

// FinancialHandler handles statement uploads and financial record reads.
type FinancialHandler struct {
	blobs    gcs.BlobStore
	docs     store.DocumentStore
	ingestor Ingestor
	recorder audit.Recorder
	log      zerolog.Logger
}

// NewFinancialHandler creates a financial handler.
func NewFinancialHandler(blobs gcs.BlobStore, docs store.DocumentStore, ingestor Ingestor, recorder audit.Recorder, log zerolog.Logger) *FinancialHandler {
	return &FinancialHandler{
		blobs:    blobs,
		docs:     docs,
		ingestor: ingestor,
		recorder: recorder,
		log:      log,
	}
}

// Upload handles POST /api/financial/upload: accepts a multipart PDF, stores
// the raw file, runs the ingestion pipeline synchronously and returns the
// staged result.
func (h *FinancialHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "File too large or invalid multipart body (max 10MB)")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "A 'file' form field is required")
		return
	}
	defer file.Close()

	if !isPDF(header.Filename, header.Header.Get("Content-Type")) {
		middleware.WriteError(w, http.StatusBadRequest, "Only PDF documents are supported")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read upload")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read uploaded file")
		return
	}

	documentID := uuid.NewString()
	gcsURI := h.storeRawDocument(ctx, userID, documentID, header.Filename, data)

	result, err := h.ingestor.IngestDocument(ctx, userID, documentID, data)
	if err != nil {
		h.log.Error().Err(err).Str("document_id", documentID).Msg("Ingestion aborted")
		middleware.WriteError(w, http.StatusInternalServerError, "Document processing was interrupted")
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}

	h.log.Info().
		Str("user_id", userID).
		Str("document_id", documentID).
		Str("gcs_uri", gcsURI).
		Bool("success", result.Success).
		Msg("Upload processed")

	middleware.WriteJSON(w, status, result)
}

// storeRawDocument uploads the raw bytes and records the document in the
// audit trail. Both are best-effort: the user's ingest proceeds even when raw
// storage is down.
func (h *FinancialHandler) storeRawDocument(ctx context.Context, userID, documentID, filename string, data []byte) string {
	objectName := gcs.ObjectName(userID, filename)
	gcsURI, err := h.blobs.Upload(ctx, objectName, data)
	if err != nil {
		h.log.Warn().Err(err).Str("document_id", documentID).Msg("Raw document not stored")
		gcsURI = ""
	}

	checksum := sha256.Sum256(data)
	row := &audit.DocumentRow{
		DocumentID:       documentID,
		UserID:           userID,
		GCSURI:           gcsURI,
		OriginalFilename: filepath.Base(filename),
		FileMimeType:     "application/pdf",
		SizeBytes:        int64(len(data)),
		UploadTS:         time.Now().UTC(),
		IngestStatus:     "PENDING",
		ChecksumSHA256:   hex.EncodeToString(checksum[:]),
	}
	if err := h.recorder.InsertDocument(ctx, row); err != nil {
		h.log.Warn().Err(err).Str("document_id", documentID).Msg("Document not recorded in audit trail")
	}

	return gcsURI
}

// BankAccounts handles GET /api/financial/bank-accounts.
func (h *FinancialHandler) BankAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accounts, err := h.docs.List(ctx, middleware.UserID(ctx), store.CollectionBankAccounts, store.ListOptions{})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list bank accounts")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list bank accounts")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"bankAccounts": documents(accounts),
		"count":        len(accounts),
	})
}

// Transactions handles GET /api/financial/transactions with optional
// startDate, endDate, type, category and limit query parameters.
func (h *FinancialHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	opts := store.ListOptions{OrderBy: "date", Desc: true}

	if s := query.Get("startDate"); s != "" {
		start, err := time.Parse("2006-01-02", s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid startDate format, want YYYY-MM-DD")
			return
		}
		opts.Filters = append(opts.Filters, store.Filter{Field: "date", Op: ">=", Value: start})
	}
	if s := query.Get("endDate"); s != "" {
		end, err := time.Parse("2006-01-02", s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid endDate format, want YYYY-MM-DD")
			return
		}
		opts.Filters = append(opts.Filters, store.Filter{Field: "date", Op: "<=", Value: end})
	}
	if t := query.Get("type"); t != "" {
		opts.Filters = append(opts.Filters, store.Filter{Field: "type", Op: "==", Value: t})
	}
	if c := query.Get("category"); c != "" {
		opts.Filters = append(opts.Filters, store.Filter{Field: "category", Op: "==", Value: c})
	}
	if l := query.Get("limit"); l != "" {
		if limit, err := strconv.Atoi(l); err == nil && limit > 0 {
			opts.Limit = limit
		}
	}

	transactions, err := h.docs.List(ctx, middleware.UserID(ctx), store.CollectionTransactions, opts)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": documents(transactions),
		"count":        len(transactions),
	})
}

// Holdings handles GET /api/financial/holdings with an optional category
// query parameter.
func (h *FinancialHandler) Holdings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	opts := store.ListOptions{}
	if c := r.URL.Query().Get("category"); c != "" {
		opts.Filters = append(opts.Filters, store.Filter{Field: "category", Op: "==", Value: c})
	}

	holdings, err := h.docs.List(ctx, middleware.UserID(ctx), store.CollectionHoldings, opts)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list holdings")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list holdings")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"holdings": documents(holdings),
		"count":    len(holdings),
	})
}

// Summary handles GET /api/financial/summary: balances, recent spend and
// portfolio totals in one payload.
func (h *FinancialHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	accounts, err := h.docs.List(ctx, userID, store.CollectionBankAccounts, store.ListOptions{})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build summary")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build summary")
		return
	}

	holdings, err := h.docs.List(ctx, userID, store.CollectionHoldings, store.ListOptions{})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build summary")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build summary")
		return
	}

	var totalBalance, invested, currentValue float64
	for _, a := range accounts {
		totalBalance += numberField(a.Data, "currentBalance")
	}
	for _, hd := range holdings {
		invested += numberField(hd.Data, "investedValue")
		currentValue += numberField(hd.Data, "currentValue")
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"totalBalance":      totalBalance,
		"bankAccountCount":  len(accounts),
		"holdingCount":      len(holdings),
		"investedValue":     invested,
		"currentValue":      currentValue,
		"profitLoss":        currentValue - invested,
	})
}

func isPDF(filename, contentType string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return true
	}
	return strings.Contains(strings.ToLower(contentType), "application/pdf")
}

func documents(docs []store.Document) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(docs))
	for _, d := range docs {
		record := map[string]interface{}{"id": d.ID}
		for k, v := range d.Data {
			record[k] = v
		}
		out = append(out, record)
	}
	return out
}

func numberField(data map[string]interface{}, key string) float64 {
	if f, ok := data[key].(float64); ok {
		return f
	}
	return 0
}
