package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvloznov/finsight/internal/agents"
	"github.com/dvloznov/finsight/internal/api/handlers"
	"github.com/dvloznov/finsight/internal/api/middleware"
	"github.com/dvloznov/finsight/internal/audit"
	"github.com/dvloznov/finsight/internal/clients/nse"
	"github.com/dvloznov/finsight/internal/extract"
	"github.com/dvloznov/finsight/internal/gcs"
	"github.com/dvloznov/finsight/internal/gemini"
	"github.com/dvloznov/finsight/internal/ingest"
	"github.com/dvloznov/finsight/internal/jobs"
	"github.com/dvloznov/finsight/internal/jobs/inmemory"
	"github.com/dvloznov/finsight/internal/logger"
	"github.com/dvloznov/finsight/internal/store"
	fsstore "github.com/dvloznov/finsight/internal/store/firestore"
)

func main() {
	_ = godotenv.Load()

	var (
		port    = flag.String("port", "8080", "HTTP server port")
		project = flag.String("project", os.Getenv("GCP_PROJECT"), "GCP project ID (or set GCP_PROJECT env)")
		bucket  = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for raw document uploads (or set GCS_BUCKET env)")
		dataset = flag.String("dataset", "finsight", "BigQuery dataset for the ingestion audit trail")
		model   = flag.String("model", gemini.DefaultModel, "Gemini model name")
	)
	flag.Parse()

	log := logger.New()
	ctx := context.Background()

	if *project == "" {
		log.Fatal().Msg("A GCP project is required (-project flag or GCP_PROJECT env)")
	}

	// Persistence.
	docs, err := fsstore.New(ctx, *project)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Firestore")
	}
	defer docs.Close()

	// Raw upload storage.
	var blobs gcs.BlobStore
	if *bucket != "" {
		blobStore, err := gcs.New(ctx, *bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer blobStore.Close()
		blobs = blobStore
	} else {
		log.Warn().Msg("No GCS bucket configured - raw documents will not be retained")
		blobs = disabledBlobs{}
	}

	// Audit trail.
	var recorder audit.Recorder
	auditRepo, err := audit.NewRepository(ctx, *project, *dataset)
	if err != nil {
		log.Warn().Err(err).Msg("Audit trail disabled")
		recorder = audit.NopRecorder{}
	} else {
		defer auditRepo.Close()
		recorder = auditRepo
	}

	// Extraction pipeline.
	gen, err := gemini.New(ctx, gemini.WithModel(*model))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	extractClient := extract.NewClient(gen, extract.WithLogger(logger.ForComponent(log, "extract")))
	orchestrator := store.NewOrchestrator(docs, logger.ForComponent(log, "store"))
	ingestSvc := ingest.NewService(extractClient, orchestrator, recorder, *model, logger.ForComponent(log, "ingest"))

	// Assistants and market data.
	goalAgent := agents.NewGoalAgent(gen, docs, logger.ForComponent(log, "goals"))
	chatAgent := agents.NewChatAgent(gen, docs, goalAgent, logger.ForComponent(log, "chat"))
	nseClient := nse.NewClient()

	// Async job infrastructure.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		ingestJob, ok := job.(*jobs.IngestDocumentJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", ingestJob.JobID).
			Str("document_id", ingestJob.DocumentID).
			Str("gcs_uri", ingestJob.GCSURI).
			Msg("Processing ingestion job")

		data, err := blobs.Fetch(ctx, ingestJob.GCSURI)
		if err != nil {
			return fmt.Errorf("fetching document: %w", err)
		}

		result, err := ingestSvc.IngestDocument(ctx, ingestJob.UserID, ingestJob.DocumentID, data)
		if err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("ingestion failed at stage %s: %s", result.Stage, result.Error)
		}

		return nil
	}

	go func() {
		log.Info().Msg("Starting job workers")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job workers stopped with error")
		}
	}()

	// Handlers.
	financialHandler := handlers.NewFinancialHandler(blobs, docs, ingestSvc, recorder, log)
	documentsHandler := handlers.NewDocumentsHandler(jobQueue, log)
	chatHandler := handlers.NewChatHandler(chatAgent, log)
	goalsHandler := handlers.NewGoalsHandler(docs, log)
	stocksHandler := handlers.NewStocksHandler(nseClient, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/financial/upload", requireMethod(http.MethodPost, financialHandler.Upload))
	mux.HandleFunc("/api/financial/bank-accounts", requireMethod(http.MethodGet, financialHandler.BankAccounts))
	mux.HandleFunc("/api/financial/transactions", requireMethod(http.MethodGet, financialHandler.Transactions))
	mux.HandleFunc("/api/financial/holdings", requireMethod(http.MethodGet, financialHandler.Holdings))
	mux.HandleFunc("/api/financial/summary", requireMethod(http.MethodGet, financialHandler.Summary))

	mux.HandleFunc("/api/documents/parse", requireMethod(http.MethodPost, documentsHandler.EnqueueIngest))

	mux.HandleFunc("/api/chat", requireMethod(http.MethodPost, chatHandler.Chat))

	mux.HandleFunc("/api/goals", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			goalsHandler.List(w, r)
		case http.MethodPost:
			goalsHandler.Create(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/stocks/quote", requireMethod(http.MethodGet, stocksHandler.Quote))
	mux.HandleFunc("/api/stocks/market", requireMethod(http.MethodGet, stocksHandler.Market))

	mux.HandleFunc("/api/jobs", requireMethod(http.MethodGet, jobsHandler.ListJobs))
	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		jobsHandler.GetJob(w, r, jobID)
	})

	protected := middleware.Auth(mux)

	root := http.NewServeMux()
	root.Handle("/api/", protected)
	root.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(root),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}

// requireMethod wraps a handler with a single-method check.
func requireMethod(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}

// disabledBlobs stands in when no bucket is configured. Uploads are dropped
// with an error so the ingest pipeline still runs on the in-memory bytes.
type disabledBlobs struct{}

func (disabledBlobs) Upload(ctx context.Context, objectName string, data []byte) (string, error) {
	return "", fmt.Errorf("no GCS bucket configured")
}

func (disabledBlobs) Fetch(ctx context.Context, gcsURI string) ([]byte, error) {
	return nil, fmt.Errorf("no GCS bucket configured")
}
