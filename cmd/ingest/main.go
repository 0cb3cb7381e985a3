package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/dvloznov/finsight/internal/audit"
	"github.com/dvloznov/finsight/internal/extract"
	"github.com/dvloznov/finsight/internal/gemini"
	"github.com/dvloznov/finsight/internal/ingest"
	"github.com/dvloznov/finsight/internal/logger"
	"github.com/dvloznov/finsight/internal/store"
	fsstore "github.com/dvloznov/finsight/internal/store/firestore"
)

func main() {
	_ = godotenv.Load()

	var (
		file    = flag.String("file", "", "Path to the PDF statement to ingest (required)")
		user    = flag.String("user", "", "User ID to ingest for (required)")
		project = flag.String("project", os.Getenv("GCP_PROJECT"), "GCP project ID (or set GCP_PROJECT env)")
		model   = flag.String("model", gemini.DefaultModel, "Gemini model name")
	)
	flag.Parse()

	log := logger.New()

	if *file == "" || *user == "" {
		log.Fatal().Msg("Both -file and -user are required")
	}
	if *project == "" {
		log.Fatal().Msg("A GCP project is required (-project flag or GCP_PROJECT env)")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Failed to read document")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	docs, err := fsstore.New(ctx, *project)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Firestore")
	}
	defer docs.Close()

	gen, err := gemini.New(ctx, gemini.WithModel(*model))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	extractClient := extract.NewClient(gen, extract.WithLogger(log))
	orchestrator := store.NewOrchestrator(docs, log)
	svc := ingest.NewService(extractClient, orchestrator, audit.NopRecorder{}, *model, log)

	documentID := uuid.NewString()
	log.Info().Str("file", *file).Str("user_id", *user).Str("document_id", documentID).Msg("Starting ingestion")

	result, err := svc.IngestDocument(ctx, *user, documentID, data)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion interrupted")
	}

	report, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode result")
	}
	fmt.Println(string(report))

	if !result.Success {
		os.Exit(1)
	}
}
