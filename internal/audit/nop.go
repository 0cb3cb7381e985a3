package audit

import "context"

// NopRecorder discards all audit writes. Used by CLI tools that ingest local
// files without a BigQuery project configured.
type NopRecorder struct{}

func (NopRecorder) InsertDocument(ctx context.Context, row *DocumentRow) error {
	return nil
}

func (NopRecorder) StartIngestRun(ctx context.Context, documentID, userID, modelName string) (string, error) {
	return "", nil
}

func (NopRecorder) MarkIngestRunFailed(ctx context.Context, ingestRunID, stage string, runErr error) error {
	return nil
}

func (NopRecorder) MarkIngestRunSucceeded(ctx context.Context, ingestRunID string, saved, failed int64) error {
	return nil
}

func (NopRecorder) InsertModelOutput(ctx context.Context, row *ModelOutputRow) error {
	return nil
}
