// Package gcs stores raw uploaded documents in Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

const uploadTimeout = 2 * time.Minute

// BlobStore is the raw-document storage surface. It enables mocking in
// handler and service tests.
type BlobStore interface {
	Upload(ctx context.Context, objectName string, data []byte) (string, error)
	Fetch(ctx context.Context, gcsURI string) ([]byte, error)
}

// Store is a GCS-backed BlobStore with a shared client.
type Store struct {
	client *storage.Client
	bucket string
}

// New creates a blob store for the given bucket. It assumes Application
// Default Credentials are configured.
func New(ctx context.Context, bucket string) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Store{client: client, bucket: bucket}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Upload writes data under the given object name and returns its gs:// URI.
func (s *Store) Upload(ctx context.Context, objectName string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("writing object %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload of %s: %w", objectName, err)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, objectName), nil
}

// Fetch downloads the object bytes from the given gs:// URI.
func (s *Store) Fetch(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := splitURI(gcsURI)
	if err != nil {
		return nil, err
	}

	rc, err := s.client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading bytes: %w", err)
	}

	return data, nil
}

// ObjectName builds the object path for a user upload:
// uploads/{userID}/{uuid}-{filename}.
func ObjectName(userID, filename string) string {
	return fmt.Sprintf("uploads/%s/%s-%s", userID, uuid.NewString(), path.Base(filename))
}

// FilenameFromURI extracts the original filename from a gs:// URI.
func FilenameFromURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}

func splitURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}
	trimmed := strings.TrimPrefix(gcsURI, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}
