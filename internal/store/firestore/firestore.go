// Package firestore implements the document store on Cloud Firestore. Records
// live under users/{userID}/{collection} with backend-assigned document IDs.
package firestore

import (
	"context"
	"fmt"

	cf "cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/finsight/internal/store"
)

const usersCollection = "users"

// Store is a Firestore-backed document store.
type Store struct {
	client *cf.Client
}

// New connects to Firestore for the given project.
func New(ctx context.Context, projectID string) (*Store, error) {
	client, err := cf.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating Firestore client: %w", err)
	}
	return &Store{client: client}, nil
}

// NewWithClient wraps an existing Firestore client.
func NewWithClient(client *cf.Client) *Store {
	return &Store{client: client}
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) collection(userID, name string) *cf.CollectionRef {
	return s.client.Collection(usersCollection).Doc(userID).Collection(name)
}

// Insert adds a record to the user's collection and returns the generated
// document ID.
func (s *Store) Insert(ctx context.Context, userID, collection string, record interface{}) (string, error) {
	ref, _, err := s.collection(userID, collection).Add(ctx, record)
	if err != nil {
		return "", fmt.Errorf("inserting into %s for user %s: %w", collection, userID, err)
	}
	return ref.ID, nil
}

// List reads records from the user's collection, applying any filters,
// ordering and limit from opts.
func (s *Store) List(ctx context.Context, userID, collection string, opts store.ListOptions) ([]store.Document, error) {
	q := s.collection(userID, collection).Query

	for _, f := range opts.Filters {
		q = q.Where(f.Field, f.Op, f.Value)
	}
	if opts.OrderBy != "" {
		dir := cf.Asc
		if opts.Desc {
			dir = cf.Desc
		}
		q = q.OrderBy(opts.OrderBy, dir)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var docs []store.Document
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing %s for user %s: %w", collection, userID, err)
		}
		docs = append(docs, store.Document{ID: snap.Ref.ID, Data: snap.Data()})
	}

	return docs, nil
}
