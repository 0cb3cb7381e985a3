package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finsight/internal/extract"
	"github.com/dvloznov/finsight/internal/models"
)

// fakeStore records inserts in order and fails any record whose collection and
// index appear in failAt.
type fakeStore struct {
	inserts []insertCall
	failAt  map[string]bool
	nextID  int
}

type insertCall struct {
	userID     string
	collection string
	record     interface{}
}

func (s *fakeStore) Insert(ctx context.Context, userID, collection string, record interface{}) (string, error) {
	key := fmt.Sprintf("%s/%d", collection, len(s.inserts))
	s.inserts = append(s.inserts, insertCall{userID: userID, collection: collection, record: record})
	if s.failAt[key] {
		return "", errors.New("backend unavailable")
	}
	s.nextID++
	return fmt.Sprintf("doc-%d", s.nextID), nil
}

func (s *fakeStore) List(ctx context.Context, userID, collection string, opts ListOptions) ([]Document, error) {
	return nil, nil
}

func validAccount(bank string) models.BankAccount {
	return models.BankAccount{
		AccountType:         "Savings",
		AccountNumberMasked: "XXXX1234",
		Currency:            "INR",
		BankName:            bank,
	}
}

func TestSaveAllReportsPartialFailure(t *testing.T) {
	// The second of three accounts fails its write; the other two must still
	// be persisted and the report must account for all three.
	fake := &fakeStore{failAt: map[string]bool{"bankAccounts/1": true}}
	orch := NewOrchestrator(fake, zerolog.Nop())

	data := &extract.Extraction{
		BankAccounts: []models.BankAccount{
			validAccount("SBI"), validAccount("HDFC"), validAccount("ICICI"),
		},
	}

	report := orch.SaveAll(context.Background(), "user-1", data)

	assert.Equal(t, 2, report.BankAccounts.Success)
	assert.Equal(t, 1, report.BankAccounts.Failed)
	assert.Len(t, report.BankAccounts.Errors, 1)
	assert.Len(t, report.BankAccounts.IDs, 2)
	assert.Equal(t, 2, report.TotalSaved)
	assert.Equal(t, 1, report.TotalFailed)
	assert.False(t, report.Success)

	// No rollback: all three writes were attempted.
	assert.Len(t, fake.inserts, 3)
}

func TestSaveAllRevalidatesBeforeWrite(t *testing.T) {
	fake := &fakeStore{}
	orch := NewOrchestrator(fake, zerolog.Nop())

	data := &extract.Extraction{
		Transactions: []models.Transaction{
			{Date: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), Amount: 500, Type: "debit", Description: "Coffee", Category: "Food"},
			{Date: time.Time{}, Amount: 500, Type: "debit", Description: "No date", Category: "Food"},
		},
	}

	report := orch.SaveAll(context.Background(), "user-1", data)

	assert.Equal(t, 1, report.Transactions.Success)
	assert.Equal(t, 1, report.Transactions.Failed)
	require.Len(t, report.Transactions.Errors, 1)
	assert.Contains(t, report.Transactions.Errors[0], "date is required")

	// The invalid record never reached the store.
	assert.Len(t, fake.inserts, 1)
}

func TestSaveAllWritesInEntityOrder(t *testing.T) {
	fake := &fakeStore{}
	orch := NewOrchestrator(fake, zerolog.Nop())

	data := &extract.Extraction{
		BankAccounts: []models.BankAccount{validAccount("SBI")},
		Transactions: []models.Transaction{
			{Date: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), Amount: 500, Type: "debit", Description: "Coffee", Category: "Food"},
		},
		Holdings: []models.Holding{
			{InstrumentName: "TCS", InstrumentType: "Equity", Category: "Stock", Quantity: 2, AverageBuyPrice: 3500, CurrentPrice: 3600},
		},
	}

	report := orch.SaveAll(context.Background(), "user-1", data)

	require.Len(t, fake.inserts, 3)
	assert.Equal(t, CollectionBankAccounts, fake.inserts[0].collection)
	assert.Equal(t, CollectionTransactions, fake.inserts[1].collection)
	assert.Equal(t, CollectionHoldings, fake.inserts[2].collection)
	assert.Equal(t, "user-1", fake.inserts[0].userID)
	assert.Equal(t, 3, report.TotalSaved)
	assert.True(t, report.Success)
}

func TestSaveAllStampsTimestamps(t *testing.T) {
	fake := &fakeStore{}
	orch := NewOrchestrator(fake, zerolog.Nop())
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	orch.now = func() time.Time { return fixed }

	data := &extract.Extraction{
		BankAccounts: []models.BankAccount{validAccount("SBI")},
	}

	report := orch.SaveAll(context.Background(), "user-1", data)

	require.True(t, report.Success)
	require.Len(t, fake.inserts, 1)
	stored, ok := fake.inserts[0].record.(*models.BankAccount)
	require.True(t, ok)
	assert.Equal(t, fixed, stored.CreatedAt)
	assert.Equal(t, fixed, stored.UpdatedAt)
}

func TestSaveAllEmptyBatch(t *testing.T) {
	fake := &fakeStore{}
	orch := NewOrchestrator(fake, zerolog.Nop())

	report := orch.SaveAll(context.Background(), "user-1", &extract.Extraction{})

	assert.Equal(t, 0, report.TotalSaved)
	assert.Equal(t, 0, report.TotalFailed)
	assert.True(t, report.Success)
	assert.Empty(t, fake.inserts)
}
