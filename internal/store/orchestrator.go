package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finsight/internal/extract"
	"github.com/dvloznov/finsight/internal/models"
)

// Orchestrator writes extracted batches to the document store record by
// record. Each record is validated once more immediately before its write;
// a record that fails validation or whose write fails is counted and the
// batch continues. Nothing already written is ever rolled back.
type Orchestrator struct {
	store DocumentStore
	now   func() time.Time
	log   zerolog.Logger
}

// NewOrchestrator creates an orchestrator over the given document store.
func NewOrchestrator(store DocumentStore, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store: store,
		now:   time.Now,
		log:   log,
	}
}

// SaveAll persists a sanitized extraction batch for one user: bank accounts
// first, then transactions, then holdings. The returned report accounts for
// every record in the batch.
func (o *Orchestrator) SaveAll(ctx context.Context, userID string, data *extract.Extraction) *Report {
	report := &Report{}
	now := o.now().UTC()

	for i := range data.BankAccounts {
		account := data.BankAccounts[i]
		if errs := models.ValidateBankAccount(&account); len(errs) > 0 {
			o.recordFailure(&report.BankAccounts, fmt.Sprintf("bank account %d: %v", i, errs))
			continue
		}
		account.CreatedAt = now
		account.UpdatedAt = now

		id, err := o.store.Insert(ctx, userID, CollectionBankAccounts, &account)
		if err != nil {
			o.recordFailure(&report.BankAccounts, fmt.Sprintf("bank account %d: %v", i, err))
			continue
		}
		report.BankAccounts.Success++
		report.BankAccounts.IDs = append(report.BankAccounts.IDs, id)
	}

	for i := range data.Transactions {
		txn := data.Transactions[i]
		if errs := models.ValidateTransaction(&txn); len(errs) > 0 {
			o.recordFailure(&report.Transactions, fmt.Sprintf("transaction %d: %v", i, errs))
			continue
		}
		txn.CreatedAt = now

		id, err := o.store.Insert(ctx, userID, CollectionTransactions, &txn)
		if err != nil {
			o.recordFailure(&report.Transactions, fmt.Sprintf("transaction %d: %v", i, err))
			continue
		}
		report.Transactions.Success++
		report.Transactions.IDs = append(report.Transactions.IDs, id)
	}

	for i := range data.Holdings {
		holding := data.Holdings[i]
		if errs := models.ValidateHolding(&holding); len(errs) > 0 {
			o.recordFailure(&report.Holdings, fmt.Sprintf("holding %d: %v", i, errs))
			continue
		}
		holding.CreatedAt = now
		holding.UpdatedAt = now

		id, err := o.store.Insert(ctx, userID, CollectionHoldings, &holding)
		if err != nil {
			o.recordFailure(&report.Holdings, fmt.Sprintf("holding %d: %v", i, err))
			continue
		}
		report.Holdings.Success++
		report.Holdings.IDs = append(report.Holdings.IDs, id)
	}

	report.finalize()

	o.log.Info().
		Str("user_id", userID).
		Int("saved", report.TotalSaved).
		Int("failed", report.TotalFailed).
		Msg("Persistence complete")

	return report
}

func (o *Orchestrator) recordFailure(entity *EntityReport, msg string) {
	entity.Failed++
	entity.Errors = append(entity.Errors, msg)
	o.log.Warn().Str("error", msg).Msg("Record not persisted")
}
