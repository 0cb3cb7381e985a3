package models

import "fmt"

// ValidTransactionType reports whether t is exactly "debit" or "credit".
// The match is case-sensitive: "Debit" is not a valid type.
func ValidTransactionType(t string) bool {
	return t == TransactionDebit || t == TransactionCredit
}

// ValidInstrumentType reports whether t is one of MF, Equity or Bond.
func ValidInstrumentType(t string) bool {
	return t == InstrumentMF || t == InstrumentEquity || t == InstrumentBond
}

// ValidHoldingCategory reports whether c is in the closed holding category set.
func ValidHoldingCategory(c string) bool {
	for _, valid := range HoldingCategories {
		if c == valid {
			return true
		}
	}
	return false
}

// ValidateBankAccount checks a bank account against the storage contract.
// Returns an empty slice when the record is acceptable.
func ValidateBankAccount(a *BankAccount) []string {
	var errs []string
	if a.AccountType == "" {
		errs = append(errs, "account type is required")
	}
	if a.AccountNumberMasked == "" {
		errs = append(errs, "account number is required")
	}
	if a.Currency == "" {
		errs = append(errs, "currency is required")
	}
	return errs
}

// ValidateTransaction checks a transaction against the storage contract.
func ValidateTransaction(t *Transaction) []string {
	var errs []string
	if t.Date.IsZero() {
		errs = append(errs, "transaction date is required")
	}
	if t.Amount == 0 {
		errs = append(errs, "valid amount is required")
	}
	if !ValidTransactionType(t.Type) {
		errs = append(errs, "type must be 'debit' or 'credit'")
	}
	if t.Description == "" {
		errs = append(errs, "description is required")
	}
	if t.Category == "" {
		errs = append(errs, "category is required")
	}
	return errs
}

// ValidateHolding checks a holding against the storage contract.
func ValidateHolding(h *Holding) []string {
	var errs []string
	if h.InstrumentName == "" {
		errs = append(errs, "instrument name is required")
	}
	if !ValidInstrumentType(h.InstrumentType) {
		errs = append(errs, "instrument type must be 'MF', 'Equity', or 'Bond'")
	}
	if h.Category != "" && !ValidHoldingCategory(h.Category) {
		errs = append(errs, fmt.Sprintf("category must be one of: %v", HoldingCategories))
	}
	if h.Quantity <= 0 {
		errs = append(errs, "quantity must be a positive number")
	}
	if h.AverageBuyPrice <= 0 {
		errs = append(errs, "average buy price must be a positive number")
	}
	if h.CurrentPrice < 0 {
		errs = append(errs, "current price must be a non-negative number")
	}
	return errs
}
