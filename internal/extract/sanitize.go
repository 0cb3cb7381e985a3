package extract

import (
	"strings"

	"github.com/dvloznov/finsight/internal/models"
)

// RawExtraction is the decoded top-level model output before sanitization.
// Array elements are untyped because nothing about them can be trusted.
type RawExtraction struct {
	BankAccounts []interface{} `json:"bankAccounts"`
	Transactions []interface{} `json:"transactions"`
	Holdings     []interface{} `json:"holdings"`
}

// Extraction is the sanitized output: every element satisfies its minimal
// required-field contract, with derived holding values recomputed.
type Extraction struct {
	BankAccounts []models.BankAccount `json:"bankAccounts"`
	Transactions []models.Transaction `json:"transactions"`
	Holdings     []models.Holding     `json:"holdings"`
}

// IsEmpty reports whether no records survived sanitization.
func (e *Extraction) IsEmpty() bool {
	return len(e.BankAccounts) == 0 && len(e.Transactions) == 0 && len(e.Holdings) == 0
}

// Sanitize normalizes untrusted model output into typed records, applying the
// lenient acceptance policy: coerce and default what can be salvaged, silently
// drop what cannot. Dropped records are not reported as errors; partial
// documents still yield a usable result. Sanitize is a fixed point: running it
// over its own output changes nothing.
func Sanitize(raw *RawExtraction) *Extraction {
	out := &Extraction{
		BankAccounts: make([]models.BankAccount, 0, len(raw.BankAccounts)),
		Transactions: make([]models.Transaction, 0, len(raw.Transactions)),
		Holdings:     make([]models.Holding, 0, len(raw.Holdings)),
	}

	for _, item := range raw.BankAccounts {
		if account, ok := sanitizeBankAccount(asRecord(item)); ok {
			out.BankAccounts = append(out.BankAccounts, account)
		}
	}
	for _, item := range raw.Transactions {
		if txn, ok := sanitizeTransaction(asRecord(item)); ok {
			out.Transactions = append(out.Transactions, txn)
		}
	}
	for _, item := range raw.Holdings {
		if holding, ok := sanitizeHolding(asRecord(item)); ok {
			out.Holdings = append(out.Holdings, holding)
		}
	}

	return out
}

// sanitizeBankAccount coerces one untrusted account record. The record is
// dropped only when neither a usable masked number nor a bank name survives
// defaulting; either one is enough to identify the account.
func sanitizeBankAccount(r record) (models.BankAccount, bool) {
	if r == nil {
		return models.BankAccount{}, false
	}

	masked := r.stringOr("accountNumberMasked", r.stringOr("accountNumber", models.MaskedNumberPlaceholder))
	account := models.BankAccount{
		AccountType:         r.stringOr("accountType", models.AccountTypeSavings),
		AccountNumberMasked: masked,
		IFSC:                r.stringOr("ifsc", ""),
		CurrentBalance:      r.numberOr("currentBalance", 0),
		Currency:            r.stringOr("currency", models.DefaultCurrency),
		BankName:            r.stringOr("bankName", ""),
	}

	if account.AccountNumberMasked == models.MaskedNumberPlaceholder && account.BankName == "" {
		return models.BankAccount{}, false
	}
	return account, true
}

// sanitizeTransaction coerces one untrusted transaction record. Records with
// an unparseable date, a missing or zero amount, or a type outside the exact
// {debit, credit} set are dropped; the type match is case-sensitive by design.
func sanitizeTransaction(r record) (models.Transaction, bool) {
	if r == nil {
		return models.Transaction{}, false
	}

	date := r.dateOr("date")
	amount := r.numberOr("amount", 0)
	txnType := r.stringOr("type", "")

	if date.IsZero() || amount == 0 || !models.ValidTransactionType(txnType) {
		return models.Transaction{}, false
	}
	if amount < 0 {
		amount = -amount
	}

	txn := models.Transaction{
		Date:        date,
		Amount:      amount,
		Type:        txnType,
		Description: r.stringOr("description", "Transaction"),
		Category:    normalizeCategory(r.stringOr("category", "")),
	}
	if meta := r.subRecord("metadata"); meta != nil {
		txn.Metadata = models.TransactionMetadata{
			Mode:      meta.stringOr("mode", ""),
			Reference: meta.stringOr("reference", ""),
			Merchant:  meta.stringOr("merchant", ""),
		}
	}
	return txn, true
}

// sanitizeHolding coerces one untrusted holding record. Quantity and average
// buy price must be positive or the record is dropped. Derived value fields
// are always recomputed here, never trusted from the source.
func sanitizeHolding(r record) (models.Holding, bool) {
	if r == nil {
		return models.Holding{}, false
	}

	name := r.stringOr("instrumentName", "")
	quantity := r.numberOr("quantity", 0)
	avgPrice := r.numberOr("averageBuyPrice", 0)

	if name == "" || quantity <= 0 || avgPrice <= 0 {
		return models.Holding{}, false
	}

	category := r.stringOr("category", "")
	instrumentType := r.stringOr("instrumentType", "")
	category, instrumentType = inferHoldingCategory(name, category, instrumentType)

	currentPrice := r.numberOr("currentPrice", 0)
	if currentPrice <= 0 {
		currentPrice = avgPrice
	}

	holding := models.Holding{
		InstrumentName:  name,
		InstrumentType:  instrumentType,
		Category:        category,
		Quantity:        quantity,
		AverageBuyPrice: avgPrice,
		CurrentPrice:    currentPrice,
		Currency:        r.stringOr("currency", models.DefaultCurrency),
		Symbol:          r.stringOr("symbol", ""),
		ISIN:            r.stringOr("isin", ""),
	}
	holding.RecomputeDerived()
	return holding, true
}

// inferHoldingCategory fills a missing category from the instrument type and
// name, in this order: Equity instruments are stocks; MF instruments whose
// name mentions SIP are SIPs, other MF instruments are mutual funds; anything
// else is defaulted to a mutual fund and the type forced to MF. A missing type
// is then back-filled from the category. Idempotent: re-running the inference
// on an already-categorized holding never changes it.
func inferHoldingCategory(name, category, instrumentType string) (string, string) {
	if category == "" {
		switch instrumentType {
		case models.InstrumentEquity:
			category = "Stock"
		case models.InstrumentMF:
			if strings.Contains(strings.ToLower(name), "sip") {
				category = "SIP"
			} else {
				category = "Mutual Fund"
			}
		default:
			category = "Mutual Fund"
			instrumentType = models.InstrumentMF
		}
	}
	if instrumentType == "" {
		if category == "Stock" {
			instrumentType = models.InstrumentEquity
		} else {
			instrumentType = models.InstrumentMF
		}
	}
	return category, instrumentType
}

// normalizeCategory maps a free-form category into the closed transaction
// category set. Matching is case-insensitive; anything unrecognized becomes
// "Other".
func normalizeCategory(category string) string {
	if category == "" {
		return "Other"
	}
	for _, valid := range models.TransactionCategories {
		if strings.EqualFold(category, valid) {
			return valid
		}
	}
	return "Other"
}
