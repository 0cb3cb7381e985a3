package extract

import (
	"fmt"

	"github.com/dvloznov/finsight/internal/models"
)

// Validation is the result of the strict quality gate run over sanitized
// output. Errors invalidate the whole batch; warnings never do.
type Validation struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validate applies the fail-closed acceptance policy to a sanitized
// extraction. Where Sanitize silently drops individual records to maximize
// yield, Validate rejects the entire batch on any disqualifying record to
// prevent corrupt persistence. The two passes share the predicates in the
// models package; a record that fails here after surviving sanitization means
// the drop filters and the reject filters have drifted apart.
func Validate(data *Extraction) *Validation {
	v := &Validation{IsValid: true, Errors: []string{}, Warnings: []string{}}

	if data.IsEmpty() {
		v.IsValid = false
		v.Errors = append(v.Errors, "no financial data could be extracted from the document")
		return v
	}

	// Secondary account fields only ever warn.
	for i, account := range data.BankAccounts {
		if account.AccountNumberMasked == "" || account.AccountNumberMasked == models.MaskedNumberPlaceholder {
			v.Warnings = append(v.Warnings, fmt.Sprintf("bank account %d: missing account number", i+1))
		}
		if account.BankName == "" {
			v.Warnings = append(v.Warnings, fmt.Sprintf("bank account %d: missing bank name", i+1))
		}
	}

	for i, txn := range data.Transactions {
		if txn.Date.IsZero() {
			v.fail(fmt.Sprintf("transaction %d: missing date", i+1))
		}
		if txn.Amount == 0 {
			v.fail(fmt.Sprintf("transaction %d: invalid amount", i+1))
		}
		if !models.ValidTransactionType(txn.Type) {
			v.fail(fmt.Sprintf("transaction %d: invalid type (must be debit or credit)", i+1))
		}
	}

	for i, holding := range data.Holdings {
		if holding.InstrumentName == "" {
			v.fail(fmt.Sprintf("holding %d: missing instrument name", i+1))
		}
		if !models.ValidInstrumentType(holding.InstrumentType) {
			v.fail(fmt.Sprintf("holding %d: invalid instrument type", i+1))
		}
		if holding.Quantity <= 0 {
			v.fail(fmt.Sprintf("holding %d: invalid quantity", i+1))
		}
	}

	return v
}

func (v *Validation) fail(msg string) {
	v.IsValid = false
	v.Errors = append(v.Errors, msg)
}
