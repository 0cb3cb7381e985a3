package store

// EntityReport counts the outcome of persisting one record type.
type EntityReport struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
	IDs     []string `json:"ids"`
}

// Report aggregates persistence outcomes across all record types. Success is
// true only when not a single record failed.
type Report struct {
	BankAccounts EntityReport `json:"bankAccounts"`
	Transactions EntityReport `json:"transactions"`
	Holdings     EntityReport `json:"holdings"`
	TotalSaved   int          `json:"totalSaved"`
	TotalFailed  int          `json:"totalFailed"`
	Success      bool         `json:"success"`
}

// finalize computes the overall totals from the per-entity counts.
func (r *Report) finalize() {
	r.TotalSaved = r.BankAccounts.Success + r.Transactions.Success + r.Holdings.Success
	r.TotalFailed = r.BankAccounts.Failed + r.Transactions.Failed + r.Holdings.Failed
	r.Success = r.TotalFailed == 0
}
