// Package models defines the financial record types stored per user and the
// validation rules shared by the extraction pipeline and the persistence layer.
package models

import "time"

// Account types recognised on bank statements.
const (
	AccountTypeSavings = "Savings"
	AccountTypeCurrent = "Current"
	AccountTypeCredit  = "Credit"
)

// Transaction types. Exactly these two, case-sensitive; the sign of a
// transaction is carried by Type, never by the sign of Amount.
const (
	TransactionDebit  = "debit"
	TransactionCredit = "credit"
)

// Instrument types for holdings.
const (
	InstrumentMF     = "MF"
	InstrumentEquity = "Equity"
	InstrumentBond   = "Bond"
)

// DefaultCurrency is applied when a record carries no currency code.
const DefaultCurrency = "INR"

// MaskedNumberPlaceholder marks a bank account whose number could not be
// extracted.
const MaskedNumberPlaceholder = "XXXX"

// TransactionCategories is the closed set of transaction categories. Anything
// outside it is normalized to "Other".
var TransactionCategories = []string{
	"Food", "Transport", "Shopping", "Entertainment",
	"Bills", "Healthcare", "Investment", "Salary", "Other",
}

// HoldingCategories is the closed set of holding categories.
var HoldingCategories = []string{
	"Stock", "Mutual Fund", "SIP", "ETF", "Index Fund", "Debt Fund", "Equity", "Bond",
}

// BankAccount is one bank account extracted from a statement.
type BankAccount struct {
	AccountType         string    `json:"accountType" firestore:"accountType"`
	AccountNumberMasked string    `json:"accountNumberMasked" firestore:"accountNumberMasked"`
	IFSC                string    `json:"ifsc" firestore:"ifsc"`
	CurrentBalance      float64   `json:"currentBalance" firestore:"currentBalance"`
	Currency            string    `json:"currency" firestore:"currency"`
	BankName            string    `json:"bankName" firestore:"bankName"`
	CreatedAt           time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// TransactionMetadata carries free-form details about a transaction.
type TransactionMetadata struct {
	Mode      string `json:"mode" firestore:"mode"`
	Reference string `json:"reference" firestore:"reference"`
	Merchant  string `json:"merchant" firestore:"merchant"`
}

// Transaction is one statement line. Amount is always positive; Type carries
// the direction.
type Transaction struct {
	Date        time.Time           `json:"date" firestore:"date"`
	Amount      float64             `json:"amount" firestore:"amount"`
	Type        string              `json:"type" firestore:"type"`
	Description string              `json:"description" firestore:"description"`
	Category    string              `json:"category" firestore:"category"`
	Metadata    TransactionMetadata `json:"metadata" firestore:"metadata"`
	CreatedAt   time.Time           `json:"createdAt" firestore:"createdAt"`
}

// Holding is one portfolio position. The derived value fields are recomputed
// during sanitization and never trusted from the extraction source.
type Holding struct {
	InstrumentName       string    `json:"instrumentName" firestore:"instrumentName"`
	InstrumentType       string    `json:"instrumentType" firestore:"instrumentType"`
	Category             string    `json:"category" firestore:"category"`
	Quantity             float64   `json:"quantity" firestore:"quantity"`
	AverageBuyPrice      float64   `json:"averageBuyPrice" firestore:"averageBuyPrice"`
	CurrentPrice         float64   `json:"currentPrice" firestore:"currentPrice"`
	Currency             string    `json:"currency" firestore:"currency"`
	Symbol               string    `json:"symbol" firestore:"symbol"`
	ISIN                 string    `json:"isin" firestore:"isin"`
	InvestedValue        float64   `json:"investedValue" firestore:"investedValue"`
	CurrentValue         float64   `json:"currentValue" firestore:"currentValue"`
	ProfitLoss           float64   `json:"profitLoss" firestore:"profitLoss"`
	ProfitLossPercentage float64   `json:"profitLossPercentage" firestore:"profitLossPercentage"`
	CreatedAt            time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// RecomputeDerived recalculates invested/current value and profit figures from
// quantity and prices.
func (h *Holding) RecomputeDerived() {
	h.InvestedValue = h.Quantity * h.AverageBuyPrice
	h.CurrentValue = h.Quantity * h.CurrentPrice
	h.ProfitLoss = h.CurrentValue - h.InvestedValue
	if h.InvestedValue > 0 {
		h.ProfitLossPercentage = h.ProfitLoss / h.InvestedValue * 100
	} else {
		h.ProfitLossPercentage = 0
	}
}

// Goal is a drafted financial goal saved for a user.
type Goal struct {
	Title        string    `json:"title" firestore:"title"`
	Description  string    `json:"description" firestore:"description"`
	TargetAmount float64   `json:"targetAmount" firestore:"targetAmount"`
	Deadline     string    `json:"deadline" firestore:"deadline"`
	Milestones   []string  `json:"milestones" firestore:"milestones"`
	Status       string    `json:"status" firestore:"status"`
	CreatedAt    time.Time `json:"createdAt" firestore:"createdAt"`
}

// ChatMessage is one side of a stored conversation exchange.
type ChatMessage struct {
	Role      string    `json:"role" firestore:"role"`
	Message   string    `json:"message" firestore:"message"`
	Timestamp time.Time `json:"timestamp" firestore:"timestamp"`
}
