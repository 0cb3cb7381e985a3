// Package store persists financial records to a per-user document store and
// reports partial failures instead of rolling back.
package store

import "context"

// Per-user collection names.
const (
	CollectionBankAccounts = "bankAccounts"
	CollectionTransactions = "transactions"
	CollectionHoldings     = "holdings"
	CollectionGoals        = "goals"
	CollectionChatHistory  = "chatHistory"
)

// Filter narrows a List query to records whose field matches the value under
// the given operator ("==", ">=", "<=", ">", "<").
type Filter struct {
	Field string
	Op    string
	Value interface{}
}

// ListOptions shapes a List query. A zero value lists everything in the
// store's default order.
type ListOptions struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Document is one stored record with its backend-assigned identifier.
type Document struct {
	ID   string                 `json:"id"`
	Data map[string]interface{} `json:"data"`
}

// DocumentStore is the per-user persistence backend. Each record lives in a
// named collection scoped to a single user; identifiers are assigned by the
// backend on insert.
type DocumentStore interface {
	Insert(ctx context.Context, userID, collection string, record interface{}) (string, error)
	List(ctx context.Context, userID, collection string, opts ListOptions) ([]Document, error)
}
