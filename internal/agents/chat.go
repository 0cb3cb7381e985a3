// Package agents implements the conversational surfaces: a financial chat
// assistant grounded in the user's stored records, and a goal-drafting agent.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finsight/internal/extract"
	"github.com/dvloznov/finsight/internal/models"
	"github.com/dvloznov/finsight/internal/store"
)

// historyLimit is how many stored messages are replayed into the prompt.
const historyLimit = 10

const chatSystemPrompt = `You are a personal finance assistant. Answer questions
about the user's accounts, spending and investments using the financial context
provided. Be concise and practical. Amounts are in INR unless stated otherwise.`

// ChatAgent answers user questions with their financial records as context
// and persists both sides of every exchange.
type ChatAgent struct {
	gen   extract.Generator
	store store.DocumentStore
	goals *GoalAgent
	now   func() time.Time
	log   zerolog.Logger
}

// NewChatAgent creates a chat agent. goals may be nil to disable goal drafting.
func NewChatAgent(gen extract.Generator, docs store.DocumentStore, goals *GoalAgent, log zerolog.Logger) *ChatAgent {
	return &ChatAgent{
		gen:   gen,
		store: docs,
		goals: goals,
		now:   time.Now,
		log:   log,
	}
}

// ChatResponse is one assistant reply, with the drafted goal attached when the
// message asked for one.
type ChatResponse struct {
	Reply string       `json:"reply"`
	Goal  *models.Goal `json:"goal,omitempty"`
}

// Chat answers one user message. The reply is grounded in the user's stored
// records and the last few messages of conversation history.
func (a *ChatAgent) Chat(ctx context.Context, userID, message string) (*ChatResponse, error) {
	resp := &ChatResponse{}

	if a.goals != nil && wantsGoal(message) {
		goal, err := a.goals.Draft(ctx, userID, message)
		if err != nil {
			a.log.Warn().Err(err).Str("user_id", userID).Msg("Goal drafting failed")
		} else {
			resp.Goal = goal
		}
	}

	prompt, err := a.buildPrompt(ctx, userID, message)
	if err != nil {
		return nil, fmt.Errorf("building chat prompt: %w", err)
	}

	reply, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("chat generation: %w", err)
	}
	resp.Reply = strings.TrimSpace(reply)

	a.saveExchange(ctx, userID, message, resp.Reply)

	return resp, nil
}

func (a *ChatAgent) buildPrompt(ctx context.Context, userID, message string) (string, error) {
	var sb strings.Builder
	sb.WriteString(chatSystemPrompt)
	sb.WriteString("\n\nFINANCIAL CONTEXT:\n")

	finContext, err := a.financialContext(ctx, userID)
	if err != nil {
		return "", err
	}
	sb.WriteString(finContext)

	history, err := a.store.List(ctx, userID, store.CollectionChatHistory, store.ListOptions{
		OrderBy: "timestamp",
		Desc:    true,
		Limit:   historyLimit,
	})
	if err != nil {
		a.log.Warn().Err(err).Str("user_id", userID).Msg("Chat history unavailable")
	}

	if len(history) > 0 {
		sb.WriteString("\nCONVERSATION SO FAR:\n")
		// History arrives newest-first; replay oldest-first.
		for i := len(history) - 1; i >= 0; i-- {
			data := history[i].Data
			role, _ := data["role"].(string)
			text, _ := data["message"].(string)
			fmt.Fprintf(&sb, "%s: %s\n", role, text)
		}
	}

	sb.WriteString("\nuser: ")
	sb.WriteString(message)
	sb.WriteString("\nassistant:")

	return sb.String(), nil
}

// financialContext summarizes the user's stored records as compact JSON.
func (a *ChatAgent) financialContext(ctx context.Context, userID string) (string, error) {
	accounts, err := a.store.List(ctx, userID, store.CollectionBankAccounts, store.ListOptions{})
	if err != nil {
		return "", fmt.Errorf("listing bank accounts: %w", err)
	}

	transactions, err := a.store.List(ctx, userID, store.CollectionTransactions, store.ListOptions{
		OrderBy: "date",
		Desc:    true,
		Limit:   20,
	})
	if err != nil {
		return "", fmt.Errorf("listing transactions: %w", err)
	}

	holdings, err := a.store.List(ctx, userID, store.CollectionHoldings, store.ListOptions{})
	if err != nil {
		return "", fmt.Errorf("listing holdings: %w", err)
	}

	summary := map[string]interface{}{
		"bankAccounts":       docsData(accounts),
		"recentTransactions": docsData(transactions),
		"holdings":           docsData(holdings),
	}

	encoded, err := json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("encoding financial context: %w", err)
	}
	return string(encoded), nil
}

func (a *ChatAgent) saveExchange(ctx context.Context, userID, userMsg, reply string) {
	now := a.now().UTC()
	messages := []models.ChatMessage{
		{Role: "user", Message: userMsg, Timestamp: now},
		{Role: "assistant", Message: reply, Timestamp: now},
	}

	for i := range messages {
		if _, err := a.store.Insert(ctx, userID, store.CollectionChatHistory, &messages[i]); err != nil {
			a.log.Warn().Err(err).Str("user_id", userID).Msg("Chat message not persisted")
		}
	}
}

func docsData(docs []store.Document) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Data)
	}
	return out
}

// wantsGoal reports whether the message is asking to set up a financial goal.
func wantsGoal(message string) bool {
	m := strings.ToLower(message)
	for _, kw := range []string{"goal", "save for", "saving for", "target of"} {
		if strings.Contains(m, kw) {
			return true
		}
	}
	return false
}
