package agents

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finsight/internal/store"
)

type scriptedGenerator struct {
	reply   string
	prompts []string
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.reply, nil
}

type memoryStore struct {
	docs    map[string][]store.Document
	inserts []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{docs: map[string][]store.Document{}}
}

func (s *memoryStore) Insert(ctx context.Context, userID, collection string, record interface{}) (string, error) {
	id := fmt.Sprintf("doc-%d", len(s.inserts)+1)
	s.inserts = append(s.inserts, collection)
	s.docs[collection] = append(s.docs[collection], store.Document{ID: id})
	return id, nil
}

func (s *memoryStore) List(ctx context.Context, userID, collection string, opts store.ListOptions) ([]store.Document, error) {
	return s.docs[collection], nil
}

func TestChatGroundsReplyInStoredRecords(t *testing.T) {
	gen := &scriptedGenerator{reply: "You spent 500 on food."}
	docs := newMemoryStore()
	docs.docs[store.CollectionBankAccounts] = []store.Document{
		{ID: "a1", Data: map[string]interface{}{"bankName": "SBI", "currentBalance": 50000.0}},
	}
	docs.docs[store.CollectionChatHistory] = []store.Document{
		{ID: "m2", Data: map[string]interface{}{"role": "assistant", "message": "Hello!"}},
		{ID: "m1", Data: map[string]interface{}{"role": "user", "message": "Hi"}},
	}

	agent := NewChatAgent(gen, docs, nil, zerolog.Nop())

	resp, err := agent.Chat(context.Background(), "user-1", "How much did I spend?")

	require.NoError(t, err)
	assert.Equal(t, "You spent 500 on food.", resp.Reply)
	assert.Nil(t, resp.Goal)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "SBI")
	assert.Contains(t, gen.prompts[0], "Hello!")
	assert.Contains(t, gen.prompts[0], "How much did I spend?")
}

func TestChatPersistsBothSides(t *testing.T) {
	gen := &scriptedGenerator{reply: "Sure."}
	docs := newMemoryStore()
	agent := NewChatAgent(gen, docs, nil, zerolog.Nop())

	_, err := agent.Chat(context.Background(), "user-1", "Hello")

	require.NoError(t, err)
	assert.Equal(t, []string{store.CollectionChatHistory, store.CollectionChatHistory}, docs.inserts)
}

func TestChatRoutesGoalRequests(t *testing.T) {
	goalJSON := `{"title": "Emergency Fund", "targetAmount": 300000, "deadline": "2025-12-31", "milestones": ["Save 100k"]}`
	gen := &scriptedGenerator{reply: goalJSON}
	docs := newMemoryStore()
	goals := NewGoalAgent(gen, docs, zerolog.Nop())
	agent := NewChatAgent(gen, docs, goals, zerolog.Nop())

	resp, err := agent.Chat(context.Background(), "user-1", "I want a goal to save for emergencies")

	require.NoError(t, err)
	require.NotNil(t, resp.Goal)
	assert.Equal(t, "Emergency Fund", resp.Goal.Title)
	assert.Equal(t, 300000.0, resp.Goal.TargetAmount)
	assert.Contains(t, docs.inserts, store.CollectionGoals)
}

func TestGoalDraftDefensiveDecoding(t *testing.T) {
	// Fenced output with a quoted amount still decodes.
	gen := &scriptedGenerator{reply: "```json\n{\"title\": \"Car\", \"targetAmount\": \"800000\"}\n```"}
	docs := newMemoryStore()
	agent := NewGoalAgent(gen, docs, zerolog.Nop())
	agent.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	goal, err := agent.Draft(context.Background(), "user-1", "buy a car")

	require.NoError(t, err)
	assert.Equal(t, "Car", goal.Title)
	assert.Equal(t, 800000.0, goal.TargetAmount)
	assert.Equal(t, "active", goal.Status)
	assert.False(t, goal.CreatedAt.IsZero())
}

func TestWantsGoal(t *testing.T) {
	assert.True(t, wantsGoal("Set a GOAL for me"))
	assert.True(t, wantsGoal("I am saving for a house"))
	assert.False(t, wantsGoal("How much did I spend on food?"))
}
