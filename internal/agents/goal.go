package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finsight/internal/extract"
	"github.com/dvloznov/finsight/internal/models"
	"github.com/dvloznov/finsight/internal/store"
)

const goalPromptTemplate = `Draft a SMART financial goal from this request:

"%s"

Return a JSON object with exactly these fields:
{
  "title": "short goal title",
  "description": "one or two sentences",
  "targetAmount": 100000,
  "deadline": "YYYY-MM-DD",
  "milestones": ["milestone 1", "milestone 2"]
}

RETURN ONLY THE JSON OBJECT - NO MARKDOWN, NO CODE BLOCKS, NO EXPLANATIONS.`

// GoalAgent drafts financial goals from free-form requests and persists them.
type GoalAgent struct {
	gen   extract.Generator
	store store.DocumentStore
	now   func() time.Time
	log   zerolog.Logger
}

// NewGoalAgent creates a goal agent.
func NewGoalAgent(gen extract.Generator, docs store.DocumentStore, log zerolog.Logger) *GoalAgent {
	return &GoalAgent{
		gen:   gen,
		store: docs,
		now:   time.Now,
		log:   log,
	}
}

// Draft asks the model for a structured goal matching the request, decodes it
// defensively and saves it to the user's goals collection.
func (g *GoalAgent) Draft(ctx context.Context, userID, request string) (*models.Goal, error) {
	prompt := fmt.Sprintf(goalPromptTemplate, strings.TrimSpace(request))

	raw, err := g.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("goal generation: %w", err)
	}

	goal, err := extract.DecodeGoal(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding goal: %w", err)
	}
	goal.CreatedAt = g.now().UTC()

	if _, err := g.store.Insert(ctx, userID, store.CollectionGoals, goal); err != nil {
		return nil, fmt.Errorf("saving goal: %w", err)
	}

	g.log.Info().Str("user_id", userID).Str("title", goal.Title).Msg("Goal drafted")

	return goal, nil
}
