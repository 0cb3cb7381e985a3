package extract

import (
	"encoding/json"
	"fmt"

	"github.com/dvloznov/finsight/internal/models"
)

// DecodeGoal parses a model-drafted goal out of raw completion text. The same
// fence-stripping and field coercion used for statement extraction applies:
// every field may be missing or mistyped and gets a safe default.
func DecodeGoal(raw string) (*models.Goal, error) {
	clean := stripCodeFences(raw)

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(clean), &decoded); err != nil {
		return nil, &Error{Kind: KindMalformedResponse, Err: fmt.Errorf("decoding goal draft: %w", err)}
	}

	r := record(decoded)
	goal := &models.Goal{
		Title:        r.stringOr("title", "Financial Goal"),
		Description:  r.stringOr("description", ""),
		TargetAmount: r.numberOr("targetAmount", 0),
		Deadline:     r.stringOr("deadline", ""),
		Status:       "active",
	}

	if v, ok := decoded["milestones"]; ok {
		if arr, ok := v.([]interface{}); ok {
			for _, m := range arr {
				if s, ok := m.(string); ok && s != "" {
					goal.Milestones = append(goal.Milestones, s)
				}
			}
		}
	}

	return goal, nil
}
