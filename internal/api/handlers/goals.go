package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finsight/internal/api/middleware"
	"github.com/dvloznov/finsight/internal/models"
	"github.com/dvloznov/finsight/internal/store"
)

// GoalsHandler handles goal CRUD endpoints.
type GoalsHandler struct {
	docs store.DocumentStore
	log  zerolog.Logger
}

// NewGoalsHandler creates a goals handler.
func NewGoalsHandler(docs store.DocumentStore, log zerolog.Logger) *GoalsHandler {
	return &GoalsHandler{docs: docs, log: log}
}

// List handles GET /api/goals.
func (h *GoalsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	goals, err := h.docs.List(ctx, middleware.UserID(ctx), store.CollectionGoals, store.ListOptions{
		OrderBy: "createdAt",
		Desc:    true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list goals")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list goals")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"goals": documents(goals),
		"count": len(goals),
	})
}

// Create handles POST /api/goals.
func (h *GoalsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var goal models.Goal
	if err := json.NewDecoder(r.Body).Decode(&goal); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if goal.Title == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Title is required")
		return
	}

	if goal.Status == "" {
		goal.Status = "active"
	}
	goal.CreatedAt = time.Now().UTC()

	ctx := r.Context()
	id, err := h.docs.Insert(ctx, middleware.UserID(ctx), store.CollectionGoals, &goal)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to save goal")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save goal")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"id":   id,
		"goal": goal,
	})
}
