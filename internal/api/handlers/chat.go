package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finsight/internal/agents"
	"github.com/dvloznov/finsight/internal/api/middleware"
)

// ChatHandler handles the assistant endpoint.
type ChatHandler struct {
	agent *agents.ChatAgent
	log   zerolog.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(agent *agents.ChatAgent, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{agent: agent, log: log}
}

// Chat handles POST /api/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Message == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Message is required")
		return
	}

	ctx := r.Context()
	resp, err := h.agent.Chat(ctx, middleware.UserID(ctx), req.Message)
	if err != nil {
		h.log.Error().Err(err).Msg("Chat failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Assistant is unavailable")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}
