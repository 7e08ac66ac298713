package conversation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/bme-companion/pkg/logging"
)

const maxChatBodyBytes = 1 << 20

// ChatRequest is the POST /api/chat body.
type ChatRequest struct {
	ConversationID string             `json:"conversationId"`
	History        []ChatMessage      `json:"history"`
	Metrics        *MetricsSnapshot   `json:"metrics,omitempty"`
	MetricsState   *MetricsState      `json:"metricsState,omitempty"`
	Reflections    *ReflectionContext `json:"reflections,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Handler wires HTTP requests to the conversation service.
type Handler struct {
	service Service
	logger  *logging.Logger
}

// NewHandler creates a conversation handler.
func NewHandler(service Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("conversation: handler requires a service")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Chat handles POST /api/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode chat request", "error", err)
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}
	if req.Metrics != nil {
		normalized := req.Metrics.Normalize()
		req.Metrics = &normalized
	}

	resp, err := h.service.HandleTurn(r.Context(), TurnRequest{
		ConversationID: req.ConversationID,
		History:        req.History,
		PriorMetrics:   req.Metrics,
		MetricsState:   req.MetricsState,
		Reflection:     req.Reflections,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidHistory) {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid conversation history", Details: err.Error()})
			return
		}
		h.logger.Error("failed to handle chat turn", "conversation_id", req.ConversationID, "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to generate response", Details: err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
