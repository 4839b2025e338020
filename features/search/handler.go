package search

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"orion/internal/middleware"
	"orion/internal/orierr"
)

// Handler binds the Engine to GET /search and GET /algorithms.
type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("user_id")
	query := q.Get("query")
	algorithm := q.Get("algorithm")
	if algorithm == "" {
		algorithm = AlgorithmCosine
	}

	limit := 10
	if l := q.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	if userID == "" || query == "" {
		h.writeError(r.Context(), w, "BAD_REQUEST", "user_id and query are required", http.StatusBadRequest)
		return
	}

	resp, err := h.engine.Search(r.Context(), userID, query, algorithm, limit)
	if err != nil {
		h.writeError(r.Context(), w, errorCode(err), err.Error(), orierr.StatusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"data": resp}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Algorithms(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"data": Algorithms}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func errorCode(err error) string {
	switch orierr.StatusFor(err) {
	case http.StatusNotFound:
		return "EMPTY_LIBRARY"
	case http.StatusBadRequest:
		return "UNKNOWN_ALGORITHM"
	default:
		return "INTERNAL_ERROR"
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
