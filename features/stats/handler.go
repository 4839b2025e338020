package stats

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"orion/internal/middleware"
	"orion/internal/orierr"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

// GetStats handles GET /stats?user_id=....
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)
	userID := r.URL.Query().Get("user_id")

	slog.InfoContext(ctx, "getting library stats", "user_id", userID, "correlationId", correlationID)

	summary, err := h.service.Get(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to compute library stats", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, errorCode(err), err.Error(), orierr.StatusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": summary}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, orierr.ErrInvalidUser):
		return "INVALID_USER"
	default:
		return "INTERNAL_ERROR"
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
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
