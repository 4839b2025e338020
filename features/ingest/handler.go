package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"orion/internal/middleware"
	"orion/internal/orierr"
)

// Handler binds the Upload Gate to POST /ingest.
type Handler struct {
	gate        *Gate
	maxFileSize int64
}

func NewHandler(gate *Gate, maxFileSize int64) *Handler {
	return &Handler{gate: gate, maxFileSize: maxFileSize}
}

// Ingest handles multipart/form-data uploads: field "file" (required),
// "user_id" (required), "description" (optional, unused by the core
// engine but accepted for forward compatibility).
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+(1<<20))

	if err := r.ParseMultipartForm(32 << 10); err != nil {
		h.writeError(r.Context(), w, "BAD_REQUEST", "request too large or malformed", http.StatusRequestEntityTooLarge)
		return
	}

	userID := r.FormValue("user_id")
	if userID == "" {
		h.writeError(r.Context(), w, "BAD_REQUEST", "user_id is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(r.Context(), w, "BAD_REQUEST", "unable to retrieve file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	docID, err := h.gate.Accept(r.Context(), userID, header.Filename, file)
	if err != nil {
		h.writeError(r.Context(), w, errorCode(err), err.Error(), orierr.StatusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"data": map[string]string{"document_id": docID, "status": "queued"},
	}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func errorCode(err error) string {
	switch orierr.StatusFor(err) {
	case http.StatusRequestEntityTooLarge:
		return "TOO_LARGE"
	case http.StatusBadRequest:
		return "BAD_REQUEST"
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
