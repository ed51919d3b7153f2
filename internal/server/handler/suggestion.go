package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/polytrade/internal/discovery"
	"github.com/alanyoungcy/polytrade/internal/domain"
)

// SuggestionService is the part of the suggestion service the API uses.
type SuggestionService interface {
	Recent(ctx context.Context, limit int) ([]domain.Suggestion, error)
	ScanProfile(ctx context.Context, name string) (discovery.Result, error)
	ScanAll(ctx context.Context) ([]discovery.Result, error)
}

// SuggestionHandler serves suggestion listing and on-demand scans.
type SuggestionHandler struct {
	svc    SuggestionService
	logger *slog.Logger
}

// NewSuggestionHandler creates a SuggestionHandler.
func NewSuggestionHandler(svc SuggestionService, logger *slog.Logger) *SuggestionHandler {
	return &SuggestionHandler{svc: svc, logger: logger.With(slog.String("handler", "suggestions"))}
}

// ListSuggestions returns the newest stored suggestions.
// GET /api/suggestions?limit=
func (h *SuggestionHandler) ListSuggestions(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Recent(r.Context(), parseLimit(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if list == nil {
		list = []domain.Suggestion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"suggestions": list,
		"count":       len(list),
	})
}

// Scan runs one profile now, or every profile when none is named.
// POST /api/scan?profile=urgent
func (h *SuggestionHandler) Scan(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("profile"))
	if name == "" {
		results, err := h.svc.ScanAll(r.Context())
		if err != nil {
			writeDomainError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
		return
	}

	res, err := h.svc.ScanProfile(r.Context(), name)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
