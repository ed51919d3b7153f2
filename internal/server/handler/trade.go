package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// TradeService is the part of the trade service the API uses.
type TradeService interface {
	ExecuteByID(ctx context.Context, suggestionID string, size float64) (domain.Trade, error)
	List(ctx context.Context, status domain.TradeStatus, limit int) ([]domain.Trade, error)
}

// TradeHandler serves trade execution and listing.
type TradeHandler struct {
	svc    TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(svc TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{svc: svc, logger: logger.With(slog.String("handler", "trades"))}
}

type executeRequest struct {
	Size float64 `json:"size"`
}

// Execute opens a trade from a stored suggestion. The body is optional.
// POST /api/suggestions/{id}/execute
func (h *TradeHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing suggestion id")
		return
	}

	var req executeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Size < 0 {
		writeError(w, http.StatusBadRequest, "size must be positive")
		return
	}

	trade, err := h.svc.ExecuteByID(r.Context(), id, req.Size)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, trade)
}

// ListTrades returns trades filtered by ?status=OPEN|CLOSING|CLOSED|FAILED.
// GET /api/trades
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	status := domain.TradeStatus(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))))
	switch status {
	case "", domain.TradeStatusOpen, domain.TradeStatusClosing, domain.TradeStatusClosed, domain.TradeStatusFailed:
	default:
		writeError(w, http.StatusBadRequest, "unknown status "+string(status))
		return
	}

	list, err := h.svc.List(r.Context(), status, parseLimit(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if list == nil {
		list = []domain.Trade{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"trades": list,
		"count":  len(list),
	})
}
