package inventory

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/timelessservices/daye-jewellery/internal/domain"
)

type Handler struct {
	repo   *Repository
	logger *slog.Logger
}

func NewHandler(repo *Repository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

func (h *Handler) HandleListStock(w http.ResponseWriter, r *http.Request) {
	records, err := h.repo.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list stock", "error", err)
		h.writeFailure(w, err)
		return
	}

	h.logger.Info("stock listed", "count", len(records))
	h.writeJSON(w, http.StatusOK, records)
}

func (h *Handler) HandleGetStock(w http.ResponseWriter, r *http.Request) {
	jewelleryID := r.PathValue("jewelleryId")
	size := r.PathValue("size")
	if jewelleryID == "" {
		h.writeFailure(w, &InvalidOperationError{Index: 0, Reason: "missing jewellery id"})
		return
	}

	rec, err := h.repo.GetRecord(r.Context(), jewelleryID, size)
	if err != nil {
		h.logger.Error("failed to get stock", "error", err, "jewellery_id", jewelleryID, "size", size)
		h.writeFailure(w, err)
		return
	}

	if rec == nil {
		h.writeFailure(w, ErrNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, rec)
}

type adjustResponse struct {
	Success bool          `json:"success"`
	Item    *AdjustResult `json:"item"`
}

func (h *Handler) HandleAdjust(w http.ResponseWriter, r *http.Request) {
	var op domain.StockOperation
	if err := json.NewDecoder(r.Body).Decode(&op); err != nil {
		h.writeFailure(w, &InvalidOperationError{Index: 0, Reason: "invalid request body"})
		return
	}

	result, err := h.repo.Adjust(r.Context(), op)
	if err != nil {
		h.logger.Error("stock adjustment failed", "error", err,
			"jewellery_id", op.JewelleryID, "size", op.Size, "adjustment", op.Adjustment)
		h.writeFailure(w, err)
		return
	}

	h.logger.Info("stock adjusted",
		"jewellery_id", op.JewelleryID, "size", op.Size,
		"adjustment", op.Adjustment, "in_stock", result.After.InStock)
	h.writeJSON(w, http.StatusOK, adjustResponse{Success: true, Item: result})
}

type batchAdjustRequest struct {
	Operations []domain.StockOperation `json:"operations"`
}

type batchAdjustResponse struct {
	Success bool           `json:"success"`
	Results []AdjustResult `json:"results"`
}

func (h *Handler) HandleAdjustBatch(w http.ResponseWriter, r *http.Request) {
	var req batchAdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeFailure(w, &InvalidOperationError{Index: 0, Reason: "invalid request body"})
		return
	}

	results, err := h.repo.AdjustBatch(r.Context(), req.Operations)
	if err != nil {
		h.logger.Error("batch stock adjustment failed", "error", err, "operations", len(req.Operations))
		h.writeFailure(w, err)
		return
	}

	h.logger.Info("batch stock adjusted", "operations", len(results))
	h.writeJSON(w, http.StatusOK, batchAdjustResponse{Success: true, Results: results})
}

type failureResponse struct {
	Success      bool   `json:"success"`
	Error        string `json:"error"`
	Status       string `json:"status"`
	CurrentStock *int   `json:"currentStock,omitempty"`
}

// writeFailure maps service errors onto the stable failure shape shared by
// every endpoint: success:false, a human-readable message, and a status
// classification.
func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	resp := failureResponse{Error: err.Error(), Status: "internal"}
	code := http.StatusInternalServerError

	var insufficient *InsufficientStockError
	var invalid *InvalidOperationError
	switch {
	case errors.As(err, &insufficient):
		code = http.StatusConflict
		resp.Status = "insufficient-stock"
		resp.CurrentStock = &insufficient.CurrentStock
	case errors.As(err, &invalid), errors.Is(err, ErrInvalidBatchSize):
		code = http.StatusBadRequest
		resp.Status = "invalid-input"
	case errors.Is(err, ErrNotFound):
		code = http.StatusNotFound
		resp.Status = "not-found"
	case errors.Is(err, ErrConflict):
		code = http.StatusConflict
		resp.Status = "conflict"
	default:
		resp.Error = "internal server error"
	}

	h.writeJSON(w, code, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
