// Package worker reconciles stock for orders whose decrement did not
// complete at creation time. Order creation deliberately succeeds even
// when the stock step fails; those orders arrive here via the
// order.created topic and are retried against the inventory service.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/timelessservices/daye-jewellery/internal/domain"
)

type ReconciliationHandler struct {
	inventoryServiceURL string
	httpClient          *http.Client
	logger              *slog.Logger
}

func NewReconciliationHandler(inventoryServiceURL string, client *http.Client, logger *slog.Logger) *ReconciliationHandler {
	return &ReconciliationHandler{
		inventoryServiceURL: inventoryServiceURL,
		httpClient:          client,
		logger:              logger,
	}
}

type batchAdjustRequest struct {
	Operations []domain.StockOperation `json:"operations"`
}

// Handle retries the batch stock decrement for orders that were placed
// without it. A definitive rejection (insufficient stock, bad request) is
// terminal and only logged; a lost concurrency race, transport faults,
// and server faults propagate so the message is redelivered.
func (h *ReconciliationHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order created event: %w", err)
	}

	if event.StockUpdated {
		h.logger.Info("stock already reconciled", "order_id", event.OrderID)
		return nil
	}

	h.logger.Info("retrying stock decrement", "order_id", event.OrderID, "items", len(event.Items))

	ops := make([]domain.StockOperation, 0, len(event.Items))
	for _, item := range event.Items {
		ops = append(ops, domain.StockOperation{
			JewelleryID: item.JewelleryID,
			Size:        item.Size,
			Adjustment:  -item.Quantity,
			Kind:        domain.StockSale,
		})
	}

	code, failureStatus, err := h.postBatchAdjust(ctx, ops)
	if err != nil {
		return fmt.Errorf("adjust stock for order %s: %w", event.OrderID, err)
	}

	switch {
	case code == http.StatusOK:
		h.logger.Info("stock reconciled", "order_id", event.OrderID)
		return nil
	case failureStatus == "conflict":
		// The batch lost a concurrency race; the same payload can
		// succeed on a later delivery.
		return fmt.Errorf("stock reconciliation for order %s lost a concurrent update race", event.OrderID)
	case code >= 400 && code < 500:
		// The batch was rejected outright; retrying the same payload
		// cannot succeed.
		h.logger.Error("stock reconciliation rejected",
			"order_id", event.OrderID, "code", code, "status", failureStatus)
		return nil
	default:
		return fmt.Errorf("inventory service returned status %d for order %s", code, event.OrderID)
	}
}

// postBatchAdjust returns the HTTP status code and, for failures, the
// status classification from the response body.
func (h *ReconciliationHandler) postBatchAdjust(ctx context.Context, ops []domain.StockOperation) (int, string, error) {
	data, err := json.Marshal(batchAdjustRequest{Operations: ops})
	if err != nil {
		return 0, "", err
	}

	url := h.inventoryServiceURL + "/stock/adjust/batch"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		return resp.StatusCode, "", nil
	}

	var failure struct {
		Status string `json:"status"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&failure)

	return resp.StatusCode, failure.Status, nil
}
