package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/timelessservices/daye-jewellery/internal/cart"
	"github.com/timelessservices/daye-jewellery/internal/domain"
	"github.com/timelessservices/daye-jewellery/internal/inventory"
)

var ErrInvalidOrder = errors.New("invalid order")

// StockAdjuster is the batch entry point of the stock adjustment service.
type StockAdjuster interface {
	AdjustBatch(ctx context.Context, ops []domain.StockOperation) ([]inventory.AdjustResult, error)
}

// EventPublisher publishes order lifecycle events. A nil publisher
// disables events.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Handler struct {
	repo     *Repository
	stock    StockAdjuster
	producer EventPublisher
	logger   *slog.Logger
}

func NewHandler(repo *Repository, stock StockAdjuster, producer EventPublisher, logger *slog.Logger) *Handler {
	return &Handler{
		repo:     repo,
		stock:    stock,
		producer: producer,
		logger:   logger,
	}
}

type createOrderRequest struct {
	Customer domain.Customer        `json:"customer"`
	Shipping domain.ShippingAddress `json:"shipping"`
	Cart     json.RawMessage        `json:"cart"`
}

type createOrderResponse struct {
	Success      bool            `json:"success"`
	OrderID      string          `json:"orderId"`
	Total        decimal.Decimal `json:"total"`
	StockUpdated bool            `json:"stockUpdated"`
}

// HandleCreate runs the order creation flow: normalize the cart into line
// items, persist the header, persist the line items, then decrement stock
// through the batch adjustment service. A stock failure does not fail the
// order; it is logged and reported through the stockUpdated flag, and the
// reconciliation worker picks it up from the published event.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeFailure(w, fmt.Errorf("%w: invalid request body", ErrInvalidOrder))
		return
	}

	items, entries, err := normalizeCart(req.Cart)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	if err := validateOrder(req, items); err != nil {
		h.writeFailure(w, err)
		return
	}

	order := &domain.Order{
		ID:        uuid.New().String(),
		Customer:  req.Customer,
		Shipping:  req.Shipping,
		Items:     items,
		Total:     cart.Total(entries),
		Status:    domain.OrderStatusCreated,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.repo.CreateHeader(r.Context(), order); err != nil {
		h.logger.Error("failed to create order header", "error", err)
		h.writeFailure(w, err)
		return
	}

	if err := h.repo.CreateLineItems(r.Context(), order.ID, order.Items); err != nil {
		h.logger.Error("failed to create order line items", "error", err, "order_id", order.ID)
		h.writeFailure(w, err)
		return
	}

	stockUpdated := h.decrementStock(r.Context(), order)

	if h.producer != nil {
		event := domain.OrderCreatedEvent{
			OrderID:       order.ID,
			CustomerEmail: order.Customer.Email,
			Items:         order.Items,
			StockUpdated:  stockUpdated,
			Timestamp:     order.CreatedAt,
		}
		if err := h.producer.Publish(r.Context(), order.ID, event); err != nil {
			h.logger.Error("failed to publish order created event", "error", err, "order_id", order.ID)
		}
	}

	h.logger.Info("order created",
		"order_id", order.ID, "items", len(order.Items),
		"total", order.Total, "stock_updated", stockUpdated)
	h.writeJSON(w, http.StatusCreated, createOrderResponse{
		Success:      true,
		OrderID:      order.ID,
		Total:        order.Total,
		StockUpdated: stockUpdated,
	})
}

// decrementStock derives one sale operation per line item and submits them
// as one batch. Failure here is deliberate partial success for the order.
func (h *Handler) decrementStock(ctx context.Context, order *domain.Order) bool {
	ops := make([]domain.StockOperation, 0, len(order.Items))
	for _, item := range order.Items {
		ops = append(ops, domain.StockOperation{
			JewelleryID: item.JewelleryID,
			Size:        item.Size,
			Adjustment:  -item.Quantity,
			Kind:        domain.StockSale,
		})
	}

	if _, err := h.stock.AdjustBatch(ctx, ops); err != nil {
		h.logger.Error("stock decrement failed, order placed without reconciled stock",
			"error", err, "order_id", order.ID)
		return false
	}
	return true
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeFailure(w, fmt.Errorf("%w: missing order id", ErrInvalidOrder))
		return
	}

	order, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeFailure(w, err)
		return
	}

	if order == nil {
		h.writeFailure(w, errOrderNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	orderList, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		h.writeFailure(w, err)
		return
	}

	h.logger.Info("orders listed", "count", len(orderList))
	h.writeJSON(w, http.StatusOK, orderList)
}

func normalizeCart(raw json.RawMessage) ([]domain.OrderLineItem, []domain.CartEntry, error) {
	if len(raw) == 0 {
		return nil, nil, fmt.Errorf("%w: missing cart", ErrInvalidOrder)
	}
	parsed, err := cart.ParseCart(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	entries := cart.Flatten(parsed)
	return cart.DeriveOrderItems(entries), entries, nil
}

func validateOrder(req createOrderRequest, items []domain.OrderLineItem) error {
	switch {
	case req.Customer.Name == "" && req.Customer.Email == "":
		return fmt.Errorf("%w: missing customer details", ErrInvalidOrder)
	case req.Shipping.Line1 == "":
		return fmt.Errorf("%w: missing shipping address", ErrInvalidOrder)
	case len(items) == 0:
		return fmt.Errorf("%w: cart has no orderable items", ErrInvalidOrder)
	}
	return nil
}

var errOrderNotFound = errors.New("order not found")

type failureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Status  string `json:"status"`
}

func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	resp := failureResponse{Error: err.Error(), Status: "internal"}
	code := http.StatusInternalServerError

	switch {
	case errors.Is(err, ErrInvalidOrder):
		code = http.StatusBadRequest
		resp.Status = "invalid-input"
	case errors.Is(err, errOrderNotFound):
		code = http.StatusNotFound
		resp.Status = "not-found"
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
