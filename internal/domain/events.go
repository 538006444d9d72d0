package domain

import "time"

// OrderCreatedEvent is published after an order is persisted. StockUpdated
// reports whether the batch stock decrement completed; the reconciliation
// worker retries orders where it did not.
type OrderCreatedEvent struct {
	OrderID       string          `json:"order_id"`
	CustomerEmail string          `json:"customer_email"`
	Items         []OrderLineItem `json:"items"`
	StockUpdated  bool            `json:"stock_updated"`
	Timestamp     time.Time       `json:"timestamp"`
}
