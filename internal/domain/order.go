package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderLineItem is a fully resolved unit of an order: one jewellery id,
// one size, one quantity, one effective price.
type OrderLineItem struct {
	JewelleryID    string          `json:"jewelleryId"`
	Size           string          `json:"size"`
	Quantity       int             `json:"quantity"`
	EffectivePrice decimal.Decimal `json:"effectivePrice"`
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type ShippingAddress struct {
	Line1    string `json:"line1"`
	City     string `json:"city"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
}

type Order struct {
	ID        string          `json:"id"`
	Customer  Customer        `json:"customer"`
	Shipping  ShippingAddress `json:"shipping"`
	Items     []OrderLineItem `json:"items"`
	Total     decimal.Decimal `json:"total"`
	Status    OrderStatus     `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}
