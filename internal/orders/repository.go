package orders

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/timelessservices/daye-jewellery/internal/domain"
	"github.com/timelessservices/daye-jewellery/internal/store"
)

type Repository struct {
	db   *sql.DB
	exec *store.Executor
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, exec: store.NewExecutor(db)}
}

// CreateHeader writes the order header as its own atomic unit.
func (r *Repository) CreateHeader(ctx context.Context, order *domain.Order) error {
	_, err := r.exec.Execute(ctx, []store.Op{
		store.GuardedWrite(`
			INSERT INTO orders (id, customer_name, customer_email, customer_phone,
				shipping_line1, shipping_city, shipping_postcode, shipping_country,
				status, total, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		`,
			order.ID, order.Customer.Name, order.Customer.Email, order.Customer.Phone,
			order.Shipping.Line1, order.Shipping.City, order.Shipping.Postcode, order.Shipping.Country,
			order.Status, order.Total, order.CreatedAt),
	})
	return err
}

// CreateLineItems writes all line items of an order as a second atomic
// unit: either every row lands or none do.
func (r *Repository) CreateLineItems(ctx context.Context, orderID string, items []domain.OrderLineItem) error {
	ops := make([]store.Op, 0, len(items))
	for _, item := range items {
		ops = append(ops, store.GuardedWrite(`
			INSERT INTO order_items (id, order_id, jewellery_id, size, quantity, effective_price)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			uuid.New().String(), orderID, item.JewelleryID, item.Size, item.Quantity, item.EffectivePrice))
	}
	_, err := r.exec.Execute(ctx, ops)
	return err
}

// GetByID reads the header and its line items in one consistent snapshot.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}

	results, err := r.exec.Execute(ctx, []store.Op{
		store.ReadOne(`
			SELECT id, customer_name, customer_email, customer_phone,
				shipping_line1, shipping_city, shipping_postcode, shipping_country,
				status, total, created_at
			FROM orders
			WHERE id = $1
		`, []any{id},
			&order.ID, &order.Customer.Name, &order.Customer.Email, &order.Customer.Phone,
			&order.Shipping.Line1, &order.Shipping.City, &order.Shipping.Postcode, &order.Shipping.Country,
			&order.Status, &order.Total, &order.CreatedAt),
		store.ReadMany(`
			SELECT jewellery_id, size, quantity, effective_price
			FROM order_items
			WHERE order_id = $1
			ORDER BY jewellery_id, size
		`, []any{id}, func(rows *sql.Rows) error {
			var item domain.OrderLineItem
			if err := rows.Scan(&item.JewelleryID, &item.Size, &item.Quantity, &item.EffectivePrice); err != nil {
				return err
			}
			order.Items = append(order.Items, item)
			return nil
		}),
	})
	if err != nil {
		return nil, err
	}

	if !results[0].Found {
		return nil, nil
	}

	return order, nil
}

func (r *Repository) List(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_name, customer_email, customer_phone,
			shipping_line1, shipping_city, shipping_postcode, shipping_country,
			status, total, created_at
		FROM orders
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.Customer.Name, &order.Customer.Email, &order.Customer.Phone,
			&order.Shipping.Line1, &order.Shipping.City, &order.Shipping.Postcode, &order.Shipping.Country,
			&order.Status, &order.Total, &order.CreatedAt); err != nil {
			return nil, err
		}
		order.Items = []domain.OrderLineItem{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, jewellery_id, size, quantity, effective_price
		FROM order_items
		WHERE order_id = ANY($1)
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var orderID string
		var item domain.OrderLineItem
		if err := itemRows.Scan(&orderID, &item.JewelleryID, &item.Size, &item.Quantity, &item.EffectivePrice); err != nil {
			return nil, err
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}
