//go:build integration

package test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/timelessservices/daye-jewellery/internal/domain"
	"github.com/timelessservices/daye-jewellery/internal/inventory"
	"github.com/timelessservices/daye-jewellery/internal/messaging"
	"github.com/timelessservices/daye-jewellery/internal/orders"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type createResponse struct {
	Success      bool            `json:"success"`
	OrderID      string          `json:"orderId"`
	Total        decimal.Decimal `json:"total"`
	StockUpdated bool            `json:"stockUpdated"`
}

func TestOrderCreationFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := DBWithSchema(pg.ConnStr, "shop")
	if err != nil {
		t.Fatalf("failed to open DB: %v", err)
	}
	defer func() { _ = db.Close() }()

	ordersRepo := orders.NewRepository(db)
	inventoryRepo := inventory.NewRepository(db)
	handler := orders.NewHandler(ordersRepo, inventoryRepo, nil, quietLogger())

	reqBody := `{
		"customer": {"name": "Daye", "email": "daye@example.com"},
		"shipping": {"line1": "1 Jewel St", "city": "London", "postcode": "E1 6AN", "country": "GB"},
		"cart": {
			"single": {"RING-SOL_9": {"price": "80.00", "quantity": 2}},
			"set": {
				"GIFT": {
					"setPrice": 150,
					"quantity": 1,
					"members": [
						{"jewelleryId": "RING-SOL", "size": "6", "quantity": 1},
						{"jewelleryId": "NECK-PRL", "quantity": 1}
					]
				}
			}
		}
	}`
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.HandleCreate(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var created createResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if !created.Success {
		t.Fatal("expected success=true")
	}
	if created.OrderID == "" {
		t.Fatal("expected order ID to be set")
	}
	if !created.StockUpdated {
		t.Fatal("expected stockUpdated=true")
	}
	if want := decimal.NewFromInt(310); !created.Total.Equal(want) {
		t.Fatalf("expected total %s, got %s", want, created.Total)
	}

	order, err := ordersRepo.GetByID(ctx, created.OrderID)
	if err != nil {
		t.Fatalf("failed to fetch order from DB: %v", err)
	}
	if order == nil {
		t.Fatal("order not found in database")
	}
	if len(order.Items) != 3 {
		t.Fatalf("expected 3 line items, got %d", len(order.Items))
	}
	if order.Status != domain.OrderStatusCreated {
		t.Fatalf("expected status %s, got %s", domain.OrderStatusCreated, order.Status)
	}

	checks := []struct {
		jewelleryID, size string
		inStock, sold     int
	}{
		{"RING-SOL", "9", 98, 2},
		{"RING-SOL", "6", 99, 1},
		{"NECK-PRL", "", 39, 1},
	}
	for _, c := range checks {
		rec, err := inventoryRepo.GetRecord(ctx, c.jewelleryID, c.size)
		if err != nil {
			t.Fatalf("failed to read stock for %s/%s: %v", c.jewelleryID, c.size, err)
		}
		if rec == nil {
			t.Fatalf("record %s/%s not found", c.jewelleryID, c.size)
		}
		if rec.InStock != c.inStock || rec.AmountSold != c.sold {
			t.Fatalf("%s size %q: expected stock %d sold %d, got %d/%d",
				c.jewelleryID, c.size, c.inStock, c.sold, rec.InStock, rec.AmountSold)
		}
	}
}

type failingAdjuster struct{}

func (failingAdjuster) AdjustBatch(ctx context.Context, ops []domain.StockOperation) ([]inventory.AdjustResult, error) {
	return nil, errors.New("inventory unavailable")
}

func TestOrderPlacedWhenStockDecrementFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := DBWithSchema(pg.ConnStr, "shop")
	if err != nil {
		t.Fatalf("failed to open DB: %v", err)
	}
	defer func() { _ = db.Close() }()

	ordersRepo := orders.NewRepository(db)
	handler := orders.NewHandler(ordersRepo, failingAdjuster{}, nil, quietLogger())

	reqBody := `{
		"customer": {"name": "Daye", "email": "daye@example.com"},
		"shipping": {"line1": "1 Jewel St"},
		"cart": {"single": {"RING-SOL_9": {"price": 80, "quantity": 1}}}
	}`
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.HandleCreate(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var created createResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if !created.Success {
		t.Fatal("expected success=true despite the stock failure")
	}
	if created.StockUpdated {
		t.Fatal("expected stockUpdated=false")
	}

	order, err := ordersRepo.GetByID(ctx, created.OrderID)
	if err != nil {
		t.Fatalf("failed to fetch order: %v", err)
	}
	if order == nil {
		t.Fatal("order not persisted")
	}
	if len(order.Items) != 1 {
		t.Fatalf("expected 1 line item, got %d", len(order.Items))
	}
}

func TestBatchAdjustAllOrNothing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := DBWithSchema(pg.ConnStr, "shop")
	if err != nil {
		t.Fatalf("failed to open DB: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := inventory.NewRepository(db)

	_, err = repo.AdjustBatch(ctx, []domain.StockOperation{
		{JewelleryID: "RING-SOL", Size: "7", Adjustment: -10, Kind: domain.StockSale},
		{JewelleryID: "BRAC-TEN", Size: "", Adjustment: -9999, Kind: domain.StockSale},
	})
	if err == nil {
		t.Fatal("expected the batch to fail")
	}

	var insufficient *inventory.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.JewelleryID != "BRAC-TEN" {
		t.Fatalf("expected BRAC-TEN to be reported, got %s", insufficient.JewelleryID)
	}
	if insufficient.CurrentStock != 25 {
		t.Fatalf("expected current stock 25, got %d", insufficient.CurrentStock)
	}

	rec, err := repo.GetRecord(ctx, "RING-SOL", "7")
	if err != nil {
		t.Fatalf("failed to read stock: %v", err)
	}
	if rec.InStock != 100 || rec.AmountSold != 0 {
		t.Fatalf("expected RING-SOL/7 untouched at 100/0, got %d/%d", rec.InStock, rec.AmountSold)
	}
}

func TestConcurrentBatchDecrements(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := DBWithSchema(pg.ConnStr, "shop")
	if err != nil {
		t.Fatalf("failed to open DB: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := inventory.NewRepository(db)

	// BRAC-TEN starts at 25; two batches of 15 cannot both fit.
	const competitors = 2
	errs := make([]error, competitors)
	results := make([][]inventory.AdjustResult, competitors)
	var wg sync.WaitGroup
	wg.Add(competitors)
	for i := 0; i < competitors; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = repo.AdjustBatch(ctx, []domain.StockOperation{
				{JewelleryID: "BRAC-TEN", Size: "", Adjustment: -15, Kind: domain.StockSale},
			})
		}(i)
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			if winner >= 0 {
				t.Fatalf("expected exactly 1 batch to succeed, both did")
			}
			winner = i
		}
	}
	if winner < 0 {
		t.Fatalf("expected exactly 1 batch to succeed, none did (errors: %v)", errs)
	}

	rec, err := repo.GetRecord(ctx, "BRAC-TEN", "")
	if err != nil {
		t.Fatalf("failed to read stock: %v", err)
	}
	if rec.InStock != 10 {
		t.Fatalf("expected stock 10 after one decrement, got %d", rec.InStock)
	}
	if rec.AmountSold != 15 {
		t.Fatalf("expected amount sold 15, got %d", rec.AmountSold)
	}

	after := results[winner][0].After
	if after.InStock != rec.InStock || after.AmountSold != rec.AmountSold {
		t.Fatalf("winner's After snapshot %d/%d does not match the stored record %d/%d",
			after.InStock, after.AmountSold, rec.InStock, rec.AmountSold)
	}
}

func TestStockAdjustEndpoint(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := DBWithSchema(pg.ConnStr, "shop")
	if err != nil {
		t.Fatalf("failed to open DB: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := inventory.NewRepository(db)
	handler := inventory.NewHandler(repo, quietLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /stock/{jewelleryId}/{size}", handler.HandleGetStock)
	mux.HandleFunc("POST /stock/adjust", handler.HandleAdjust)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/stock/adjust", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	rec := post(`{"jewelleryId": "RING-ETR", "size": "7", "adjustment": -3, "kind": "sale"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var adjusted struct {
		Success bool                   `json:"success"`
		Item    inventory.AdjustResult `json:"item"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&adjusted); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if adjusted.Item.Before.InStock != 50 || adjusted.Item.After.InStock != 47 {
		t.Fatalf("expected stock 50 -> 47, got %d -> %d", adjusted.Item.Before.InStock, adjusted.Item.After.InStock)
	}
	if adjusted.Item.After.AmountSold != 3 {
		t.Fatalf("expected amount sold 3, got %d", adjusted.Item.After.AmountSold)
	}

	rec = post(`{"jewelleryId": "RING-ETR", "size": "7", "adjustment": 10, "kind": "intake"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if err := json.NewDecoder(rec.Body).Decode(&adjusted); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if adjusted.Item.After.InStock != 57 {
		t.Fatalf("expected stock 57 after intake, got %d", adjusted.Item.After.InStock)
	}
	if adjusted.Item.After.AmountSold != 3 {
		t.Fatalf("intake must not grow amount sold, got %d", adjusted.Item.After.AmountSold)
	}

	rec = post(`{"jewelleryId": "RING-ETR", "size": "7", "adjustment": -9999, "kind": "sale"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", rec.Code, rec.Body.String())
	}
	var failure struct {
		Success      bool   `json:"success"`
		Status       string `json:"status"`
		CurrentStock *int   `json:"currentStock"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&failure); err != nil {
		t.Fatalf("failed to decode failure: %v", err)
	}
	if failure.Status != "insufficient-stock" {
		t.Fatalf("expected status insufficient-stock, got %s", failure.Status)
	}
	if failure.CurrentStock == nil || *failure.CurrentStock != 57 {
		t.Fatalf("expected currentStock 57, got %v", failure.CurrentStock)
	}

	rec = post(`{"jewelleryId": "NO-SUCH-ITEM", "size": "1", "adjustment": -1, "kind": "sale"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestOrderEventRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	brokers, cleanup := SetupKafka(ctx, t)
	defer cleanup()

	producer := messaging.NewProducer(brokers, "order.created")
	defer func() { _ = producer.Close() }()

	event := domain.OrderCreatedEvent{
		OrderID:       "order-it-1",
		CustomerEmail: "daye@example.com",
		Items: []domain.OrderLineItem{
			{JewelleryID: "RING-SOL", Size: "9", Quantity: 1, EffectivePrice: decimal.NewFromInt(80)},
		},
		StockUpdated: false,
		Timestamp:    time.Now().UTC(),
	}
	if err := producer.Publish(ctx, event.OrderID, event); err != nil {
		t.Fatalf("failed to publish event: %v", err)
	}

	consumer := messaging.NewConsumer(brokers, "order.created", "integration-test",
		messaging.WithStartOffset(kafka.FirstOffset))
	defer func() { _ = consumer.Close() }()

	received := make(chan []byte, 1)
	consumeCtx, stopConsuming := context.WithCancel(ctx)
	defer stopConsuming()

	go func() {
		_ = consumer.Consume(consumeCtx, func(ctx context.Context, payload []byte) error {
			received <- payload
			return nil
		})
	}()

	select {
	case payload := <-received:
		var got domain.OrderCreatedEvent
		if err := json.Unmarshal(payload, &got); err != nil {
			t.Fatalf("failed to unmarshal event: %v", err)
		}
		if got.OrderID != event.OrderID {
			t.Fatalf("expected order id %s, got %s", event.OrderID, got.OrderID)
		}
		if got.StockUpdated {
			t.Fatal("expected stock_updated=false")
		}
		if len(got.Items) != 1 {
			t.Fatalf("expected 1 item, got %d", len(got.Items))
		}
	case <-time.After(time.Minute):
		t.Fatal("timed out waiting for the event")
	}
}
