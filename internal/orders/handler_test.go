package orders

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Validation failures are rejected before the handler touches the
// repository, so a nil repository is safe here.
func TestHandleCreate_Validation(t *testing.T) {
	handler := NewHandler(nil, nil, nil, discardLogger())

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "malformed body",
			body: `not json`,
			want: "invalid request body",
		},
		{
			name: "missing cart",
			body: `{"customer":{"name":"Daye","email":"daye@example.com"},"shipping":{"line1":"1 Jewel St"}}`,
			want: "missing cart",
		},
		{
			name: "missing customer details",
			body: `{"shipping":{"line1":"1 Jewel St"},"cart":{"single":{"RING-SOL_9":{"price":80,"quantity":1}}}}`,
			want: "missing customer details",
		},
		{
			name: "missing shipping address",
			body: `{"customer":{"name":"Daye"},"cart":{"single":{"RING-SOL_9":{"price":80,"quantity":1}}}}`,
			want: "missing shipping address",
		},
		{
			name: "empty cart",
			body: `{"customer":{"name":"Daye"},"shipping":{"line1":"1 Jewel St"},"cart":{}}`,
			want: "no orderable items",
		},
		{
			name: "cart with invalid quantity",
			body: `{"customer":{"name":"Daye"},"shipping":{"line1":"1 Jewel St"},"cart":{"single":{"RING-SOL_9":{"price":80,"quantity":0}}}}`,
			want: "quantity",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()

			handler.HandleCreate(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}

			var resp failureResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Success {
				t.Error("expected success=false")
			}
			if resp.Status != "invalid-input" {
				t.Errorf("expected status invalid-input, got %s", resp.Status)
			}
			if !strings.Contains(resp.Error, tc.want) {
				t.Errorf("expected error containing %q, got %q", tc.want, resp.Error)
			}
		})
	}
}

func TestHandleGet_MissingID(t *testing.T) {
	handler := NewHandler(nil, nil, nil, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/orders/", nil)
	rec := httptest.NewRecorder()

	handler.HandleGet(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}

func TestNormalizeCart(t *testing.T) {
	raw := json.RawMessage(`{
		"single": {"RING-SOL_9": {"price": "80.00", "quantity": 2}},
		"set": {
			"BRIDAL": {
				"setPrice": 300,
				"quantity": 1,
				"members": [
					{"jewelleryId": "RING-SOL", "size": "6", "price": 120, "quantity": 1},
					{"jewelleryId": "NECK-PRL", "size": "0", "price": 180, "quantity": 1}
				]
			}
		}
	}`)

	items, entries, err := normalizeCart(raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 cart entries, got %d", len(entries))
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 line items, got %d", len(items))
	}

	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.EffectivePrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	want := decimal.NewFromInt(460)
	if !total.Equal(want) {
		t.Errorf("expected line item total %s, got %s", want, total)
	}
}
