package cart

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/timelessservices/daye-jewellery/internal/domain"
)

func TestParseCart(t *testing.T) {
	t.Run("parses single buckets keyed by composite id", func(t *testing.T) {
		c, err := ParseCart([]byte(`{
			"single": {
				"RING-SOL_9": {"price": 50, "quantity": 2}
			}
		}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		b, ok := c.Singles["RING-SOL_9"]
		if !ok {
			t.Fatal("expected single bucket RING-SOL_9")
		}
		if b.JewelleryID != "RING-SOL" || b.Size != "9" {
			t.Fatalf("expected RING-SOL size 9, got %s size %s", b.JewelleryID, b.Size)
		}
		if !b.Price.Equal(decimal.NewFromInt(50)) {
			t.Fatalf("expected price 50, got %s", b.Price)
		}
		if b.Quantity != 2 {
			t.Fatalf("expected quantity 2, got %d", b.Quantity)
		}
	})

	t.Run("accepts numeric ids and string prices", func(t *testing.T) {
		c, err := ParseCart([]byte(`{
			"single": {
				"1042_6": {"jewelleryId": 1042, "size": 6, "price": "129.99"}
			}
		}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		b := c.Singles["1042_6"]
		if b.JewelleryID != "1042" || b.Size != "6" {
			t.Fatalf("expected 1042 size 6, got %s size %s", b.JewelleryID, b.Size)
		}
		if !b.Price.Equal(decimal.RequireFromString("129.99")) {
			t.Fatalf("expected price 129.99, got %s", b.Price)
		}
		if b.Quantity != 1 {
			t.Fatalf("expected default quantity 1, got %d", b.Quantity)
		}
	})

	t.Run("resolves set price through the alias chain", func(t *testing.T) {
		c, err := ParseCart([]byte(`{
			"set": {
				"BRIDAL": {
					"setPrice": 200,
					"name": "Bridal Collection",
					"quantity": 1,
					"items": [
						{"jewelleryId": "RING-SOL", "size": "7", "price": 120, "quantity": 1},
						{"jewelleryId": "NECK-PRL", "price": 80, "quantity": 1}
					]
				}
			}
		}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		b := c.Sets["BRIDAL"]
		if !b.TotalPrice.Equal(decimal.NewFromInt(200)) {
			t.Fatalf("expected total price 200, got %s", b.TotalPrice)
		}
		if b.Label != "Bridal Collection" {
			t.Fatalf("expected label 'Bridal Collection', got %q", b.Label)
		}
		if len(b.Members) != 2 {
			t.Fatalf("expected 2 members, got %d", len(b.Members))
		}
	})

	t.Run("totalPrice wins over price when both present", func(t *testing.T) {
		c, err := ParseCart([]byte(`{
			"set": {
				"S1": {
					"totalPrice": 90,
					"price": 75,
					"items": [{"jewelleryId": "EARR-STD", "quantity": 1}]
				}
			}
		}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := c.Sets["S1"].TotalPrice; !got.Equal(decimal.NewFromInt(90)) {
			t.Fatalf("expected 90, got %s", got)
		}
	})

	t.Run("accepts deal members as a map keyed by composite id", func(t *testing.T) {
		c, err := ParseCart([]byte(`{
			"deal": {
				"SUMMER": {
					"dealPrice": 150,
					"quantity": 1,
					"buyQuantity": 2,
					"getQuantity": 1,
					"discountPercent": 100,
					"buyItems": {
						"RING-SOL_7": {"price": 75, "quantity": 1},
						"RING-SOL_6": {"price": 75, "quantity": 1}
					},
					"getItems": [
						{"jewelleryId": "EARR-STD", "quantity": 1}
					]
				}
			}
		}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		b := c.Deals["SUMMER"]
		if len(b.BuyItems) != 2 || len(b.GetItems) != 1 {
			t.Fatalf("expected 2 buy and 1 get items, got %d and %d", len(b.BuyItems), len(b.GetItems))
		}
		// Map members come back in sorted key order.
		if b.BuyItems[0].Size != "6" || b.BuyItems[1].Size != "7" {
			t.Fatalf("expected sizes 6,7 in order, got %s,%s", b.BuyItems[0].Size, b.BuyItems[1].Size)
		}
		if b.BuyQuantity != 2 || b.GetQuantity != 1 {
			t.Fatalf("expected buy 2 get 1, got buy %d get %d", b.BuyQuantity, b.GetQuantity)
		}
	})

	t.Run("rejects zero quantity", func(t *testing.T) {
		_, err := ParseCart([]byte(`{
			"single": {"RING-SOL_9": {"price": 50, "quantity": 0}}
		}`))
		if err == nil {
			t.Fatal("expected error for zero quantity")
		}
	})

	t.Run("rejects set without members", func(t *testing.T) {
		_, err := ParseCart([]byte(`{
			"set": {"S1": {"setPrice": 100, "quantity": 1}}
		}`))
		if err == nil {
			t.Fatal("expected error for memberless set")
		}
	})

	t.Run("empty cart parses to empty buckets", func(t *testing.T) {
		c, err := ParseCart([]byte(`{}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !c.Empty() {
			t.Fatal("expected empty cart")
		}
	})
}

func TestCartMerge(t *testing.T) {
	c := domain.NewCart()
	c.AddSingle("RING-SOL_9", domain.SingleBucket{
		JewelleryID: "RING-SOL", Size: "9",
		Price: decimal.NewFromInt(50), Quantity: 1,
	})
	c.AddSingle("RING-SOL_9", domain.SingleBucket{
		JewelleryID: "RING-SOL", Size: "9",
		Price: decimal.NewFromInt(50), Quantity: 2,
	})

	if len(c.Singles) != 1 {
		t.Fatalf("expected 1 bucket after merge, got %d", len(c.Singles))
	}
	if got := c.Singles["RING-SOL_9"].Quantity; got != 3 {
		t.Fatalf("expected merged quantity 3, got %d", got)
	}
}
