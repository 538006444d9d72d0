// Package cart turns the storefront's three cart bucket shapes into one
// flat, orderable representation. Everything here is a pure function of
// the cart snapshot: no store access, and the same snapshot always
// produces the same output.
package cart

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/timelessservices/daye-jewellery/internal/domain"
)

// Flatten produces one CartEntry per bucket instance, singles first, then
// sets, then deals, each group in sorted key order.
func Flatten(c *domain.Cart) []domain.CartEntry {
	entries := make([]domain.CartEntry, 0, len(c.Singles)+len(c.Sets)+len(c.Deals))

	for _, key := range sortedKeys(c.Singles) {
		b := c.Singles[key]
		qty := decimal.NewFromInt(int64(b.Quantity))
		entries = append(entries, domain.CartEntry{
			Type:       domain.BucketSingle,
			ID:         key,
			Label:      singleLabel(b),
			UnitPrice:  b.Price,
			Quantity:   b.Quantity,
			TotalPrice: b.Price.Mul(qty),
			SubItems: []domain.BucketMember{{
				JewelleryID: b.JewelleryID,
				Size:        b.Size,
				Price:       b.Price,
				Quantity:    1,
			}},
		})
	}

	for _, key := range sortedKeys(c.Sets) {
		b := c.Sets[key]
		label := b.Label
		if label == "" {
			label = "Set " + b.CollectionID
		}
		qty := decimal.NewFromInt(int64(b.Quantity))
		entries = append(entries, domain.CartEntry{
			Type:       domain.BucketSet,
			ID:         key,
			Label:      label,
			UnitPrice:  b.TotalPrice,
			Quantity:   b.Quantity,
			TotalPrice: b.TotalPrice.Mul(qty),
			Subtitle:   fmt.Sprintf("%d items", len(b.Members)),
			SubItems:   b.Members,
		})
	}

	for _, key := range sortedKeys(c.Deals) {
		b := c.Deals[key]
		label := b.Label
		if label == "" {
			label = "Deal " + b.CollectionID
		}
		qty := decimal.NewFromInt(int64(b.Quantity))
		members := make([]domain.BucketMember, 0, len(b.BuyItems)+len(b.GetItems))
		members = append(members, b.BuyItems...)
		members = append(members, b.GetItems...)
		entries = append(entries, domain.CartEntry{
			Type:       domain.BucketDeal,
			ID:         key,
			Label:      label,
			UnitPrice:  b.TotalPrice,
			Quantity:   b.Quantity,
			TotalPrice: b.TotalPrice.Mul(qty),
			Subtitle:   fmt.Sprintf("Buy %d Get %d", b.BuyQuantity, b.GetQuantity),
			SubItems:   members,
		})
	}

	return entries
}

// DeriveOrderItems resolves flattened entries into order line items. Every
// sub-item contributes one line with quantity = entry quantity x member
// quantity. The effective price is the member's own price when it has
// one, otherwise the entry's unit price divided evenly across members,
// rounded to cents.
func DeriveOrderItems(entries []domain.CartEntry) []domain.OrderLineItem {
	var items []domain.OrderLineItem
	for _, entry := range entries {
		memberCount := int64(len(entry.SubItems))
		if memberCount == 0 {
			continue
		}
		evenShare := entry.UnitPrice.DivRound(decimal.NewFromInt(memberCount), 2)

		for _, m := range entry.SubItems {
			price := m.Price
			if !price.IsPositive() {
				price = evenShare
			}
			items = append(items, domain.OrderLineItem{
				JewelleryID:    m.JewelleryID,
				Size:           m.Size,
				Quantity:       entry.Quantity * m.Quantity,
				EffectivePrice: price,
			})
		}
	}
	return items
}

// Total sums the flattened entries' total prices.
func Total(entries []domain.CartEntry) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range entries {
		total = total.Add(entry.TotalPrice)
	}
	return total
}

func singleLabel(b domain.SingleBucket) string {
	if b.Size == "" {
		return b.JewelleryID
	}
	return fmt.Sprintf("%s (size %s)", b.JewelleryID, b.Size)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
