package cart

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/timelessservices/daye-jewellery/internal/domain"
)

// ParseCart coerces a legacy cart snapshot into the canonical Cart shape.
// The wire format is a mapping of bucket type to a mapping of identifier
// to bucket; ids arrive as strings or numbers, member collections as
// arrays or maps keyed by "jewelleryId_size", and several fields answer to
// more than one name (see fieldAliases). All of that is resolved here,
// once, so nothing downstream sees a legacy shape.
func ParseCart(data []byte) (*domain.Cart, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("parse cart: %w", err)
	}

	c := domain.NewCart()

	singles, err := bucketObjects(top, "single")
	if err != nil {
		return nil, err
	}
	for key, obj := range singles {
		b, err := parseSingle(key, obj)
		if err != nil {
			return nil, fmt.Errorf("single %q: %w", key, err)
		}
		c.AddSingle(key, b)
	}

	sets, err := bucketObjects(top, "set")
	if err != nil {
		return nil, err
	}
	for key, obj := range sets {
		b, err := parseSet(key, obj)
		if err != nil {
			return nil, fmt.Errorf("set %q: %w", key, err)
		}
		c.AddSet(key, b)
	}

	deals, err := bucketObjects(top, "deal")
	if err != nil {
		return nil, err
	}
	for key, obj := range deals {
		b, err := parseDeal(key, obj)
		if err != nil {
			return nil, fmt.Errorf("deal %q: %w", key, err)
		}
		c.AddDeal(key, b)
	}

	return c, nil
}

type rawObject map[string]json.RawMessage

func bucketObjects(top map[string]json.RawMessage, bucketType string) (map[string]rawObject, error) {
	raw, ok := top[bucketType]
	if !ok || string(raw) == "null" {
		return nil, nil
	}
	var buckets map[string]rawObject
	if err := json.Unmarshal(raw, &buckets); err != nil {
		return nil, fmt.Errorf("%s buckets: %w", bucketType, err)
	}
	return buckets, nil
}

// first returns the raw value of the first present alias of the logical
// field, per the central precedence table.
func (o rawObject) first(logical string) (json.RawMessage, bool) {
	for _, name := range fieldAliases[logical] {
		if raw, ok := o[name]; ok && string(raw) != "null" {
			return raw, true
		}
	}
	return nil, false
}

func (o rawObject) stringField(logical string) string {
	raw, ok := o.first(logical)
	if !ok {
		return ""
	}
	return flexString(raw)
}

func (o rawObject) decimalField(logical string) decimal.Decimal {
	raw, ok := o.first(logical)
	if !ok {
		return decimal.Zero
	}
	d, _ := flexDecimal(raw)
	return d
}

func (o rawObject) intField(logical string, fallback int) int {
	raw, ok := o.first(logical)
	if !ok {
		return fallback
	}
	d, err := flexDecimal(raw)
	if err != nil {
		return fallback
	}
	return int(d.IntPart())
}

// flexString accepts a JSON string or number and returns it as a string.
func flexString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// flexDecimal accepts a JSON number or a numeric string.
func flexDecimal(raw json.RawMessage) (decimal.Decimal, error) {
	var d decimal.Decimal
	if err := json.Unmarshal(raw, &d); err == nil {
		return d, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return decimal.Zero, fmt.Errorf("not a number: %s", raw)
	}
	return decimal.NewFromString(strings.TrimSpace(s))
}

// splitKey derives jewellery id and size from a composite "id_size" key.
func splitKey(key string) (jewelleryID, size string) {
	i := strings.LastIndex(key, "_")
	if i < 0 {
		return key, ""
	}
	return key[:i], key[i+1:]
}

func parseSingle(key string, obj rawObject) (domain.SingleBucket, error) {
	b := domain.SingleBucket{
		JewelleryID: obj.stringField("jewelleryId"),
		Size:        obj.stringField("size"),
		Price:       obj.decimalField("totalPrice"),
		Quantity:    obj.intField("quantity", 1),
	}
	if b.JewelleryID == "" {
		b.JewelleryID, b.Size = splitKey(key)
	}
	if b.Quantity < 1 {
		return b, fmt.Errorf("quantity must be at least 1, got %d", b.Quantity)
	}
	return b, nil
}

func parseSet(key string, obj rawObject) (domain.SetBucket, error) {
	b := domain.SetBucket{
		CollectionID: key,
		Label:        obj.stringField("label"),
		TotalPrice:   obj.decimalField("totalPrice"),
		Quantity:     obj.intField("quantity", 1),
	}
	if b.Quantity < 1 {
		return b, fmt.Errorf("quantity must be at least 1, got %d", b.Quantity)
	}

	raw, ok := obj.first("members")
	if !ok {
		return b, fmt.Errorf("set has no members")
	}
	members, err := parseMembers(raw)
	if err != nil {
		return b, err
	}
	if len(members) == 0 {
		return b, fmt.Errorf("set has no members")
	}
	b.Members = members
	return b, nil
}

func parseDeal(key string, obj rawObject) (domain.DealBucket, error) {
	b := domain.DealBucket{
		CollectionID:    key,
		Label:           obj.stringField("label"),
		TotalPrice:      obj.decimalField("totalPrice"),
		Quantity:        obj.intField("quantity", 1),
		BuyQuantity:     obj.intField("buyQuantity", 0),
		GetQuantity:     obj.intField("getQuantity", 0),
		DiscountPercent: obj.decimalField("discountPercent"),
	}
	if b.Quantity < 1 {
		return b, fmt.Errorf("quantity must be at least 1, got %d", b.Quantity)
	}

	if raw, ok := obj.first("buyItems"); ok {
		members, err := parseMembers(raw)
		if err != nil {
			return b, fmt.Errorf("buy items: %w", err)
		}
		b.BuyItems = members
	}
	if raw, ok := obj.first("getItems"); ok {
		members, err := parseMembers(raw)
		if err != nil {
			return b, fmt.Errorf("get items: %w", err)
		}
		b.GetItems = members
	}
	if len(b.BuyItems)+len(b.GetItems) == 0 {
		return b, fmt.Errorf("deal has no members")
	}
	return b, nil
}

// parseMembers accepts either an array of member objects or a map keyed by
// the composite "jewelleryId_size" key. Map members come back in sorted
// key order so the canonical shape does not depend on iteration order.
func parseMembers(raw json.RawMessage) ([]domain.BucketMember, error) {
	var list []rawObject
	if err := json.Unmarshal(raw, &list); err == nil {
		members := make([]domain.BucketMember, 0, len(list))
		for i, obj := range list {
			m, err := parseMember("", obj)
			if err != nil {
				return nil, fmt.Errorf("member %d: %w", i, err)
			}
			members = append(members, m)
		}
		return members, nil
	}

	var byKey map[string]rawObject
	if err := json.Unmarshal(raw, &byKey); err != nil {
		return nil, fmt.Errorf("members must be an array or an object: %w", err)
	}

	keys := make([]string, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	members := make([]domain.BucketMember, 0, len(keys))
	for _, key := range keys {
		m, err := parseMember(key, byKey[key])
		if err != nil {
			return nil, fmt.Errorf("member %q: %w", key, err)
		}
		members = append(members, m)
	}
	return members, nil
}

func parseMember(key string, obj rawObject) (domain.BucketMember, error) {
	m := domain.BucketMember{
		JewelleryID: obj.stringField("jewelleryId"),
		Size:        obj.stringField("size"),
		Quantity:    obj.intField("quantity", 1),
	}
	if raw, ok := obj.first("memberPrice"); ok {
		d, err := flexDecimal(raw)
		if err != nil {
			return m, err
		}
		m.Price = d
	}
	if m.JewelleryID == "" && key != "" {
		m.JewelleryID, m.Size = splitKey(key)
	}
	if m.JewelleryID == "" {
		return m, fmt.Errorf("member has no jewellery id")
	}
	if m.Quantity < 1 {
		return m, fmt.Errorf("quantity must be at least 1, got %d", m.Quantity)
	}
	return m, nil
}
