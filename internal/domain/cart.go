package domain

import "github.com/shopspring/decimal"

// BucketType is one of the three cart purchase modes.
type BucketType string

const (
	BucketSingle BucketType = "single"
	BucketSet    BucketType = "set"
	BucketDeal   BucketType = "deal"
)

// SingleBucket is one individually priced piece in one size.
type SingleBucket struct {
	JewelleryID string
	Size        string
	Price       decimal.Decimal
	Quantity    int
}

// BucketMember is one piece inside a set or deal bucket. A zero Price means
// the member has no price of its own and inherits an even share of the
// bucket's total.
type BucketMember struct {
	JewelleryID string
	Size        string
	Price       decimal.Decimal
	Quantity    int
}

// SetBucket is a fixed-price collection of members sold as one unit.
type SetBucket struct {
	CollectionID string
	Label        string
	TotalPrice   decimal.Decimal
	Quantity     int
	Members      []BucketMember
}

// DealBucket is a buy-X-get-Y promotion. BuyItems and GetItems together
// form the members of one deal unit.
type DealBucket struct {
	CollectionID    string
	Label           string
	TotalPrice      decimal.Decimal
	Quantity        int
	BuyQuantity     int
	GetQuantity     int
	DiscountPercent decimal.Decimal
	BuyItems        []BucketMember
	GetItems        []BucketMember
}

// Cart maps bucket identifiers to buckets per purchase mode. Keys make
// repeat additions an O(1) merge instead of a duplicate row.
type Cart struct {
	Singles map[string]SingleBucket
	Sets    map[string]SetBucket
	Deals   map[string]DealBucket
}

func NewCart() *Cart {
	return &Cart{
		Singles: make(map[string]SingleBucket),
		Sets:    make(map[string]SetBucket),
		Deals:   make(map[string]DealBucket),
	}
}

// AddSingle merges a single bucket into the cart: an existing key only has
// its quantity incremented.
func (c *Cart) AddSingle(key string, b SingleBucket) {
	if existing, ok := c.Singles[key]; ok {
		existing.Quantity += b.Quantity
		c.Singles[key] = existing
		return
	}
	c.Singles[key] = b
}

func (c *Cart) AddSet(key string, b SetBucket) {
	if existing, ok := c.Sets[key]; ok {
		existing.Quantity += b.Quantity
		c.Sets[key] = existing
		return
	}
	c.Sets[key] = b
}

func (c *Cart) AddDeal(key string, b DealBucket) {
	if existing, ok := c.Deals[key]; ok {
		existing.Quantity += b.Quantity
		c.Deals[key] = existing
		return
	}
	c.Deals[key] = b
}

func (c *Cart) Empty() bool {
	return len(c.Singles) == 0 && len(c.Sets) == 0 && len(c.Deals) == 0
}

// CartEntry is one flattened bucket instance, produced fresh on each
// normalization pass and never mutated.
type CartEntry struct {
	Type       BucketType      `json:"type"`
	ID         string          `json:"id"`
	Label      string          `json:"label"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Subtitle   string          `json:"subtitle,omitempty"`
	SubItems   []BucketMember  `json:"subItems,omitempty"`
}
