package domain

// StockOperationKind classifies why a stock count is changing.
type StockOperationKind string

const (
	StockIntake     StockOperationKind = "intake"
	StockSale       StockOperationKind = "sale"
	StockCorrection StockOperationKind = "adjustment"
)

func (k StockOperationKind) Valid() bool {
	switch k {
	case StockIntake, StockSale, StockCorrection:
		return true
	}
	return false
}

// InventoryRecord is one stocked piece of jewellery in one size.
// InStock never goes negative; AmountSold only ever grows.
type InventoryRecord struct {
	JewelleryID string `json:"jewelleryId"`
	Size        string `json:"size"`
	Description string `json:"description"`
	InStock     int    `json:"inStock"`
	AmountSold  int    `json:"amountSold"`
}

// StockOperation is a request to apply a signed adjustment to one record.
// A sale with a negative adjustment also adds its magnitude to AmountSold.
type StockOperation struct {
	JewelleryID string             `json:"jewelleryId"`
	Size        string             `json:"size"`
	Adjustment  int                `json:"adjustment"`
	Kind        StockOperationKind `json:"kind"`
}
