package inventory

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("jewellery item not found")
	ErrConflict         = errors.New("stock update lost a concurrent update race")
	ErrInvalidBatchSize = errors.New("batch must contain between 1 and 100 operations")
)

// InsufficientStockError reports an adjustment that would drive stock
// negative, along with the stock actually available so a client can lower
// the requested quantity.
type InsufficientStockError struct {
	JewelleryID  string
	Size         string
	CurrentStock int
	Requested    int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s size %s: %d in stock, %d requested",
		e.JewelleryID, e.Size, e.CurrentStock, e.Requested)
}

// InvalidOperationError identifies the first structurally invalid
// operation in a batch, rejected before any store access.
type InvalidOperationError struct {
	Index  int
	Reason string
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("invalid operation at index %d: %s", e.Index, e.Reason)
}
