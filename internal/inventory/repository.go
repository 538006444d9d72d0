package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/timelessservices/daye-jewellery/internal/domain"
	"github.com/timelessservices/daye-jewellery/internal/store"
)

// MaxBatchSize bounds how many operations one batch request may carry.
const MaxBatchSize = 100

const (
	readStockQuery = `
		SELECT description, in_stock, amount_sold
		FROM jewellery_stock
		WHERE jewellery_id = $1 AND size = $2
	`

	// The in_stock >= $5 predicate is evaluated by the store at write
	// time, so a write that would drive stock negative affects zero rows
	// no matter what a concurrent adjustment did in between.
	adjustStockQuery = `
		UPDATE jewellery_stock
		SET in_stock = in_stock + $3, amount_sold = amount_sold + $4
		WHERE jewellery_id = $1 AND size = $2 AND in_stock >= $5
	`
)

// StockSnapshot is the counters of one record at a point in time.
type StockSnapshot struct {
	InStock    int `json:"inStock"`
	AmountSold int `json:"amountSold"`
}

// AdjustResult pairs the before and after counters of one adjusted record.
type AdjustResult struct {
	JewelleryID string        `json:"jewelleryId"`
	Size        string        `json:"size"`
	Description string        `json:"description"`
	Before      StockSnapshot `json:"before"`
	After       StockSnapshot `json:"after"`
}

type Repository struct {
	db   *sql.DB
	exec *store.Executor
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, exec: store.NewExecutor(db)}
}

func (r *Repository) GetRecord(ctx context.Context, jewelleryID, size string) (*domain.InventoryRecord, error) {
	rec := &domain.InventoryRecord{JewelleryID: jewelleryID, Size: size}

	err := r.db.QueryRowContext(ctx, readStockQuery, jewelleryID, size).
		Scan(&rec.Description, &rec.InStock, &rec.AmountSold)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return rec, nil
}

func (r *Repository) ListAll(ctx context.Context) ([]domain.InventoryRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT jewellery_id, size, description, in_stock, amount_sold
		FROM jewellery_stock
		ORDER BY jewellery_id, size
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []domain.InventoryRecord
	for rows.Next() {
		var rec domain.InventoryRecord
		if err := rows.Scan(&rec.JewelleryID, &rec.Size, &rec.Description, &rec.InStock, &rec.AmountSold); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// Adjust applies one stock operation. The write carries the same
// conditional predicate as the batch path, so a concurrent adjustment
// between the read and the write cannot oversell; a lost race surfaces as
// ErrConflict.
func (r *Repository) Adjust(ctx context.Context, op domain.StockOperation) (*AdjustResult, error) {
	op = normalizeOp(op)
	if reason := validateOp(op); reason != "" {
		return nil, &InvalidOperationError{Index: 0, Reason: reason}
	}

	result := AdjustResult{JewelleryID: op.JewelleryID, Size: op.Size}
	keyArgs := []any{op.JewelleryID, op.Size}

	results, err := r.exec.Execute(ctx, []store.Op{
		store.ReadOne(readStockQuery, keyArgs, &result.Description, &result.Before.InStock, &result.Before.AmountSold),
		store.Write(adjustStockQuery, op.JewelleryID, op.Size, op.Adjustment, soldDelta(op), minStockNeeded(op)),
		store.ReadOne(readStockQuery, keyArgs, &result.Description, &result.After.InStock, &result.After.AmountSold),
	})
	if err != nil {
		return nil, err
	}

	if !results[0].Found {
		return nil, ErrNotFound
	}
	if results[1].RowsAffected == 0 {
		if result.Before.InStock+op.Adjustment < 0 {
			return nil, &InsufficientStockError{
				JewelleryID:  op.JewelleryID,
				Size:         op.Size,
				CurrentStock: result.Before.InStock,
				Requested:    -op.Adjustment,
			}
		}
		return nil, ErrConflict
	}

	return &result, nil
}

// AdjustBatch applies up to MaxBatchSize operations as one atomic unit.
// Structural validation happens before any store access; after that the
// whole batch either commits or rolls back together, so an operation that
// lost a stock race takes every other operation's effect down with it.
func (r *Repository) AdjustBatch(ctx context.Context, ops []domain.StockOperation) ([]AdjustResult, error) {
	if len(ops) < 1 || len(ops) > MaxBatchSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, len(ops))
	}

	normalized := make([]domain.StockOperation, len(ops))
	for i, op := range ops {
		normalized[i] = normalizeOp(op)
		if reason := validateOp(normalized[i]); reason != "" {
			return nil, &InvalidOperationError{Index: i, Reason: reason}
		}
	}

	// Each operation is a read, a guarded write, and a re-read, all in
	// one transaction. The After snapshot comes from the re-read because
	// the conditional write is evaluated against the newest row version,
	// which may differ from the Before read.
	results := make([]AdjustResult, len(normalized))
	storeOps := make([]store.Op, 0, 3*len(normalized))
	for i, op := range normalized {
		results[i].JewelleryID = op.JewelleryID
		results[i].Size = op.Size
		keyArgs := []any{op.JewelleryID, op.Size}
		storeOps = append(storeOps,
			store.ReadOne(readStockQuery, keyArgs,
				&results[i].Description, &results[i].Before.InStock, &results[i].Before.AmountSold),
			store.GuardedWrite(adjustStockQuery,
				op.JewelleryID, op.Size, op.Adjustment, soldDelta(op), minStockNeeded(op)),
			store.ReadOne(readStockQuery, keyArgs,
				&results[i].Description, &results[i].After.InStock, &results[i].After.AmountSold),
		)
	}

	if _, err := r.exec.Execute(ctx, storeOps); err != nil {
		return nil, r.classifyBatchFailure(ctx, normalized, err)
	}

	return results, nil
}

// classifyBatchFailure turns a guarded-write miss into the reason the
// predicate failed for that operation. The batch has already rolled back,
// so current stock is re-read outside the transaction for the report.
func (r *Repository) classifyBatchFailure(ctx context.Context, ops []domain.StockOperation, err error) error {
	var opErr *store.OpError
	if !errors.As(err, &opErr) || !errors.Is(opErr.Err, store.ErrRowRequired) {
		return err
	}

	index := opErr.Index / 3
	op := ops[index]

	rec, readErr := r.GetRecord(ctx, op.JewelleryID, op.Size)
	if readErr != nil {
		return readErr
	}
	if rec == nil {
		return fmt.Errorf("operation %d (%s size %s): %w", index, op.JewelleryID, op.Size, ErrNotFound)
	}
	if rec.InStock+op.Adjustment < 0 {
		return &InsufficientStockError{
			JewelleryID:  op.JewelleryID,
			Size:         op.Size,
			CurrentStock: rec.InStock,
			Requested:    -op.Adjustment,
		}
	}
	return fmt.Errorf("operation %d (%s size %s): %w", index, op.JewelleryID, op.Size, ErrConflict)
}

func normalizeOp(op domain.StockOperation) domain.StockOperation {
	if op.Kind == "" {
		op.Kind = domain.StockCorrection
	}
	return op
}

func validateOp(op domain.StockOperation) string {
	switch {
	case op.JewelleryID == "":
		return "missing jewellery id"
	case op.Adjustment == 0:
		return "adjustment must be non-zero"
	case !op.Kind.Valid():
		return fmt.Sprintf("unknown kind %q", op.Kind)
	}
	return ""
}

// soldDelta is the amount added to the cumulative sold counter: only a
// sale with a negative adjustment counts.
func soldDelta(op domain.StockOperation) int {
	if op.Kind == domain.StockSale && op.Adjustment < 0 {
		return -op.Adjustment
	}
	return 0
}

// minStockNeeded is the conditional-write threshold: the magnitude of a
// negative adjustment, or zero when stock is being added.
func minStockNeeded(op domain.StockOperation) int {
	if op.Adjustment < 0 {
		return -op.Adjustment
	}
	return 0
}
