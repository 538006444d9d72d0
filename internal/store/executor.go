// Package store runs ordered lists of read and write operations against a
// single database transaction: either every operation's effect commits or
// none of them do.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrRowRequired marks a guarded write whose predicate matched no rows.
var ErrRowRequired = errors.New("write affected no rows")

// OpError reports which operation in an Execute call failed.
type OpError struct {
	Index int
	Err   error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("operation %d: %v", e.Index, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

type opKind int

const (
	opReadOne opKind = iota
	opReadMany
	opWrite
)

// Op is one tagged operation in an Execute call. Operations run in the
// order given and each one observes the effects of all prior operations in
// the same call.
type Op struct {
	kind       opKind
	query      string
	args       []any
	dest       []any
	collect    func(*sql.Rows) error
	requireRow bool
}

// ReadOne scans at most one row into dest. An absent row is not an error;
// the Result reports Found=false.
func ReadOne(query string, args []any, dest ...any) Op {
	return Op{kind: opReadOne, query: query, args: args, dest: dest}
}

// ReadMany streams every matching row through collect.
func ReadMany(query string, args []any, collect func(*sql.Rows) error) Op {
	return Op{kind: opReadMany, query: query, args: args, collect: collect}
}

// Write executes a statement. A write affecting zero rows is a result, not
// a failure; callers inspect RowsAffected.
func Write(query string, args ...any) Op {
	return Op{kind: opWrite, query: query, args: args}
}

// GuardedWrite is a Write that must affect at least one row. Zero affected
// rows fails the whole Execute call with ErrRowRequired so a missed
// conditional predicate rolls everything back.
func GuardedWrite(query string, args ...any) Op {
	return Op{kind: opWrite, query: query, args: args, requireRow: true}
}

// Result is the outcome of one operation.
type Result struct {
	Found        bool
	RowsAffected int64
}

type Executor struct {
	db *sql.DB
}

func NewExecutor(db *sql.DB) *Executor {
	return &Executor{db: db}
}

// Execute runs ops inside one transaction. On success every effect commits
// together and the per-operation results come back in order. On any
// failure every effect is discarded and the error identifies the failing
// operation's index; no partial result is returned.
func (e *Executor) Execute(ctx context.Context, ops []Op) ([]Result, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	results := make([]Result, 0, len(ops))
	for i, op := range ops {
		result, err := runOp(ctx, tx, op)
		if err != nil {
			return nil, &OpError{Index: i, Err: err}
		}
		results = append(results, result)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return results, nil
}

func runOp(ctx context.Context, tx *sql.Tx, op Op) (Result, error) {
	switch op.kind {
	case opReadOne:
		err := tx.QueryRowContext(ctx, op.query, op.args...).Scan(op.dest...)
		if err != nil {
			if err == sql.ErrNoRows {
				return Result{Found: false}, nil
			}
			return Result{}, err
		}
		return Result{Found: true}, nil

	case opReadMany:
		rows, err := tx.QueryContext(ctx, op.query, op.args...)
		if err != nil {
			return Result{}, err
		}
		defer func() { _ = rows.Close() }()

		var count int64
		for rows.Next() {
			if err := op.collect(rows); err != nil {
				return Result{}, err
			}
			count++
		}
		if err := rows.Err(); err != nil {
			return Result{}, err
		}
		return Result{Found: count > 0, RowsAffected: count}, nil

	default:
		result, err := tx.ExecContext(ctx, op.query, op.args...)
		if err != nil {
			return Result{}, err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return Result{}, err
		}
		if op.requireRow && affected == 0 {
			return Result{}, ErrRowRequired
		}
		return Result{Found: affected > 0, RowsAffected: affected}, nil
	}
}
