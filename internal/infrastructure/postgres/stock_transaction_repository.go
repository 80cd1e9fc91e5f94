package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var _ repository.StockTransactionRepository = (*StockTransactionRepo)(nil)

// StockTransactionRepo ledger sobre PostgreSQL. Solo INSERT; un trigger rechaza UPDATE y DELETE.
type StockTransactionRepo struct {
	q Querier
}

// NewStockTransactionRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockTransactionRepository(q Querier) *StockTransactionRepo {
	return &StockTransactionRepo{q: q}
}

const stockTransactionColumns = `
	id, stock_id, sequence, actor_id, type, quantity,
	before_qty, after_qty, before_reserved, after_reserved,
	before_min_stock, after_min_stock, min_stock_change,
	unit_cost, total_cost, reference, transfer_id, note, created_at`

func scanStockTransaction(row pgx.Row) (*entity.StockTransaction, error) {
	var (
		t          entity.StockTransaction
		typ        string
		transferID *string
	)
	err := row.Scan(
		&t.ID, &t.StockID, &t.Sequence, &t.ActorID, &typ, &t.Quantity,
		&t.BeforeQty, &t.AfterQty, &t.BeforeReserved, &t.AfterReserved,
		&t.BeforeMinStock, &t.AfterMinStock, &t.MinStockChange,
		&t.UnitCost, &t.TotalCost, &t.Reference, &transferID, &t.Note, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Type = entity.TransactionType(typ)
	t.TransferID = derefStr(transferID)
	return &t, nil
}

// Create inserta el movimiento. UNIQUE (stock_id, sequence) impide dos movimientos con la misma secuencia.
func (r *StockTransactionRepo) Create(ctx context.Context, t *entity.StockTransaction) error {
	query := `
		INSERT INTO stock_transactions (` + stockTransactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	_, err := r.q.Exec(ctx, query,
		t.ID, t.StockID, t.Sequence, t.ActorID, string(t.Type), t.Quantity,
		t.BeforeQty, t.AfterQty, t.BeforeReserved, t.AfterReserved,
		t.BeforeMinStock, t.AfterMinStock, t.MinStockChange,
		t.UnitCost, t.TotalCost, t.Reference, nullIfEmpty(t.TransferID), t.Note, t.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: movimiento #%d del stock %s", domain.ErrDuplicate, t.Sequence, t.StockID)
		}
		return fmt.Errorf("insert stock transaction: %w", err)
	}
	return nil
}

func (r *StockTransactionRepo) GetByID(ctx context.Context, id string) (*entity.StockTransaction, error) {
	query := `SELECT ` + stockTransactionColumns + ` FROM stock_transactions WHERE id = $1`
	t, err := scanStockTransaction(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: movimiento %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get stock transaction: %w", err)
	}
	return t, nil
}

func (r *StockTransactionRepo) Latest(ctx context.Context, stockID string) (*entity.StockTransaction, error) {
	query := `SELECT ` + stockTransactionColumns + `
		FROM stock_transactions WHERE stock_id = $1
		ORDER BY sequence DESC LIMIT 1`
	t, err := scanStockTransaction(r.q.QueryRow(ctx, query, stockID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest stock transaction: %w", err)
	}
	return t, nil
}

func (r *StockTransactionRepo) LatestMinimum(ctx context.Context, stockID string) (*entity.StockTransaction, error) {
	query := `SELECT ` + stockTransactionColumns + `
		FROM stock_transactions WHERE stock_id = $1 AND after_min_stock IS NOT NULL
		ORDER BY sequence DESC LIMIT 1`
	t, err := scanStockTransaction(r.q.QueryRow(ctx, query, stockID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest minimum stock transaction: %w", err)
	}
	return t, nil
}

func (r *StockTransactionRepo) ListByStock(ctx context.Context, stockID string) ([]*entity.StockTransaction, error) {
	return r.list(ctx, `stock_id = $1 ORDER BY sequence`, stockID)
}

func (r *StockTransactionRepo) ListByTransfer(ctx context.Context, transferID string) ([]*entity.StockTransaction, error) {
	return r.list(ctx, `transfer_id = $1 ORDER BY created_at, stock_id, sequence`, transferID)
}

func (r *StockTransactionRepo) ListByReference(ctx context.Context, reference string) ([]*entity.StockTransaction, error) {
	return r.list(ctx, `reference = $1 ORDER BY created_at, stock_id, sequence`, reference)
}

func (r *StockTransactionRepo) list(ctx context.Context, where string, args ...any) ([]*entity.StockTransaction, error) {
	query := `SELECT ` + stockTransactionColumns + ` FROM stock_transactions WHERE ` + where
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stock transactions: %w", err)
	}
	defer rows.Close()
	list := []*entity.StockTransaction{}
	for rows.Next() {
		t, err := scanStockTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock transaction: %w", err)
		}
		list = append(list, t)
	}
	return list, rows.Err()
}
