package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/internal/application/transfer"
	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

// Ensure TxRunner implements inventory.TxRunner and transfer.TxRunner.
var _ inventory.TxRunner = (*TxRunner)(nil)
var _ transfer.TxRunner = (*TxRunner)(nil)

const (
	defaultTxTimeout = 5 * time.Second
	defaultTxRetries = 3
)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL REPEATABLE READ.
// Ante fallo de serialización o deadlock repite la transacción completa hasta retries veces.
type TxRunner struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	retries int
}

// NewTxRunner construye el runner con el pool. timeout o retries <= 0 usan los valores por defecto.
func NewTxRunner(pool *pgxpool.Pool, timeout time.Duration, retries int) *TxRunner {
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}
	if retries <= 0 {
		retries = defaultTxRetries
	}
	return &TxRunner{pool: pool, timeout: timeout, retries: retries}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(
	stockRepo repository.StockRepository,
	ledgerRepo repository.StockTransactionRepository,
) error) error {
	return r.run(ctx, func(tx pgx.Tx) error {
		return fn(NewStockRepository(tx), NewStockTransactionRepository(tx))
	})
}

// RunTransfer igual que Run, agregando el repositorio de traslados.
func (r *TxRunner) RunTransfer(ctx context.Context, fn func(
	stockRepo repository.StockRepository,
	ledgerRepo repository.StockTransactionRepository,
	transferRepo repository.TransferRepository,
) error) error {
	return r.run(ctx, func(tx pgx.Tx) error {
		return fn(NewStockRepository(tx), NewStockTransactionRepository(tx), NewTransferRepository(tx))
	})
}

func (r *TxRunner) run(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var err error
	for attempt := 0; attempt < r.retries; attempt++ {
		err = r.once(ctx, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("%w: transacción abortada tras %d intentos: %v", domain.ErrConflict, r.retries, err)
}

func (r *TxRunner) once(ctx context.Context, fn func(tx pgx.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
