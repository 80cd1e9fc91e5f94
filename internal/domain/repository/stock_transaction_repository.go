package repository

import (
	"context"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// StockTransactionRepository puerto del ledger. Solo inserción: no existe Update ni Delete.
type StockTransactionRepository interface {
	Create(ctx context.Context, txn *entity.StockTransaction) error
	GetByID(ctx context.Context, id string) (*entity.StockTransaction, error)
	// Latest último movimiento del stock; nil si no tiene movimientos.
	Latest(ctx context.Context, stockID string) (*entity.StockTransaction, error)
	// LatestMinimum último movimiento que registró el stock mínimo (MIN_STOCK_* o reconciliación); nil si ninguno.
	LatestMinimum(ctx context.Context, stockID string) (*entity.StockTransaction, error)
	// ListByStock movimientos en orden de secuencia.
	ListByStock(ctx context.Context, stockID string) ([]*entity.StockTransaction, error)
	ListByTransfer(ctx context.Context, transferID string) ([]*entity.StockTransaction, error)
	ListByReference(ctx context.Context, reference string) ([]*entity.StockTransaction, error)
}
