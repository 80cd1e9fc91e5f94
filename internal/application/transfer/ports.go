package transfer

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción con repositorios de stock, ledger y traslados.
// El mismo adaptador implementa inventory.TxRunner.
type TxRunner interface {
	RunTransfer(ctx context.Context, fn func(
		stockRepo repository.StockRepository,
		ledgerRepo repository.StockTransactionRepository,
		transferRepo repository.TransferRepository,
	) error) error
}

// LedgerWriter escritura en el ledger dentro de la transacción del traslado.
// Implementado por inventory.LedgerUseCase.
type LedgerWriter interface {
	RecordInTx(
		ctx context.Context,
		stockRepo repository.StockRepository,
		ledgerRepo repository.StockTransactionRepository,
		stock *entity.Stock,
		e inventory.Entry,
	) (*entity.StockTransaction, error)
	EnsureStockInTx(
		ctx context.Context,
		stockRepo repository.StockRepository,
		drugID string,
		dept entity.Department,
		unitCost decimal.Decimal,
	) (*entity.Stock, error)
	QuarantineOnCorruption(ctx context.Context, err error) bool
}

var _ LedgerWriter = (*inventory.LedgerUseCase)(nil)

// Metrics contadores del flujo de traslados.
type Metrics interface {
	Transition(to entity.TransferStatus)
	TransitionRejected(kind string)
	LedgerWrite(t entity.TransactionType)
}

type noopMetrics struct{}

func (noopMetrics) Transition(entity.TransferStatus)   {}
func (noopMetrics) TransitionRejected(string)          {}
func (noopMetrics) LedgerWrite(entity.TransactionType) {}
