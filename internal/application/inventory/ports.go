package inventory

import (
	"context"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción, pasando repositorios atados a esa tx.
// Garantiza que el stock y su movimiento de ledger se escriben juntos o no se escriben.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		stockRepo repository.StockRepository,
		ledgerRepo repository.StockTransactionRepository,
	) error) error
}

// Metrics contadores del ledger. Ver infrastructure/metrics.
type Metrics interface {
	LedgerWrite(t entity.TransactionType)
	LedgerRejected(kind string)
	StockQuarantined()
	Reconciled(consistent bool)
}

type noopMetrics struct{}

func (noopMetrics) LedgerWrite(entity.TransactionType) {}
func (noopMetrics) LedgerRejected(string)              {}
func (noopMetrics) StockQuarantined()                  {}
func (noopMetrics) Reconciled(bool)                    {}
