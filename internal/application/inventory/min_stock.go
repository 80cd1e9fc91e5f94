package inventory

import (
	"context"
	"strings"

	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/ledger"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

// AdjustMinimum cambia el stock mínimo en delta unidades. delta > 0 registra MIN_STOCK_INCREASE,
// delta < 0 MIN_STOCK_DECREASE y delta == 0 un MIN_STOCK_RESET sin cambio. La cantidad no se toca.
func (uc *LedgerUseCase) AdjustMinimum(ctx context.Context, actorID string, in dto.AdjustMinimumRequest) (*dto.StockTransactionResponse, error) {
	return uc.recordMinimum(ctx, actorID, in.StockID, in.ReasonCode, func(*entity.Stock) (entity.TransactionType, int64, error) {
		return ledger.MinimumType(in.Delta), in.Delta, nil
	})
}

// SetMinimum fija el stock mínimo en target con un MIN_STOCK_RESET.
func (uc *LedgerUseCase) SetMinimum(ctx context.Context, actorID string, in dto.SetMinimumRequest) (*dto.StockTransactionResponse, error) {
	if in.Target < 0 {
		return nil, uc.fail(ctx, "set_minimum", domain.Validation("el stock mínimo no puede ser negativo (%d)", in.Target))
	}
	return uc.recordMinimum(ctx, actorID, in.StockID, in.ReasonCode, func(s *entity.Stock) (entity.TransactionType, int64, error) {
		return entity.TxMinStockReset, in.Target - s.MinimumStock, nil
	})
}

func (uc *LedgerUseCase) recordMinimum(
	ctx context.Context,
	actorID, stockID, reasonCode string,
	change func(*entity.Stock) (entity.TransactionType, int64, error),
) (*dto.StockTransactionResponse, error) {
	reason := strings.TrimSpace(reasonCode)
	if actorID == "" {
		return nil, uc.fail(ctx, "adjust_minimum", domain.ErrMissingActor)
	}
	if reason == "" {
		return nil, uc.fail(ctx, "adjust_minimum", domain.Validation("código de motivo requerido"))
	}
	if stockID == "" {
		return nil, uc.fail(ctx, "adjust_minimum", domain.Validation("stock_id requerido"))
	}

	var txn *entity.StockTransaction
	err := uc.txRunner.Run(ctx, func(stockRepo repository.StockRepository, ledgerRepo repository.StockTransactionRepository) error {
		stock, err := stockRepo.GetForUpdate(ctx, stockID)
		if err != nil {
			return err
		}
		t, delta, err := change(stock)
		if err != nil {
			return err
		}
		txn, err = uc.RecordInTx(ctx, stockRepo, ledgerRepo, stock, Entry{
			ActorID: actorID,
			Change:  ledger.Change{Type: t, MinChange: &delta},
			Note:    reason,
		})
		return err
	})
	if err != nil {
		return nil, uc.fail(ctx, "adjust_minimum", err)
	}
	uc.committed(txn)
	return toTransactionResponse(txn), nil
}
