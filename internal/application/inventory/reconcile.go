package inventory

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/ledger"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

// Verify reproduce el ledger de un stock desde su línea base y lo compara con la fila en caché.
// Ante cualquier discrepancia pone la fila en cuarentena y devuelve el reporte junto con un
// CorruptionError.
func (uc *LedgerUseCase) Verify(ctx context.Context, stockID string) (*dto.ReconciliationReport, error) {
	var (
		stock   *entity.Stock
		entries []*entity.StockTransaction
	)
	err := uc.txRunner.Run(ctx, func(stockRepo repository.StockRepository, ledgerRepo repository.StockTransactionRepository) error {
		var err error
		if stock, err = stockRepo.GetForUpdate(ctx, stockID); err != nil {
			return err
		}
		entries, err = ledgerRepo.ListByStock(ctx, stockID)
		return err
	})
	if err != nil {
		return nil, err
	}

	derived, gaps := ledger.Replay(ledger.Baseline(stock), entries)
	gaps = append(gaps, ledger.Compare(derived, stock)...)
	report := &dto.ReconciliationReport{
		StockID:        stock.ID,
		Entries:        len(entries),
		LedgerQuantity: derived.Quantity,
		CachedQuantity: stock.TotalQuantity,
		LedgerReserved: derived.Reserved,
		CachedReserved: stock.ReservedQty,
		LedgerMinimum:  derived.Minimum,
		CachedMinimum:  stock.MinimumStock,
		Consistent:     len(gaps) == 0,
		Quarantined:    stock.Quarantined,
		CheckedAt:      uc.now(),
	}
	uc.metrics.Reconciled(report.Consistent)
	if report.Consistent {
		return report, nil
	}

	ce := &CorruptionError{StockID: stock.ID, Gaps: gaps}
	for _, g := range gaps {
		report.Discrepancies = append(report.Discrepancies, g.String())
	}
	if !stock.Quarantined {
		uc.quarantine(ctx, stock.ID, ce.Error())
		report.Quarantined = true
	}
	return report, ce
}

// ReconcileAll verifica todas las filas (de un departamento, o todas si department es vacío)
// con un número acotado de verificaciones concurrentes. Las discrepancias quedan en los
// reportes; solo los errores de infraestructura abortan.
func (uc *LedgerUseCase) ReconcileAll(ctx context.Context, department string) ([]dto.ReconciliationReport, error) {
	filter := repository.StockFilter{}
	if department != "" {
		dept, err := entity.ParseDepartment(department)
		if err != nil {
			return nil, err
		}
		filter.Department = dept
	}
	stocks, err := uc.stockRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	reports := make([]dto.ReconciliationReport, len(stocks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.workers)
	for i, s := range stocks {
		g.Go(func() error {
			r, err := uc.Verify(gctx, s.ID)
			if err != nil && !errors.Is(err, domain.ErrCorruption) {
				return err
			}
			reports[i] = *r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	inconsistent := 0
	for _, r := range reports {
		if !r.Consistent {
			inconsistent++
		}
	}
	ev := uc.log.Info()
	if inconsistent > 0 {
		ev = uc.log.Error()
	}
	ev.Int("stocks", len(reports)).Int("inconsistent", inconsistent).Str("department", department).Msg("reconciliación completada")
	return reports, nil
}

// Resolve reconciliación explícita: el ledger es la fuente de verdad. Fija la fila en caché a
// los valores derivados del ledger, registra un INFO_CORRECTION con el antes y el después y
// levanta la cuarentena.
func (uc *LedgerUseCase) Resolve(ctx context.Context, actorID, stockID, note string) (*dto.StockTransactionResponse, error) {
	if actorID == "" {
		return nil, domain.ErrMissingActor
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, domain.Validation("la reconciliación requiere una nota")
	}

	var txn *entity.StockTransaction
	err := uc.txRunner.Run(ctx, func(stockRepo repository.StockRepository, ledgerRepo repository.StockTransactionRepository) error {
		stock, err := stockRepo.GetForUpdate(ctx, stockID)
		if err != nil {
			return err
		}
		entries, err := ledgerRepo.ListByStock(ctx, stockID)
		if err != nil {
			return err
		}
		derived, _ := ledger.Replay(ledger.Baseline(stock), entries)
		before := stock.Snapshot()
		minChange := derived.Minimum - before.Minimum

		now := uc.now()
		seq := int64(1)
		if n := len(entries); n > 0 {
			seq = entries[n-1].Sequence + 1
		}
		txn = &entity.StockTransaction{
			ID:             uuid.New().String(),
			StockID:        stock.ID,
			Sequence:       seq,
			ActorID:        actorID,
			Type:           entity.TxInfoCorrection,
			BeforeQty:      before.Quantity,
			AfterQty:       derived.Quantity,
			BeforeReserved: before.Reserved,
			AfterReserved:  derived.Reserved,
			BeforeMinStock: &before.Minimum,
			AfterMinStock:  &derived.Minimum,
			MinStockChange: &minChange,
			UnitCost:       stock.UnitCost,
			TotalCost:      stock.UnitCost.Mul(decimal.NewFromInt(derived.Quantity - before.Quantity)),
			Reference:      ledger.ReconciliationReference,
			Note:           note,
			CreatedAt:      now,
		}

		stock.TotalQuantity = derived.Quantity
		stock.ReservedQty = derived.Reserved
		stock.MinimumStock = derived.Minimum
		stock.RefreshValue()
		stock.LastUpdated = now
		if err := stockRepo.Update(ctx, stock); err != nil {
			return err
		}
		if err := ledgerRepo.Create(ctx, txn); err != nil {
			return err
		}
		return stockRepo.SetQuarantine(ctx, stock.ID, false, "")
	})
	if err != nil {
		return nil, uc.fail(ctx, "resolve", err)
	}
	uc.committed(txn)
	uc.log.Warn().Str("stock_id", stockID).Str("actor_id", actorID).
		Int64("before_qty", txn.BeforeQty).Int64("after_qty", txn.AfterQty).
		Msg("stock reconciliado con el ledger")
	return toTransactionResponse(txn), nil
}
