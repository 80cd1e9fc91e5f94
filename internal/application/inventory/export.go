package inventory

import (
	"context"

	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

// ExportLedger arma el documento de auditoría: cada stock (de un departamento o todos) con
// sus movimientos en orden de secuencia. Cada stock se lee dentro de su propia transacción,
// así fila y ledger corresponden al mismo instante.
func (uc *LedgerUseCase) ExportLedger(ctx context.Context, department string) (*dto.LedgerExport, error) {
	filter := repository.StockFilter{}
	if department != "" {
		dept, err := entity.ParseDepartment(department)
		if err != nil {
			return nil, err
		}
		filter.Department = dept
		department = string(dept)
	}
	stocks, err := uc.stockRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := &dto.LedgerExport{
		GeneratedAt: uc.now(),
		Department:  department,
		Stocks:      make([]dto.StockLedger, 0, len(stocks)),
	}
	for _, s := range stocks {
		var entry dto.StockLedger
		err := uc.txRunner.Run(ctx, func(stockRepo repository.StockRepository, ledgerRepo repository.StockTransactionRepository) error {
			current, err := stockRepo.GetByID(ctx, s.ID)
			if err != nil {
				return err
			}
			txns, err := ledgerRepo.ListByStock(ctx, s.ID)
			if err != nil {
				return err
			}
			entry.Stock = *toStockResponse(current)
			entry.Transactions = make([]dto.StockTransactionResponse, 0, len(txns))
			for _, t := range txns {
				entry.Transactions = append(entry.Transactions, *toTransactionResponse(t))
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		out.Entries += len(entry.Transactions)
		out.Stocks = append(out.Stocks, entry)
	}
	uc.log.Info().Int("stocks", len(out.Stocks)).Int("entries", out.Entries).Str("department", department).
		Msg("ledger exportado")
	return out, nil
}
