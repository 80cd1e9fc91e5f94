package inventory

import (
	"context"
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var idealFactor = decimal.NewFromFloat(1.5)

// LowStock devuelve las filas con disponible en o bajo el mínimo, con la cantidad sugerida
// de pedido (1.5 × mínimo − disponible) y su costo estimado. department vacío = todos.
func (uc *LedgerUseCase) LowStock(ctx context.Context, department string) ([]dto.LowStockDTO, error) {
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

	out := make([]dto.LowStockDTO, 0)
	drugs := make(map[string]*entity.Drug)
	for _, s := range stocks {
		if !s.IsLowStock() {
			continue
		}
		drug, ok := drugs[s.DrugID]
		if !ok {
			drug, err = uc.drugRepo.GetByID(ctx, s.DrugID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			drugs[s.DrugID] = drug
		}

		available := s.AvailableStock()
		ideal := decimal.NewFromInt(s.MinimumStock).Mul(idealFactor).Ceil().IntPart()
		suggested := ideal - available
		if suggested < 0 {
			suggested = 0
		}
		row := dto.LowStockDTO{
			StockID:           s.ID,
			DrugID:            s.DrugID,
			Department:        string(s.Department),
			AvailableStock:    available,
			MinimumStock:      s.MinimumStock,
			IdealStock:        ideal,
			SuggestedOrderQty: suggested,
			UnitCost:          s.UnitCost,
			EstimatedCost:     s.UnitCost.Mul(decimal.NewFromInt(suggested)),
		}
		if drug != nil {
			row.DrugCode = drug.Code
			row.DrugName = drug.Name
		}
		out = append(out, row)
	}

	// Mayor déficit bajo el mínimo primero; luego menor disponible.
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		defA, defB := a.MinimumStock-a.AvailableStock, b.MinimumStock-b.AvailableStock
		if defA != defB {
			return defA > defB
		}
		if a.AvailableStock != b.AvailableStock {
			return a.AvailableStock < b.AvailableStock
		}
		return a.DrugCode < b.DrugCode
	})
	for i := range out {
		out[i].Priority = i + 1
	}
	return out, nil
}
