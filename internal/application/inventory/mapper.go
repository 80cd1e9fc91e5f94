package inventory

import (
	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

func toStockResponse(s *entity.Stock) *dto.StockResponse {
	return &dto.StockResponse{
		ID:               s.ID,
		DrugID:           s.DrugID,
		Department:       string(s.Department),
		TotalQuantity:    s.TotalQuantity,
		ReservedQty:      s.ReservedQty,
		AvailableStock:   s.AvailableStock(),
		MinimumStock:     s.MinimumStock,
		LowStock:         s.IsLowStock(),
		UnitCost:         s.UnitCost,
		TotalValue:       s.TotalValue,
		Quarantined:      s.Quarantined,
		QuarantineReason: s.QuarantineReason,
		LastUpdated:      s.LastUpdated,
	}
}

func toTransactionResponse(t *entity.StockTransaction) *dto.StockTransactionResponse {
	return &dto.StockTransactionResponse{
		ID:             t.ID,
		StockID:        t.StockID,
		Sequence:       t.Sequence,
		ActorID:        t.ActorID,
		Type:           string(t.Type),
		Quantity:       t.Quantity,
		BeforeQty:      t.BeforeQty,
		AfterQty:       t.AfterQty,
		BeforeReserved: t.BeforeReserved,
		AfterReserved:  t.AfterReserved,
		BeforeMinStock: t.BeforeMinStock,
		AfterMinStock:  t.AfterMinStock,
		MinStockChange: t.MinStockChange,
		UnitCost:       t.UnitCost,
		TotalCost:      t.TotalCost,
		Reference:      t.Reference,
		TransferID:     t.TransferID,
		Note:           t.Note,
		CreatedAt:      t.CreatedAt,
	}
}
